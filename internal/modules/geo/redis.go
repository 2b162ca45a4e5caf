// README: Redis-backed presence index. Positions live in a GEO set, the
// rest of the presence record in a per-driver hash.
package geo

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"savari/internal/types"
)

const (
	driverGeoKey  = "presence:drivers"
	metaKeyPrefix = "presence:driver:"
)

type RedisIndex struct {
	redis *redis.Client
}

func NewRedisIndex(client *redis.Client) *RedisIndex {
	return &RedisIndex{redis: client}
}

func (r *RedisIndex) Upsert(ctx context.Context, p Presence) error {
	pipe := r.redis.Pipeline()
	pipe.GeoAdd(ctx, driverGeoKey, &redis.GeoLocation{
		Name:      string(p.DriverID),
		Longitude: p.Position.Lng,
		Latitude:  p.Position.Lat,
	})
	pipe.HSet(ctx, metaKey(p.DriverID), map[string]interface{}{
		"vehicle_type": p.VehicleType,
		"seats":        strconv.Itoa(p.Seats),
		"online":       strconv.FormatBool(p.Online),
		"approved":     strconv.FormatBool(p.Approved),
		"updated":      time.Now().UTC().Format(time.RFC3339),
	})
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisIndex) Remove(ctx context.Context, driverID types.ID) error {
	pipe := r.redis.Pipeline()
	pipe.ZRem(ctx, driverGeoKey, string(driverID))
	pipe.Del(ctx, metaKey(driverID))
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisIndex) Get(ctx context.Context, driverID types.ID) (Presence, bool, error) {
	meta, err := r.redis.HGetAll(ctx, metaKey(driverID)).Result()
	if err != nil {
		return Presence{}, false, err
	}
	if len(meta) == 0 {
		return Presence{}, false, nil
	}
	pos, err := r.redis.GeoPos(ctx, driverGeoKey, string(driverID)).Result()
	if err != nil {
		return Presence{}, false, err
	}
	p := presenceFromMeta(driverID, meta)
	if len(pos) > 0 && pos[0] != nil {
		p.Position = types.Point{Lat: pos[0].Latitude, Lng: pos[0].Longitude}
	}
	return p, true, nil
}

func (r *RedisIndex) Nearby(ctx context.Context, center types.Point, radiusKm float64, f Filter, limit int) ([]Candidate, error) {
	results, err := r.redis.GeoSearchLocation(ctx, driverGeoKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  center.Lng,
			Latitude:   center.Lat,
			Radius:     radiusKm,
			RadiusUnit: "km",
			Sort:       "ASC",
		},
		WithCoord: true,
		WithDist:  true,
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(results))
	for _, g := range results {
		meta, err := r.redis.HGetAll(ctx, metaKey(types.ID(g.Name))).Result()
		if err != nil {
			continue
		}
		p := presenceFromMeta(types.ID(g.Name), meta)
		p.Position = types.Point{Lat: g.Latitude, Lng: g.Longitude}
		if !f.matches(p) {
			continue
		}
		out = append(out, Candidate{Presence: p, DistanceKm: g.Dist})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func presenceFromMeta(id types.ID, meta map[string]string) Presence {
	p := Presence{DriverID: id}
	p.VehicleType = meta["vehicle_type"]
	if v, ok := meta["seats"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			p.Seats = n
		}
	}
	p.Online = meta["online"] == "true"
	p.Approved = meta["approved"] == "true"
	if v, ok := meta["updated"]; ok {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			p.UpdatedAt = t
		}
	}
	return p
}

func metaKey(id types.ID) string { return metaKeyPrefix + string(id) }

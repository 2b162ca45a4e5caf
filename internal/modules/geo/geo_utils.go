// Package geo — geo_utils contains pure geographic computation helpers.
package geo

import (
	"math"

	"savari/internal/types"
)

const earthRadiusKm = 6371.0

// kmPerLatDegree is the flat-earth shortcut used for the bounding-box
// prefilter. It is a deliberate country-scale approximation, not geodetic
// truth; it degrades near the poles, which is outside our operating area.
const kmPerLatDegree = 111.0

// DistanceKm returns the great-circle distance in kilometres between two
// points specified in decimal degrees.
func DistanceKm(a, b types.Point) float64 {
	return haversineKm(a.Lat, a.Lng, b.Lat, b.Lng)
}

func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := degreesToRadians(lat2 - lat1)
	dLng := degreesToRadians(lng2 - lng1)

	rLat1 := degreesToRadians(lat1)
	rLat2 := degreesToRadians(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// boundingBox derives the lat/lng half-ranges of a rectangle that fully
// contains the radius circle around lat. Candidates inside the rectangle
// still need the haversine circle check.
func boundingBox(lat, radiusKm float64) (latRange, lngRange float64) {
	latRange = radiusKm / kmPerLatDegree
	lngRange = radiusKm / (kmPerLatDegree * math.Cos(degreesToRadians(lat)))
	return latRange, lngRange
}

// sortByDistance performs an insertion sort (fine for small N) on any slice
// where each element exposes a distance via the accessor function.
func sortByDistance[T any](items []T, dist func(T) float64) {
	for i := 1; i < len(items); i++ {
		key := items[i]
		j := i - 1
		for j >= 0 && dist(items[j]) > dist(key) {
			items[j+1] = items[j]
			j--
		}
		items[j+1] = key
	}
}

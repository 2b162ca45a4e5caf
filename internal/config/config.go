// README: Config loader with env defaults for HTTP, DB, Redis, matching and
// bidding settings. Optional integrations (maps, firebase, kafka, stripe)
// stay disabled when their variables are unset.
package config

import (
	"os"
	"strconv"
	"time"
)

type MatchingConfig struct {
	BaseRadiusKm float64
	BaseTopN     int
}

type BiddingConfig struct {
	TTL          time.Duration
	FloorAmount  int64
	SweepSeconds int
}

type Config struct {
	HTTP struct {
		Addr string
	}
	DB struct {
		DSN string
	}
	Redis struct {
		Addr string
	}
	Firebase struct {
		ProjectID       string
		CredentialsFile string
	}
	Maps struct {
		APIKey string
	}
	Kafka struct {
		Brokers string
		Topic   string
	}
	Stripe struct {
		APIKey string
	}
	Log struct {
		Level string
	}
	Matching MatchingConfig
	Bidding  BiddingConfig
	Currency string
}

func Load() (Config, error) {
	var cfg Config
	cfg.HTTP.Addr = envOrDefault("SAVARI_HTTP_ADDR", ":8080")
	cfg.DB.DSN = envOrDefault("SAVARI_DB_DSN", "")
	cfg.Redis.Addr = envOrDefault("SAVARI_REDIS_ADDR", "")
	cfg.Firebase.ProjectID = envOrDefault("SAVARI_FIREBASE_PROJECT_ID", "")
	cfg.Firebase.CredentialsFile = envOrDefault("SAVARI_FIREBASE_CREDENTIALS", "")
	cfg.Maps.APIKey = envOrDefault("SAVARI_MAPS_API_KEY", "")
	cfg.Kafka.Brokers = envOrDefault("SAVARI_KAFKA_BROKERS", "")
	cfg.Kafka.Topic = envOrDefault("SAVARI_KAFKA_TOPIC", "driver-locations")
	cfg.Stripe.APIKey = envOrDefault("SAVARI_STRIPE_KEY", "")
	cfg.Log.Level = envOrDefault("SAVARI_LOG_LEVEL", "info")
	cfg.Matching.BaseRadiusKm = envOrDefaultFloat("SAVARI_MATCH_RADIUS_KM", 5.0)
	cfg.Matching.BaseTopN = envOrDefaultInt("SAVARI_MATCH_TOP_N", 10)
	cfg.Bidding.TTL = time.Duration(envOrDefaultInt("SAVARI_BID_TTL_MINUTES", 15)) * time.Minute
	cfg.Bidding.FloorAmount = int64(envOrDefaultInt("SAVARI_BID_FLOOR", 50))
	cfg.Bidding.SweepSeconds = envOrDefaultInt("SAVARI_BID_SWEEP_SECONDS", 60)
	cfg.Currency = envOrDefault("SAVARI_CURRENCY", "PKR")
	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	}
	return def
}

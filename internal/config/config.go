package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	MongoURI       string
	PostgresURI    string
	RedisURI       string
	Port           string
	Environment    string   // ENV: production, development, etc.
	AllowedOrigins []string // CORS: from ALLOWED_ORIGINS; must include the admin dashboard origin
	AllowedHost    string   // production host check; empty disables it

	// Initial reward settings, used only to seed the settings document on
	// first boot. After that the document in MongoDB is authoritative and
	// is changed through the admin settings endpoint.
	MinPayoutUsd        float64
	PayoutCooldownHours int
	MaxDailyEarnUsd     float64
	SafetyMargin        float64
	ECPMUsd             float64
	AppPepper           string
	EmulatorPayouts     bool
	CoinToUsdRate       float64
}

func Load() *Config {
	env := strings.ToLower(strings.TrimSpace(getEnv("ENV", "development")))

	allowedOrigins := parseOrigins(getEnv("ALLOWED_ORIGINS", ""))
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000"}
	}

	return &Config{
		MongoURI:       getEnv("MONGODB_URI", getEnv("MONGO_URI", "mongodb://localhost:27017/learn_earn")),
		PostgresURI:    getEnv("POSTGRES_URI", "postgres://localhost:5432/learn_earn?sslmode=disable"),
		RedisURI:       getEnv("REDIS_URI", "redis://localhost:6379/0"),
		Port:           getEnv("PORT", "8080"),
		Environment:    env,
		AllowedOrigins: allowedOrigins,
		AllowedHost:    getEnv("ALLOWED_HOST", ""),

		MinPayoutUsd:        getEnvFloat("MIN_PAYOUT_USD", 5),
		PayoutCooldownHours: getEnvInt("PAYOUT_COOLDOWN_HOURS", 48),
		MaxDailyEarnUsd:     getEnvFloat("MAX_DAILY_EARN_USD", 0.5),
		SafetyMargin:        getEnvFloat("SAFETY_MARGIN", 0.6),
		ECPMUsd:             getEnvFloat("ECPM_USD", 1.5),
		AppPepper:           getEnv("APP_PEPPER", "default_pepper_change_me"),
		EmulatorPayouts:     getEnv("EMULATOR_PAYOUTS", "false") == "true",
		CoinToUsdRate:       getEnvFloat("COIN_TO_USD_RATE", 0.001),
	}
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return strings.ToLower(strings.TrimSpace(c.Environment)) == "production"
}

func parseOrigins(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

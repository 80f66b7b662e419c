package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port          string
	AllowedOrigin string

	DatabaseURL   string
	MongoURI      string
	MongoDatabase string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RateCacheTTL  time.Duration
	CartTTL       time.Duration
	TxMaxAttempts int
	StrictPricing bool

	AuthSecret     string
	AccessTokenTTL time.Duration
	ManagerPIN     string
	AdminPassword  string
	SalesPassword  string
}

// Load reads configuration from the environment, optionally layered over a
// dotenv file named by ENV_FILE (default .env) when one exists.
func Load() Config {
	v := viper.New()
	v.AutomaticEnv()

	envFile := v.GetString("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			log.Printf("[config] WARN: could not read %s, using environment only: %v", envFile, err)
		}
	}

	v.SetDefault("PORT", "8080")
	v.SetDefault("ALLOWED_ORIGIN", "http://127.0.0.1:3000")
	v.SetDefault("MONGO_DATABASE", "karatpos")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("RATE_CACHE_TTL_SECONDS", 30)
	v.SetDefault("CART_TTL_HOURS", 12)
	v.SetDefault("TX_MAX_ATTEMPTS", 5)
	v.SetDefault("STRICT_PRICING", true)
	v.SetDefault("ACCESS_TOKEN_TTL_MINUTES", 480)

	return Config{
		Port:           v.GetString("PORT"),
		AllowedOrigin:  v.GetString("ALLOWED_ORIGIN"),
		DatabaseURL:    strings.TrimSpace(v.GetString("DATABASE_URL")),
		MongoURI:       strings.TrimSpace(v.GetString("MONGO_URI")),
		MongoDatabase:  v.GetString("MONGO_DATABASE"),
		RedisAddr:      strings.TrimSpace(v.GetString("REDIS_ADDR")),
		RedisPassword:  v.GetString("REDIS_PASSWORD"),
		RedisDB:        v.GetInt("REDIS_DB"),
		RateCacheTTL:   positive(v.GetInt("RATE_CACHE_TTL_SECONDS"), 30, time.Second),
		CartTTL:        positive(v.GetInt("CART_TTL_HOURS"), 12, time.Hour),
		TxMaxAttempts:  atLeastOne(v.GetInt("TX_MAX_ATTEMPTS"), 5),
		StrictPricing:  v.GetBool("STRICT_PRICING"),
		AuthSecret:     strings.TrimSpace(v.GetString("AUTH_SECRET")),
		AccessTokenTTL: positive(v.GetInt("ACCESS_TOKEN_TTL_MINUTES"), 480, time.Minute),
		ManagerPIN:     strings.TrimSpace(v.GetString("MANAGER_PIN")),
		AdminPassword:  v.GetString("ADMIN_PASSWORD"),
		SalesPassword:  v.GetString("SALES_PASSWORD"),
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func positive(n, fallback int, unit time.Duration) time.Duration {
	return time.Duration(atLeastOne(n, fallback)) * unit
}

func atLeastOne(n, fallback int) int {
	if n < 1 {
		return fallback
	}
	return n
}

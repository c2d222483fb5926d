// internal/config/config.go
package config

import (
	"log"
	"os"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	App      AppConfig
	Planning PlanningConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Publish  PublishConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type AppConfig struct {
	DataDir     string
	WorkerCount int
}

// PlanningConfig carries the knobs of the forecasting and optimization stages.
type PlanningConfig struct {
	HorizonDays    int
	ValidationDays int
	DailyCapacity  int
	ProductionDays int
	SafetyBuffer   float64
}

type DatabaseConfig struct {
	// URL is an optional Postgres DSN. When set, input tables (orders,
	// products, locations, inventory) are read from the database instead
	// of the data dir.
	URL string
}

type CacheConfig struct {
	Enabled       bool
	RedisURL      string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	TTLSeconds    int
}

type PublishConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Capacity returns the total production capacity over the plan horizon.
func (p PlanningConfig) Capacity() int {
	return p.DailyCapacity * p.ProductionDays
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		viper.SetDefault("SERVER_PORT", "8080")
		viper.SetDefault("SERVER_MODE", "debug")
		viper.SetDefault("SERVER_READ_TIMEOUT", 30)
		viper.SetDefault("SERVER_WRITE_TIMEOUT", 30)
		viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
		viper.SetDefault("APP_DATA_DIR", "./data")
		viper.SetDefault("APP_WORKER_COUNT", 2)
		viper.SetDefault("PLAN_HORIZON_DAYS", 7)
		viper.SetDefault("PLAN_VALIDATION_DAYS", 14)
		viper.SetDefault("PLAN_DAILY_CAPACITY", 10000)
		viper.SetDefault("PLAN_PRODUCTION_DAYS", 7)
		viper.SetDefault("PLAN_SAFETY_BUFFER", 1.15)
		viper.SetDefault("DATABASE_URL", "")
		viper.SetDefault("CACHE_ENABLED", false)
		viper.SetDefault("REDIS_URL", "")
		viper.SetDefault("REDIS_HOST", "127.0.0.1")
		viper.SetDefault("REDIS_PORT", "6379")
		viper.SetDefault("REDIS_PASSWORD", "")
		viper.SetDefault("REDIS_DB", 0)
		viper.SetDefault("CACHE_TTL_SECONDS", 60)
		viper.SetDefault("PUBLISH_ENABLED", false)
		viper.SetDefault("PUBLISH_ENDPOINT", "")
		viper.SetDefault("PUBLISH_ACCESS_KEY", "")
		viper.SetDefault("PUBLISH_SECRET_KEY", "")
		viper.SetDefault("PUBLISH_BUCKET", "")
		viper.SetDefault("PUBLISH_USE_SSL", true)

		viper.AutomaticEnv()

		ensureDir(viper.GetString("APP_DATA_DIR"))

		instance = &Config{
			Server: ServerConfig{
				Port:           viper.GetString("SERVER_PORT"),
				Mode:           viper.GetString("SERVER_MODE"),
				ReadTimeout:    viper.GetInt("SERVER_READ_TIMEOUT"),
				WriteTimeout:   viper.GetInt("SERVER_WRITE_TIMEOUT"),
				AllowedOrigins: viper.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
			},
			App: AppConfig{
				DataDir:     viper.GetString("APP_DATA_DIR"),
				WorkerCount: viper.GetInt("APP_WORKER_COUNT"),
			},
			Planning: PlanningConfig{
				HorizonDays:    viper.GetInt("PLAN_HORIZON_DAYS"),
				ValidationDays: viper.GetInt("PLAN_VALIDATION_DAYS"),
				DailyCapacity:  viper.GetInt("PLAN_DAILY_CAPACITY"),
				ProductionDays: viper.GetInt("PLAN_PRODUCTION_DAYS"),
				SafetyBuffer:   viper.GetFloat64("PLAN_SAFETY_BUFFER"),
			},
			Database: DatabaseConfig{
				URL: viper.GetString("DATABASE_URL"),
			},
			Cache: CacheConfig{
				Enabled:       viper.GetBool("CACHE_ENABLED"),
				RedisURL:      viper.GetString("REDIS_URL"),
				RedisHost:     viper.GetString("REDIS_HOST"),
				RedisPort:     viper.GetString("REDIS_PORT"),
				RedisPassword: viper.GetString("REDIS_PASSWORD"),
				RedisDB:       viper.GetInt("REDIS_DB"),
				TTLSeconds:    viper.GetInt("CACHE_TTL_SECONDS"),
			},
			Publish: PublishConfig{
				Enabled:   viper.GetBool("PUBLISH_ENABLED"),
				Endpoint:  viper.GetString("PUBLISH_ENDPOINT"),
				AccessKey: viper.GetString("PUBLISH_ACCESS_KEY"),
				SecretKey: viper.GetString("PUBLISH_SECRET_KEY"),
				Bucket:    viper.GetString("PUBLISH_BUCKET"),
				UseSSL:    viper.GetBool("PUBLISH_USE_SSL"),
			},
		}
	})

	return instance
}

func ensureDir(dir string) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}
}

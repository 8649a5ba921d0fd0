package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// DBDriver selects "postgres" or "sqlite".
	DBDriver   string
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	DBSSLMode  string
	DBPath     string // sqlite only

	RedisURL string

	// WorkerConcurrency is the step-executor pool width.
	WorkerConcurrency int
	// LockTTLSeconds bounds how long an admission lock can outlive a crash.
	LockTTLSeconds int
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: Error loading .env file")
	}

	return &Config{
		Port:              getEnv("PORT", "8080"),
		DBDriver:          getEnv("DB_DRIVER", "sqlite"),
		DBHost:            getEnv("DB_HOST", "localhost"),
		DBUser:            getEnv("DB_USER", "sentinel"),
		DBPassword:        getEnv("DB_PASSWORD", ""),
		DBName:            getEnv("DB_NAME", "sentinel"),
		DBPort:            getEnv("DB_PORT", "5432"),
		DBSSLMode:         getEnv("DB_SSLMODE", "disable"),
		DBPath:            getEnv("DB_PATH", "./sentinel.db"),
		RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379"),
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 50),
		LockTTLSeconds:    getEnvInt("LOCK_TTL_SECONDS", 30),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Printf("Warning: %s is not a number, using %d", key, fallback)
	}
	return fallback
}

package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	StoreFirestore = "firestore"
	StoreMemory    = "memory"

	AuthFirebase = "firebase"
	AuthJWKS     = "jwks"
	AuthDev      = "dev"

	SendTwoWrite      = "two_write"
	SendTransactional = "transactional"
)

type Config struct {
	ServerPort      string
	FirebaseProject string
	Environment     string
	LogLevel        string

	ServiceAccountJSON string
	ServiceAccountPath string
	StorageBucket      string

	StoreDriver string
	AuthMode    string
	JWTSecret   string
	JWTExpiry   int64

	SendMode          string
	SendRatePerMinute int
	SendBurst         int
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		FirebaseProject: getEnv("FIREBASE_PROJECT_ID", ""),
		Environment:     getEnv("ENVIRONMENT", "development"),
		LogLevel:        getEnv("LOG_LEVEL", ""),

		ServiceAccountJSON: getEnv("FIREBASE_SERVICE_ACCOUNT_JSON", ""),
		ServiceAccountPath: getEnv("FIREBASE_SERVICE_ACCOUNT_PATH", ""),
		StorageBucket:      getEnv("STORAGE_BUCKET", ""),

		StoreDriver: getEnv("STORE_DRIVER", StoreFirestore),
		AuthMode:    getEnv("AUTH_MODE", AuthFirebase),
		JWTSecret:   getEnv("JWT_SECRET", "your-secret-key"),
		JWTExpiry:   getEnvAsInt64("JWT_EXPIRY", 24*60*60), // 24 hours

		SendMode:          getEnv("SEND_MODE", SendTwoWrite),
		SendRatePerMinute: int(getEnvAsInt64("SEND_RATE_PER_MINUTE", 30)),
		SendBurst:         int(getEnvAsInt64("SEND_BURST", 10)),
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case StoreFirestore, StoreMemory:
	default:
		return fmt.Errorf("invalid STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.AuthMode {
	case AuthFirebase, AuthJWKS, AuthDev:
	default:
		return fmt.Errorf("invalid AUTH_MODE %q", c.AuthMode)
	}

	switch c.SendMode {
	case SendTwoWrite, SendTransactional:
	default:
		return fmt.Errorf("invalid SEND_MODE %q", c.SendMode)
	}

	if c.StoreDriver == StoreFirestore && c.FirebaseProject == "" {
		return fmt.Errorf("FIREBASE_PROJECT_ID is required when STORE_DRIVER=%s", StoreFirestore)
	}
	if c.AuthMode != AuthDev && c.FirebaseProject == "" {
		return fmt.Errorf("FIREBASE_PROJECT_ID is required when AUTH_MODE=%s", c.AuthMode)
	}
	if c.AuthMode == AuthDev && !c.IsDevelopment() {
		return fmt.Errorf("AUTH_MODE=%s is only allowed in development", AuthDev)
	}
	if c.SendRatePerMinute <= 0 || c.SendBurst <= 0 {
		return fmt.Errorf("SEND_RATE_PER_MINUTE and SEND_BURST must be positive")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

// Package config loads demo-binary overrides from the environment, in the
// same style as the teacher's own env loader: try a local .env first, log
// whether it was found, then fall back to getEnv/os.LookupEnv per field.
//
// Grounded on the teacher's internal/config/config.go.
package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the subset of vigilant's UserConfig fields a demo binary
// commonly wants to override from the environment.
type Config struct {
	Name        string
	Token       string
	Endpoint    string
	Insecure    bool
	Passthrough bool
	Autocapture bool
	Noop        bool
}

// Load reads .env (if present) and the process environment into a Config.
func Load() *Config {
	envFile := ".env"

	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		log.Println("no .env file present, using system environment variables or defaults")
	} else if err := godotenv.Load(envFile); err != nil {
		log.Println("failed to load .env, using system environment variables or defaults")
	} else {
		log.Println("loaded configuration from .env")
	}

	return &Config{
		Name:        getEnv("VIGILANT_NAME", "backend"),
		Token:       getEnv("VIGILANT_TOKEN", ""),
		Endpoint:    getEnv("VIGILANT_ENDPOINT", "ingress.vigilant.run"),
		Insecure:    getEnvBool("VIGILANT_INSECURE", false),
		Passthrough: getEnvBool("VIGILANT_PASSTHROUGH", true),
		Autocapture: getEnvBool("VIGILANT_AUTOCAPTURE", true),
		Noop:        getEnvBool("VIGILANT_NOOP", false),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

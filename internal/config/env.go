package config

import (
	"os"
	"strconv"
	"time"
)

func Load() *Config {
	return &Config{
		Service: &ServiceConfig{
			Name: getEnv("SERVICE_NAME", "signalhub"),
			Env:  getEnv("SERVICE_ENV", "development"),
			Addr: getEnv("SERVICE_ADDR", ":3000"),
		},
		Transport: &TransportConfig{
			ReadLimit:    getEnvInt64("WS_READ_LIMIT", 512*1024),
			WriteTimeout: getEnvDuration("WS_WRITE_TIMEOUT", 10*time.Second),
			SendBuffer:   getEnvInt("WS_SEND_BUFFER", 256),
		},
		Static: &StaticConfig{
			Dir: getEnv("STATIC_DIR", "public"),
		},
		Logger: &LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "JSON"),
		},
		Tracer: &TracerConfig{
			Address: getEnv("OTLP_ADDR", "localhost:4317"),
			Enabled: getEnvBool("TRACING_ENABLED", false),
		},
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

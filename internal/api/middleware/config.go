package middleware

import (
	"time"

	"github.com/turnos-io/turnos/internal/config"
)

// Config holds rate limiter configuration.
//
// Limits are requests per second. The global limit applies to every request, the
// client limit to each remote address separately. A burst of 0 means 2 × rate.
type Config struct {
	GlobalRPS int // Default: 100
	ClientRPS int // Default: 20

	GlobalBurst int
	ClientBurst int

	CleanupInterval time.Duration // Default: 5 minutes
	IdleTimeout     time.Duration // Default: 1 hour
	MaxClients      int           // Default: 10,000
}

// LoadConfig loads rate limiter config from environment variables with fallback to defaults.
func LoadConfig() *Config {
	return &Config{
		GlobalRPS: config.GetEnvInt("TURNOS_GLOBAL_RPS", defaultGlobalRPS),
		ClientRPS: config.GetEnvInt("TURNOS_CLIENT_RPS", defaultClientRPS),

		GlobalBurst: config.GetEnvInt("TURNOS_GLOBAL_BURST", 0),
		ClientBurst: config.GetEnvInt("TURNOS_CLIENT_BURST", 0),

		CleanupInterval: config.GetEnvDuration("TURNOS_RATE_LIMIT_CLEANUP_INTERVAL", rateLimiterCleanupInterval),
		IdleTimeout:     config.GetEnvDuration("TURNOS_RATE_LIMIT_IDLE_TIMEOUT", rateLimiterIdleTimeout),
		MaxClients:      config.GetEnvInt("TURNOS_RATE_LIMIT_MAX_CLIENTS", defaultMaxClients),
	}
}

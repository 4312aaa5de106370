package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/kirillqa17/vpn-api/internal/entitlement"
)

type Config struct {
	// Core
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	JWTSecret   string `env:"JWT_SECRET,required,notEmpty"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	CORSOrigins        []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	RateLimitPerMinute int      `env:"RATE_LIMIT_PER_MINUTE" envDefault:"600"`

	// Provisioning panel
	PanelURL      string        `env:"PANEL_URL,required,notEmpty"`
	PanelToken    string        `env:"PANEL_TOKEN,required,notEmpty"`
	PanelProxy    string        `env:"PANEL_PROXY"`
	PanelTimeout  time.Duration `env:"PANEL_TIMEOUT" envDefault:"15s"`
	SquadMainID   string        `env:"SQUAD_MAIN_UUID"`
	SquadBypassID string        `env:"SQUAD_BYPASS_UUID"`

	// Reconciliation
	SweepInterval    time.Duration `env:"SWEEP_INTERVAL" envDefault:"1h"`
	SweepHorizonDays int           `env:"SWEEP_HORIZON_DAYS" envDefault:"1"`
	OverrideDelay    time.Duration `env:"OVERRIDE_DELAY" envDefault:"30m"`
	RenewCooldown    time.Duration `env:"RENEW_COOLDOWN" envDefault:"12h"`
	RenewMaxFailures int           `env:"RENEW_MAX_FAILURES" envDefault:"3"`

	// Metrics endpoint basic auth; empty hash disables the endpoint.
	MetricsUser         string `env:"METRICS_USER" envDefault:"metrics"`
	MetricsPasswordHash string `env:"METRICS_PASSWORD_HASH"`
}

// Load reads an optional .env file and parses the environment into an
// immutable Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn(".env file not found, using process environment")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.SweepHorizonDays <= 0 {
		return fmt.Errorf("SWEEP_HORIZON_DAYS must be positive, got %d", c.SweepHorizonDays)
	}
	if c.RenewMaxFailures <= 0 {
		return fmt.Errorf("RENEW_MAX_FAILURES must be positive, got %d", c.RenewMaxFailures)
	}
	if c.OverrideDelay <= 0 {
		return fmt.Errorf("OVERRIDE_DELAY must be positive, got %s", c.OverrideDelay)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// SquadIDs maps squad roles used by the plan table to panel squad UUIDs.
func (c *Config) SquadIDs() map[string]string {
	ids := make(map[string]string, 2)
	if c.SquadMainID != "" {
		ids[entitlement.SquadMain] = c.SquadMainID
	}
	if c.SquadBypassID != "" {
		ids[entitlement.SquadBypass] = c.SquadBypassID
	}
	return ids
}

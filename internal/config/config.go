// Package config reads the budget engine configuration.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the runtime parameters of the budget engine.
type Config struct {
	RunAddress           string        `env:"RUN_ADDRESS"`
	DatabaseURI          string        `env:"DATABASE_URI"`
	FrontendURL          string        `env:"FRONTEND_URL"`
	BudgetsSecret        string        `env:"BUDGETS_SECRET"`
	StaffAuthSecret      string        `env:"STAFF_AUTH_SECRET"`
	MailRelayAddress     string        `env:"MAIL_RELAY_ADDRESS"`
	RenderServiceAddress string        `env:"RENDER_SERVICE_ADDRESS"`
	OfficeEmail          string        `env:"OFFICE_EMAIL"`
	BudgetSeries         string        `env:"BUDGET_SERIES"`
	BudgetValidDays      int           `env:"BUDGET_VALID_DAYS"`
	ReminderWindowDays   int           `env:"REMINDER_WINDOW_DAYS"`
	ParamCacheTTL        time.Duration `env:"PARAM_CACHE_TTL"`
	SweepInterval        time.Duration `env:"SWEEP_INTERVAL"`
}

// Parse reads the configuration from command line flags and environment
// variables. Environment values win over flags.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	fromEnv := *cfg

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.FrontendURL, "f", "https://asesorialallave.com", "public frontend base URL")
	flag.StringVar(&cfg.BudgetsSecret, "budgets-secret", "", "secret for acceptance tokens")
	flag.StringVar(&cfg.StaffAuthSecret, "staff-secret", "", "secret for staff bearer tokens")
	flag.StringVar(&cfg.MailRelayAddress, "mail-relay", "", "mail relay base URL")
	flag.StringVar(&cfg.RenderServiceAddress, "render-service", "", "render service base URL")
	flag.StringVar(&cfg.OfficeEmail, "office-email", "info@asesorialallave.com", "internal notification mailbox")
	flag.StringVar(&cfg.BudgetSeries, "series", "AL", "budget numbering series")
	flag.IntVar(&cfg.BudgetValidDays, "valid-days", 30, "default budget validity in days")
	flag.IntVar(&cfg.ReminderWindowDays, "reminder-days", 3, "days before expiry to remind")
	flag.DurationVar(&cfg.ParamCacheTTL, "param-ttl", 5*time.Minute, "pricing parameter cache TTL")
	flag.DurationVar(&cfg.SweepInterval, "sweep-interval", time.Hour, "lifecycle sweep interval")

	flag.Parse()

	if fromEnv.RunAddress != "" {
		cfg.RunAddress = fromEnv.RunAddress
	}
	if fromEnv.DatabaseURI != "" {
		cfg.DatabaseURI = fromEnv.DatabaseURI
	}
	if fromEnv.FrontendURL != "" {
		cfg.FrontendURL = fromEnv.FrontendURL
	}
	if fromEnv.BudgetsSecret != "" {
		cfg.BudgetsSecret = fromEnv.BudgetsSecret
	}
	if fromEnv.StaffAuthSecret != "" {
		cfg.StaffAuthSecret = fromEnv.StaffAuthSecret
	}
	if fromEnv.MailRelayAddress != "" {
		cfg.MailRelayAddress = fromEnv.MailRelayAddress
	}
	if fromEnv.RenderServiceAddress != "" {
		cfg.RenderServiceAddress = fromEnv.RenderServiceAddress
	}
	if fromEnv.OfficeEmail != "" {
		cfg.OfficeEmail = fromEnv.OfficeEmail
	}
	if fromEnv.BudgetSeries != "" {
		cfg.BudgetSeries = fromEnv.BudgetSeries
	}
	if fromEnv.BudgetValidDays > 0 {
		cfg.BudgetValidDays = fromEnv.BudgetValidDays
	}
	if fromEnv.ReminderWindowDays > 0 {
		cfg.ReminderWindowDays = fromEnv.ReminderWindowDays
	}
	if fromEnv.ParamCacheTTL > 0 {
		cfg.ParamCacheTTL = fromEnv.ParamCacheTTL
	}
	if fromEnv.SweepInterval > 0 {
		cfg.SweepInterval = fromEnv.SweepInterval
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	return cfg, nil
}

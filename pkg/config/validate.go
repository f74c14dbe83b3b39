// Package config loads and validates service configuration.
package config

import (
	"fmt"
	"strings"
)

// ValidateCore ensures the settings every entry point relies on are sane.
func (c *Config) ValidateCore() error {
	var problems []string

	if c.Settlement.MinorUnitDigits < 0 || c.Settlement.MinorUnitDigits > 8 {
		problems = append(problems, "SETTLEMENT_MINOR_UNIT_DIGITS must be between 0 and 8")
	}
	if c.Settlement.SubsetMaxGroup < 1 || c.Settlement.SubsetMaxGroup > 62 {
		problems = append(problems, "SETTLEMENT_SUBSET_MAX_GROUP must be between 1 and 62")
	}
	if c.Settlement.SubsetStepBudget < 1 {
		problems = append(problems, "SETTLEMENT_SUBSET_STEP_BUDGET must be positive")
	}
	if c.Settlement.MaxEntries < 1 {
		problems = append(problems, "SETTLEMENT_MAX_ENTRIES must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, ", "))
	}
	return nil
}

// ValidateServer additionally requires what the HTTP service needs.
func (c *Config) ValidateServer() error {
	if err := c.ValidateCore(); err != nil {
		return err
	}

	var missing []string
	if strings.TrimSpace(c.Database.URL) == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if strings.TrimSpace(c.Server.Port) == "" {
		missing = append(missing, "SERVER_PORT")
	}
	if c.Redis.Enabled && strings.TrimSpace(c.Redis.URL) == "" {
		missing = append(missing, "REDIS_URL")
	}
	if c.Server.RateLimitRequests > 0 && c.Server.RateLimitWindow <= 0 {
		missing = append(missing, "RATE_LIMIT_WINDOW")
	}
	if c.Settlement.Retention > 0 && c.Settlement.SweepInterval <= 0 {
		missing = append(missing, "SETTLEMENT_SWEEP_INTERVAL")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	return nil
}

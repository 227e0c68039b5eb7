package config

import (
	"os"
	"strings"
)

func isTruthy(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

func isFalsy(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "0" || v == "false" || v == "no" || v == "n"
}

// SeedDemoLedger loads the demo ledger entries on startup.
//
// Enabled unless explicitly disabled via env:
// - SEED_DEMO_LEDGER=false
func SeedDemoLedger() bool {
	return !isFalsy(os.Getenv("SEED_DEMO_LEDGER"))
}

// RateLimitEnabled turns on the redis-backed per-IP limiter.
//
// Set via env:
// - RATE_LIMIT_ENABLED=true
func RateLimitEnabled() bool {
	return isTruthy(os.Getenv("RATE_LIMIT_ENABLED"))
}

// IsProduction is true when GO_ENV=production.
func IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production")
}

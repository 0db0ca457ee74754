package config

import (
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ToleranceThreshold is the maximum absolute declared-vs-counted difference
// accepted at approval.
//
// Set via env:
// - CASH_TOLERANCE_THRESHOLD=0.01 (default 0, exact match)
func ToleranceThreshold() decimal.Decimal {
	raw := strings.TrimSpace(os.Getenv("CASH_TOLERANCE_THRESHOLD"))
	if raw == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// RequireResolvedIncidents blocks approval/delivery while a transaction still
// has incidents in Reported or Adjusted status.
//
// Set via env:
// - REQUIRE_RESOLVED_INCIDENTS=false to disable (default true)
func RequireResolvedIncidents() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("REQUIRE_RESOLVED_INCIDENTS")))
	if v == "" {
		return true
	}
	return !(v == "0" || v == "false" || v == "no" || v == "n")
}

// TransactionLockTTL bounds how long a container submission may hold the
// redis lock of a transaction.
//
// Set via env:
// - TRANSACTION_LOCK_TTL_SECONDS (default 30)
func TransactionLockTTL() time.Duration {
	secs := intFromEnv("TRANSACTION_LOCK_TTL_SECONDS", 30)
	if secs <= 0 {
		secs = 30
	}
	return time.Duration(secs) * time.Second
}

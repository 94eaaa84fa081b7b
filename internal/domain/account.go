// Package domain holds the core types shared by the ledger, the lookup gateway and the API.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Plan is an informational account tier.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPaid Plan = "paid"
)

// ParsePlan converts a raw plan name. Empty input maps to PlanFree.
func ParsePlan(raw string) (Plan, error) {
	switch Plan(strings.ToLower(strings.TrimSpace(raw))) {
	case "", PlanFree:
		return PlanFree, nil
	case PlanPaid:
		return PlanPaid, nil
	default:
		return "", fmt.Errorf("unknown plan %q", raw)
	}
}

// Account is the per-user credit record owned by the ledger.
type Account struct {
	UserID         string    `json:"user_id"`
	Balance        int64     `json:"balance"`
	LookupsUsed    int64     `json:"lookups_used"`
	Plan           Plan      `json:"plan"`
	JoinedAt       time.Time `json:"joined_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// IdleSince reports whether the account has been inactive since before cutoff.
func (a Account) IdleSince(cutoff time.Time) bool {
	return a.LastActivityAt.Before(cutoff)
}

package ratelimit

import (
	"errors"
	"sync"
	"time"

	"github.com/Proton-105/phonelookup/pkg/config"
)

// Rules encapsulates configured rate limits and helper methods.
// Update swaps the rule set atomically so configuration reloads take effect without restarts.
type Rules struct {
	mu        sync.RWMutex
	config    config.RateLimitConfig
	whitelist map[string]struct{}
}

// NewRules constructs rate limiting rules from configuration settings.
func NewRules(cfg config.RateLimitConfig) *Rules {
	r := &Rules{}
	r.Update(cfg)
	return r
}

// Update replaces the active configuration.
func (r *Rules) Update(cfg config.RateLimitConfig) {
	whitelist := make(map[string]struct{}, len(cfg.Whitelist))
	for _, id := range cfg.Whitelist {
		whitelist[id] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.config = cfg
	r.whitelist = whitelist
}

// IsWhitelisted returns true if the userID bypasses rate limits.
func (r *Rules) IsWhitelisted(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.whitelist[userID]
	return ok
}

// GetPerUserLimit returns the per-user rate limiting rule.
func (r *Rules) GetPerUserLimit() (int, time.Duration, error) {
	r.mu.RLock()
	rule := r.config.PerUser
	r.mu.RUnlock()
	return parseRule(rule)
}

// GetAdminLimit returns the per-client rule of the admin surface.
func (r *Rules) GetAdminLimit() (int, time.Duration, error) {
	r.mu.RLock()
	rule := r.config.Admin
	r.mu.RUnlock()
	return parseRule(rule)
}

func parseRule(rule config.RateLimitRule) (int, time.Duration, error) {
	if rule.Window == "" {
		return rule.Limit, 0, errors.New("window duration is not set")
	}
	window, err := time.ParseDuration(rule.Window)
	if err != nil {
		return 0, 0, err
	}
	if window <= 0 {
		return 0, 0, errors.New("window duration must be positive")
	}
	return rule.Limit, window, nil
}

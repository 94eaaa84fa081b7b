package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/phonelookup/pkg/config"
)

func TestRules_PerUserLimitAndWhitelist(t *testing.T) {
	rules := NewRules(config.RateLimitConfig{
		PerUser:   config.RateLimitRule{Limit: 10, Window: "60s"},
		Whitelist: []string{"admin-1"},
	})

	limit, window, err := rules.GetPerUserLimit()
	require.NoError(t, err)
	assert.Equal(t, 10, limit)
	assert.Equal(t, time.Minute, window)
	assert.True(t, rules.IsWhitelisted("admin-1"))
	assert.False(t, rules.IsWhitelisted("user-2"))
}

func TestRules_Update(t *testing.T) {
	rules := NewRules(config.RateLimitConfig{PerUser: config.RateLimitRule{Limit: 10, Window: "60s"}})

	rules.Update(config.RateLimitConfig{
		PerUser:   config.RateLimitRule{Limit: 3, Window: "10s"},
		Whitelist: []string{"user-2"},
	})

	limit, window, err := rules.GetPerUserLimit()
	require.NoError(t, err)
	assert.Equal(t, 3, limit)
	assert.Equal(t, 10*time.Second, window)
	assert.True(t, rules.IsWhitelisted("user-2"))
}

func TestRules_InvalidWindow(t *testing.T) {
	for _, window := range []string{"", "soon", "-5s"} {
		rules := NewRules(config.RateLimitConfig{PerUser: config.RateLimitRule{Limit: 1, Window: window}})
		_, _, err := rules.GetPerUserLimit()
		assert.Error(t, err, window)
	}
}

func TestRules_AdminLimit(t *testing.T) {
	rules := NewRules(config.RateLimitConfig{
		PerUser: config.RateLimitRule{Limit: 10, Window: "60s"},
		Admin:   config.RateLimitRule{Limit: 30, Window: "1m"},
	})

	limit, window, err := rules.GetAdminLimit()
	require.NoError(t, err)
	assert.Equal(t, 30, limit)
	assert.Equal(t, time.Minute, window)
}

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/phonelookup/pkg/config"
)

func TestNew_ConnectsAndRecordsMetrics(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	client, err := New(ctx, config.RedisConfig{Addr: mr.Addr(), PoolSize: 2})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	before := counterValue(t, redisRequestsTotal.WithLabelValues("set"))
	require.NoError(t, client.Set(ctx, "k", "v", time.Minute).Err())
	assert.Equal(t, before+1, counterValue(t, redisRequestsTotal.WithLabelValues("set")))

	missesBefore := counterValue(t, redisErrorsTotal.WithLabelValues("get"))
	_, err = client.Get(ctx, "missing").Result()
	require.Error(t, err)
	assert.Equal(t, missesBefore, counterValue(t, redisErrorsTotal.WithLabelValues("get")))

	assert.NoError(t, client.Ping(ctx).Err())
}

func TestNew_FailsWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := New(context.Background(), config.RedisConfig{Addr: addr, MaxRetries: -1})
	assert.Error(t, err)
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

package controllers

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"employee-api/internal/config"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockRedis implements the Redis subset of Dependens.
type MockRedis struct {
	mock.Mock
}

func (m *MockRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	args := m.Called(ctx, key, value, expiration)
	return args.Get(0).(*redis.StatusCmd)
}

func (m *MockRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	args := m.Called(ctx, key)
	return args.Get(0).(*redis.StringCmd)
}

func (m *MockRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	args := m.Called(ctx, keys)
	return args.Get(0).(*redis.IntCmd)
}

func newTestDeps(t *testing.T) (*Dependens, pgxmock.PgxPoolIface, *MockRedis) {
	t.Helper()

	mockDB, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockDB.Close)

	mockRedis := &MockRedis{}

	cfg := &config.Config{}
	cfg.Redis.AvgSalaryTTL = 5 * time.Minute

	deps := &Dependens{
		DB:     mockDB,
		Redis:  mockRedis,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config: cfg,
	}

	return deps, mockDB, mockRedis
}

// expectCacheInvalidation registers the Del call every successful mutation makes.
func expectCacheInvalidation(mockRedis *MockRedis) {
	mockRedis.On("Del", mock.Anything, []string{avgSalaryCacheKey}).Return(redis.NewIntCmd(context.Background()))
}

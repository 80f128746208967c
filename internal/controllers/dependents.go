package controllers

import (
	"context"
	"log/slog"
	"time"

	"employee-api/internal/config"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
)

type Controllers struct {
	AuthController     *AuthController
	EmployeeController *EmployeeController
}

func NewControllers(deps *Dependens) *Controllers {
	return &Controllers{
		AuthController:     NewAuthController(deps),
		EmployeeController: NewEmployeeController(deps),
	}
}

// Dependens carries the shared collaborators. The DB and Redis interfaces are
// the subset of pgxpool.Pool and redis.Client the controllers actually use,
// so tests can substitute mocks.
type Dependens struct {
	DB interface {
		Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
		QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
		Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	}
	Redis interface {
		Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
		Get(ctx context.Context, key string) *redis.StringCmd
		Del(ctx context.Context, keys ...string) *redis.IntCmd
	}
	Logger *slog.Logger
	Config *config.Config
}

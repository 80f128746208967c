package database

import (
	"context"
	"log/slog"

	"employee-api/internal/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

func NewConnect(ctx context.Context, config *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, config.DatabaseURL())
	if err != nil {
		logger.Error("Error connecting to DB", slog.String("error", err.Error()))
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		logger.Error("Error pinging DB", slog.String("error", err.Error()))
		return nil, err
	}

	logger.Info("Connected to DB successfully")
	return pool, nil
}

package controllers

import (
	"context"
	"errors"
	"log/slog"

	"employee-api/internal/entity"
	"employee-api/internal/validation"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
)

const uniqueViolation = "23505"

// dummyHash keeps the unknown-username path doing a bcrypt comparison, so
// lookup misses and password mismatches cost the same.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)

type AuthController struct {
	deps *Dependens
}

func NewAuthController(deps *Dependens) *AuthController {
	return &AuthController{
		deps: deps,
	}
}

// Register stores a new credential record. The unique index on username is
// the real guarantee; the pre-insert lookup only produces a friendlier error.
func (c *AuthController) Register(ctx context.Context, username, password string) error {
	if err := validation.ValidateCredentials(username, password); err != nil {
		return err
	}

	var exists bool
	if err := c.deps.DB.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)", username).Scan(&exists); err != nil {
		c.deps.Logger.Error("Error checking username uniqueness", slog.String("error", err.Error()))
		return err
	}

	if exists {
		c.deps.Logger.Warn("Username already taken", slog.String("username", username))
		return entity.ErrUserConflict
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		c.deps.Logger.Error("Error hashing password", slog.String("error", err.Error()))
		return err
	}

	if _, err := c.deps.DB.Exec(ctx, "INSERT INTO users (username, password_hash) VALUES ($1, $2)", username, string(hash)); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return entity.ErrUserConflict
		}

		c.deps.Logger.Error("Error inserting user", slog.String("error", err.Error()))
		return err
	}

	c.deps.Logger.Info("User registered", slog.String("username", username))

	return nil
}

// Authenticate verifies a username/password pair and returns the subject.
// Unknown username and wrong password fail with the same error; nothing in
// the response reveals which check failed.
func (c *AuthController) Authenticate(ctx context.Context, username, password string) (string, error) {
	user := entity.User{Username: username}
	if err := c.deps.DB.QueryRow(ctx, "SELECT password_hash FROM users WHERE username = $1", username).Scan(&user.PasswordHash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			c.deps.Logger.Warn("Invalid login attempt", slog.String("username", username))
			return "", entity.ErrInvalidCredentials
		}

		c.deps.Logger.Error("Error querying user", slog.String("error", err.Error()))
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		c.deps.Logger.Warn("Invalid login attempt", slog.String("username", username))
		return "", entity.ErrInvalidCredentials
	}

	return user.Username, nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/caspian-yx/socket-chat-app/internal/core/domain"
	"github.com/caspian-yx/socket-chat-app/internal/core/port"
	"github.com/caspian-yx/socket-chat-app/internal/repository"
)

// UserRepository implements port.UserRepository using PostgreSQL.
type UserRepository struct {
	db      DB
	builder squirrel.StatementBuilderType
}

// NewUserRepository wires a PostgreSQL-backed user repository.
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{
		db:      db,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new user row.
func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	sql, args, err := r.builder.Insert("chat.users").
		Columns("id", "username", "password_hash", "created_at", "last_login").
		Values(user.ID, user.Username, user.PasswordHash, user.CreatedAt, user.LastLogin).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert user: %w", err)
	}

	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByUsername fetches one user by username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	sql, args, err := r.builder.Select("id", "username", "password_hash", "created_at", "last_login").
		From("chat.users").
		Where(squirrel.Eq{"username": username}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user: %w", err)
	}

	var user domain.User
	row := r.db.QueryRow(ctx, sql, args...)
	if err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt, &user.LastLogin); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &user, nil
}

// Exists reports whether a username is taken.
func (r *UserRepository) Exists(ctx context.Context, username string) (bool, error) {
	sql, args, err := r.builder.Select("1").
		From("chat.users").
		Where(squirrel.Eq{"username": username}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists user: %w", err)
	}

	var one int
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("scan exists user: %w", err)
	}
	return true, nil
}

// TouchLastLogin stamps the user's most recent successful login.
func (r *UserRepository) TouchLastLogin(ctx context.Context, userID string) error {
	sql, args, err := r.builder.Update("chat.users").
		Set("last_login", time.Now().UTC()).
		Where(squirrel.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build touch last login: %w", err)
	}

	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	return nil
}

var _ port.UserRepository = (*UserRepository)(nil)

package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/caspian-yx/socket-chat-app/internal/core/domain"
	"github.com/caspian-yx/socket-chat-app/internal/core/port"
	"github.com/caspian-yx/socket-chat-app/internal/repository"
)

// RoomRepository implements port.RoomRepository using PostgreSQL.
type RoomRepository struct {
	db      DB
	builder squirrel.StatementBuilderType
}

// NewRoomRepository wires a PostgreSQL-backed room repository.
func NewRoomRepository(db DB) *RoomRepository {
	return &RoomRepository{
		db:      db,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a room and its owner membership.
func (r *RoomRepository) Create(ctx context.Context, room domain.Room) error {
	sql, args, err := r.builder.Insert("chat.rooms").
		Columns("id", "owner", "created_at", "topic").
		Values(room.ID, room.Owner, room.CreatedAt, room.Topic).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert room: %w", err)
	}
	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert room: %w", err)
	}

	return r.AddMember(ctx, room.ID, room.Owner)
}

// Get fetches one room.
func (r *RoomRepository) Get(ctx context.Context, roomID string) (*domain.Room, error) {
	sql, args, err := r.builder.Select("id", "owner", "created_at", "topic").
		From("chat.rooms").
		Where(squirrel.Eq{"id": roomID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select room: %w", err)
	}

	var room domain.Room
	row := r.db.QueryRow(ctx, sql, args...)
	if err := row.Scan(&room.ID, &room.Owner, &room.CreatedAt, &room.Topic); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan room: %w", err)
	}
	return &room, nil
}

// Delete removes a room; memberships cascade in the schema.
func (r *RoomRepository) Delete(ctx context.Context, roomID string) error {
	sql, args, err := r.builder.Delete("chat.rooms").
		Where(squirrel.Eq{"id": roomID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete room: %w", err)
	}
	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	return nil
}

// AddMember records a membership; joining twice is a no-op.
func (r *RoomRepository) AddMember(ctx context.Context, roomID, userID string) error {
	sql, args, err := r.builder.Insert("chat.room_members").
		Columns("room_id", "user_id").
		Values(roomID, userID).
		Suffix("ON CONFLICT DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build add member: %w", err)
	}
	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

// RemoveMember deletes a membership.
func (r *RoomRepository) RemoveMember(ctx context.Context, roomID, userID string) error {
	sql, args, err := r.builder.Delete("chat.room_members").
		Where(squirrel.Eq{"room_id": roomID, "user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build remove member: %w", err)
	}
	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}

// ListMembers returns the user ids of a room's members.
func (r *RoomRepository) ListMembers(ctx context.Context, roomID string) ([]string, error) {
	sql, args, err := r.builder.Select("user_id").
		From("chat.room_members").
		Where(squirrel.Eq{"room_id": roomID}).
		OrderBy("user_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list members: %w", err)
	}
	return r.listStrings(ctx, sql, args)
}

// ListForUser returns the room ids the user belongs to.
func (r *RoomRepository) ListForUser(ctx context.Context, userID string) ([]string, error) {
	sql, args, err := r.builder.Select("room_id").
		From("chat.room_members").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("room_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list rooms: %w", err)
	}
	return r.listStrings(ctx, sql, args)
}

func (r *RoomRepository) listStrings(ctx context.Context, sql string, args []any) ([]string, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return out, nil
}

var _ port.RoomRepository = (*RoomRepository)(nil)

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/cohabit/internal/model"
	"github.com/dukerupert/cohabit/internal/xp"
)

type UserStore struct {
	db DBTX
}

func NewUserStore(db DBTX) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	err := scanner.Scan(
		&u.ID, &u.Username, &u.PasswordHash, &u.DisplayName,
		&u.TotalXP, &u.Level, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

const userCols = `id, username, password_hash, display_name, total_xp, level, created_at, updated_at`

func (s *UserStore) Create(ctx context.Context, username, passwordHash, displayName string) (*model.User, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, display_name) VALUES (?, ?, ?)`,
		username, passwordHash, displayName,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetByUsername matches case-insensitively.
func (s *UserStore) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE username = ?`, username)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return u, nil
}

func (s *UserStore) UpdateDisplayName(ctx context.Context, id int64, displayName string) (*model.User, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET display_name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		displayName, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update display name: %w", err)
	}
	return s.GetByID(ctx, id)
}

// UpdateUsername fails with a unique violation when another user already
// holds the name in any letter case.
func (s *UserStore) UpdateUsername(ctx context.Context, id int64, username string) (*model.User, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET username = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		username, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update username: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *UserStore) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	return nil
}

// AddXP adjusts the user's running total by delta (which may be negative),
// never letting it drop below zero, and recomputes the level from the new
// total. Returns nil if the user does not exist.
func (s *UserStore) AddXP(ctx context.Context, id int64, delta int) (*model.User, error) {
	u, err := s.GetByID(ctx, id)
	if err != nil || u == nil {
		return nil, err
	}

	total := u.TotalXP + delta
	if total < 0 {
		total = 0
	}
	level := xp.Level(total)

	_, err = s.db.ExecContext(ctx,
		`UPDATE users SET total_xp = ?, level = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		total, level, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update xp: %w", err)
	}
	u.TotalXP = total
	u.Level = level
	return u, nil
}

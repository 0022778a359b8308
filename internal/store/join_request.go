package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/cohabit/internal/model"
)

type JoinRequestStore struct {
	db DBTX
}

func NewJoinRequestStore(db DBTX) *JoinRequestStore {
	return &JoinRequestStore{db: db}
}

func scanJoinRequest(scanner interface{ Scan(...any) error }) (*model.JoinRequest, error) {
	var jr model.JoinRequest
	var resolvedAt sql.NullTime
	var resolvedBy sql.NullInt64

	err := scanner.Scan(
		&jr.ID, &jr.HouseholdID, &jr.UserID, &jr.Status,
		&jr.RequestedAt, &resolvedAt, &resolvedBy,
	)
	if err != nil {
		return nil, err
	}
	jr.ResolvedAt = nullTime(resolvedAt)
	jr.ResolvedByUserID = nullInt64(resolvedBy)
	return &jr, nil
}

const joinRequestCols = `id, household_id, user_id, status, requested_at, resolved_at, resolved_by_user_id`

// Create records a PENDING request. A second pending request for the same
// (household, user) pair fails on the partial unique index.
func (s *JoinRequestStore) Create(ctx context.Context, householdID, userID int64) (*model.JoinRequest, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO join_requests (household_id, user_id, status) VALUES (?, ?, ?)`,
		householdID, userID, model.JoinPending,
	)
	if err != nil {
		return nil, fmt.Errorf("insert join request: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *JoinRequestStore) GetByID(ctx context.Context, id int64) (*model.JoinRequest, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+joinRequestCols+` FROM join_requests WHERE id = ?`, id)
	jr, err := scanJoinRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get join request: %w", err)
	}
	return jr, nil
}

func (s *JoinRequestStore) GetPending(ctx context.Context, householdID, userID int64) (*model.JoinRequest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+joinRequestCols+` FROM join_requests WHERE household_id = ? AND user_id = ? AND status = ?`,
		householdID, userID, model.JoinPending,
	)
	jr, err := scanJoinRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pending join request: %w", err)
	}
	return jr, nil
}

// ListPendingDetails returns the household's pending requests, oldest first,
// joined with each requester's user record.
func (s *JoinRequestStore) ListPendingDetails(ctx context.Context, householdID int64) ([]model.JoinRequestDetail, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT jr.id, u.id, u.username, u.display_name, jr.requested_at
		 FROM join_requests jr
		 JOIN users u ON u.id = jr.user_id
		 WHERE jr.household_id = ? AND jr.status = ?
		 ORDER BY jr.requested_at ASC, jr.id ASC`,
		householdID, model.JoinPending,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending join requests: %w", err)
	}
	defer rows.Close()

	var out []model.JoinRequestDetail
	for rows.Next() {
		var d model.JoinRequestDetail
		if err := rows.Scan(&d.RequestID, &d.UserID, &d.Username, &d.DisplayName, &d.RequestedAt); err != nil {
			return nil, fmt.Errorf("scan join request detail: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Resolve moves a PENDING request to status. It reports false without
// touching the row when the request is no longer pending.
func (s *JoinRequestStore) Resolve(ctx context.Context, id int64, status model.JoinStatus, resolvedBy int64) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE join_requests SET status = ?, resolved_at = ?, resolved_by_user_id = ?
		 WHERE id = ? AND status = ?`,
		status, time.Now().UTC(), resolvedBy, id, model.JoinPending,
	)
	if err != nil {
		return false, fmt.Errorf("resolve join request: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

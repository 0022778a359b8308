package model

import "time"

// JoinStatus moves PENDING -> ACCEPTED or PENDING -> REJECTED and never back.
type JoinStatus string

const (
	JoinPending  JoinStatus = "PENDING"
	JoinAccepted JoinStatus = "ACCEPTED"
	JoinRejected JoinStatus = "REJECTED"
)

func (s JoinStatus) Terminal() bool {
	return s == JoinAccepted || s == JoinRejected
}

type JoinRequest struct {
	ID               int64      `json:"id"`
	HouseholdID      int64      `json:"household_id"`
	UserID           int64      `json:"user_id"`
	Status           JoinStatus `json:"status"`
	RequestedAt      time.Time  `json:"requested_at"`
	ResolvedAt       *time.Time `json:"resolved_at"`
	ResolvedByUserID *int64     `json:"resolved_by_user_id"`
}

// JoinRequestDetail is a pending request joined with the requester's user record.
type JoinRequestDetail struct {
	RequestID   int64     `json:"request_id"`
	UserID      int64     `json:"user_id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	RequestedAt time.Time `json:"requested_at"`
}

package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/cohabit/internal/apperr"
	"github.com/dukerupert/cohabit/internal/model"
	"github.com/dukerupert/cohabit/internal/store"
)

const (
	inviteCodeLength   = 6
	inviteCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// HouseholdView is a household as seen by one of its members.
type HouseholdView struct {
	ID              int64                     `json:"id"`
	Name            string                    `json:"name"`
	InviteCode      string                    `json:"invite_code"`
	Address         string                    `json:"address,omitempty"`
	Description     string                    `json:"description,omitempty"`
	MemberCount     int                       `json:"member_count"`
	HostID          int64                     `json:"host_id"`
	HostDisplayName string                    `json:"host_display_name"`
	CurrentUserRole model.Role                `json:"current_user_role"`
	IsHost          bool                      `json:"is_host"`
	Members         []model.MemberDetail      `json:"members"`
	PendingRequests []model.JoinRequestDetail `json:"pending_requests,omitempty"`
	CreatedAt       time.Time                 `json:"created_at"`
}

type LeaveResult struct {
	HouseholdID      int64 `json:"household_id"`
	HouseholdDeleted bool  `json:"household_deleted"`
	NewHostUserID    int64 `json:"new_host_user_id,omitempty"`
}

type CreateHouseholdInput struct {
	Name        string
	Address     string
	Description string
}

type HouseholdOptions struct {
	FetchTimeout       time.Duration
	InviteCodeAttempts int
}

// HouseholdService owns household records, the join-request workflow and
// membership changes.
type HouseholdService struct {
	db             *sql.DB
	logger         *slog.Logger
	fetchTimeout   time.Duration
	inviteAttempts int
	newInviteCode  func() (string, error)
}

func NewHouseholdService(db *sql.DB, logger *slog.Logger, opts HouseholdOptions) *HouseholdService {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 5 * time.Second
	}
	if opts.InviteCodeAttempts < 1 {
		opts.InviteCodeAttempts = 1000
	}
	return &HouseholdService{
		db:             db,
		logger:         logger,
		fetchTimeout:   opts.FetchTimeout,
		inviteAttempts: opts.InviteCodeAttempts,
		newInviteCode:  generateInviteCode,
	}
}

// generateInviteCode returns 6 characters drawn uniformly from [A-Z0-9].
func generateInviteCode() (string, error) {
	max := big.NewInt(int64(len(inviteCodeAlphabet)))
	b := make([]byte, inviteCodeLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate invite code: %w", err)
		}
		b[i] = inviteCodeAlphabet[n.Int64()]
	}
	return string(b), nil
}

func validInviteCode(code string) bool {
	if len(code) != inviteCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(inviteCodeAlphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}

func (s *HouseholdService) allocateInviteCode(ctx context.Context, hs *store.HouseholdStore) (string, error) {
	for attempt := 1; attempt <= s.inviteAttempts; attempt++ {
		code, err := s.newInviteCode()
		if err != nil {
			return "", err
		}
		exists, err := hs.InviteCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
		s.logger.Debug("invite code collision", "attempt", attempt)
	}
	return "", apperr.ErrInviteCodeExhausted
}

// CreateHousehold creates a household with userID as its OWNER.
func (s *HouseholdService) CreateHousehold(ctx context.Context, userID int64, in CreateHouseholdInput) (*HouseholdView, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.InvalidField("name", "household name is required")
	}

	var view *HouseholdView
	err := store.InTx(ctx, s.db, func(tx *sql.Tx) error {
		st := newStores(tx)
		if _, err := st.requireUser(ctx, userID); err != nil {
			return err
		}
		existing, err := st.households.GetMembershipByUser(ctx, userID)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperr.ErrAlreadyInHousehold
		}

		code, err := s.allocateInviteCode(ctx, st.households)
		if err != nil {
			return err
		}
		h, err := st.households.Create(ctx, &model.Household{
			Name:        name,
			InviteCode:  code,
			Address:     strings.TrimSpace(in.Address),
			Description: strings.TrimSpace(in.Description),
			HostUserID:  userID,
		})
		if err != nil {
			return err
		}
		if _, err := st.households.AddMember(ctx, h.ID, userID, model.RoleOwner); err != nil {
			if store.IsUniqueViolation(err) {
				return apperr.ErrAlreadyInHousehold
			}
			return err
		}

		// Only the creator's membership exists, so the reads run in line.
		members, err := st.households.ListMemberDetails(ctx, h.ID)
		if err != nil {
			return err
		}
		pending, err := st.requests.ListPendingDetails(ctx, h.ID)
		if err != nil {
			return err
		}
		view = composeView(h, members, pending, userID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("household created", "household_id", view.ID, "user_id", userID)
	return view, nil
}

// FindByInviteCode looks up a household by code, ignoring case and
// surrounding whitespace. Only a preview is returned.
func (s *HouseholdService) FindByInviteCode(ctx context.Context, code string) (*model.HouseholdPreview, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !validInviteCode(code) {
		return nil, apperr.InvalidField("invite_code", "invite code must be %d letters or digits", inviteCodeLength)
	}

	st := newStores(s.db)
	h, err := st.households.GetByInviteCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, apperr.ErrInvalidInviteCode
	}
	count, err := st.households.CountMembers(ctx, h.ID)
	if err != nil {
		return nil, err
	}

	preview := &model.HouseholdPreview{
		ID:          h.ID,
		Name:        h.Name,
		Description: h.Description,
		MemberCount: count,
	}
	host, err := st.users.GetByID(ctx, h.HostUserID)
	if err != nil {
		return nil, err
	}
	if host != nil {
		preview.HostDisplayName = host.DisplayName
	}
	return preview, nil
}

// GetCurrentHousehold returns the caller's household, or nil when the caller
// belongs to none.
func (s *HouseholdService) GetCurrentHousehold(ctx context.Context, userID int64) (*HouseholdView, error) {
	st := newStores(s.db)
	if _, err := st.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	m, err := st.households.GetMembershipByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, nil
	}

	h, err := st.households.GetByID(ctx, m.HouseholdID)
	if err != nil {
		return nil, err
	}
	if h == nil {
		s.logger.Error("membership references missing household",
			"user_id", userID, "household_id", m.HouseholdID)
		return nil, apperr.ErrHouseholdNotFound
	}

	members, pending, err := s.fetchViewParts(ctx, h.ID)
	if err != nil {
		return nil, err
	}
	return composeView(h, members, pending, userID), nil
}

// fetchViewParts reads the roster and the pending requests concurrently. If
// either read outlives fetchTimeout the whole fetch fails with
// ErrFetchTimeout; partial results are never returned.
func (s *HouseholdService) fetchViewParts(ctx context.Context, householdID int64) ([]model.MemberDetail, []model.JoinRequestDetail, error) {
	ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	var (
		members []model.MemberDetail
		pending []model.JoinRequestDetail
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		members, err = store.NewHouseholdStore(s.db).ListMemberDetails(gctx, householdID)
		return err
	})
	g.Go(func() error {
		var err error
		pending, err = store.NewJoinRequestStore(s.db).ListPendingDetails(gctx, householdID)
		return err
	})

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, apperr.ErrFetchTimeout.Wrap(err)
			}
			return nil, nil, fmt.Errorf("fetch household view: %w", err)
		}
		return members, pending, nil
	case <-ctx.Done():
		s.logger.Warn("household view fetch timed out", "household_id", householdID, "timeout", s.fetchTimeout)
		return nil, nil, apperr.ErrFetchTimeout.Wrap(ctx.Err())
	}
}

func composeView(h *model.Household, members []model.MemberDetail, pending []model.JoinRequestDetail, userID int64) *HouseholdView {
	v := &HouseholdView{
		ID:          h.ID,
		Name:        h.Name,
		InviteCode:  h.InviteCode,
		Address:     h.Address,
		Description: h.Description,
		MemberCount: len(members),
		HostID:      h.HostUserID,
		IsHost:      h.HostUserID == userID,
		Members:     members,
		CreatedAt:   h.CreatedAt,
	}
	if v.Members == nil {
		v.Members = []model.MemberDetail{}
	}
	for _, m := range members {
		if m.UserID == h.HostUserID {
			v.HostDisplayName = m.DisplayName
		}
		if m.UserID == userID {
			v.CurrentUserRole = m.Role
		}
	}
	if v.IsHost {
		v.PendingRequests = pending
		if v.PendingRequests == nil {
			v.PendingRequests = []model.JoinRequestDetail{}
		}
	}
	return v
}

// RequestToJoin files a PENDING request from userID to the household.
func (s *HouseholdService) RequestToJoin(ctx context.Context, householdID, userID int64) (*model.JoinRequest, error) {
	var jr *model.JoinRequest
	err := store.InTx(ctx, s.db, func(tx *sql.Tx) error {
		st := newStores(tx)
		if _, err := st.requireUser(ctx, userID); err != nil {
			return err
		}
		m, err := st.households.GetMembershipByUser(ctx, userID)
		if err != nil {
			return err
		}
		if m != nil {
			return apperr.ErrAlreadyInHousehold
		}
		h, err := st.households.GetByID(ctx, householdID)
		if err != nil {
			return err
		}
		if h == nil {
			return apperr.ErrHouseholdNotFound
		}
		pending, err := st.requests.GetPending(ctx, householdID, userID)
		if err != nil {
			return err
		}
		if pending != nil {
			return apperr.ErrAlreadyInHousehold.WithMessage("you already have a pending request to this household")
		}

		jr, err = st.requests.Create(ctx, householdID, userID)
		if err != nil {
			if store.IsUniqueViolation(err) {
				return apperr.ErrAlreadyInHousehold.WithMessage("you already have a pending request to this household")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("join request created", "request_id", jr.ID, "household_id", householdID, "user_id", userID)
	return jr, nil
}

// GetPendingRequests lists a household's pending requests. Host only.
func (s *HouseholdService) GetPendingRequests(ctx context.Context, householdID, callerID int64) ([]model.JoinRequestDetail, error) {
	st := newStores(s.db)
	h, err := st.households.GetByID(ctx, householdID)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, apperr.ErrHouseholdNotFound
	}
	if h.HostUserID != callerID {
		return nil, apperr.ErrUnauthorized
	}

	pending, err := st.requests.ListPendingDetails(ctx, householdID)
	if err != nil {
		return nil, err
	}
	if pending == nil {
		pending = []model.JoinRequestDetail{}
	}
	return pending, nil
}

// HandleJoinRequest resolves a pending request. Host only.
//
// Accepting re-checks the requester's membership: if they joined another
// household after filing, the request is committed as REJECTED and
// ErrAlreadyInHousehold is returned.
func (s *HouseholdService) HandleJoinRequest(ctx context.Context, requestID int64, accept bool, callerID int64) (*model.JoinRequest, error) {
	var (
		resolved *model.JoinRequest
		raceErr  error
	)
	err := store.InTx(ctx, s.db, func(tx *sql.Tx) error {
		st := newStores(tx)
		jr, err := st.requests.GetByID(ctx, requestID)
		if err != nil {
			return err
		}
		if jr == nil {
			return apperr.ErrJoinRequestNotFound
		}
		h, err := st.households.GetByID(ctx, jr.HouseholdID)
		if err != nil {
			return err
		}
		if h == nil {
			return apperr.ErrHouseholdNotFound
		}
		if h.HostUserID != callerID {
			return apperr.ErrUnauthorized
		}
		if jr.Status != model.JoinPending {
			return apperr.ErrRequestResolved
		}

		status := model.JoinRejected
		if accept {
			status = model.JoinAccepted
			m, err := st.households.GetMembershipByUser(ctx, jr.UserID)
			if err != nil {
				return err
			}
			if m == nil {
				_, err = st.households.AddMember(ctx, h.ID, jr.UserID, model.RoleMember)
				if err != nil && !store.IsUniqueViolation(err) {
					return err
				}
			}
			if m != nil || err != nil {
				raceErr = apperr.ErrAlreadyInHousehold.WithMessage("user has already joined another household")
				status = model.JoinRejected
			}
		}

		ok, err := st.requests.Resolve(ctx, jr.ID, status, callerID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.ErrRequestResolved
		}
		resolved, err = st.requests.GetByID(ctx, jr.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("join request resolved",
		"request_id", resolved.ID,
		"household_id", resolved.HouseholdID,
		"status", resolved.Status,
		"resolved_by", callerID,
	)
	if raceErr != nil {
		return nil, raceErr
	}
	return resolved, nil
}

// LeaveHousehold removes userID from their household. A departing OWNER
// hands ownership to the earliest-joined remaining member, or deletes the
// household if nobody remains.
func (s *HouseholdService) LeaveHousehold(ctx context.Context, userID int64) (*LeaveResult, error) {
	var res *LeaveResult
	err := store.InTx(ctx, s.db, func(tx *sql.Tx) error {
		st := newStores(tx)
		m, err := st.requireMembership(ctx, userID)
		if err != nil {
			return err
		}
		res = &LeaveResult{HouseholdID: m.HouseholdID}

		if m.Role != model.RoleOwner {
			return st.households.RemoveMember(ctx, m.HouseholdID, userID)
		}

		members, err := st.households.ListMembers(ctx, m.HouseholdID)
		if err != nil {
			return err
		}
		var successor *model.HouseholdMember
		for i := range members {
			if members[i].UserID != userID {
				successor = &members[i]
				break
			}
		}
		if successor == nil {
			res.HouseholdDeleted = true
			return st.households.Delete(ctx, m.HouseholdID)
		}

		// The departing owner goes first so the one-owner index never sees two.
		if err := st.households.RemoveMember(ctx, m.HouseholdID, userID); err != nil {
			return err
		}
		if err := st.households.UpdateMemberRole(ctx, m.HouseholdID, successor.UserID, model.RoleOwner); err != nil {
			return err
		}
		if err := st.households.SetHost(ctx, m.HouseholdID, successor.UserID); err != nil {
			return err
		}
		res.NewHostUserID = successor.UserID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("member left household",
		"user_id", userID,
		"household_id", res.HouseholdID,
		"household_deleted", res.HouseholdDeleted,
		"new_host_user_id", res.NewHostUserID,
	)
	return res, nil
}

// HouseholdIDForUser returns the id of the caller's household, or 0.
func (s *HouseholdService) HouseholdIDForUser(ctx context.Context, userID int64) (int64, error) {
	m, err := store.NewHouseholdStore(s.db).GetMembershipByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if m == nil {
		return 0, nil
	}
	return m.HouseholdID, nil
}

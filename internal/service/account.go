package service

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/dukerupert/cohabit/internal/apperr"
	"github.com/dukerupert/cohabit/internal/auth"
	"github.com/dukerupert/cohabit/internal/model"
	"github.com/dukerupert/cohabit/internal/store"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 32
	minPasswordLen = 8
	maxDisplayLen  = 64
)

// AccountService is the identity store facade: registration, sessions and
// profile edits.
type AccountService struct {
	db         *sql.DB
	logger     *slog.Logger
	sessionTTL time.Duration
}

func NewAccountService(db *sql.DB, logger *slog.Logger, sessionTTL time.Duration) *AccountService {
	return &AccountService{db: db, logger: logger, sessionTTL: sessionTTL}
}

func validateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < minUsernameLen || n > maxUsernameLen {
		return apperr.InvalidField("username", "username must be %d to %d characters", minUsernameLen, maxUsernameLen)
	}
	for _, r := range username {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-' && r != '.' {
			return apperr.InvalidField("username", "username may only contain letters, digits, '_', '-' and '.'")
		}
	}
	return nil
}

func validateDisplayName(name string) error {
	if name == "" {
		return apperr.InvalidField("display_name", "display name is required")
	}
	if utf8.RuneCountInString(name) > maxDisplayLen {
		return apperr.InvalidField("display_name", "display name must be at most %d characters", maxDisplayLen)
	}
	return nil
}

// Register creates a user with zero XP at level 1. An empty display name
// defaults to the username.
func (s *AccountService) Register(ctx context.Context, username, password, displayName string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(password) < minPasswordLen {
		return nil, apperr.InvalidField("password", "password must be at least %d characters", minPasswordLen)
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = username
	}
	if err := validateDisplayName(displayName); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	u, err := store.NewUserStore(s.db).Create(ctx, username, hash, displayName)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return nil, apperr.ErrUsernameTaken
		}
		return nil, err
	}

	s.logger.Info("user registered", "user_id", u.ID)
	return u, nil
}

// Login checks credentials and opens a session.
func (s *AccountService) Login(ctx context.Context, username, password string) (*model.Session, *model.User, error) {
	st := newStores(s.db)
	u, err := st.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, nil, err
	}
	if u == nil || !auth.CheckPassword(u.PasswordHash, password) {
		return nil, nil, apperr.ErrInvalidCredentials
	}

	sess, err := st.sessions.Create(ctx, u.ID, s.sessionTTL)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("user logged in", "user_id", u.ID)
	return sess, u, nil
}

func (s *AccountService) Logout(ctx context.Context, token string) error {
	return store.NewSessionStore(s.db).Delete(ctx, token)
}

// Authenticate resolves a session token to its session, or nil when the
// token is unknown or expired.
func (s *AccountService) Authenticate(ctx context.Context, token string) (*model.Session, error) {
	if token == "" {
		return nil, nil
	}
	return store.NewSessionStore(s.db).GetByToken(ctx, token)
}

func (s *AccountService) Me(ctx context.Context, userID int64) (*model.User, error) {
	return newStores(s.db).requireUser(ctx, userID)
}

func (s *AccountService) UpdateDisplayName(ctx context.Context, userID int64, displayName string) (*model.User, error) {
	displayName = strings.TrimSpace(displayName)
	if err := validateDisplayName(displayName); err != nil {
		return nil, err
	}
	st := newStores(s.db)
	if _, err := st.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	return st.users.UpdateDisplayName(ctx, userID, displayName)
}

// ChangeUsername renames the user. Names are unique regardless of letter case.
func (s *AccountService) ChangeUsername(ctx context.Context, userID int64, username string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	st := newStores(s.db)
	if _, err := st.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	u, err := st.users.UpdateUsername(ctx, userID, username)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return nil, apperr.ErrUsernameTaken
		}
		return nil, err
	}
	s.logger.Info("username changed", "user_id", userID)
	return u, nil
}

// ChangePassword replaces the password after checking the current one. Every
// other session of the user is revoked; keepToken stays valid.
func (s *AccountService) ChangePassword(ctx context.Context, userID int64, keepToken, current, next string) error {
	if utf8.RuneCountInString(next) < minPasswordLen {
		return apperr.InvalidField("new_password", "password must be at least %d characters", minPasswordLen)
	}
	hash, err := auth.HashPassword(next)
	if err != nil {
		return err
	}

	var revoked int64
	err = store.InTx(ctx, s.db, func(tx *sql.Tx) error {
		st := newStores(tx)
		u, err := st.requireUser(ctx, userID)
		if err != nil {
			return err
		}
		if !auth.CheckPassword(u.PasswordHash, current) {
			return apperr.ErrInvalidCredentials.WithMessage("current password is incorrect")
		}
		if err := st.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
			return err
		}
		revoked, err = st.sessions.DeleteOthers(ctx, userID, keepToken)
		return err
	})
	if err != nil {
		return err
	}

	s.logger.Info("password changed", "user_id", userID, "sessions_revoked", revoked)
	return nil
}

// PurgeExpiredSessions deletes sessions past their expiry.
func (s *AccountService) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	return store.NewSessionStore(s.db).DeleteExpired(ctx)
}

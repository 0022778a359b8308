package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dukerupert/cohabit/internal/database"
	"github.com/dukerupert/cohabit/internal/model"
	"github.com/dukerupert/cohabit/internal/store"
)

type testEnv struct {
	db          *sql.DB
	households  *HouseholdService
	tasks       *TaskService
	leaderboard *LeaderboardService
	accounts    *AccountService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := discardLogger()
	return &testEnv{
		db:          db,
		households:  NewHouseholdService(db, logger, HouseholdOptions{FetchTimeout: 5 * time.Second}),
		tasks:       NewTaskService(db, logger, TaskOptions{}),
		leaderboard: NewLeaderboardService(db),
		accounts:    NewAccountService(db, logger, time.Hour),
	}
}

func (e *testEnv) user(t *testing.T, username string) *model.User {
	t.Helper()
	u, err := store.NewUserStore(e.db).Create(context.Background(), username, "hash", username+" display")
	if err != nil {
		t.Fatalf("create user %q: %v", username, err)
	}
	return u
}

func (e *testEnv) household(t *testing.T, owner *model.User, name string) *HouseholdView {
	t.Helper()
	h, err := e.households.CreateHousehold(context.Background(), owner.ID, CreateHouseholdInput{Name: name})
	if err != nil {
		t.Fatalf("create household %q: %v", name, err)
	}
	return h
}

// join files a request from u and has the host accept it.
func (e *testEnv) join(t *testing.T, h *HouseholdView, u *model.User) {
	t.Helper()
	ctx := context.Background()
	jr, err := e.households.RequestToJoin(ctx, h.ID, u.ID)
	if err != nil {
		t.Fatalf("request to join: %v", err)
	}
	if _, err := e.households.HandleJoinRequest(ctx, jr.ID, true, h.HostID); err != nil {
		t.Fatalf("accept join request: %v", err)
	}
}

func (e *testEnv) reload(t *testing.T, u *model.User) *model.User {
	t.Helper()
	got, err := store.NewUserStore(e.db).GetByID(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	return got
}

func (e *testEnv) membership(t *testing.T, u *model.User) *model.HouseholdMember {
	t.Helper()
	m, err := store.NewHouseholdStore(e.db).GetMembershipByUser(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("get membership: %v", err)
	}
	return m
}

// checkMembershipInvariants asserts that no user holds two memberships and
// that every populated household has exactly one OWNER who is its host.
func (e *testEnv) checkMembershipInvariants(t *testing.T) {
	t.Helper()

	var multi int
	err := e.db.QueryRow(`SELECT COUNT(*) FROM (
		SELECT user_id FROM household_members GROUP BY user_id HAVING COUNT(*) > 1)`).Scan(&multi)
	if err != nil {
		t.Fatalf("count multi memberships: %v", err)
	}
	if multi != 0 {
		t.Errorf("users with more than one membership = %d, want 0", multi)
	}

	rows, err := e.db.Query(`SELECT h.id, h.host_user_id,
		(SELECT COUNT(*) FROM household_members WHERE household_id = h.id AND role = 'OWNER'),
		(SELECT COUNT(*) FROM household_members WHERE household_id = h.id AND role = 'OWNER' AND user_id = h.host_user_id),
		(SELECT COUNT(*) FROM household_members WHERE household_id = h.id)
		FROM households h`)
	if err != nil {
		t.Fatalf("query households: %v", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, host int64
		var owners, hostOwner, members int
		if err := rows.Scan(&id, &host, &owners, &hostOwner, &members); err != nil {
			t.Fatalf("scan household: %v", err)
		}
		if members == 0 {
			t.Errorf("household %d has no members", id)
			continue
		}
		if owners != 1 {
			t.Errorf("household %d owners = %d, want 1", id, owners)
		}
		if hostOwner != 1 {
			t.Errorf("household %d host %d is not its OWNER", id, host)
		}
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows: %v", err)
	}
}

func wantErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("err = %v, want %v", err, target)
	}
}

package service

import (
	"context"
	"testing"

	"github.com/dukerupert/cohabit/internal/apperr"
	"github.com/dukerupert/cohabit/internal/model"
	"github.com/dukerupert/cohabit/internal/store"
)

func TestCreateHousehold(t *testing.T) {
	e := setupTestEnv(t)
	alice := e.user(t, "alice")

	h, err := e.households.CreateHousehold(context.Background(), alice.ID, CreateHouseholdInput{
		Name:        "  Nest ",
		Address:     "1 Elm St",
		Description: "the flat",
	})
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	if h.Name != "Nest" {
		t.Errorf("name = %q, want %q", h.Name, "Nest")
	}
	if !validInviteCode(h.InviteCode) {
		t.Errorf("invite_code = %q, want 6 chars of [A-Z0-9]", h.InviteCode)
	}
	if h.MemberCount != 1 || len(h.Members) != 1 {
		t.Fatalf("members = %d/%d, want 1", h.MemberCount, len(h.Members))
	}
	if h.Members[0].UserID != alice.ID || h.Members[0].Role != model.RoleOwner {
		t.Errorf("member = %+v, want alice as OWNER", h.Members[0])
	}
	if !h.IsHost || h.HostID != alice.ID || h.CurrentUserRole != model.RoleOwner {
		t.Errorf("host fields = %v/%d/%q", h.IsHost, h.HostID, h.CurrentUserRole)
	}
	if h.HostDisplayName != alice.DisplayName {
		t.Errorf("host_display_name = %q, want %q", h.HostDisplayName, alice.DisplayName)
	}
	if h.PendingRequests == nil || len(h.PendingRequests) != 0 {
		t.Errorf("pending_requests = %v, want empty", h.PendingRequests)
	}
	e.checkMembershipInvariants(t)
}

func TestCreateHouseholdAlreadyInHousehold(t *testing.T) {
	e := setupTestEnv(t)
	alice := e.user(t, "alice")
	e.household(t, alice, "Nest")

	_, err := e.households.CreateHousehold(context.Background(), alice.ID, CreateHouseholdInput{Name: "Den"})
	wantErr(t, err, apperr.ErrAlreadyInHousehold)
}

func TestCreateHouseholdValidation(t *testing.T) {
	e := setupTestEnv(t)
	alice := e.user(t, "alice")

	_, err := e.households.CreateHousehold(context.Background(), alice.ID, CreateHouseholdInput{Name: "   "})
	ae, ok := apperr.As(err)
	if !ok || ae.Kind != apperr.KindInvalidArgument || ae.Field != "name" {
		t.Fatalf("err = %v, want invalid name", err)
	}

	_, err = e.households.CreateHousehold(context.Background(), 999, CreateHouseholdInput{Name: "Nest"})
	wantErr(t, err, apperr.ErrUserNotFound)
}

func TestCreateHouseholdRetriesInviteCollision(t *testing.T) {
	e := setupTestEnv(t)
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")

	codes := []string{"AAAAAA", "AAAAAA", "AAAAAA", "BBBBBB"}
	calls := 0
	e.households.newInviteCode = func() (string, error) {
		code := codes[calls]
		calls++
		return code, nil
	}

	first := e.household(t, alice, "Nest")
	if first.InviteCode != "AAAAAA" {
		t.Fatalf("first code = %q, want AAAAAA", first.InviteCode)
	}
	second := e.household(t, bob, "Den")
	if second.InviteCode != "BBBBBB" {
		t.Errorf("second code = %q, want BBBBBB", second.InviteCode)
	}
	if calls != 4 {
		t.Errorf("generator calls = %d, want 4", calls)
	}
}

func TestCreateHouseholdInviteCodeExhausted(t *testing.T) {
	e := setupTestEnv(t)
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	e.households.newInviteCode = func() (string, error) { return "AAAAAA", nil }
	e.households.inviteAttempts = 3

	e.household(t, alice, "Nest")
	_, err := e.households.CreateHousehold(context.Background(), bob.ID, CreateHouseholdInput{Name: "Den"})
	wantErr(t, err, apperr.ErrInviteCodeExhausted)
	if apperr.KindOf(err) != apperr.KindUnavailable {
		t.Errorf("kind = %v, want %v", apperr.KindOf(err), apperr.KindUnavailable)
	}
	if m := e.membership(t, bob); m != nil {
		t.Error("expected no membership after failed create")
	}
}

func TestGenerateInviteCode(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := generateInviteCode()
		if err != nil {
			t.Fatalf("generate invite code: %v", err)
		}
		if !validInviteCode(code) {
			t.Fatalf("code %q is not 6 chars of [A-Z0-9]", code)
		}
	}
}

func TestFindByInviteCode(t *testing.T) {
	e := setupTestEnv(t)
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	e.households.newInviteCode = func() (string, error) { return "NEST42", nil }
	h := e.household(t, alice, "Nest")
	e.join(t, h, bob)

	p, err := e.households.FindByInviteCode(context.Background(), " nest42 ")
	if err != nil {
		t.Fatalf("find by invite code: %v", err)
	}
	if p.ID != h.ID || p.Name != "Nest" {
		t.Errorf("preview = %+v", p)
	}
	if p.MemberCount != 2 {
		t.Errorf("member_count = %d, want 2", p.MemberCount)
	}
	if p.HostDisplayName != alice.DisplayName {
		t.Errorf("host_display_name = %q, want %q", p.HostDisplayName, alice.DisplayName)
	}
}

func TestFindByInviteCodeErrors(t *testing.T) {
	e := setupTestEnv(t)
	ctx := context.Background()

	_, err := e.households.FindByInviteCode(ctx, "ZZZ999")
	wantErr(t, err, apperr.ErrInvalidInviteCode)

	for _, code := range []string{"", "ABC", "ABCDEFG", "AB-123"} {
		_, err := e.households.FindByInviteCode(ctx, code)
		ae, ok := apperr.As(err)
		if !ok || ae.Kind != apperr.KindInvalidArgument || ae.Field != "invite_code" {
			t.Errorf("FindByInviteCode(%q) err = %v, want invalid invite_code", code, err)
		}
	}
}

func TestGetCurrentHouseholdNone(t *testing.T) {
	e := setupTestEnv(t)
	alice := e.user(t, "alice")

	h, err := e.households.GetCurrentHousehold(context.Background(), alice.ID)
	if err != nil {
		t.Fatalf("get current household: %v", err)
	}
	if h != nil {
		t.Errorf("household = %+v, want nil", h)
	}
}

func TestGetCurrentHouseholdPendingOnlyForHost(t *testing.T) {
	e := setupTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	carol := e.user(t, "carol")
	h := e.household(t, alice, "Nest")
	e.join(t, h, bob)
	if _, err := e.households.RequestToJoin(ctx, h.ID, carol.ID); err != nil {
		t.Fatalf("request to join: %v", err)
	}

	hostView, err := e.households.GetCurrentHousehold(ctx, alice.ID)
	if err != nil {
		t.Fatalf("get current household: %v", err)
	}
	if len(hostView.Members) != 2 {
		t.Errorf("members = %d, want 2", len(hostView.Members))
	}
	if len(hostView.PendingRequests) != 1 || hostView.PendingRequests[0].UserID != carol.ID {
		t.Errorf("pending_requests = %+v, want carol", hostView.PendingRequests)
	}

	memberView, err := e.households.GetCurrentHousehold(ctx, bob.ID)
	if err != nil {
		t.Fatalf("get current household: %v", err)
	}
	if memberView.IsHost || memberView.CurrentUserRole != model.RoleMember {
		t.Errorf("member view role = %q is_host = %v", memberView.CurrentUserRole, memberView.IsHost)
	}
	if memberView.PendingRequests != nil {
		t.Errorf("pending_requests = %v, want nil for non-host", memberView.PendingRequests)
	}
}

func TestGetCurrentHouseholdFetchTimeout(t *testing.T) {
	e := setupTestEnv(t)
	alice := e.user(t, "alice")
	e.household(t, alice, "Nest")
	e.households.fetchTimeout = -1

	h, err := e.households.GetCurrentHousehold(context.Background(), alice.ID)
	if h != nil {
		t.Errorf("household = %+v, want nil on timeout", h)
	}
	wantErr(t, err, apperr.ErrFetchTimeout)
	if apperr.KindOf(err) != apperr.KindUnavailable {
		t.Errorf("kind = %v, want %v", apperr.KindOf(err), apperr.KindUnavailable)
	}
}

func TestJoinWorkflowAccept(t *testing.T) {
	e := setupTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	h := e.household(t, alice, "Nest")
	if len(h.InviteCode) != 6 {
		t.Fatalf("invite_code = %q, want 6 chars", h.InviteCode)
	}

	jr, err := e.households.RequestToJoin(ctx, h.ID, bob.ID)
	if err != nil {
		t.Fatalf("request to join: %v", err)
	}
	if jr.Status != model.JoinPending {
		t.Errorf("status = %q, want %q", jr.Status, model.JoinPending)
	}

	resolved, err := e.households.HandleJoinRequest(ctx, jr.ID, true, alice.ID)
	if err != nil {
		t.Fatalf("handle join request: %v", err)
	}
	if resolved.Status != model.JoinAccepted {
		t.Errorf("status = %q, want %q", resolved.Status, model.JoinAccepted)
	}
	if resolved.ResolvedAt == nil {
		t.Error("expected resolved_at")
	}
	if resolved.ResolvedByUserID == nil || *resolved.ResolvedByUserID != alice.ID {
		t.Errorf("resolved_by_user_id = %v, want %d", resolved.ResolvedByUserID, alice.ID)
	}

	if m := e.membership(t, bob); m == nil || m.HouseholdID != h.ID || m.Role != model.RoleMember {
		t.Errorf("bob membership = %+v, want MEMBER of %d", m, h.ID)
	}
	if m := e.membership(t, alice); m == nil || m.Role != model.RoleOwner {
		t.Errorf("alice membership = %+v, want OWNER", m)
	}
	e.checkMembershipInvariants(t)
}

func TestJoinWorkflowReject(t *testing.T) {
	e := setupTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	h := e.household(t, alice, "Nest")

	jr, err := e.households.RequestToJoin(ctx, h.ID, bob.ID)
	if err != nil {
		t.Fatalf("request to join: %v", err)
	}
	resolved, err := e.households.HandleJoinRequest(ctx, jr.ID, false, alice.ID)
	if err != nil {
		t.Fatalf("handle join request: %v", err)
	}
	if resolved.Status != model.JoinRejected {
		t.Errorf("status = %q, want %q", resolved.Status, model.JoinRejected)
	}
	if m := e.membership(t, bob); m != nil {
		t.Errorf("bob membership = %+v, want none", m)
	}

	// Terminal: cannot be reopened by a second decision.
	_, err = e.households.HandleJoinRequest(ctx, jr.ID, true, alice.ID)
	wantErr(t, err, apperr.ErrRequestResolved)

	// A fresh request is allowed once the old one is resolved.
	if _, err := e.households.RequestToJoin(ctx, h.ID, bob.ID); err != nil {
		t.Errorf("request again after rejection: %v", err)
	}
}

func TestRequestToJoinErrors(t *testing.T) {
	e := setupTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	h := e.household(t, alice, "Nest")

	_, err := e.households.RequestToJoin(ctx, h.ID, alice.ID)
	wantErr(t, err, apperr.ErrAlreadyInHousehold)

	_, err = e.households.RequestToJoin(ctx, 999, bob.ID)
	wantErr(t, err, apperr.ErrHouseholdNotFound)

	_, err = e.households.RequestToJoin(ctx, h.ID, 999)
	wantErr(t, err, apperr.ErrUserNotFound)

	if _, err := e.households.RequestToJoin(ctx, h.ID, bob.ID); err != nil {
		t.Fatalf("request to join: %v", err)
	}
	_, err = e.households.RequestToJoin(ctx, h.ID, bob.ID)
	wantErr(t, err, apperr.ErrAlreadyInHousehold)
}

func TestGetPendingRequestsHostOnly(t *testing.T) {
	e := setupTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	carol := e.user(t, "carol")
	h := e.household(t, alice, "Nest")
	e.join(t, h, bob)

	pending, err := e.households.GetPendingRequests(ctx, h.ID, alice.ID)
	if err != nil {
		t.Fatalf("get pending requests: %v", err)
	}
	if pending == nil || len(pending) != 0 {
		t.Errorf("pending = %v, want empty", pending)
	}

	if _, err := e.households.RequestToJoin(ctx, h.ID, carol.ID); err != nil {
		t.Fatalf("request to join: %v", err)
	}
	pending, err = e.households.GetPendingRequests(ctx, h.ID, alice.ID)
	if err != nil {
		t.Fatalf("get pending requests: %v", err)
	}
	if len(pending) != 1 || pending[0].Username != "carol" {
		t.Errorf("pending = %+v, want carol", pending)
	}

	_, err = e.households.GetPendingRequests(ctx, h.ID, bob.ID)
	wantErr(t, err, apperr.ErrUnauthorized)

	_, err = e.households.GetPendingRequests(ctx, 999, alice.ID)
	wantErr(t, err, apperr.ErrHouseholdNotFound)
}

func TestHandleJoinRequestAuthorization(t *testing.T) {
	e := setupTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	carol := e.user(t, "carol")
	h := e.household(t, alice, "Nest")
	e.join(t, h, bob)

	jr, err := e.households.RequestToJoin(ctx, h.ID, carol.ID)
	if err != nil {
		t.Fatalf("request to join: %v", err)
	}

	_, err = e.households.HandleJoinRequest(ctx, jr.ID, true, bob.ID)
	wantErr(t, err, apperr.ErrUnauthorized)

	_, err = e.households.HandleJoinRequest(ctx, 999, true, alice.ID)
	wantErr(t, err, apperr.ErrJoinRequestNotFound)

	stored, err := store.NewJoinRequestStore(e.db).GetByID(ctx, jr.ID)
	if err != nil {
		t.Fatalf("get join request: %v", err)
	}
	if stored.Status != model.JoinPending {
		t.Errorf("status = %q, want %q", stored.Status, model.JoinPending)
	}
}

func TestHandleJoinRequestRequesterJoinedElsewhere(t *testing.T) {
	e := setupTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	h := e.household(t, alice, "Nest")

	jr, err := e.households.RequestToJoin(ctx, h.ID, bob.ID)
	if err != nil {
		t.Fatalf("request to join: %v", err)
	}
	den := e.household(t, bob, "Den")

	_, err = e.households.HandleJoinRequest(ctx, jr.ID, true, alice.ID)
	wantErr(t, err, apperr.ErrAlreadyInHousehold)

	stored, err := store.NewJoinRequestStore(e.db).GetByID(ctx, jr.ID)
	if err != nil {
		t.Fatalf("get join request: %v", err)
	}
	if stored.Status != model.JoinRejected {
		t.Errorf("status = %q, want %q", stored.Status, model.JoinRejected)
	}
	if stored.ResolvedByUserID == nil || *stored.ResolvedByUserID != alice.ID {
		t.Errorf("resolved_by_user_id = %v, want %d", stored.ResolvedByUserID, alice.ID)
	}
	if m := e.membership(t, bob); m == nil || m.HouseholdID != den.ID {
		t.Errorf("bob membership = %+v, want Den", m)
	}
	e.checkMembershipInvariants(t)
}

func TestLeaveHouseholdTransfersThenDeletes(t *testing.T) {
	e := setupTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	h := e.household(t, alice, "Nest")
	e.join(t, h, bob)

	res, err := e.households.LeaveHousehold(ctx, alice.ID)
	if err != nil {
		t.Fatalf("leave household: %v", err)
	}
	if res.HouseholdDeleted {
		t.Error("expected household to survive")
	}
	if res.NewHostUserID != bob.ID {
		t.Errorf("new_host_user_id = %d, want %d", res.NewHostUserID, bob.ID)
	}
	if m := e.membership(t, alice); m != nil {
		t.Errorf("alice membership = %+v, want none", m)
	}
	if m := e.membership(t, bob); m == nil || m.Role != model.RoleOwner {
		t.Errorf("bob membership = %+v, want OWNER", m)
	}
	stored, err := store.NewHouseholdStore(e.db).GetByID(ctx, h.ID)
	if err != nil {
		t.Fatalf("get household: %v", err)
	}
	if stored.HostUserID != bob.ID {
		t.Errorf("host_user_id = %d, want %d", stored.HostUserID, bob.ID)
	}
	e.checkMembershipInvariants(t)

	res, err = e.households.LeaveHousehold(ctx, bob.ID)
	if err != nil {
		t.Fatalf("leave household: %v", err)
	}
	if !res.HouseholdDeleted {
		t.Error("expected household to be deleted")
	}
	stored, err = store.NewHouseholdStore(e.db).GetByID(ctx, h.ID)
	if err != nil {
		t.Fatalf("get household: %v", err)
	}
	if stored != nil {
		t.Errorf("household = %+v, want deleted", stored)
	}
}

func TestLeaveHouseholdPicksEarliestJoined(t *testing.T) {
	e := setupTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	carol := e.user(t, "carol")
	h := e.household(t, alice, "Nest")
	e.join(t, h, bob)
	e.join(t, h, carol)

	res, err := e.households.LeaveHousehold(ctx, alice.ID)
	if err != nil {
		t.Fatalf("leave household: %v", err)
	}
	if res.NewHostUserID != bob.ID {
		t.Errorf("new_host_user_id = %d, want %d", res.NewHostUserID, bob.ID)
	}
	if m := e.membership(t, carol); m == nil || m.Role != model.RoleMember {
		t.Errorf("carol membership = %+v, want MEMBER", m)
	}
	e.checkMembershipInvariants(t)
}

func TestLeaveHouseholdMember(t *testing.T) {
	e := setupTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	h := e.household(t, alice, "Nest")
	e.join(t, h, bob)

	res, err := e.households.LeaveHousehold(ctx, bob.ID)
	if err != nil {
		t.Fatalf("leave household: %v", err)
	}
	if res.HouseholdDeleted || res.NewHostUserID != 0 {
		t.Errorf("result = %+v, want plain departure", res)
	}
	if m := e.membership(t, alice); m == nil || m.Role != model.RoleOwner {
		t.Errorf("alice membership = %+v, want OWNER", m)
	}

	_, err = e.households.LeaveHousehold(ctx, bob.ID)
	wantErr(t, err, apperr.ErrNotInHousehold)
	e.checkMembershipInvariants(t)
}

func TestMembershipInvariantsAcrossWorkflow(t *testing.T) {
	e := setupTestEnv(t)
	ctx := context.Background()
	users := make([]*model.User, 5)
	for i, name := range []string{"ann", "ben", "cat", "dan", "eve"} {
		users[i] = e.user(t, name)
	}

	nest := e.household(t, users[0], "Nest")
	den := e.household(t, users[1], "Den")
	e.join(t, nest, users[2])
	e.join(t, den, users[3])
	e.checkMembershipInvariants(t)

	// eve asks both; the second acceptance must lose.
	r1, err := e.households.RequestToJoin(ctx, nest.ID, users[4].ID)
	if err != nil {
		t.Fatalf("request nest: %v", err)
	}
	r2, err := e.households.RequestToJoin(ctx, den.ID, users[4].ID)
	if err != nil {
		t.Fatalf("request den: %v", err)
	}
	if _, err := e.households.HandleJoinRequest(ctx, r1.ID, true, users[0].ID); err != nil {
		t.Fatalf("accept nest: %v", err)
	}
	_, err = e.households.HandleJoinRequest(ctx, r2.ID, true, users[1].ID)
	wantErr(t, err, apperr.ErrAlreadyInHousehold)
	e.checkMembershipInvariants(t)

	for _, u := range []*model.User{users[0], users[1], users[2]} {
		if _, err := e.households.LeaveHousehold(ctx, u.ID); err != nil {
			t.Fatalf("leave %s: %v", u.Username, err)
		}
		e.checkMembershipInvariants(t)
	}
}

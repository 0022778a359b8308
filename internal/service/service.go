// Package service enforces the household and task rules on top of the
// stores. Every mutating operation runs in a single transaction.
package service

import (
	"context"

	"github.com/dukerupert/cohabit/internal/apperr"
	"github.com/dukerupert/cohabit/internal/model"
	"github.com/dukerupert/cohabit/internal/store"
)

type stores struct {
	users      *store.UserStore
	sessions   *store.SessionStore
	households *store.HouseholdStore
	requests   *store.JoinRequestStore
	tasks      *store.TaskStore
}

func newStores(db store.DBTX) stores {
	return stores{
		users:      store.NewUserStore(db),
		sessions:   store.NewSessionStore(db),
		households: store.NewHouseholdStore(db),
		requests:   store.NewJoinRequestStore(db),
		tasks:      store.NewTaskStore(db),
	}
}

func (st stores) requireUser(ctx context.Context, userID int64) (*model.User, error) {
	u, err := st.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.ErrUserNotFound
	}
	return u, nil
}

func (st stores) requireMembership(ctx context.Context, userID int64) (*model.HouseholdMember, error) {
	m, err := st.households.GetMembershipByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, apperr.ErrNotInHousehold
	}
	return m, nil
}

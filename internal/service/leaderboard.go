package service

import (
	"cmp"
	"context"
	"database/sql"
	"slices"

	"github.com/dukerupert/cohabit/internal/model"
)

type LeaderboardService struct {
	db *sql.DB
}

func NewLeaderboardService(db *sql.DB) *LeaderboardService {
	return &LeaderboardService{db: db}
}

// GetHouseholdLeaderboard ranks the caller's household by total XP. The
// completion count is each member's lifetime total, not scoped to this
// household.
func (s *LeaderboardService) GetHouseholdLeaderboard(ctx context.Context, userID int64) ([]model.LeaderboardEntry, error) {
	st := newStores(s.db)
	if _, err := st.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	m, err := st.requireMembership(ctx, userID)
	if err != nil {
		return nil, err
	}

	members, err := st.households.ListMemberDetails(ctx, m.HouseholdID)
	if err != nil {
		return nil, err
	}
	entries := make([]model.LeaderboardEntry, 0, len(members))
	for _, md := range members {
		n, err := st.tasks.CountCompletionsByUser(ctx, md.UserID)
		if err != nil {
			return nil, err
		}
		entries = append(entries, model.LeaderboardEntry{
			UserID:         md.UserID,
			Username:       md.Username,
			DisplayName:    md.DisplayName,
			TotalXP:        md.TotalXP,
			Level:          md.Level,
			TasksCompleted: n,
		})
	}
	return Rank(entries), nil
}

// Rank sorts entries by TotalXP descending and numbers them 1..N. Equal XP
// keeps input order and still gets distinct ranks.
func Rank(entries []model.LeaderboardEntry) []model.LeaderboardEntry {
	slices.SortStableFunc(entries, func(a, b model.LeaderboardEntry) int {
		return cmp.Compare(b.TotalXP, a.TotalXP)
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

package model

type LeaderboardEntry struct {
	Rank           int    `json:"rank"`
	UserID         int64  `json:"user_id"`
	Username       string `json:"username"`
	DisplayName    string `json:"display_name"`
	TotalXP        int    `json:"total_xp"`
	Level          int    `json:"level"`
	TasksCompleted int    `json:"tasks_completed"`
}

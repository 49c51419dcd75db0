package domain

// Stats aggregates the stored session history.
type Stats struct {
	TotalSessions     int     `json:"total_sessions"`
	CompletedSessions int     `json:"completed_sessions"`
	TotalFocusMs      int64   `json:"total_focus_ms"`
	TotalCoins        int     `json:"total_coins"`
	TotalDistractions int     `json:"total_distractions"`
	TotalLivesLost    int     `json:"total_lives_lost"`
	AverageScore      float64 `json:"average_score"`
	BestScore         float64 `json:"best_score"`
}

package models

import "time"

// MatchResult — итог завершённого матча, ровно одна запись на матч.
type MatchResult struct {
	ID           int       `json:"id" db:"id"`
	MatchID      int       `json:"match_id" db:"match_id"`
	WinnerTeamID *int      `json:"winner_team_id,omitempty" db:"winner_team_id"`
	Team1Score   int       `json:"team1_score" db:"team1_score"`
	Team2Score   int       `json:"team2_score" db:"team2_score"`
	CompletedAt  time.Time `json:"completed_at" db:"completed_at"`
}

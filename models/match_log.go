package models

import "time"

// MatchLog — журнал событий матча: готовность, подтверждения, авторазрешение, штрафы.
type MatchLog struct {
	ID        int       `json:"id" db:"id"`
	MatchID   int       `json:"match_id" db:"match_id"`
	TeamID    *int      `json:"team_id,omitempty" db:"team_id"`
	PlayerID  *int      `json:"player_id,omitempty" db:"player_id"`
	Event     string    `json:"event" db:"event"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

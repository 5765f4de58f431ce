package models

import "time"

// Entry — регистрация команды в турнире. Пара (tournament_id, team_id) уникальна.
type Entry struct {
	ID           int       `json:"id" db:"id"`
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	TeamID       int       `json:"team_id" db:"team_id"`
	Seed         *int      `json:"seed,omitempty" db:"seed"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`

	Team *Team `json:"team,omitempty" db:"-"`
}

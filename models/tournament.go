package models

import "time"

// TournamentStatus представляет статусы турнира, соответствующие ENUM в БД.
type TournamentStatus string

const (
	StatusUpcoming  TournamentStatus = "upcoming"
	StatusOngoing   TournamentStatus = "ongoing"
	StatusCompleted TournamentStatus = "completed"
)

// Допустимые размеры сетки: степень двойки, не больше восьми команд.
const (
	MinTeamCount = 2
	MaxTeamCount = 8
)

// Tournament представляет турнир на выбывание.
type Tournament struct {
	ID             int              `json:"id" db:"id"`
	Name           string           `json:"name" db:"name"`
	Game           *string          `json:"game,omitempty" db:"game"`
	Status         TournamentStatus `json:"status" db:"status"`
	TeamCount      int              `json:"team_count" db:"team_count"`
	PlayersPerTeam int              `json:"players_per_team" db:"players_per_team"`
	PrizePool      *int64           `json:"prize_pool,omitempty" db:"prize_pool"`
	StartDate      time.Time        `json:"start_date" db:"start_date"`
	BracketSeeded  bool             `json:"bracket_seeded" db:"bracket_seeded"`
	WinnerTeamID   *int             `json:"winner_team_id,omitempty" db:"winner_team_id"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`

	// Опциональные связанные сущности (не мапятся напрямую).
	Winner  *Team   `json:"winner,omitempty" db:"-"`
	Entries []Entry `json:"entries,omitempty" db:"-"`
	Matches []Match `json:"matches,omitempty" db:"-"`
}

func (s TournamentStatus) Valid() bool {
	switch s {
	case StatusUpcoming, StatusOngoing, StatusCompleted:
		return true
	}
	return false
}

// ValidTeamCount проверяет инвариант размера сетки: степень двойки в [2, 8].
func ValidTeamCount(n int) bool {
	if n < MinTeamCount || n > MaxTeamCount {
		return false
	}
	return n&(n-1) == 0
}

// RoundCount возвращает глубину сетки для данного числа команд.
func RoundCount(teamCount int) int {
	rounds := 0
	for n := teamCount; n > 1; n /= 2 {
		rounds++
	}
	return rounds
}

package models

import "time"

// PlayerRole соответствует ENUM player_role в БД.
type PlayerRole string

const (
	RoleRegular PlayerRole = "regular"
	RolePremium PlayerRole = "premium"
)

// Минимальный MMR: проигрыши не могут опустить игрока ниже этого значения.
const MinRating = 10

// Границы репутации игрока.
const (
	MinReputation = 1
	MaxReputation = 100
)

type Player struct {
	ID          int        `json:"id" db:"id"`
	Nickname    string     `json:"nickname" db:"nickname"`
	Email       string     `json:"email" db:"email"`
	TeamID      *int       `json:"team_id,omitempty" db:"team_id"`
	Role        PlayerRole `json:"role" db:"role"`
	Rating      int        `json:"rating" db:"rating"`
	Reputation  int        `json:"reputation" db:"reputation"`
	GamesPlayed int        `json:"games_played" db:"games_played"`
	GamesWon    int        `json:"games_won" db:"games_won"`
	Coins       int64      `json:"coins" db:"coins"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// WinRate возвращает процент побед; 0 при отсутствии сыгранных матчей.
func (p Player) WinRate() float64 {
	if p.GamesPlayed == 0 {
		return 0.0
	}
	return float64(p.GamesWon) / float64(p.GamesPlayed) * 100
}

func (r PlayerRole) Valid() bool {
	switch r {
	case RoleRegular, RolePremium:
		return true
	}
	return false
}

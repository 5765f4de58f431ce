package models

import "time"

type MatchStatus string

const (
	MatchStatusPending   MatchStatus = "pending"
	MatchStatusOngoing   MatchStatus = "ongoing"
	MatchStatusCompleted MatchStatus = "completed"
)

// Match — матч сетки. Флаги готовности/подтверждения хранятся по сторонам.
type Match struct {
	ID           int         `json:"id" db:"id"`
	TournamentID int         `json:"tournament_id" db:"tournament_id"`
	Round        int         `json:"round" db:"round"`
	Team1ID      int         `json:"team1_id" db:"team1_id"`
	Team2ID      int         `json:"team2_id" db:"team2_id"`
	ScheduledAt  time.Time   `json:"scheduled_at" db:"scheduled_at"`
	Status       MatchStatus `json:"status" db:"status"`

	Team1Ready bool `json:"team1_ready" db:"team1_ready"`
	Team2Ready bool `json:"team2_ready" db:"team2_ready"`

	Team1Confirmed bool `json:"team1_confirmed" db:"team1_confirmed"`
	Team2Confirmed bool `json:"team2_confirmed" db:"team2_confirmed"`
	Team1Winner    bool `json:"team1_winner" db:"team1_winner"`
	Team2Winner    bool `json:"team2_winner" db:"team2_winner"`

	WinnerTeamID *int      `json:"winner_team_id,omitempty" db:"winner_team_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`

	Result *MatchResult `json:"result,omitempty" db:"-"`
}

func (s MatchStatus) Valid() bool {
	switch s {
	case MatchStatusPending, MatchStatusOngoing, MatchStatusCompleted:
		return true
	}
	return false
}

// HasTeam сообщает, участвует ли команда в матче.
func (m Match) HasTeam(teamID int) bool {
	return m.Team1ID == teamID || m.Team2ID == teamID
}

// Opponent возвращает id соперника для стороны teamID.
func (m Match) Opponent(teamID int) int {
	if m.Team1ID == teamID {
		return m.Team2ID
	}
	return m.Team1ID
}

// Side возвращает номер стороны команды в матче (1 или 2), 0 если команда не участвует.
func (m Match) Side(teamID int) int {
	switch teamID {
	case m.Team1ID:
		return 1
	case m.Team2ID:
		return 2
	}
	return 0
}

// DeclaredWinnerTeamID возвращает победителя, заявленного стороной side,
// или nil, если сторона ещё не подтверждала результат. Флаг teamX_winner
// означает «сторона X заявила победителем себя».
func (m Match) DeclaredWinnerTeamID(side int) *int {
	switch side {
	case 1:
		if !m.Team1Confirmed {
			return nil
		}
		id := m.Team2ID
		if m.Team1Winner {
			id = m.Team1ID
		}
		return &id
	case 2:
		if !m.Team2Confirmed {
			return nil
		}
		id := m.Team1ID
		if m.Team2Winner {
			id = m.Team2ID
		}
		return &id
	}
	return nil
}

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidTeamCount(t *testing.T) {
	for _, n := range []int{2, 4, 8} {
		assert.True(t, ValidTeamCount(n), "n=%d", n)
	}
	for _, n := range []int{0, 1, 3, 5, 6, 7, 16} {
		assert.False(t, ValidTeamCount(n), "n=%d", n)
	}
}

func TestRoundCount(t *testing.T) {
	assert.Equal(t, 1, RoundCount(2))
	assert.Equal(t, 2, RoundCount(4))
	assert.Equal(t, 3, RoundCount(8))
}

func TestPlayerWinRate(t *testing.T) {
	p := Player{GamesPlayed: 0, GamesWon: 0}
	assert.Zero(t, p.WinRate())

	p = Player{GamesPlayed: 4, GamesWon: 3}
	assert.InDelta(t, 75.0, p.WinRate(), 0.001)
}

func TestMatchSideAndOpponent(t *testing.T) {
	m := Match{Team1ID: 10, Team2ID: 20}

	assert.Equal(t, 1, m.Side(10))
	assert.Equal(t, 2, m.Side(20))
	assert.Equal(t, 0, m.Side(30))

	assert.Equal(t, 20, m.Opponent(10))
	assert.Equal(t, 10, m.Opponent(20))
}

func TestDeclaredWinnerTeamID(t *testing.T) {
	m := Match{Team1ID: 10, Team2ID: 20}

	// До подтверждения сторона ничего не заявила.
	assert.Nil(t, m.DeclaredWinnerTeamID(1))

	m.Team1Confirmed = true
	m.Team1Winner = true
	if got := m.DeclaredWinnerTeamID(1); assert.NotNil(t, got) {
		assert.Equal(t, 10, *got)
	}

	m.Team2Confirmed = true
	m.Team2Winner = false
	if got := m.DeclaredWinnerTeamID(2); assert.NotNil(t, got) {
		assert.Equal(t, 10, *got)
	}
}

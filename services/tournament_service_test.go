package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arenagg/arena-server/models"
	"github.com/arenagg/arena-server/repositories"
)

type tournamentTestEnv struct {
	tournamentRepo *fakeTournamentRepo
	entryRepo      *fakeEntryRepo
	matchRepo      *fakeMatchRepo
	playerRepo     *fakePlayerRepo
	svc            TournamentService
}

func newTournamentTestEnv(t *testing.T) *tournamentTestEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	env := &tournamentTestEnv{
		tournamentRepo: newFakeTournamentRepo(),
		entryRepo:      newFakeEntryRepo(),
		matchRepo:      newFakeMatchRepo(),
		playerRepo:     newFakePlayerRepo(),
	}
	rating := NewRatingService(env.playerRepo, newFakeLogRepo(), nil, logger)
	pairing := NewPairingService(
		env.tournamentRepo, env.entryRepo, env.matchRepo, env.playerRepo,
		rating, nil, nil, logger,
	)
	env.svc = NewTournamentService(
		fakeTxManager{}, env.tournamentRepo, env.entryRepo, env.matchRepo,
		pairing, nil, logger,
	)
	return env
}

func (env *tournamentTestEnv) addUpcoming(teamCount int, startDate time.Time) *models.Tournament {
	return env.tournamentRepo.add(models.Tournament{
		Name:           "Arena Cup",
		Status:         models.StatusUpcoming,
		TeamCount:      teamCount,
		PlayersPerTeam: 1,
		StartDate:      startDate,
	})
}

func (env *tournamentTestEnv) register(t *testing.T, tournamentID int, teamIDs ...int) {
	t.Helper()
	for _, teamID := range teamIDs {
		err := env.entryRepo.Create(context.Background(), nil, &models.Entry{
			TournamentID: tournamentID,
			TeamID:       teamID,
		})
		require.NoError(t, err)
	}
}

func TestCreateTournamentValidation(t *testing.T) {
	env := newTournamentTestEnv(t)
	ctx := context.Background()
	start := time.Now().Add(time.Hour)

	cases := []struct {
		name    string
		input   CreateTournamentInput
		wantErr error
	}{
		{"empty name", CreateTournamentInput{Name: "  ", TeamCount: 4, PlayersPerTeam: 1, StartDate: start}, ErrTournamentNameRequired},
		{"odd team count", CreateTournamentInput{Name: "Cup", TeamCount: 3, PlayersPerTeam: 1, StartDate: start}, ErrTournamentInvalidCapacity},
		{"too many teams", CreateTournamentInput{Name: "Cup", TeamCount: 16, PlayersPerTeam: 1, StartDate: start}, ErrTournamentInvalidCapacity},
		{"zero team size", CreateTournamentInput{Name: "Cup", TeamCount: 4, PlayersPerTeam: 0, StartDate: start}, ErrTournamentInvalidTeamSize},
		{"zero start date", CreateTournamentInput{Name: "Cup", TeamCount: 4, PlayersPerTeam: 1}, ErrTournamentInvalidStartDate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.svc.Create(ctx, tc.input)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestCreateTournamentPersistsUpcoming(t *testing.T) {
	env := newTournamentTestEnv(t)

	tournament, err := env.svc.Create(context.Background(), CreateTournamentInput{
		Name:           "Arena Cup",
		TeamCount:      8,
		PlayersPerTeam: 5,
		StartDate:      time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	assert.NotZero(t, tournament.ID)
	assert.Equal(t, models.StatusUpcoming, tournament.Status)
	assert.False(t, tournament.BracketSeeded)
}

func TestRegisterEntry(t *testing.T) {
	env := newTournamentTestEnv(t)
	ctx := context.Background()
	tournament := env.addUpcoming(2, time.Now().Add(time.Hour))

	entry, err := env.svc.RegisterEntry(ctx, tournament.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, tournament.ID, entry.TournamentID)

	_, err = env.svc.RegisterEntry(ctx, tournament.ID, 10)
	assert.ErrorIs(t, err, ErrRegistrationConflict)

	_, err = env.svc.RegisterEntry(ctx, tournament.ID, 20)
	require.NoError(t, err)

	_, err = env.svc.RegisterEntry(ctx, tournament.ID, 30)
	assert.ErrorIs(t, err, ErrTournamentFull)
}

func TestRegisterEntryRejectsStartedTournament(t *testing.T) {
	env := newTournamentTestEnv(t)
	tournament := env.tournamentRepo.add(models.Tournament{
		Name:      "Running",
		Status:    models.StatusOngoing,
		TeamCount: 4,
	})

	_, err := env.svc.RegisterEntry(context.Background(), tournament.ID, 10)
	assert.ErrorIs(t, err, ErrTournamentNotUpcoming)
}

func TestSweepStartsDueTournamentAndSeedsBracket(t *testing.T) {
	env := newTournamentTestEnv(t)
	ctx := context.Background()
	now := time.Now()
	tournament := env.addUpcoming(4, now.Add(-time.Minute))
	env.register(t, tournament.ID, 10, 20, 30, 40)

	// Рейтинги подобраны так, что пары складываются по соседним MMR.
	ratings := map[int]int{10: 200, 20: 100, 30: 110, 40: 190}
	playerID := 1
	for teamID, rating := range ratings {
		env.playerRepo.add(models.Player{
			ID: playerID, TeamID: intPtr(teamID), Rating: rating, Reputation: 50,
		})
		playerID++
	}

	require.NoError(t, env.svc.SweepTournaments(ctx, now))

	stored, err := env.tournamentRepo.GetByID(ctx, nil, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOngoing, stored.Status)
	assert.True(t, stored.BracketSeeded)

	matches, err := env.matchRepo.ListByTournament(ctx, tournament.ID, nil, nil)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	for _, m := range matches {
		assert.Equal(t, 1, m.Round)
		assert.Equal(t, models.MatchStatusPending, m.Status)
		assert.WithinDuration(t, now.Add(MatchScheduleDelay), m.ScheduledAt, time.Second)
	}

	// Слабейшая пара: 100 против 110, сильнейшая: 190 против 200.
	assert.Equal(t, 20, matches[0].Team1ID)
	assert.Equal(t, 30, matches[0].Team2ID)
	assert.Equal(t, 40, matches[1].Team1ID)
	assert.Equal(t, 10, matches[1].Team2ID)
}

func TestSweepCancelsUnderfilledTournament(t *testing.T) {
	env := newTournamentTestEnv(t)
	ctx := context.Background()
	now := time.Now()
	tournament := env.addUpcoming(2, now.Add(-time.Minute))
	env.register(t, tournament.ID, 10)

	require.NoError(t, env.svc.SweepTournaments(ctx, now))

	_, err := env.tournamentRepo.GetByID(ctx, nil, tournament.ID)
	assert.ErrorIs(t, err, repositories.ErrTournamentNotFound)

	count, err := env.entryRepo.CountByTournament(ctx, nil, tournament.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	matches, err := env.matchRepo.ListByTournament(ctx, tournament.ID, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

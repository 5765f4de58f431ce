package services

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arenagg/arena-server/models"
)

type matchTestEnv struct {
	matchRepo  *fakeMatchRepo
	resultRepo *fakeResultRepo
	logRepo    *fakeLogRepo
	playerRepo *fakePlayerRepo
	ops        *fakeOpsNotifier
	advancer   *fakeAdvancer
	svc        MatchService
}

func newMatchTestEnv(t *testing.T) *matchTestEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	env := &matchTestEnv{
		matchRepo:  newFakeMatchRepo(),
		resultRepo: newFakeResultRepo(),
		logRepo:    newFakeLogRepo(),
		playerRepo: newFakePlayerRepo(),
		ops:        &fakeOpsNotifier{},
		advancer:   &fakeAdvancer{},
	}
	rating := NewRatingService(env.playerRepo, env.logRepo, nil, logger)
	env.svc = NewMatchService(
		fakeTxManager{}, env.matchRepo, env.resultRepo, env.logRepo, env.playerRepo,
		rating, nil, env.ops, nil, env.advancer,
		rand.New(rand.NewSource(1)), logger,
	)
	return env
}

func intPtr(v int) *int { return &v }

func (env *matchTestEnv) addPlayer(id, teamID, rating, reputation int) {
	env.playerRepo.add(models.Player{
		ID:         id,
		Nickname:   "player" + string(rune('a'+id)),
		Email:      "p@example.com",
		TeamID:     intPtr(teamID),
		Role:       models.RoleRegular,
		Rating:     rating,
		Reputation: reputation,
	})
}

func (env *matchTestEnv) addPendingMatch(scheduledAt time.Time) *models.Match {
	return env.matchRepo.add(models.Match{
		TournamentID: 1,
		Round:        1,
		Team1ID:      10,
		Team2ID:      20,
		ScheduledAt:  scheduledAt,
		Status:       models.MatchStatusPending,
	})
}

func TestMarkReadyStartsMatchWhenBothSidesReady(t *testing.T) {
	env := newMatchTestEnv(t)
	env.addPlayer(1, 10, 100, 50)
	env.addPlayer(2, 20, 100, 50)
	match := env.addPendingMatch(time.Now().Add(5 * time.Minute))
	ctx := context.Background()

	require.NoError(t, env.svc.MarkReady(ctx, match.ID, 10, time.Now()))

	stored, err := env.matchRepo.GetByID(ctx, nil, match.ID)
	require.NoError(t, err)
	assert.True(t, stored.Team1Ready)
	assert.Equal(t, models.MatchStatusPending, stored.Status)

	require.NoError(t, env.svc.MarkReady(ctx, match.ID, 20, time.Now()))

	stored, err = env.matchRepo.GetByID(ctx, nil, match.ID)
	require.NoError(t, err)
	assert.True(t, stored.Team2Ready)
	assert.Equal(t, models.MatchStatusOngoing, stored.Status)
}

func TestMarkReadyRejectsOutsiderTeam(t *testing.T) {
	env := newMatchTestEnv(t)
	match := env.addPendingMatch(time.Now().Add(5 * time.Minute))

	err := env.svc.MarkReady(context.Background(), match.ID, 99, time.Now())
	assert.ErrorIs(t, err, ErrNotMatchParticipant)
}

func TestConfirmResultFirstConfirmationWaitsForOpponent(t *testing.T) {
	env := newMatchTestEnv(t)
	env.addPlayer(1, 10, 100, 50)
	env.addPlayer(2, 20, 100, 50)
	match := env.addPendingMatch(time.Now())
	env.matchRepo.matches[match.ID].Status = models.MatchStatusOngoing
	ctx := context.Background()

	outcome, err := env.svc.ConfirmResult(ctx, match.ID, 10, 10, 2, 1, time.Now())
	require.NoError(t, err)
	assert.Equal(t, ConfirmAwaitingOpponent, outcome)

	stored, err := env.matchRepo.GetByID(ctx, nil, match.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusOngoing, stored.Status)
	assert.True(t, stored.Team1Confirmed)
	assert.False(t, stored.Team2Confirmed)
}

func TestConfirmResultAgreementCompletesMatch(t *testing.T) {
	env := newMatchTestEnv(t)
	env.addPlayer(1, 10, 100, 50)
	env.addPlayer(2, 20, 100, 50)
	match := env.addPendingMatch(time.Now())
	env.matchRepo.matches[match.ID].Status = models.MatchStatusOngoing
	ctx := context.Background()
	now := time.Now()

	_, err := env.svc.ConfirmResult(ctx, match.ID, 10, 10, 2, 1, now)
	require.NoError(t, err)

	outcome, err := env.svc.ConfirmResult(ctx, match.ID, 20, 10, 2, 1, now)
	require.NoError(t, err)
	assert.Equal(t, ConfirmRecorded, outcome)

	stored, err := env.matchRepo.GetByID(ctx, nil, match.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusCompleted, stored.Status)
	require.NotNil(t, stored.WinnerTeamID)
	assert.Equal(t, 10, *stored.WinnerTeamID)

	result, err := env.resultRepo.GetByMatchID(ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Team1Score)
	assert.Equal(t, 1, result.Team2Score)

	// Победитель: +10 MMR, победа в зачёте, +5 репутации.
	winner, err := env.playerRepo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 110, winner.Rating)
	assert.Equal(t, 1, winner.GamesPlayed)
	assert.Equal(t, 1, winner.GamesWon)
	assert.Equal(t, 55, winner.Reputation)

	// Проигравший: -5 MMR, без побед, но репутация тоже +5 за доигранный матч.
	loser, err := env.playerRepo.GetByID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 95, loser.Rating)
	assert.Equal(t, 1, loser.GamesPlayed)
	assert.Equal(t, 0, loser.GamesWon)
	assert.Equal(t, 55, loser.Reputation)

	assert.Equal(t, []int{1}, env.advancer.calls)
}

func TestConfirmResultDisagreementLeavesMatchDisputed(t *testing.T) {
	env := newMatchTestEnv(t)
	env.addPlayer(1, 10, 100, 50)
	env.addPlayer(2, 20, 100, 50)
	match := env.addPendingMatch(time.Now())
	env.matchRepo.matches[match.ID].Status = models.MatchStatusOngoing
	ctx := context.Background()

	_, err := env.svc.ConfirmResult(ctx, match.ID, 10, 10, 2, 1, time.Now())
	require.NoError(t, err)

	outcome, err := env.svc.ConfirmResult(ctx, match.ID, 20, 20, 1, 2, time.Now())
	require.NoError(t, err)
	assert.Equal(t, ConfirmDisputed, outcome)

	stored, err := env.matchRepo.GetByID(ctx, nil, match.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusOngoing, stored.Status)
	assert.Nil(t, stored.WinnerTeamID)

	// Статистика не трогается, операторы оповещены.
	player, err := env.playerRepo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 100, player.Rating)
	assert.Equal(t, 0, player.GamesPlayed)
	assert.Len(t, env.ops.Messages(), 1)
	assert.Empty(t, env.advancer.calls)
}

func TestConfirmResultRejectsInconsistentScore(t *testing.T) {
	env := newMatchTestEnv(t)
	match := env.addPendingMatch(time.Now())
	env.matchRepo.matches[match.ID].Status = models.MatchStatusOngoing

	_, err := env.svc.ConfirmResult(context.Background(), match.ID, 10, 10, 1, 2, time.Now())
	assert.ErrorIs(t, err, ErrInconsistentScore)
	assert.Len(t, env.ops.Messages(), 1)

	stored, getErr := env.matchRepo.GetByID(context.Background(), nil, match.ID)
	require.NoError(t, getErr)
	assert.False(t, stored.Team1Confirmed)
}

func TestConfirmResultRejectsForeignWinner(t *testing.T) {
	env := newMatchTestEnv(t)
	match := env.addPendingMatch(time.Now())
	env.matchRepo.matches[match.ID].Status = models.MatchStatusOngoing

	_, err := env.svc.ConfirmResult(context.Background(), match.ID, 10, 99, 2, 1, time.Now())
	assert.ErrorIs(t, err, ErrInvalidWinner)
}

func TestConfirmResultRejectsCompletedMatch(t *testing.T) {
	env := newMatchTestEnv(t)
	match := env.addPendingMatch(time.Now())
	env.matchRepo.matches[match.ID].Status = models.MatchStatusCompleted

	_, err := env.svc.ConfirmResult(context.Background(), match.ID, 10, 10, 2, 1, time.Now())
	assert.ErrorIs(t, err, ErrMatchAlreadyCompleted)
}

func TestSweepResolvesNoShowAgainstUnreadyTeam(t *testing.T) {
	env := newMatchTestEnv(t)
	env.addPlayer(1, 10, 100, 50)
	env.addPlayer(2, 20, 12, 50)
	match := env.addPendingMatch(time.Now().Add(-time.Minute))
	env.matchRepo.matches[match.ID].Team1Ready = true
	ctx := context.Background()

	require.NoError(t, env.svc.SweepPendingMatches(ctx, time.Now()))

	stored, err := env.matchRepo.GetByID(ctx, nil, match.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusCompleted, stored.Status)
	require.NotNil(t, stored.WinnerTeamID)
	assert.Equal(t, 10, *stored.WinnerTeamID)

	result, err := env.resultRepo.GetByMatchID(ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Team1Score)
	assert.Equal(t, 0, result.Team2Score)

	winner, err := env.playerRepo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 110, winner.Rating)
	assert.Equal(t, 50, winner.Reputation)

	// Неявившийся: штраф репутации, MMR падает не ниже минимума.
	offender, err := env.playerRepo.GetByID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, models.MinRating, offender.Rating)
	assert.Equal(t, 45, offender.Reputation)

	assert.Equal(t, []int{1}, env.advancer.calls)
}

func TestSweepPicksRandomWinnerWhenNeitherTeamReady(t *testing.T) {
	env := newMatchTestEnv(t)
	env.addPlayer(1, 10, 100, 50)
	env.addPlayer(2, 20, 100, 50)
	match := env.addPendingMatch(time.Now().Add(-time.Minute))
	ctx := context.Background()

	require.NoError(t, env.svc.SweepPendingMatches(ctx, time.Now()))

	stored, err := env.matchRepo.GetByID(ctx, nil, match.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusCompleted, stored.Status)
	require.NotNil(t, stored.WinnerTeamID)
	assert.Contains(t, []int{10, 20}, *stored.WinnerTeamID)

	// Штрафуются обе команды.
	for _, playerID := range []int{1, 2} {
		p, err := env.playerRepo.GetByID(ctx, playerID)
		require.NoError(t, err)
		assert.Equal(t, 45, p.Reputation)
	}
}

func TestSweepStartsMatchWhenBothSidesReady(t *testing.T) {
	env := newMatchTestEnv(t)
	env.addPlayer(1, 10, 100, 50)
	env.addPlayer(2, 20, 100, 50)
	match := env.addPendingMatch(time.Now().Add(time.Hour))
	env.matchRepo.matches[match.ID].Team1Ready = true
	env.matchRepo.matches[match.ID].Team2Ready = true
	ctx := context.Background()

	require.NoError(t, env.svc.SweepPendingMatches(ctx, time.Now()))

	stored, err := env.matchRepo.GetByID(ctx, nil, match.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusOngoing, stored.Status)
	assert.Nil(t, stored.WinnerTeamID)
}

func TestGetMatchIncludesResultForCompletedMatch(t *testing.T) {
	env := newMatchTestEnv(t)
	match := env.matchRepo.add(models.Match{
		TournamentID: 1,
		Round:        1,
		Team1ID:      10,
		Team2ID:      20,
		Status:       models.MatchStatusCompleted,
		WinnerTeamID: intPtr(10),
	})
	require.NoError(t, env.resultRepo.Create(context.Background(), nil, &models.MatchResult{
		MatchID:      match.ID,
		WinnerTeamID: intPtr(10),
		Team1Score:   2,
		Team2Score:   0,
		CompletedAt:  time.Now(),
	}))

	got, err := env.svc.GetMatch(context.Background(), match.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Result)
	assert.Equal(t, 2, got.Result.Team1Score)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/arenagg/arena-server/brackets"
	"github.com/arenagg/arena-server/models"
	"github.com/arenagg/arena-server/repositories"
)

// ConfirmOutcome — исход вызова ConfirmResult для клиента.
type ConfirmOutcome string

const (
	// ConfirmRecorded — обе стороны согласны, матч завершён.
	ConfirmRecorded ConfirmOutcome = "recorded"
	// ConfirmAwaitingOpponent — подтверждение принято, ждём вторую сторону.
	ConfirmAwaitingOpponent ConfirmOutcome = "awaiting_opponent"
	// ConfirmDisputed — стороны заявили разных победителей; матч не завершён.
	ConfirmDisputed ConfirmOutcome = "disputed"
)

// RoundAdvancer дергается после каждого завершённого матча (см. AdvancementService).
type RoundAdvancer interface {
	EvaluateTournament(ctx context.Context, tournamentID int, now time.Time) error
}

// MatchService — конечный автомат матча: готовность, no-show, подтверждение результата.
type MatchService interface {
	GetMatch(ctx context.Context, id int) (*models.Match, error)
	ListTournamentMatches(ctx context.Context, tournamentID int, round *int, status *models.MatchStatus) ([]*models.Match, error)
	ListMatchEvents(ctx context.Context, matchID int) ([]*models.MatchLog, error)

	MarkReady(ctx context.Context, matchID, callerTeamID int, now time.Time) error
	ConfirmResult(ctx context.Context, matchID, callerTeamID, claimedWinnerTeamID, team1Score, team2Score int, now time.Time) (ConfirmOutcome, error)

	// SweepPendingMatches переводит готовые матчи в ongoing и авторазрешает
	// no-show по наступлении scheduled_at. Вызывается внешним планировщиком.
	SweepPendingMatches(ctx context.Context, now time.Time) error
}

type matchService struct {
	txManager   repositories.TxManager
	matchRepo   repositories.MatchRepository
	resultRepo  repositories.MatchResultRepository
	logRepo     repositories.MatchLogRepository
	playerRepo  repositories.PlayerRepository
	rating      RatingService
	notifier    Notifier
	ops         OpsNotifier
	broadcaster Broadcaster
	advancer    RoundAdvancer
	rng         *rand.Rand
	logger      *slog.Logger
}

func NewMatchService(
	txManager repositories.TxManager,
	matchRepo repositories.MatchRepository,
	resultRepo repositories.MatchResultRepository,
	logRepo repositories.MatchLogRepository,
	playerRepo repositories.PlayerRepository,
	rating RatingService,
	notifier Notifier,
	ops OpsNotifier,
	broadcaster Broadcaster,
	advancer RoundAdvancer,
	rng *rand.Rand,
	logger *slog.Logger,
) MatchService {
	return &matchService{
		txManager:   txManager,
		matchRepo:   matchRepo,
		resultRepo:  resultRepo,
		logRepo:     logRepo,
		playerRepo:  playerRepo,
		rating:      rating,
		notifier:    notifier,
		ops:         ops,
		broadcaster: broadcaster,
		advancer:    advancer,
		rng:         rng,
		logger:      logger,
	}
}

func (s *matchService) GetMatch(ctx context.Context, id int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	if match.Status == models.MatchStatusCompleted {
		result, err := s.resultRepo.GetByMatchID(ctx, id)
		if err != nil && !errors.Is(err, repositories.ErrMatchResultNotFound) {
			return nil, err
		}
		match.Result = result
	}
	return match, nil
}

func (s *matchService) ListTournamentMatches(ctx context.Context, tournamentID int, round *int, status *models.MatchStatus) ([]*models.Match, error) {
	return s.matchRepo.ListByTournament(ctx, tournamentID, round, status)
}

func (s *matchService) ListMatchEvents(ctx context.Context, matchID int) ([]*models.MatchLog, error) {
	return s.logRepo.ListByMatch(ctx, matchID)
}

func (s *matchService) MarkReady(ctx context.Context, matchID, callerTeamID int, now time.Time) error {
	var (
		started bool
		match   *models.Match
	)

	err := s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		m, err := s.matchRepo.GetByID(ctx, exec, matchID)
		if err != nil {
			if errors.Is(err, repositories.ErrMatchNotFound) {
				return ErrMatchNotFound
			}
			return err
		}

		side := m.Side(callerTeamID)
		if side == 0 {
			return fmt.Errorf("%w: team %d in match %d", ErrNotMatchParticipant, callerTeamID, matchID)
		}
		if m.Status == models.MatchStatusCompleted {
			return ErrMatchAlreadyCompleted
		}

		alreadyReady := (side == 1 && m.Team1Ready) || (side == 2 && m.Team2Ready)
		if !alreadyReady {
			if err := s.matchRepo.SetReady(ctx, exec, matchID, side); err != nil {
				return err
			}
			if err := s.logEvent(ctx, exec, matchID, &callerTeamID, nil,
				fmt.Sprintf("team %d is ready", callerTeamID)); err != nil {
				return err
			}
		}

		if side == 1 {
			m.Team1Ready = true
		} else {
			m.Team2Ready = true
		}

		// Оба готовы: чистый переход статуса, без изменения статистики.
		if m.Team1Ready && m.Team2Ready && m.Status == models.MatchStatusPending {
			if err := s.matchRepo.UpdateStatus(ctx, exec, matchID, models.MatchStatusOngoing); err != nil {
				return err
			}
			if err := s.logEvent(ctx, exec, matchID, nil, nil,
				"both teams ready, the match has started"); err != nil {
				return err
			}
			m.Status = models.MatchStatusOngoing
			started = true
		}
		match = m
		return nil
	})
	if err != nil {
		return err
	}

	if started {
		s.announceMatchStarted(ctx, match)
	}
	return nil
}

func (s *matchService) ConfirmResult(ctx context.Context, matchID, callerTeamID, claimedWinnerTeamID, team1Score, team2Score int, now time.Time) (ConfirmOutcome, error) {
	var (
		outcome ConfirmOutcome
		match   *models.Match
	)

	err := s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		m, err := s.matchRepo.GetByID(ctx, exec, matchID)
		if err != nil {
			if errors.Is(err, repositories.ErrMatchNotFound) {
				return ErrMatchNotFound
			}
			return err
		}
		match = m

		side := m.Side(callerTeamID)
		if side == 0 {
			return fmt.Errorf("%w: team %d in match %d", ErrNotMatchParticipant, callerTeamID, matchID)
		}
		if m.Status == models.MatchStatusCompleted {
			return ErrMatchAlreadyCompleted
		}
		if m.Side(claimedWinnerTeamID) == 0 {
			return ErrInvalidWinner
		}

		// Счёт обязан соответствовать заявленному победителю.
		winnerScore, loserScore := team1Score, team2Score
		if claimedWinnerTeamID == m.Team2ID {
			winnerScore, loserScore = team2Score, team1Score
		}
		if winnerScore <= loserScore {
			return ErrInconsistentScore
		}

		declaredSelf := claimedWinnerTeamID == callerTeamID
		if err := s.matchRepo.SetConfirmation(ctx, exec, matchID, side, declaredSelf); err != nil {
			return err
		}
		if side == 1 {
			m.Team1Confirmed, m.Team1Winner = true, declaredSelf
		} else {
			m.Team2Confirmed, m.Team2Winner = true, declaredSelf
		}
		if err := s.logEvent(ctx, exec, matchID, &callerTeamID, nil,
			fmt.Sprintf("team %d confirmed the result, declared winner: team %d", callerTeamID, claimedWinnerTeamID)); err != nil {
			return err
		}

		if !m.Team1Confirmed || !m.Team2Confirmed {
			outcome = ConfirmAwaitingOpponent
			return nil
		}

		declared1 := m.DeclaredWinnerTeamID(1)
		declared2 := m.DeclaredWinnerTeamID(2)
		if *declared1 != *declared2 {
			// Стороны противоречат друг другу: матч остаётся открытым.
			if err := s.logEvent(ctx, exec, matchID, nil, nil,
				"result disputed: the teams declared different winners"); err != nil {
				return err
			}
			outcome = ConfirmDisputed
			return nil
		}

		if err := s.completeMatch(ctx, exec, m, *declared1, team1Score, team2Score, now,
			fmt.Sprintf("match completed %d-%d, winner: team %d", team1Score, team2Score, *declared1)); err != nil {
			return err
		}
		// Бонус репутации за корректно доигранный матч — обеим командам.
		if err := s.rating.AdjustTeamReputation(ctx, exec, m.ID, m.Team1ID, ReputationMatchBonus, "official match participation"); err != nil {
			return err
		}
		if err := s.rating.AdjustTeamReputation(ctx, exec, m.ID, m.Team2ID, ReputationMatchBonus, "official match participation"); err != nil {
			return err
		}

		outcome = ConfirmRecorded
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInconsistentScore) {
			alertOps(ctx, s.logger, s.ops, fmt.Sprintf(
				"Inconsistent score reported for match %d by team %d: claimed winner %d with score %d-%d",
				matchID, callerTeamID, claimedWinnerTeamID, team1Score, team2Score))
		}
		return "", err
	}

	switch outcome {
	case ConfirmDisputed:
		alertOps(ctx, s.logger, s.ops, fmt.Sprintf(
			"Match %d is disputed: both teams confirmed different winners. Manual resolution required.", matchID))
	case ConfirmRecorded:
		s.announceMatchCompleted(ctx, match, team1Score, team2Score)
		s.triggerAdvancement(ctx, match.TournamentID, now)
	}
	return outcome, nil
}

func (s *matchService) SweepPendingMatches(ctx context.Context, now time.Time) error {
	pending, err := s.matchRepo.ListPendingDue(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to list pending matches: %w", err)
	}

	for _, candidate := range pending {
		if err := s.resolvePending(ctx, candidate.ID, now); err != nil {
			// Ошибка одного матча не прерывает обход остальных.
			s.logger.Error("failed to resolve pending match",
				slog.Int("match_id", candidate.ID), slog.Any("error", err))
		}
	}
	return nil
}

func (s *matchService) resolvePending(ctx context.Context, matchID int, now time.Time) error {
	var (
		started                bool
		completed              bool
		match                  *models.Match
		team1Score, team2Score int
	)

	err := s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		m, err := s.matchRepo.GetByID(ctx, exec, matchID)
		if err != nil {
			return err
		}
		match = m

		// Параллельный вызов мог уже обработать матч.
		if m.Status != models.MatchStatusPending {
			return nil
		}

		if m.Team1Ready && m.Team2Ready {
			if err := s.matchRepo.UpdateStatus(ctx, exec, m.ID, models.MatchStatusOngoing); err != nil {
				return err
			}
			if err := s.logEvent(ctx, exec, m.ID, nil, nil,
				"both teams ready, the match has started"); err != nil {
				return err
			}
			m.Status = models.MatchStatusOngoing
			started = true
			return nil
		}

		if now.Before(m.ScheduledAt) {
			return nil
		}

		var (
			winnerTeamID int
			offenders    []int
			reason       string
		)
		switch {
		case m.Team1Ready && !m.Team2Ready:
			winnerTeamID = m.Team1ID
			offenders = []int{m.Team2ID}
			reason = "only team 1 was ready"
		case m.Team2Ready && !m.Team1Ready:
			winnerTeamID = m.Team2ID
			offenders = []int{m.Team1ID}
			reason = "only team 2 was ready"
		default:
			winnerTeamID = m.Team1ID
			if s.rng.Intn(2) == 1 {
				winnerTeamID = m.Team2ID
			}
			offenders = []int{m.Team1ID, m.Team2ID}
			reason = "neither team was ready, winner chosen at random"
		}

		team1Score, team2Score = 1, 0
		if winnerTeamID == m.Team2ID {
			team1Score, team2Score = 0, 1
		}

		if err := s.completeMatch(ctx, exec, m, winnerTeamID, team1Score, team2Score, now,
			fmt.Sprintf("match auto-resolved (%s), winner: team %d", reason, winnerTeamID)); err != nil {
			return err
		}
		for _, offender := range offenders {
			if err := s.rating.AdjustTeamReputation(ctx, exec, m.ID, offender, -ReputationNoShowPenalty, "no-show"); err != nil {
				return err
			}
		}
		completed = true
		return nil
	})
	if err != nil {
		return err
	}

	if started {
		s.announceMatchStarted(ctx, match)
	}
	if completed {
		s.announceMatchCompleted(ctx, match, team1Score, team2Score)
		s.triggerAdvancement(ctx, match.TournamentID, now)
	}
	return nil
}

// completeMatch — общий хвост завершения: победитель, итог 1:1, статистика, журнал.
func (s *matchService) completeMatch(ctx context.Context, exec repositories.SQLExecutor, m *models.Match, winnerTeamID, team1Score, team2Score int, now time.Time, event string) error {
	if err := s.matchRepo.Complete(ctx, exec, m.ID, winnerTeamID); err != nil {
		return err
	}
	winner := winnerTeamID
	result := &models.MatchResult{
		MatchID:      m.ID,
		WinnerTeamID: &winner,
		Team1Score:   team1Score,
		Team2Score:   team2Score,
		CompletedAt:  now,
	}
	if err := s.resultRepo.Create(ctx, exec, result); err != nil {
		return err
	}
	if err := s.rating.RecordTeamResult(ctx, exec, m.ID, m.Team1ID, winnerTeamID == m.Team1ID); err != nil {
		return err
	}
	if err := s.rating.RecordTeamResult(ctx, exec, m.ID, m.Team2ID, winnerTeamID == m.Team2ID); err != nil {
		return err
	}
	if err := s.logEvent(ctx, exec, m.ID, &winner, nil, event); err != nil {
		return err
	}
	m.Status = models.MatchStatusCompleted
	m.WinnerTeamID = &winner
	m.Result = result
	return nil
}

func (s *matchService) logEvent(ctx context.Context, exec repositories.SQLExecutor, matchID int, teamID, playerID *int, event string) error {
	return s.logRepo.Create(ctx, exec, &models.MatchLog{
		MatchID:  matchID,
		TeamID:   teamID,
		PlayerID: playerID,
		Event:    event,
	})
}

func (s *matchService) teamEmails(ctx context.Context, teamIDs ...int) []string {
	emails := make([]string, 0)
	for _, teamID := range teamIDs {
		players, err := s.playerRepo.ListByTeam(ctx, nil, teamID)
		if err != nil {
			s.logger.Error("failed to load roster for notification",
				slog.Int("team_id", teamID), slog.Any("error", err))
			continue
		}
		for _, p := range players {
			emails = append(emails, p.Email)
		}
	}
	return emails
}

func (s *matchService) announceMatchStarted(ctx context.Context, m *models.Match) {
	fanOutEmail(s.logger, s.notifier, s.teamEmails(ctx, m.Team1ID, m.Team2ID),
		"Матч начался",
		fmt.Sprintf("Обе команды подтвердили готовность, матч №%d начался. Удачи!\n\n- Команда ArenaGG", m.ID))
	if s.broadcaster != nil {
		s.broadcaster.BroadcastTournament(m.TournamentID, brackets.EventMatchStarted, m)
	}
}

func (s *matchService) announceMatchCompleted(ctx context.Context, m *models.Match, team1Score, team2Score int) {
	fanOutEmail(s.logger, s.notifier, s.teamEmails(ctx, m.Team1ID, m.Team2ID),
		"Матч завершён",
		fmt.Sprintf("Матч №%d завершён со счётом %d-%d.\n\n- Команда ArenaGG", m.ID, team1Score, team2Score))
	if s.broadcaster != nil {
		s.broadcaster.BroadcastTournament(m.TournamentID, brackets.EventMatchCompleted, m)
	}
}

func (s *matchService) triggerAdvancement(ctx context.Context, tournamentID int, now time.Time) {
	if s.advancer == nil {
		return
	}
	// Продвижение раунда идемпотентно и подстраховано периодическим обходом,
	// поэтому его ошибка не отменяет уже зафиксированный результат матча.
	if err := s.advancer.EvaluateTournament(ctx, tournamentID, now); err != nil {
		s.logger.Error("failed to evaluate round advancement",
			slog.Int("tournament_id", tournamentID), slog.Any("error", err))
	}
}

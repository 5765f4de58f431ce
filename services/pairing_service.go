package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/arenagg/arena-server/brackets"
	"github.com/arenagg/arena-server/models"
	"github.com/arenagg/arena-server/repositories"
)

// MatchScheduleDelay — через сколько после генерации назначается матч.
const MatchScheduleDelay = 5 * time.Minute

// PairingService генерирует матчи раунда по среднему MMR участников.
type PairingService interface {
	// PairRound сводит команды в пары и создаёт матчи раунда. Нулевое или
	// нечётное число участников — фатальная ошибка генерации: турнир и его
	// регистрации удаляются, игроки уведомляются, матчи не создаются.
	// Возвращает ErrTournamentCanceled, если турнир был удалён.
	PairRound(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament, teamIDs []int, round int, now time.Time) ([]*models.Match, error)

	// CancelTournament удаляет турнир с регистрациями и уведомляет игроков.
	CancelTournament(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament, reason string) error
}

type pairingService struct {
	tournamentRepo repositories.TournamentRepository
	entryRepo      repositories.EntryRepository
	matchRepo      repositories.MatchRepository
	playerRepo     repositories.PlayerRepository
	rating         RatingService
	notifier       Notifier
	broadcaster    Broadcaster
	logger         *slog.Logger
}

func NewPairingService(
	tournamentRepo repositories.TournamentRepository,
	entryRepo repositories.EntryRepository,
	matchRepo repositories.MatchRepository,
	playerRepo repositories.PlayerRepository,
	rating RatingService,
	notifier Notifier,
	broadcaster Broadcaster,
	logger *slog.Logger,
) PairingService {
	return &pairingService{
		tournamentRepo: tournamentRepo,
		entryRepo:      entryRepo,
		matchRepo:      matchRepo,
		playerRepo:     playerRepo,
		rating:         rating,
		notifier:       notifier,
		broadcaster:    broadcaster,
		logger:         logger,
	}
}

func (s *pairingService) PairRound(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament, teamIDs []int, round int, now time.Time) ([]*models.Match, error) {
	// Рейтинг считается в момент генерации: состав мог смениться между раундами.
	entrants := make([]brackets.Entrant, 0, len(teamIDs))
	for _, teamID := range teamIDs {
		rating, err := s.rating.TeamAverageRating(ctx, exec, teamID)
		if err != nil {
			return nil, err
		}
		entrants = append(entrants, brackets.Entrant{TeamID: teamID, Rating: rating})
	}

	pairs, err := brackets.PairByRating(entrants)
	if err != nil {
		if errors.Is(err, brackets.ErrNoEntrants) || errors.Is(err, brackets.ErrOddEntrants) {
			s.logger.Warn("fatal pairing failure, canceling tournament",
				slog.Int("tournament_id", tournament.ID),
				slog.Int("round", round),
				slog.Int("entrants", len(teamIDs)))
			if cancelErr := s.CancelTournament(ctx, exec, tournament, "invalid number of participating teams"); cancelErr != nil {
				return nil, cancelErr
			}
			return nil, ErrTournamentCanceled
		}
		return nil, fmt.Errorf("failed to pair round %d of tournament %d: %w", round, tournament.ID, err)
	}

	scheduledAt := now.Add(MatchScheduleDelay)
	matches := make([]*models.Match, 0, len(pairs))
	for _, pair := range pairs {
		match := &models.Match{
			TournamentID: tournament.ID,
			Round:        round,
			Team1ID:      pair.Team1ID,
			Team2ID:      pair.Team2ID,
			ScheduledAt:  scheduledAt,
			Status:       models.MatchStatusPending,
		}
		if err := s.matchRepo.Create(ctx, exec, match); err != nil {
			return nil, fmt.Errorf("failed to create match for tournament %d round %d: %w", tournament.ID, round, err)
		}
		matches = append(matches, match)
	}

	if round == 1 && !tournament.BracketSeeded {
		if err := s.tournamentRepo.SetBracketSeeded(ctx, exec, tournament.ID); err != nil {
			return nil, err
		}
		tournament.BracketSeeded = true
	}

	s.logger.Info("round paired",
		slog.Int("tournament_id", tournament.ID),
		slog.Int("round", round),
		slog.Int("matches", len(matches)))

	if s.broadcaster != nil {
		s.broadcaster.BroadcastTournament(tournament.ID, brackets.EventRoundPaired, matches)
	}
	return matches, nil
}

func (s *pairingService) CancelTournament(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament, reason string) error {
	players, err := s.playerRepo.ListByTournament(ctx, exec, tournament.ID)
	if err != nil {
		return fmt.Errorf("failed to list players of tournament %d before cancellation: %w", tournament.ID, err)
	}

	if err := s.entryRepo.DeleteByTournament(ctx, exec, tournament.ID); err != nil {
		return err
	}
	if err := s.tournamentRepo.Delete(ctx, exec, tournament.ID); err != nil {
		return err
	}

	emails := make([]string, 0, len(players))
	for _, p := range players {
		emails = append(emails, p.Email)
	}
	fanOutEmail(s.logger, s.notifier, emails,
		"Турнир отменён",
		fmt.Sprintf("Турнир %q отменён: %s.\n\n- Команда ArenaGG", tournament.Name, reason))

	if s.broadcaster != nil {
		s.broadcaster.BroadcastTournament(tournament.ID, brackets.EventTournamentCanceled, map[string]string{"reason": reason})
	}

	s.logger.Info("tournament canceled and removed",
		slog.Int("tournament_id", tournament.ID),
		slog.String("reason", reason))
	return nil
}

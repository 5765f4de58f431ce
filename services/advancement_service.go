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

// PremiumPrizeMultiplier — во сколько раз премиум игрок получает больше монет.
const PremiumPrizeMultiplier = 2

// AdvancementService продвигает сетку: генерирует следующий раунд, когда
// текущий доигран, и закрывает турнир после финала.
type AdvancementService interface {
	RoundAdvancer

	// SweepOngoingTournaments - страховочный обход: подхватывает турниры,
	// у которых продвижение не сработало в момент завершения матча.
	SweepOngoingTournaments(ctx context.Context, now time.Time) error
}

type advancementService struct {
	txManager      repositories.TxManager
	tournamentRepo repositories.TournamentRepository
	matchRepo      repositories.MatchRepository
	resultRepo     repositories.MatchResultRepository
	playerRepo     repositories.PlayerRepository
	teamRepo       repositories.TeamRepository
	pairing        PairingService
	notifier       Notifier
	broadcaster    Broadcaster
	logger         *slog.Logger
}

func NewAdvancementService(
	txManager repositories.TxManager,
	tournamentRepo repositories.TournamentRepository,
	matchRepo repositories.MatchRepository,
	resultRepo repositories.MatchResultRepository,
	playerRepo repositories.PlayerRepository,
	teamRepo repositories.TeamRepository,
	pairing PairingService,
	notifier Notifier,
	broadcaster Broadcaster,
	logger *slog.Logger,
) AdvancementService {
	return &advancementService{
		txManager:      txManager,
		tournamentRepo: tournamentRepo,
		matchRepo:      matchRepo,
		resultRepo:     resultRepo,
		playerRepo:     playerRepo,
		teamRepo:       teamRepo,
		pairing:        pairing,
		notifier:       notifier,
		broadcaster:    broadcaster,
		logger:         logger,
	}
}

func (s *advancementService) EvaluateTournament(ctx context.Context, tournamentID int, now time.Time) error {
	var champion *championAnnouncement

	err := s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		tournament, err := s.tournamentRepo.GetByID(ctx, exec, tournamentID)
		if err != nil {
			// Турнир могли отменить между завершением матча и продвижением.
			if errors.Is(err, repositories.ErrTournamentNotFound) {
				return nil
			}
			return err
		}
		if tournament.Status != models.StatusOngoing {
			return nil
		}

		completed, err := s.matchRepo.CountByTournamentAndStatus(ctx, exec, tournamentID, models.MatchStatusCompleted)
		if err != nil {
			return err
		}

		// В сетке на N команд всего N-1 матчей.
		if completed == tournament.TeamCount-1 {
			champion, err = s.finalize(ctx, exec, tournament, now)
			return err
		}

		round, ok := completedRound(tournament.TeamCount, completed)
		if !ok {
			// Текущий раунд ещё доигрывается.
			return nil
		}
		return s.pairNextRound(ctx, exec, tournament, round, now)
	})
	if err != nil {
		return err
	}

	if champion != nil {
		s.announceChampion(ctx, champion)
	}
	return nil
}

func (s *advancementService) SweepOngoingTournaments(ctx context.Context, now time.Time) error {
	ongoing, err := s.tournamentRepo.ListByStatus(ctx, models.StatusOngoing)
	if err != nil {
		return fmt.Errorf("failed to list ongoing tournaments: %w", err)
	}
	for _, t := range ongoing {
		if err := s.EvaluateTournament(ctx, t.ID, now); err != nil {
			s.logger.Error("failed to advance tournament",
				slog.Int("tournament_id", t.ID), slog.Any("error", err))
		}
	}
	return nil
}

// completedRound возвращает номер раунда, который полностью доигран ровно
// сейчас: количество завершённых матчей совпадает с суммой размеров раундов
// 1..r. Любое промежуточное значение означает недоигранный раунд.
func completedRound(teamCount, completed int) (int, bool) {
	if completed == 0 {
		return 0, false
	}
	total := 0
	size := teamCount / 2
	for round := 1; size >= 1; round++ {
		total += size
		if completed == total {
			return round, true
		}
		if completed < total {
			return 0, false
		}
		size /= 2
	}
	return 0, false
}

func (s *advancementService) pairNextRound(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament, finishedRound int, now time.Time) error {
	nextRound := finishedRound + 1

	// Конкурентный вызов мог уже сгенерировать раунд.
	existing, err := s.matchRepo.CountByTournamentAndRound(ctx, exec, tournament.ID, nextRound)
	if err != nil {
		return err
	}
	if existing > 0 {
		return nil
	}

	finished, err := s.matchRepo.ListCompletedByRound(ctx, exec, tournament.ID, finishedRound)
	if err != nil {
		return err
	}
	winners := make([]int, 0, len(finished))
	for _, m := range finished {
		if m.WinnerTeamID == nil {
			return fmt.Errorf("completed match %d has no winner", m.ID)
		}
		winners = append(winners, *m.WinnerTeamID)
	}

	if _, err := s.pairing.PairRound(ctx, exec, tournament, winners, nextRound, now); err != nil {
		return err
	}

	s.logger.Info("next round generated",
		slog.Int("tournament_id", tournament.ID),
		slog.Int("round", nextRound),
		slog.Int("teams", len(winners)))
	return nil
}

type championAnnouncement struct {
	tournament *models.Tournament
	team       *models.Team
	roster     []*models.Player
	prizes     map[int]int64
}

func (s *advancementService) finalize(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament, now time.Time) (*championAnnouncement, error) {
	latest, err := s.resultRepo.GetLatestByTournament(ctx, exec, tournament.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load the final result of tournament %d: %w", tournament.ID, err)
	}
	if latest.WinnerTeamID == nil {
		return nil, fmt.Errorf("final result of tournament %d has no winner", tournament.ID)
	}
	winnerTeamID := *latest.WinnerTeamID

	if err := s.tournamentRepo.SetWinner(ctx, exec, tournament.ID, winnerTeamID); err != nil {
		return nil, err
	}
	if err := s.tournamentRepo.UpdateStatus(ctx, exec, tournament.ID, models.StatusCompleted); err != nil {
		return nil, err
	}

	team, err := s.teamRepo.GetByID(ctx, winnerTeamID)
	if err != nil {
		return nil, err
	}
	roster, err := s.playerRepo.ListByTeam(ctx, exec, winnerTeamID)
	if err != nil {
		return nil, err
	}

	prizes, err := s.payoutPrizes(ctx, exec, tournament, roster)
	if err != nil {
		return nil, err
	}

	s.logger.Info("tournament completed",
		slog.Int("tournament_id", tournament.ID),
		slog.Int("winner_team_id", winnerTeamID))

	return &championAnnouncement{
		tournament: tournament,
		team:       team,
		roster:     roster,
		prizes:     prizes,
	}, nil
}

// payoutPrizes делит призовой фонд поровну между игроками чемпиона.
// Премиум игрок получает удвоенную долю.
func (s *advancementService) payoutPrizes(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament, roster []*models.Player) (map[int]int64, error) {
	prizes := make(map[int]int64, len(roster))
	if tournament.PrizePool == nil || *tournament.PrizePool <= 0 || len(roster) == 0 {
		return prizes, nil
	}

	share := *tournament.PrizePool / int64(len(roster))
	for _, p := range roster {
		prize := share
		if p.Role == models.RolePremium {
			prize *= PremiumPrizeMultiplier
		}
		p.Coins += prize
		if err := s.playerRepo.Update(ctx, exec, p); err != nil {
			return nil, fmt.Errorf("failed to credit prize to player %d: %w", p.ID, err)
		}
		prizes[p.ID] = prize
	}
	return prizes, nil
}

func (s *advancementService) announceChampion(ctx context.Context, champion *championAnnouncement) {
	emails := make([]string, 0, len(champion.roster))
	for _, p := range champion.roster {
		emails = append(emails, p.Email)
	}
	fanOutEmail(s.logger, s.notifier, emails,
		"Поздравляем с победой!",
		fmt.Sprintf("Ваша команда %q выиграла турнир %q! Призовые монеты уже зачислены.\n\n- Команда ArenaGG",
			champion.team.Name, champion.tournament.Name))

	if s.broadcaster != nil {
		s.broadcaster.BroadcastTournament(champion.tournament.ID, brackets.EventTournamentCompleted, map[string]interface{}{
			"winner_team_id": champion.team.ID,
			"prizes":         champion.prizes,
		})
	}
}

package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arenagg/arena-server/models"
	"github.com/arenagg/arena-server/repositories"
)

// Константы мутации рейтинга и репутации после матча.
const (
	RatingWinGain     = 10
	RatingLossPenalty = 5

	ReputationMatchBonus    = 5
	ReputationNoShowPenalty = 5
)

// RatingService считает командный рейтинг и применяет последствия матчей к игрокам.
type RatingService interface {
	// TeamAverageRating — средний MMR текущего состава; 0 для пустого ростера.
	// Считается в момент вызова, без кеширования.
	TeamAverageRating(ctx context.Context, exec repositories.SQLExecutor, teamID int) (float64, error)

	// RecordTeamResult обновляет счётчики игр и MMR всех игроков команды.
	RecordTeamResult(ctx context.Context, exec repositories.SQLExecutor, matchID, teamID int, won bool) error

	// AdjustTeamReputation сдвигает репутацию всех игроков команды с записью в журнал матча.
	AdjustTeamReputation(ctx context.Context, exec repositories.SQLExecutor, matchID, teamID, delta int, reason string) error
}

// Leaderboard — внешний (redis) рейтинг-лист игроков по MMR.
type Leaderboard interface {
	UpdateRating(ctx context.Context, playerID int, rating int) error
	Top(ctx context.Context, limit int) ([]int, error)
}

type ratingService struct {
	playerRepo  repositories.PlayerRepository
	logRepo     repositories.MatchLogRepository
	leaderboard Leaderboard
	logger      *slog.Logger
}

func NewRatingService(
	playerRepo repositories.PlayerRepository,
	logRepo repositories.MatchLogRepository,
	leaderboard Leaderboard,
	logger *slog.Logger,
) RatingService {
	return &ratingService{
		playerRepo:  playerRepo,
		logRepo:     logRepo,
		leaderboard: leaderboard,
		logger:      logger,
	}
}

func (s *ratingService) TeamAverageRating(ctx context.Context, exec repositories.SQLExecutor, teamID int) (float64, error) {
	players, err := s.playerRepo.ListByTeam(ctx, exec, teamID)
	if err != nil {
		return 0, fmt.Errorf("failed to load roster for team %d: %w", teamID, err)
	}
	if len(players) == 0 {
		return 0, nil
	}

	sum := 0
	for _, p := range players {
		sum += p.Rating
	}
	return float64(sum) / float64(len(players)), nil
}

func (s *ratingService) RecordTeamResult(ctx context.Context, exec repositories.SQLExecutor, matchID, teamID int, won bool) error {
	players, err := s.playerRepo.ListByTeam(ctx, exec, teamID)
	if err != nil {
		return fmt.Errorf("failed to load roster for team %d: %w", teamID, err)
	}

	for _, p := range players {
		p.GamesPlayed++
		if won {
			p.GamesWon++
			p.Rating += RatingWinGain
		} else {
			p.Rating -= RatingLossPenalty
			if p.Rating < models.MinRating {
				p.Rating = models.MinRating
			}
		}
		if err := s.playerRepo.Update(ctx, exec, p); err != nil {
			return fmt.Errorf("failed to update player %d stats: %w", p.ID, err)
		}
		s.refreshLeaderboard(ctx, p.ID, p.Rating)
	}
	return nil
}

func (s *ratingService) AdjustTeamReputation(ctx context.Context, exec repositories.SQLExecutor, matchID, teamID, delta int, reason string) error {
	players, err := s.playerRepo.ListByTeam(ctx, exec, teamID)
	if err != nil {
		return fmt.Errorf("failed to load roster for team %d: %w", teamID, err)
	}

	for _, p := range players {
		p.Reputation += delta
		if p.Reputation < models.MinReputation {
			p.Reputation = models.MinReputation
		}
		if p.Reputation > models.MaxReputation {
			p.Reputation = models.MaxReputation
		}
		if err := s.playerRepo.Update(ctx, exec, p); err != nil {
			return fmt.Errorf("failed to update player %d reputation: %w", p.ID, err)
		}

		playerID := p.ID
		teamIDCopy := teamID
		logEntry := &models.MatchLog{
			MatchID:  matchID,
			TeamID:   &teamIDCopy,
			PlayerID: &playerID,
			Event:    fmt.Sprintf("reputation adjusted by %+d: %s", delta, reason),
		}
		if err := s.logRepo.Create(ctx, exec, logEntry); err != nil {
			return fmt.Errorf("failed to log reputation change for player %d: %w", p.ID, err)
		}
	}
	return nil
}

// refreshLeaderboard — best effort: ошибка кеша не откатывает результат матча.
func (s *ratingService) refreshLeaderboard(ctx context.Context, playerID, rating int) {
	if s.leaderboard == nil {
		return
	}
	if err := s.leaderboard.UpdateRating(ctx, playerID, rating); err != nil {
		s.logger.Error("failed to refresh leaderboard entry",
			slog.Int("player_id", playerID), slog.Any("error", err))
	}
}

package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/go-redis/redis/v8"

	"github.com/arenagg/arena-server/models"
	"github.com/arenagg/arena-server/repositories"
)

const leaderboardKey = "leaderboard:mmr"

// redisLeaderboard хранит MMR игроков в сортированном множестве redis.
type redisLeaderboard struct {
	client *redis.Client
}

func NewRedisLeaderboard(client *redis.Client) Leaderboard {
	return &redisLeaderboard{client: client}
}

func (l *redisLeaderboard) UpdateRating(ctx context.Context, playerID int, rating int) error {
	return l.client.ZAdd(ctx, leaderboardKey, &redis.Z{
		Score:  float64(rating),
		Member: strconv.Itoa(playerID),
	}).Err()
}

func (l *redisLeaderboard) Top(ctx context.Context, limit int) ([]int, error) {
	members, err := l.client.ZRevRange(ctx, leaderboardKey, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard: %w", err)
	}
	ids := make([]int, 0, len(members))
	for _, member := range members {
		id, err := strconv.Atoi(member)
		if err != nil {
			return nil, fmt.Errorf("corrupt leaderboard member %q: %w", member, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// LeaderboardService отдаёт топ игроков по MMR для публичного API.
type LeaderboardService interface {
	TopPlayers(ctx context.Context, limit int) ([]*models.Player, error)
}

type leaderboardService struct {
	leaderboard Leaderboard
	playerRepo  repositories.PlayerRepository
	logger      *slog.Logger
}

func NewLeaderboardService(leaderboard Leaderboard, playerRepo repositories.PlayerRepository, logger *slog.Logger) LeaderboardService {
	return &leaderboardService{
		leaderboard: leaderboard,
		playerRepo:  playerRepo,
		logger:      logger,
	}
}

func (s *leaderboardService) TopPlayers(ctx context.Context, limit int) ([]*models.Player, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	if s.leaderboard != nil {
		ids, err := s.leaderboard.Top(ctx, limit)
		if err == nil && len(ids) > 0 {
			players, err := s.playerRepo.ListByIDs(ctx, ids)
			if err != nil {
				return nil, err
			}
			// Redis отдаёт порядок, база нет. Восстанавливаем порядок кеша.
			byID := make(map[int]*models.Player, len(players))
			for _, p := range players {
				byID[p.ID] = p
			}
			ordered := make([]*models.Player, 0, len(ids))
			for _, id := range ids {
				if p, ok := byID[id]; ok {
					ordered = append(ordered, p)
				}
			}
			return ordered, nil
		}
		if err != nil {
			s.logger.Warn("leaderboard cache unavailable, falling back to database",
				slog.Any("error", err))
		}
	}

	return s.playerRepo.ListTopByRating(ctx, limit)
}

package services

import (
	"context"
	"errors"

	"github.com/arenagg/arena-server/models"
	"github.com/arenagg/arena-server/repositories"
)

// PlayerProfile — публичный профиль игрока с производной статистикой.
type PlayerProfile struct {
	Player  *models.Player `json:"player"`
	WinRate float64        `json:"win_rate"`
}

type PlayerService interface {
	GetProfile(ctx context.Context, id int) (*PlayerProfile, error)
}

type playerService struct {
	playerRepo repositories.PlayerRepository
}

func NewPlayerService(playerRepo repositories.PlayerRepository) PlayerService {
	return &playerService{playerRepo: playerRepo}
}

func (s *playerService) GetProfile(ctx context.Context, id int) (*PlayerProfile, error) {
	player, err := s.playerRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrPlayerNotFound) {
			return nil, ErrPlayerNotFound
		}
		return nil, err
	}
	return &PlayerProfile{Player: player, WinRate: player.WinRate()}, nil
}

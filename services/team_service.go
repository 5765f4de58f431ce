package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/arenagg/arena-server/models"
	"github.com/arenagg/arena-server/repositories"
	"github.com/arenagg/arena-server/storage"
)

// Допустимые типы логотипа и их расширения.
var logoExtensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/webp": "webp",
}

var (
	ErrTeamNameRequired      = errors.New("team name is required")
	ErrTeamNameConflict      = errors.New("team name is already taken")
	ErrUnsupportedLogoFormat = errors.New("unsupported logo format")
)

// TeamService — команды: создание, просмотр с составом, логотип.
type TeamService interface {
	Create(ctx context.Context, name string) (*models.Team, error)
	GetByID(ctx context.Context, id int) (*models.Team, error)
	UploadLogo(ctx context.Context, teamID int, contentType string, file io.Reader) (*models.Team, error)
}

type teamService struct {
	teamRepo   repositories.TeamRepository
	playerRepo repositories.PlayerRepository
	uploader   storage.FileUploader
	logger     *slog.Logger
}

func NewTeamService(
	teamRepo repositories.TeamRepository,
	playerRepo repositories.PlayerRepository,
	uploader storage.FileUploader,
	logger *slog.Logger,
) TeamService {
	return &teamService{
		teamRepo:   teamRepo,
		playerRepo: playerRepo,
		uploader:   uploader,
		logger:     logger,
	}
}

func (s *teamService) Create(ctx context.Context, name string) (*models.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrTeamNameRequired
	}
	team := &models.Team{Name: name}
	if err := s.teamRepo.Create(ctx, team); err != nil {
		if errors.Is(err, repositories.ErrTeamNameConflict) {
			return nil, ErrTeamNameConflict
		}
		return nil, fmt.Errorf("failed to create team: %w", err)
	}
	return team, nil
}

func (s *teamService) GetByID(ctx context.Context, id int) (*models.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	players, err := s.playerRepo.ListByTeam(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	for _, p := range players {
		team.Players = append(team.Players, *p)
	}
	s.fillLogoURL(team)
	return team, nil
}

func (s *teamService) UploadLogo(ctx context.Context, teamID int, contentType string, file io.Reader) (*models.Team, error) {
	ext, ok := logoExtensions[contentType]
	if !ok {
		return nil, ErrUnsupportedLogoFormat
	}
	if s.uploader == nil {
		return nil, errors.New("logo storage is not configured")
	}

	team, err := s.teamRepo.GetByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}

	key := fmt.Sprintf("team-logos/%d/%s.%s", teamID, uuid.NewString(), ext)
	result, err := s.uploader.Upload(ctx, key, contentType, file)
	if err != nil {
		return nil, fmt.Errorf("failed to upload team logo: %w", err)
	}
	if err := s.teamRepo.UpdateLogoKey(ctx, teamID, &result.Key); err != nil {
		return nil, err
	}

	// Старый логотип больше никем не используется.
	if team.LogoKey != nil && *team.LogoKey != result.Key {
		if err := s.uploader.Delete(ctx, *team.LogoKey); err != nil {
			s.logger.Warn("failed to delete previous team logo",
				slog.Int("team_id", teamID),
				slog.String("key", *team.LogoKey),
				slog.Any("error", err))
		}
	}

	team.LogoKey = &result.Key
	s.fillLogoURL(team)
	return team, nil
}

func (s *teamService) fillLogoURL(team *models.Team) {
	if s.uploader == nil || team.LogoKey == nil {
		return
	}
	url := s.uploader.PublicURL(*team.LogoKey)
	team.LogoURL = &url
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/arenagg/arena-server/models"
	"github.com/arenagg/arena-server/repositories"
)

// CreateTournamentInput — параметры создания турнира.
type CreateTournamentInput struct {
	Name           string
	Game           *string
	TeamCount      int
	PlayersPerTeam int
	PrizePool      *int64
	StartDate      time.Time
	// CreatorEmail получает подтверждение о создании. Ошибка отправки
	// возвращается создателю, сам турнир при этом уже сохранён.
	CreatorEmail string
}

// TournamentDetails — турнир вместе с заявками и матчами.
type TournamentDetails struct {
	Tournament *models.Tournament `json:"tournament"`
	Entries    []*models.Entry    `json:"entries"`
	Matches    []*models.Match    `json:"matches"`
}

// TournamentService — жизненный цикл турнира: создание, регистрация, запуск.
type TournamentService interface {
	Create(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error)
	GetByID(ctx context.Context, id int) (*TournamentDetails, error)
	List(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error)

	RegisterEntry(ctx context.Context, tournamentID, teamID int) (*models.Entry, error)

	// SweepTournaments запускает турниры, чей start_date наступил:
	// сеет первый раунд либо отменяет турнир при нехватке участников.
	SweepTournaments(ctx context.Context, now time.Time) error
}

type tournamentService struct {
	txManager      repositories.TxManager
	tournamentRepo repositories.TournamentRepository
	entryRepo      repositories.EntryRepository
	matchRepo      repositories.MatchRepository
	pairing        PairingService
	notifier       Notifier
	logger         *slog.Logger
}

func NewTournamentService(
	txManager repositories.TxManager,
	tournamentRepo repositories.TournamentRepository,
	entryRepo repositories.EntryRepository,
	matchRepo repositories.MatchRepository,
	pairing PairingService,
	notifier Notifier,
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{
		txManager:      txManager,
		tournamentRepo: tournamentRepo,
		entryRepo:      entryRepo,
		matchRepo:      matchRepo,
		pairing:        pairing,
		notifier:       notifier,
		logger:         logger,
	}
}

func (s *tournamentService) Create(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrTournamentNameRequired
	}
	if !models.ValidTeamCount(input.TeamCount) {
		return nil, ErrTournamentInvalidCapacity
	}
	if input.PlayersPerTeam < 1 {
		return nil, ErrTournamentInvalidTeamSize
	}
	if input.StartDate.IsZero() {
		return nil, ErrTournamentInvalidStartDate
	}

	tournament := &models.Tournament{
		Name:           name,
		Game:           input.Game,
		TeamCount:      input.TeamCount,
		PlayersPerTeam: input.PlayersPerTeam,
		PrizePool:      input.PrizePool,
		StartDate:      input.StartDate,
		Status:         models.StatusUpcoming,
	}
	if err := s.tournamentRepo.Create(ctx, tournament); err != nil {
		return nil, fmt.Errorf("failed to create tournament: %w", err)
	}

	if input.CreatorEmail != "" {
		// Создатель ждёт письмо сразу, поэтому отправляем синхронно
		// и отдаём ему ошибку вместе с уже созданным турниром.
		body := fmt.Sprintf("Ваш турнир \"%s\" создан и стартует %s.\n\n- Команда ArenaGG",
			tournament.Name, tournament.StartDate.Format("02.01.2006 15:04"))
		if err := s.notifier.Send(ctx, []string{input.CreatorEmail}, "Турнир создан", body); err != nil {
			s.logger.Error("failed to send tournament creation email",
				slog.Int("tournament_id", tournament.ID), slog.Any("error", err))
			return tournament, fmt.Errorf("tournament created, but notification failed: %w", err)
		}
	}
	return tournament, nil
}

func (s *tournamentService) GetByID(ctx context.Context, id int) (*TournamentDetails, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	entries, err := s.entryRepo.ListByTournament(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	matches, err := s.matchRepo.ListByTournament(ctx, id, nil, nil)
	if err != nil {
		return nil, err
	}
	return &TournamentDetails{Tournament: tournament, Entries: entries, Matches: matches}, nil
}

func (s *tournamentService) List(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	return s.tournamentRepo.List(ctx, filter)
}

func (s *tournamentService) RegisterEntry(ctx context.Context, tournamentID, teamID int) (*models.Entry, error) {
	var entry *models.Entry

	err := s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		tournament, err := s.tournamentRepo.GetByID(ctx, exec, tournamentID)
		if err != nil {
			if errors.Is(err, repositories.ErrTournamentNotFound) {
				return ErrTournamentNotFound
			}
			return err
		}
		if tournament.Status != models.StatusUpcoming {
			return ErrTournamentNotUpcoming
		}

		count, err := s.entryRepo.CountByTournament(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		if count >= tournament.TeamCount {
			return ErrTournamentFull
		}

		entry = &models.Entry{TournamentID: tournamentID, TeamID: teamID}
		if err := s.entryRepo.Create(ctx, exec, entry); err != nil {
			switch {
			case errors.Is(err, repositories.ErrEntryConflict):
				return ErrRegistrationConflict
			case errors.Is(err, repositories.ErrEntryInvalidReference):
				return ErrTeamNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *tournamentService) SweepTournaments(ctx context.Context, now time.Time) error {
	due, err := s.tournamentRepo.ListDueForStart(ctx, nil, now)
	if err != nil {
		return fmt.Errorf("failed to list due tournaments: %w", err)
	}

	for _, candidate := range due {
		if err := s.startTournament(ctx, candidate.ID, now); err != nil {
			if errors.Is(err, ErrTournamentCanceled) {
				s.logger.Info("tournament canceled at start time",
					slog.Int("tournament_id", candidate.ID))
				continue
			}
			// Продолжаем обход, неудавшийся турнир подхватит следующий тик.
			s.logger.Error("failed to start tournament",
				slog.Int("tournament_id", candidate.ID), slog.Any("error", err))
		}
	}
	return nil
}

func (s *tournamentService) startTournament(ctx context.Context, tournamentID int, now time.Time) error {
	// Отмена турнира удаляет строки и обязана закоммититься, поэтому
	// сигнал ErrTournamentCanceled выносится за пределы транзакции.
	var canceled bool

	err := s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		tournament, err := s.tournamentRepo.GetByID(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		// Параллельный тик мог уже запустить турнир.
		if tournament.Status != models.StatusUpcoming {
			return nil
		}

		entries, err := s.entryRepo.ListByTournament(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		if len(entries) != tournament.TeamCount {
			reason := fmt.Sprintf("registered %d teams out of %d required", len(entries), tournament.TeamCount)
			if err := s.pairing.CancelTournament(ctx, exec, tournament, reason); err != nil {
				return err
			}
			canceled = true
			return nil
		}

		if err := s.tournamentRepo.UpdateStatus(ctx, exec, tournamentID, models.StatusOngoing); err != nil {
			return err
		}

		if !tournament.BracketSeeded {
			teamIDs := make([]int, 0, len(entries))
			for _, e := range entries {
				teamIDs = append(teamIDs, e.TeamID)
			}
			if _, err := s.pairing.PairRound(ctx, exec, tournament, teamIDs, 1, now); err != nil {
				if errors.Is(err, ErrTournamentCanceled) {
					canceled = true
					return nil
				}
				return err
			}
		}

		s.logger.Info("tournament started",
			slog.Int("tournament_id", tournamentID),
			slog.Int("team_count", tournament.TeamCount))
		return nil
	})
	if err != nil {
		return err
	}
	if canceled {
		return ErrTournamentCanceled
	}
	return nil
}

package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/arenagg/arena-server/models"
	"github.com/lib/pq"
)

var (
	ErrMatchResultNotFound = errors.New("match result not found")
	ErrMatchResultExists   = errors.New("match result already recorded")
)

type MatchResultRepository interface {
	Create(ctx context.Context, exec SQLExecutor, result *models.MatchResult) error
	GetByMatchID(ctx context.Context, matchID int) (*models.MatchResult, error)
	// GetLatestByTournament возвращает итог матча турнира, завершённого последним.
	// Порядок детерминированный: completed_at по убыванию, затем match_id по убыванию.
	GetLatestByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (*models.MatchResult, error)
}

type postgresMatchResultRepository struct {
	db *sql.DB
}

func NewPostgresMatchResultRepository(db *sql.DB) MatchResultRepository {
	return &postgresMatchResultRepository{db: db}
}

func (r *postgresMatchResultRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresMatchResultRepository) Create(ctx context.Context, exec SQLExecutor, res *models.MatchResult) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO match_results (match_id, winner_team_id, team1_score, team2_score, completed_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	err := executor.QueryRowContext(ctx, query,
		res.MatchID, res.WinnerTeamID, res.Team1Score, res.Team2Score, res.CompletedAt,
	).Scan(&res.ID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrMatchResultExists
		}
		return fmt.Errorf("failed to create match result for match %d: %w", res.MatchID, err)
	}
	return nil
}

func (r *postgresMatchResultRepository) GetByMatchID(ctx context.Context, matchID int) (*models.MatchResult, error) {
	query := `
		SELECT id, match_id, winner_team_id, team1_score, team2_score, completed_at
		FROM match_results
		WHERE match_id = $1`

	res := &models.MatchResult{}
	err := r.db.QueryRowContext(ctx, query, matchID).Scan(
		&res.ID, &res.MatchID, &res.WinnerTeamID, &res.Team1Score, &res.Team2Score, &res.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchResultNotFound
		}
		return nil, fmt.Errorf("failed to scan match result for match %d: %w", matchID, err)
	}
	return res, nil
}

func (r *postgresMatchResultRepository) GetLatestByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (*models.MatchResult, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT r.id, r.match_id, r.winner_team_id, r.team1_score, r.team2_score, r.completed_at
		FROM match_results r
		JOIN matches m ON m.id = r.match_id
		WHERE m.tournament_id = $1
		ORDER BY r.completed_at DESC, r.match_id DESC
		LIMIT 1`

	res := &models.MatchResult{}
	err := executor.QueryRowContext(ctx, query, tournamentID).Scan(
		&res.ID, &res.MatchID, &res.WinnerTeamID, &res.Team1Score, &res.Team2Score, &res.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchResultNotFound
		}
		return nil, fmt.Errorf("failed to scan latest match result for tournament %d: %w", tournamentID, err)
	}
	return res, nil
}

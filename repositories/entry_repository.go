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
	ErrEntryNotFound          = errors.New("tournament entry not found")
	ErrEntryConflict          = errors.New("team is already registered for this tournament")
	ErrEntryInvalidReference  = errors.New("invalid tournament or team reference")
)

type EntryRepository interface {
	Create(ctx context.Context, exec SQLExecutor, entry *models.Entry) error
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Entry, error)
	CountByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error)
	DeleteByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) error
}

type postgresEntryRepository struct {
	db *sql.DB
}

func NewPostgresEntryRepository(db *sql.DB) EntryRepository {
	return &postgresEntryRepository{db: db}
}

func (r *postgresEntryRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresEntryRepository) Create(ctx context.Context, exec SQLExecutor, e *models.Entry) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO tournament_entries (tournament_id, team_id, seed)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query, e.TournamentID, e.TeamID, e.Seed).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code {
			case "23505":
				return ErrEntryConflict
			case "23503":
				return ErrEntryInvalidReference
			}
		}
		return fmt.Errorf("failed to create tournament entry: %w", err)
	}
	return nil
}

func (r *postgresEntryRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Entry, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, tournament_id, team_id, seed, created_at
		FROM tournament_entries
		WHERE tournament_id = $1
		ORDER BY id`

	rows, err := executor.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	entries := make([]*models.Entry, 0)
	for rows.Next() {
		e := &models.Entry{}
		if scanErr := rows.Scan(&e.ID, &e.TournamentID, &e.TeamID, &e.Seed, &e.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan entry row: %w", scanErr)
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *postgresEntryRepository) CountByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error) {
	executor := r.getExecutor(exec)
	query := `SELECT COUNT(*) FROM tournament_entries WHERE tournament_id = $1`

	var count int
	if err := executor.QueryRowContext(ctx, query, tournamentID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count entries for tournament %d: %w", tournamentID, err)
	}
	return count, nil
}

func (r *postgresEntryRepository) DeleteByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) error {
	executor := r.getExecutor(exec)
	query := `DELETE FROM tournament_entries WHERE tournament_id = $1`

	if _, err := executor.ExecContext(ctx, query, tournamentID); err != nil {
		return fmt.Errorf("failed to delete entries for tournament %d: %w", tournamentID, err)
	}
	return nil
}

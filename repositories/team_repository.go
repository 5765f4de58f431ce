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
	ErrTeamNotFound     = errors.New("team not found")
	ErrTeamNameConflict = errors.New("team name is already in use")
)

type TeamRepository interface {
	Create(ctx context.Context, team *models.Team) error
	GetByID(ctx context.Context, id int) (*models.Team, error)
	ListByIDs(ctx context.Context, exec SQLExecutor, ids []int) ([]*models.Team, error)
	UpdateLogoKey(ctx context.Context, teamID int, logoKey *string) error
}

type postgresTeamRepository struct {
	db *sql.DB
}

func NewPostgresTeamRepository(db *sql.DB) TeamRepository {
	return &postgresTeamRepository{db: db}
}

func (r *postgresTeamRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresTeamRepository) Create(ctx context.Context, t *models.Team) error {
	query := `INSERT INTO teams (name, logo_key) VALUES ($1, $2) RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, t.Name, t.LogoKey).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrTeamNameConflict
		}
		return fmt.Errorf("failed to create team: %w", err)
	}
	return nil
}

func (r *postgresTeamRepository) GetByID(ctx context.Context, id int) (*models.Team, error) {
	query := `SELECT id, name, created_at, logo_key FROM teams WHERE id = $1`

	t := &models.Team{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&t.ID, &t.Name, &t.CreatedAt, &t.LogoKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to scan team by id %d: %w", id, err)
	}
	return t, nil
}

func (r *postgresTeamRepository) ListByIDs(ctx context.Context, exec SQLExecutor, ids []int) ([]*models.Team, error) {
	if len(ids) == 0 {
		return []*models.Team{}, nil
	}
	executor := r.getExecutor(exec)
	query := `SELECT id, name, created_at, logo_key FROM teams WHERE id = ANY($1) ORDER BY id`

	rows, err := executor.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to list teams by ids: %w", err)
	}
	defer rows.Close()

	teams := make([]*models.Team, 0, len(ids))
	for rows.Next() {
		t := &models.Team{}
		if scanErr := rows.Scan(&t.ID, &t.Name, &t.CreatedAt, &t.LogoKey); scanErr != nil {
			return nil, fmt.Errorf("failed to scan team row: %w", scanErr)
		}
		teams = append(teams, t)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return teams, nil
}

func (r *postgresTeamRepository) UpdateLogoKey(ctx context.Context, teamID int, logoKey *string) error {
	query := `UPDATE teams SET logo_key = $1 WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, logoKey, teamID)
	if err != nil {
		return fmt.Errorf("failed to update team logo key: %w", err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

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
	ErrPlayerNotFound    = errors.New("player not found")
	ErrPlayerInvalidTeam = errors.New("invalid team reference")
)

type PlayerRepository interface {
	GetByID(ctx context.Context, id int) (*models.Player, error)
	ListByTeam(ctx context.Context, exec SQLExecutor, teamID int) ([]*models.Player, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Player, error)
	ListByIDs(ctx context.Context, ids []int) ([]*models.Player, error)
	ListTopByRating(ctx context.Context, limit int) ([]*models.Player, error)
	Update(ctx context.Context, exec SQLExecutor, player *models.Player) error
}

type postgresPlayerRepository struct {
	db *sql.DB
}

func NewPostgresPlayerRepository(db *sql.DB) PlayerRepository {
	return &postgresPlayerRepository{db: db}
}

func (r *postgresPlayerRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const playerColumns = `id, nickname, email, team_id, role, rating, reputation, games_played, games_won, coins, created_at`

func scanPlayer(row interface{ Scan(...interface{}) error }, p *models.Player) error {
	return row.Scan(
		&p.ID, &p.Nickname, &p.Email, &p.TeamID, &p.Role,
		&p.Rating, &p.Reputation, &p.GamesPlayed, &p.GamesWon, &p.Coins, &p.CreatedAt,
	)
}

func (r *postgresPlayerRepository) GetByID(ctx context.Context, id int) (*models.Player, error) {
	query := `SELECT ` + playerColumns + ` FROM players WHERE id = $1`

	p := &models.Player{}
	err := scanPlayer(r.db.QueryRowContext(ctx, query, id), p)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to scan player by id %d: %w", id, err)
	}
	return p, nil
}

func (r *postgresPlayerRepository) ListByTeam(ctx context.Context, exec SQLExecutor, teamID int) ([]*models.Player, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + playerColumns + ` FROM players WHERE team_id = $1 ORDER BY id`

	rows, err := executor.QueryContext(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list players for team %d: %w", teamID, err)
	}
	defer rows.Close()

	return collectPlayers(rows)
}

// ListByTournament возвращает игроков всех команд, зарегистрированных в турнире.
func (r *postgresPlayerRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Player, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT p.id, p.nickname, p.email, p.team_id, p.role, p.rating, p.reputation,
		       p.games_played, p.games_won, p.coins, p.created_at
		FROM players p
		JOIN tournament_entries e ON e.team_id = p.team_id
		WHERE e.tournament_id = $1
		ORDER BY p.id`

	rows, err := executor.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list players for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	return collectPlayers(rows)
}

func (r *postgresPlayerRepository) ListByIDs(ctx context.Context, ids []int) ([]*models.Player, error) {
	if len(ids) == 0 {
		return []*models.Player{}, nil
	}
	query := `SELECT ` + playerColumns + ` FROM players WHERE id = ANY($1) ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to list players by ids: %w", err)
	}
	defer rows.Close()

	return collectPlayers(rows)
}

func (r *postgresPlayerRepository) ListTopByRating(ctx context.Context, limit int) ([]*models.Player, error) {
	query := `SELECT ` + playerColumns + ` FROM players ORDER BY rating DESC, id ASC LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list players by rating: %w", err)
	}
	defer rows.Close()

	return collectPlayers(rows)
}

func (r *postgresPlayerRepository) Update(ctx context.Context, exec SQLExecutor, p *models.Player) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE players SET
			team_id = $1,
			role = $2,
			rating = $3,
			reputation = $4,
			games_played = $5,
			games_won = $6,
			coins = $7
		WHERE id = $8`

	result, err := executor.ExecContext(ctx, query,
		p.TeamID, p.Role, p.Rating, p.Reputation, p.GamesPlayed, p.GamesWon, p.Coins, p.ID,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return ErrPlayerInvalidTeam
		}
		return fmt.Errorf("failed to update player %d: %w", p.ID, err)
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}

func collectPlayers(rows *sql.Rows) ([]*models.Player, error) {
	players := make([]*models.Player, 0)
	for rows.Next() {
		p := &models.Player{}
		if err := scanPlayer(rows, p); err != nil {
			return nil, fmt.Errorf("failed to scan player row: %w", err)
		}
		players = append(players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return players, nil
}

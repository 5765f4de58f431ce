package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/arenagg/arena-server/models"
)

type MatchLogRepository interface {
	Create(ctx context.Context, exec SQLExecutor, log *models.MatchLog) error
	ListByMatch(ctx context.Context, matchID int) ([]*models.MatchLog, error)
}

type postgresMatchLogRepository struct {
	db *sql.DB
}

func NewPostgresMatchLogRepository(db *sql.DB) MatchLogRepository {
	return &postgresMatchLogRepository{db: db}
}

func (r *postgresMatchLogRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresMatchLogRepository) Create(ctx context.Context, exec SQLExecutor, l *models.MatchLog) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO match_logs (match_id, team_id, player_id, event)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query, l.MatchID, l.TeamID, l.PlayerID, l.Event).Scan(&l.ID, &l.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create match log for match %d: %w", l.MatchID, err)
	}
	return nil
}

func (r *postgresMatchLogRepository) ListByMatch(ctx context.Context, matchID int) ([]*models.MatchLog, error) {
	query := `
		SELECT id, match_id, team_id, player_id, event, created_at
		FROM match_logs
		WHERE match_id = $1
		ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list logs for match %d: %w", matchID, err)
	}
	defer rows.Close()

	logs := make([]*models.MatchLog, 0)
	for rows.Next() {
		l := &models.MatchLog{}
		if scanErr := rows.Scan(&l.ID, &l.MatchID, &l.TeamID, &l.PlayerID, &l.Event, &l.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan match log row: %w", scanErr)
		}
		logs = append(logs, l)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

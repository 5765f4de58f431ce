package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/arenagg/arena-server/models"
	"github.com/lib/pq"
)

var (
	ErrMatchNotFound       = errors.New("match not found")
	ErrMatchInvalidTeam    = errors.New("match team conflict or invalid")
	ErrMatchInvalidSide    = errors.New("match side must be 1 or 2")
)

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	ListByTournament(ctx context.Context, tournamentID int, round *int, status *models.MatchStatus) ([]*models.Match, error)
	ListCompletedByRound(ctx context.Context, exec SQLExecutor, tournamentID int, round int) ([]*models.Match, error)
	ListPendingDue(ctx context.Context, currentTime time.Time) ([]*models.Match, error)
	CountByTournamentAndStatus(ctx context.Context, exec SQLExecutor, tournamentID int, status models.MatchStatus) (int, error)
	CountByTournamentAndRound(ctx context.Context, exec SQLExecutor, tournamentID int, round int) (int, error)
	SetReady(ctx context.Context, exec SQLExecutor, matchID int, side int) error
	SetConfirmation(ctx context.Context, exec SQLExecutor, matchID int, side int, declaredWinner bool) error
	UpdateStatus(ctx context.Context, exec SQLExecutor, matchID int, status models.MatchStatus) error
	Complete(ctx context.Context, exec SQLExecutor, matchID int, winnerTeamID int) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const matchColumns = `id, tournament_id, round, team1_id, team2_id, scheduled_at, status,
	team1_ready, team2_ready, team1_confirmed, team2_confirmed, team1_winner, team2_winner,
	winner_team_id, created_at`

func scanMatch(row interface{ Scan(...interface{}) error }, m *models.Match) error {
	return row.Scan(
		&m.ID, &m.TournamentID, &m.Round, &m.Team1ID, &m.Team2ID, &m.ScheduledAt, &m.Status,
		&m.Team1Ready, &m.Team2Ready, &m.Team1Confirmed, &m.Team2Confirmed,
		&m.Team1Winner, &m.Team2Winner, &m.WinnerTeamID, &m.CreatedAt,
	)
}

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, m *models.Match) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO matches (tournament_id, round, team1_id, team2_id, scheduled_at, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		m.TournamentID, m.Round, m.Team1ID, m.Team2ID, m.ScheduledAt, m.Status,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return ErrMatchInvalidTeam
		}
		return fmt.Errorf("failed to create match: %w", err)
	}
	return nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`

	m := &models.Match{}
	err := scanMatch(executor.QueryRowContext(ctx, query, id), m)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match by id %d: %w", id, err)
	}
	return m, nil
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, tournamentID int, round *int, status *models.MatchStatus) ([]*models.Match, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + matchColumns + ` FROM matches WHERE tournament_id = $1`)

	args := []interface{}{tournamentID}
	placeholderIndex := 2

	if round != nil {
		queryBuilder.WriteString(" AND round = $")
		queryBuilder.WriteString(strconv.Itoa(placeholderIndex))
		args = append(args, *round)
		placeholderIndex++
	}
	if status != nil {
		queryBuilder.WriteString(" AND status = $")
		queryBuilder.WriteString(strconv.Itoa(placeholderIndex))
		args = append(args, *status)
		placeholderIndex++
	}
	queryBuilder.WriteString(" ORDER BY round, id")

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	return collectMatches(rows)
}

func (r *postgresMatchRepository) ListCompletedByRound(ctx context.Context, exec SQLExecutor, tournamentID int, round int) ([]*models.Match, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + matchColumns + ` FROM matches WHERE tournament_id = $1 AND round = $2 AND status = $3 ORDER BY id`

	rows, err := executor.QueryContext(ctx, query, tournamentID, round, models.MatchStatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed matches for tournament %d round %d: %w", tournamentID, round, err)
	}
	defer rows.Close()

	return collectMatches(rows)
}

// ListPendingDue возвращает pending-матчи, время которых наступило (кандидаты на no-show).
func (r *postgresMatchRepository) ListPendingDue(ctx context.Context, currentTime time.Time) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE status = $1 ORDER BY scheduled_at, id`

	rows, err := r.db.QueryContext(ctx, query, models.MatchStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending matches: %w", err)
	}
	defer rows.Close()

	matches, err := collectMatches(rows)
	if err != nil {
		return nil, err
	}
	// Фильтр по времени делаем в коде: now инжектируется вызывающей стороной,
	// а готовность обеих сторон обрабатывается и до scheduled_at.
	due := make([]*models.Match, 0, len(matches))
	for _, m := range matches {
		if m.Team1Ready && m.Team2Ready || !m.ScheduledAt.After(currentTime) {
			due = append(due, m)
		}
	}
	return due, nil
}

func (r *postgresMatchRepository) CountByTournamentAndStatus(ctx context.Context, exec SQLExecutor, tournamentID int, status models.MatchStatus) (int, error) {
	executor := r.getExecutor(exec)
	query := `SELECT COUNT(*) FROM matches WHERE tournament_id = $1 AND status = $2`

	var count int
	if err := executor.QueryRowContext(ctx, query, tournamentID, status).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count matches for tournament %d: %w", tournamentID, err)
	}
	return count, nil
}

func (r *postgresMatchRepository) CountByTournamentAndRound(ctx context.Context, exec SQLExecutor, tournamentID int, round int) (int, error) {
	executor := r.getExecutor(exec)
	query := `SELECT COUNT(*) FROM matches WHERE tournament_id = $1 AND round = $2`

	var count int
	if err := executor.QueryRowContext(ctx, query, tournamentID, round).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count matches for tournament %d round %d: %w", tournamentID, round, err)
	}
	return count, nil
}

func (r *postgresMatchRepository) SetReady(ctx context.Context, exec SQLExecutor, matchID int, side int) error {
	column, err := sideColumn(side, "team1_ready", "team2_ready")
	if err != nil {
		return err
	}
	executor := r.getExecutor(exec)
	query := fmt.Sprintf(`UPDATE matches SET %s = TRUE WHERE id = $1`, column)

	result, err := executor.ExecContext(ctx, query, matchID)
	if err != nil {
		return fmt.Errorf("failed to set ready flag for match %d: %w", matchID, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) SetConfirmation(ctx context.Context, exec SQLExecutor, matchID int, side int, declaredWinner bool) error {
	confirmedColumn, err := sideColumn(side, "team1_confirmed", "team2_confirmed")
	if err != nil {
		return err
	}
	winnerColumn, _ := sideColumn(side, "team1_winner", "team2_winner")

	executor := r.getExecutor(exec)
	query := fmt.Sprintf(`UPDATE matches SET %s = TRUE, %s = $1 WHERE id = $2`, confirmedColumn, winnerColumn)

	result, err := executor.ExecContext(ctx, query, declaredWinner, matchID)
	if err != nil {
		return fmt.Errorf("failed to set confirmation for match %d: %w", matchID, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, matchID int, status models.MatchStatus) error {
	executor := r.getExecutor(exec)
	query := `UPDATE matches SET status = $1 WHERE id = $2`

	result, err := executor.ExecContext(ctx, query, status, matchID)
	if err != nil {
		return fmt.Errorf("failed to update match %d status: %w", matchID, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) Complete(ctx context.Context, exec SQLExecutor, matchID int, winnerTeamID int) error {
	executor := r.getExecutor(exec)
	query := `UPDATE matches SET status = $1, winner_team_id = $2 WHERE id = $3`

	result, err := executor.ExecContext(ctx, query, models.MatchStatusCompleted, winnerTeamID, matchID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return ErrMatchInvalidTeam
		}
		return fmt.Errorf("failed to complete match %d: %w", matchID, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func sideColumn(side int, team1Column, team2Column string) (string, error) {
	switch side {
	case 1:
		return team1Column, nil
	case 2:
		return team2Column, nil
	default:
		return "", ErrMatchInvalidSide
	}
}

func collectMatches(rows *sql.Rows) ([]*models.Match, error) {
	matches := make([]*models.Match, 0)
	for rows.Next() {
		m := &models.Match{}
		if err := scanMatch(rows, m); err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return matches, nil
}

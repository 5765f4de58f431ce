package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/arenagg/arena-server/models"
	"github.com/arenagg/arena-server/repositories"
)

// Инмемори-реализации репозиториев для сервисных тестов.

type fakeTxManager struct{}

func (fakeTxManager) WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	return fn(nil)
}

type fakePlayerRepo struct {
	players map[int]*models.Player
}

func newFakePlayerRepo() *fakePlayerRepo {
	return &fakePlayerRepo{players: make(map[int]*models.Player)}
}

func (r *fakePlayerRepo) add(p models.Player) *models.Player {
	stored := p
	r.players[p.ID] = &stored
	return &stored
}

func (r *fakePlayerRepo) GetByID(ctx context.Context, id int) (*models.Player, error) {
	p, ok := r.players[id]
	if !ok {
		return nil, repositories.ErrPlayerNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *fakePlayerRepo) ListByTeam(ctx context.Context, exec repositories.SQLExecutor, teamID int) ([]*models.Player, error) {
	var result []*models.Player
	for _, id := range r.sortedIDs() {
		p := r.players[id]
		if p.TeamID != nil && *p.TeamID == teamID {
			copied := *p
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *fakePlayerRepo) ListByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) ([]*models.Player, error) {
	return nil, nil
}

func (r *fakePlayerRepo) ListByIDs(ctx context.Context, ids []int) ([]*models.Player, error) {
	var result []*models.Player
	for _, id := range ids {
		if p, ok := r.players[id]; ok {
			copied := *p
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *fakePlayerRepo) ListTopByRating(ctx context.Context, limit int) ([]*models.Player, error) {
	var result []*models.Player
	for _, id := range r.sortedIDs() {
		copied := *r.players[id]
		result = append(result, &copied)
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Rating > result[j].Rating })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *fakePlayerRepo) Update(ctx context.Context, exec repositories.SQLExecutor, p *models.Player) error {
	if _, ok := r.players[p.ID]; !ok {
		return repositories.ErrPlayerNotFound
	}
	copied := *p
	r.players[p.ID] = &copied
	return nil
}

func (r *fakePlayerRepo) sortedIDs() []int {
	ids := make([]int, 0, len(r.players))
	for id := range r.players {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

type fakeTournamentRepo struct {
	tournaments map[int]*models.Tournament
	nextID      int
}

func newFakeTournamentRepo() *fakeTournamentRepo {
	return &fakeTournamentRepo{tournaments: make(map[int]*models.Tournament), nextID: 1}
}

func (r *fakeTournamentRepo) add(t models.Tournament) *models.Tournament {
	if t.ID == 0 {
		t.ID = r.nextID
	}
	if t.ID >= r.nextID {
		r.nextID = t.ID + 1
	}
	stored := t
	r.tournaments[t.ID] = &stored
	return &stored
}

func (r *fakeTournamentRepo) Create(ctx context.Context, t *models.Tournament) error {
	t.ID = r.nextID
	r.nextID++
	t.CreatedAt = time.Now()
	stored := *t
	r.tournaments[t.ID] = &stored
	return nil
}

func (r *fakeTournamentRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Tournament, error) {
	t, ok := r.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	copied := *t
	return &copied, nil
}

func (r *fakeTournamentRepo) List(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	var result []models.Tournament
	for _, id := range r.sortedIDs() {
		t := r.tournaments[id]
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		result = append(result, *t)
	}
	return result, nil
}

func (r *fakeTournamentRepo) ListDueForStart(ctx context.Context, exec repositories.SQLExecutor, currentTime time.Time) ([]*models.Tournament, error) {
	var result []*models.Tournament
	for _, id := range r.sortedIDs() {
		t := r.tournaments[id]
		if t.Status == models.StatusUpcoming && !t.StartDate.After(currentTime) {
			copied := *t
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *fakeTournamentRepo) ListByStatus(ctx context.Context, status models.TournamentStatus) ([]*models.Tournament, error) {
	var result []*models.Tournament
	for _, id := range r.sortedIDs() {
		t := r.tournaments[id]
		if t.Status == status {
			copied := *t
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *fakeTournamentRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, status models.TournamentStatus) error {
	t, ok := r.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.Status = status
	return nil
}

func (r *fakeTournamentRepo) SetBracketSeeded(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	t, ok := r.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.BracketSeeded = true
	return nil
}

func (r *fakeTournamentRepo) SetWinner(ctx context.Context, exec repositories.SQLExecutor, id int, winnerTeamID int) error {
	t, ok := r.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.WinnerTeamID = &winnerTeamID
	return nil
}

func (r *fakeTournamentRepo) Delete(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	if _, ok := r.tournaments[id]; !ok {
		return repositories.ErrTournamentNotFound
	}
	delete(r.tournaments, id)
	return nil
}

func (r *fakeTournamentRepo) sortedIDs() []int {
	ids := make([]int, 0, len(r.tournaments))
	for id := range r.tournaments {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

type fakeEntryRepo struct {
	entries map[int]*models.Entry
	nextID  int
}

func newFakeEntryRepo() *fakeEntryRepo {
	return &fakeEntryRepo{entries: make(map[int]*models.Entry), nextID: 1}
}

func (r *fakeEntryRepo) Create(ctx context.Context, exec repositories.SQLExecutor, e *models.Entry) error {
	for _, existing := range r.entries {
		if existing.TournamentID == e.TournamentID && existing.TeamID == e.TeamID {
			return repositories.ErrEntryConflict
		}
	}
	e.ID = r.nextID
	r.nextID++
	e.CreatedAt = time.Now()
	stored := *e
	r.entries[e.ID] = &stored
	return nil
}

func (r *fakeEntryRepo) ListByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) ([]*models.Entry, error) {
	var result []*models.Entry
	for _, id := range r.sortedIDs() {
		e := r.entries[id]
		if e.TournamentID == tournamentID {
			copied := *e
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *fakeEntryRepo) CountByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (int, error) {
	entries, _ := r.ListByTournament(ctx, exec, tournamentID)
	return len(entries), nil
}

func (r *fakeEntryRepo) DeleteByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) error {
	for id, e := range r.entries {
		if e.TournamentID == tournamentID {
			delete(r.entries, id)
		}
	}
	return nil
}

func (r *fakeEntryRepo) sortedIDs() []int {
	ids := make([]int, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

type fakeMatchRepo struct {
	matches map[int]*models.Match
	nextID  int
}

func newFakeMatchRepo() *fakeMatchRepo {
	return &fakeMatchRepo{matches: make(map[int]*models.Match), nextID: 1}
}

func (r *fakeMatchRepo) add(m models.Match) *models.Match {
	if m.ID == 0 {
		m.ID = r.nextID
	}
	if m.ID >= r.nextID {
		r.nextID = m.ID + 1
	}
	stored := m
	r.matches[m.ID] = &stored
	return &stored
}

func (r *fakeMatchRepo) Create(ctx context.Context, exec repositories.SQLExecutor, m *models.Match) error {
	m.ID = r.nextID
	r.nextID++
	m.CreatedAt = time.Now()
	stored := *m
	r.matches[m.ID] = &stored
	return nil
}

func (r *fakeMatchRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Match, error) {
	m, ok := r.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	copied := *m
	return &copied, nil
}

func (r *fakeMatchRepo) ListByTournament(ctx context.Context, tournamentID int, round *int, status *models.MatchStatus) ([]*models.Match, error) {
	var result []*models.Match
	for _, id := range r.sortedIDs() {
		m := r.matches[id]
		if m.TournamentID != tournamentID {
			continue
		}
		if round != nil && m.Round != *round {
			continue
		}
		if status != nil && m.Status != *status {
			continue
		}
		copied := *m
		result = append(result, &copied)
	}
	return result, nil
}

func (r *fakeMatchRepo) ListCompletedByRound(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, round int) ([]*models.Match, error) {
	status := models.MatchStatusCompleted
	return r.ListByTournament(ctx, tournamentID, &round, &status)
}

func (r *fakeMatchRepo) ListPendingDue(ctx context.Context, currentTime time.Time) ([]*models.Match, error) {
	var result []*models.Match
	for _, id := range r.sortedIDs() {
		m := r.matches[id]
		if m.Status != models.MatchStatusPending {
			continue
		}
		if (m.Team1Ready && m.Team2Ready) || !currentTime.Before(m.ScheduledAt) {
			copied := *m
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *fakeMatchRepo) CountByTournamentAndStatus(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, status models.MatchStatus) (int, error) {
	matches, _ := r.ListByTournament(ctx, tournamentID, nil, &status)
	return len(matches), nil
}

func (r *fakeMatchRepo) CountByTournamentAndRound(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, round int) (int, error) {
	matches, _ := r.ListByTournament(ctx, tournamentID, &round, nil)
	return len(matches), nil
}

func (r *fakeMatchRepo) SetReady(ctx context.Context, exec repositories.SQLExecutor, matchID int, side int) error {
	m, ok := r.matches[matchID]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	switch side {
	case 1:
		m.Team1Ready = true
	case 2:
		m.Team2Ready = true
	default:
		return repositories.ErrMatchInvalidSide
	}
	return nil
}

func (r *fakeMatchRepo) SetConfirmation(ctx context.Context, exec repositories.SQLExecutor, matchID int, side int, declaredWinner bool) error {
	m, ok := r.matches[matchID]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	switch side {
	case 1:
		m.Team1Confirmed = true
		m.Team1Winner = declaredWinner
	case 2:
		m.Team2Confirmed = true
		m.Team2Winner = declaredWinner
	default:
		return repositories.ErrMatchInvalidSide
	}
	return nil
}

func (r *fakeMatchRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, matchID int, status models.MatchStatus) error {
	m, ok := r.matches[matchID]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.Status = status
	return nil
}

func (r *fakeMatchRepo) Complete(ctx context.Context, exec repositories.SQLExecutor, matchID int, winnerTeamID int) error {
	m, ok := r.matches[matchID]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.Status = models.MatchStatusCompleted
	m.WinnerTeamID = &winnerTeamID
	return nil
}

func (r *fakeMatchRepo) sortedIDs() []int {
	ids := make([]int, 0, len(r.matches))
	for id := range r.matches {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

type fakeResultRepo struct {
	results map[int]*models.MatchResult
	nextID  int
}

func newFakeResultRepo() *fakeResultRepo {
	return &fakeResultRepo{results: make(map[int]*models.MatchResult), nextID: 1}
}

func (r *fakeResultRepo) Create(ctx context.Context, exec repositories.SQLExecutor, result *models.MatchResult) error {
	if _, ok := r.results[result.MatchID]; ok {
		return repositories.ErrMatchResultExists
	}
	result.ID = r.nextID
	r.nextID++
	stored := *result
	r.results[result.MatchID] = &stored
	return nil
}

func (r *fakeResultRepo) GetByMatchID(ctx context.Context, matchID int) (*models.MatchResult, error) {
	result, ok := r.results[matchID]
	if !ok {
		return nil, repositories.ErrMatchResultNotFound
	}
	copied := *result
	return &copied, nil
}

func (r *fakeResultRepo) GetLatestByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (*models.MatchResult, error) {
	var latest *models.MatchResult
	for _, result := range r.results {
		if latest == nil ||
			result.CompletedAt.After(latest.CompletedAt) ||
			(result.CompletedAt.Equal(latest.CompletedAt) && result.MatchID > latest.MatchID) {
			copied := *result
			latest = &copied
		}
	}
	if latest == nil {
		return nil, repositories.ErrMatchResultNotFound
	}
	return latest, nil
}

type fakeLogRepo struct {
	logs   []*models.MatchLog
	nextID int
}

func newFakeLogRepo() *fakeLogRepo {
	return &fakeLogRepo{nextID: 1}
}

func (r *fakeLogRepo) Create(ctx context.Context, exec repositories.SQLExecutor, log *models.MatchLog) error {
	log.ID = r.nextID
	r.nextID++
	log.CreatedAt = time.Now()
	stored := *log
	r.logs = append(r.logs, &stored)
	return nil
}

func (r *fakeLogRepo) ListByMatch(ctx context.Context, matchID int) ([]*models.MatchLog, error) {
	var result []*models.MatchLog
	for _, log := range r.logs {
		if log.MatchID == matchID {
			copied := *log
			result = append(result, &copied)
		}
	}
	return result, nil
}

type fakeTeamRepo struct {
	teams map[int]*models.Team
}

func newFakeTeamRepo() *fakeTeamRepo {
	return &fakeTeamRepo{teams: make(map[int]*models.Team)}
}

func (r *fakeTeamRepo) add(t models.Team) *models.Team {
	stored := t
	r.teams[t.ID] = &stored
	return &stored
}

func (r *fakeTeamRepo) Create(ctx context.Context, t *models.Team) error {
	for _, existing := range r.teams {
		if existing.Name == t.Name {
			return repositories.ErrTeamNameConflict
		}
	}
	t.ID = len(r.teams) + 1
	t.CreatedAt = time.Now()
	stored := *t
	r.teams[t.ID] = &stored
	return nil
}

func (r *fakeTeamRepo) GetByID(ctx context.Context, id int) (*models.Team, error) {
	t, ok := r.teams[id]
	if !ok {
		return nil, repositories.ErrTeamNotFound
	}
	copied := *t
	return &copied, nil
}

func (r *fakeTeamRepo) ListByIDs(ctx context.Context, exec repositories.SQLExecutor, ids []int) ([]*models.Team, error) {
	var result []*models.Team
	for _, id := range ids {
		if t, ok := r.teams[id]; ok {
			copied := *t
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *fakeTeamRepo) UpdateLogoKey(ctx context.Context, teamID int, logoKey *string) error {
	t, ok := r.teams[teamID]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	t.LogoKey = logoKey
	return nil
}

type fakeOpsNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *fakeOpsNotifier) Alert(ctx context.Context, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	return nil
}

func (n *fakeOpsNotifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

type fakeAdvancer struct {
	calls []int
}

func (a *fakeAdvancer) EvaluateTournament(ctx context.Context, tournamentID int, now time.Time) error {
	a.calls = append(a.calls, tournamentID)
	return nil
}

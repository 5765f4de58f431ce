package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/arenagg/arena-server/middleware"
	"github.com/arenagg/arena-server/models"
	"github.com/arenagg/arena-server/repositories"
	"github.com/arenagg/arena-server/services"
)

type TournamentHandler struct {
	tournamentService services.TournamentService
	matchService      services.MatchService
}

func NewTournamentHandler(ts services.TournamentService, ms services.MatchService) *TournamentHandler {
	return &TournamentHandler{
		tournamentService: ts,
		matchService:      ms,
	}
}

type createTournamentRequest struct {
	Name           string    `json:"name"`
	Game           *string   `json:"game"`
	TeamCount      int       `json:"team_count"`
	PlayersPerTeam int       `json:"players_per_team"`
	PrizePool      *int64    `json:"prize_pool"`
	StartDate      time.Time `json:"start_date"`
	CreatorEmail   string    `json:"creator_email"`
}

// CreateHandler обрабатывает POST /tournaments
func (h *TournamentHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	var req createTournamentRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.tournamentService.Create(r.Context(), services.CreateTournamentInput{
		Name:           req.Name,
		Game:           req.Game,
		TeamCount:      req.TeamCount,
		PlayersPerTeam: req.PlayersPerTeam,
		PrizePool:      req.PrizePool,
		StartDate:      req.StartDate,
		CreatorEmail:   req.CreatorEmail,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListHandler обрабатывает GET /tournaments?status=&limit=&offset=
func (h *TournamentHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	filter := repositories.ListTournamentsFilter{}

	if raw := r.URL.Query().Get("status"); raw != "" {
		status := models.TournamentStatus(raw)
		if !status.Valid() {
			badRequestResponse(w, r, errInvalidStatusFilter)
			return
		}
		filter.Status = &status
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 {
			filter.Limit = limit
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if offset, err := strconv.Atoi(raw); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}

	tournaments, err := h.tournamentService.List(r.Context(), filter)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournaments": tournaments}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetByIDHandler обрабатывает GET /tournaments/{tournamentID}
func (h *TournamentHandler) GetByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	details, err := h.tournamentService.GetByID(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, details, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RegisterEntryHandler обрабатывает POST /tournaments/{tournamentID}/entries
func (h *TournamentHandler) RegisterEntryHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	teamID, err := middleware.GetTeamIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "team membership required to register")
		return
	}

	entry, err := h.tournamentService.RegisterEntry(r.Context(), tournamentID, teamID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"entry": entry}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListMatchesHandler обрабатывает GET /tournaments/{tournamentID}/matches?round=&status=
func (h *TournamentHandler) ListMatchesHandler(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var round *int
	if raw := r.URL.Query().Get("round"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 1 {
			badRequestResponse(w, r, errInvalidRoundFilter)
			return
		}
		round = &value
	}
	var status *models.MatchStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		value := models.MatchStatus(raw)
		if !value.Valid() {
			badRequestResponse(w, r, errInvalidStatusFilter)
			return
		}
		status = &value
	}

	matches, err := h.matchService.ListTournamentMatches(r.Context(), tournamentID, round, status)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"matches": matches}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

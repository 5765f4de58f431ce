package handlers

import (
	"net/http"
	"time"

	"github.com/arenagg/arena-server/middleware"
	"github.com/arenagg/arena-server/services"
)

type MatchHandler struct {
	matchService services.MatchService
}

func NewMatchHandler(ms services.MatchService) *MatchHandler {
	return &MatchHandler{matchService: ms}
}

// GetByIDHandler обрабатывает GET /matches/{matchID}
func (h *MatchHandler) GetByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.GetMatch(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListEventsHandler обрабатывает GET /matches/{matchID}/events
func (h *MatchHandler) ListEventsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	events, err := h.matchService.ListMatchEvents(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"events": events}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// MarkReadyHandler обрабатывает POST /matches/{matchID}/ready
func (h *MatchHandler) MarkReadyHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	teamID, err := middleware.GetTeamIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "team membership required")
		return
	}

	if err := h.matchService.MarkReady(r.Context(), matchID, teamID, time.Now()); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"status": "ready"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type confirmResultRequest struct {
	WinnerTeamID int `json:"winner_team_id"`
	Team1Score   int `json:"team1_score"`
	Team2Score   int `json:"team2_score"`
}

// ConfirmResultHandler обрабатывает POST /matches/{matchID}/result
func (h *MatchHandler) ConfirmResultHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	teamID, err := middleware.GetTeamIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "team membership required")
		return
	}

	var req confirmResultRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	outcome, err := h.matchService.ConfirmResult(r.Context(), matchID, teamID,
		req.WinnerTeamID, req.Team1Score, req.Team2Score, time.Now())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"outcome": outcome}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

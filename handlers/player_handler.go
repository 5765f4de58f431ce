package handlers

import (
	"net/http"
	"strconv"

	"github.com/arenagg/arena-server/services"
)

type PlayerHandler struct {
	playerService      services.PlayerService
	leaderboardService services.LeaderboardService
}

func NewPlayerHandler(ps services.PlayerService, ls services.LeaderboardService) *PlayerHandler {
	return &PlayerHandler{
		playerService:      ps,
		leaderboardService: ls,
	}
}

// GetProfileHandler обрабатывает GET /players/{playerID}
func (h *PlayerHandler) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "playerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	profile, err := h.playerService.GetProfile(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, profile, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// LeaderboardHandler обрабатывает GET /leaderboard?limit=
func (h *PlayerHandler) LeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil {
			limit = value
		}
	}

	players, err := h.leaderboardService.TopPlayers(r.Context(), limit)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"players": players}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

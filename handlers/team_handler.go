package handlers

import (
	"net/http"

	"github.com/arenagg/arena-server/middleware"
	"github.com/arenagg/arena-server/services"
)

const maxLogoSize = 5 << 20 // 5MB

type TeamHandler struct {
	teamService services.TeamService
}

func NewTeamHandler(ts services.TeamService) *TeamHandler {
	return &TeamHandler{teamService: ts}
}

type createTeamRequest struct {
	Name string `json:"name"`
}

// CreateHandler обрабатывает POST /teams
func (h *TeamHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	var req createTeamRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	team, err := h.teamService.Create(r.Context(), req.Name)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"team": team}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetByIDHandler обрабатывает GET /teams/{teamID}
func (h *TeamHandler) GetByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "teamID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	team, err := h.teamService.GetByID(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"team": team}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UploadLogoHandler обрабатывает POST /teams/{teamID}/logo (multipart, поле "logo").
// Загружать логотип может только участник команды.
func (h *TeamHandler) UploadLogoHandler(w http.ResponseWriter, r *http.Request) {
	teamID, err := getIDFromURL(r, "teamID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	callerTeamID, err := middleware.GetTeamIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "team membership required")
		return
	}
	if callerTeamID != teamID {
		forbiddenResponse(w, r, "only team members can change the team logo")
		return
	}

	if err := r.ParseMultipartForm(maxLogoSize); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	file, header, err := r.FormFile("logo")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	defer file.Close()

	team, err := h.teamService.UploadLogo(r.Context(), teamID, header.Header.Get("Content-Type"), file)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"team": team}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

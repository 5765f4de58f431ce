package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ресурс не найден (универсальная)
	ErrNotFound = errors.New("requested resource not found")

	// Ошибки валидации и бизнес-правил
	ErrValidationFailed           = errors.New("validation failed")
	ErrTournamentNameRequired     = errors.New("tournament name is required")
	ErrTournamentInvalidCapacity  = errors.New("tournament team count must be a power of two between 2 and 8")
	ErrTournamentInvalidTeamSize  = errors.New("players per team must be positive")
	ErrTournamentInvalidStartDate = errors.New("tournament start date must be in the future")
	ErrTournamentNotUpcoming      = errors.New("tournament registration is closed")
	ErrTournamentFull             = errors.New("tournament registration is full")
	ErrRegistrationConflict       = errors.New("team is already registered for this tournament")
	ErrInvalidWinner              = errors.New("claimed winner is not part of the match")
	ErrInconsistentScore          = errors.New("declared winner's score must be strictly greater than the opponent's")
	ErrMatchAlreadyCompleted      = errors.New("match is already completed")

	// Ошибки авторизации и доступа
	ErrForbiddenOperation  = errors.New("operation not allowed for the current caller")
	ErrNotMatchParticipant = errors.New("caller's team is not part of the match")

	// Ошибки, специфичные для сущностей
	ErrPlayerNotFound     = errors.New("player not found")
	ErrTeamNotFound       = errors.New("team not found")
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrMatchNotFound      = errors.New("match not found")

	// Турнир удалён как неконсистентный (нечётное/нулевое число участников).
	ErrTournamentCanceled = errors.New("tournament has been canceled and removed")
)

package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/arenagg/arena-server/handlers"
	"github.com/arenagg/arena-server/middleware"
)

// SetupRoutes собирает все маршруты API.
func SetupRoutes(
	router *chi.Mux,
	jwtSecret string,
	tournamentHandler *handlers.TournamentHandler,
	matchHandler *handlers.MatchHandler,
	teamHandler *handlers.TeamHandler,
	playerHandler *handlers.PlayerHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticate(jwtSecret)

	router.Route("/tournaments", func(r chi.Router) {
		r.Get("/", tournamentHandler.ListHandler)
		r.Get("/{tournamentID}", tournamentHandler.GetByIDHandler)
		r.Get("/{tournamentID}/matches", tournamentHandler.ListMatchesHandler)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Post("/", tournamentHandler.CreateHandler)
			r.Post("/{tournamentID}/entries", tournamentHandler.RegisterEntryHandler)
		})
	})

	router.Route("/matches", func(r chi.Router) {
		r.Get("/{matchID}", matchHandler.GetByIDHandler)
		r.Get("/{matchID}/events", matchHandler.ListEventsHandler)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Post("/{matchID}/ready", matchHandler.MarkReadyHandler)
			r.Post("/{matchID}/result", matchHandler.ConfirmResultHandler)
		})
	})

	router.Route("/teams", func(r chi.Router) {
		r.Get("/{teamID}", teamHandler.GetByIDHandler)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Post("/", teamHandler.CreateHandler)
			r.Post("/{teamID}/logo", teamHandler.UploadLogoHandler)
		})
	})

	router.Get("/players/{playerID}", playerHandler.GetProfileHandler)
	router.Get("/leaderboard", playerHandler.LeaderboardHandler)

	router.Get("/ws/tournaments/{tournamentID}", webSocketHandler.ServeWs)
}

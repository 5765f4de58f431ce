package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"

	"github.com/arenagg/arena-server/brackets"
	"github.com/arenagg/arena-server/config"
	"github.com/arenagg/arena-server/db"
	"github.com/arenagg/arena-server/handlers"
	"github.com/arenagg/arena-server/repositories"
	api "github.com/arenagg/arena-server/routes"
	"github.com/arenagg/arena-server/services"
	"github.com/arenagg/arena-server/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()
	logger.Info("database connection established")

	if err := db.Migrate(dbConn); err != nil {
		logger.Error("failed to run database migrations", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("database schema is up to date")

	// Хранилище логотипов (Cloudflare R2). Опционально.
	var uploader storage.FileUploader
	if cfg.R2AccountID != "" {
		uploader, err = storage.NewR2Uploader(context.Background(), storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("R2 uploader initialized")
	} else {
		logger.Warn("R2 is not configured, logo uploads are disabled")
	}

	// Кеш рейтинг-листа. Опционально, при отсутствии читаем из базы.
	var leaderboard services.Leaderboard
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer redisClient.Close()
		leaderboard = services.NewRedisLeaderboard(redisClient)
		logger.Info("redis leaderboard initialized", slog.String("addr", cfg.RedisAddr))
	} else {
		logger.Warn("redis is not configured, leaderboard is served from the database")
	}

	// Операторские алерты в telegram. Опционально.
	var opsNotifier services.OpsNotifier = services.NoopOpsNotifier{}
	if cfg.TelegramBotToken != "" {
		opsNotifier, err = services.NewTelegramOpsNotifier(cfg.TelegramBotToken, cfg.TelegramOpsChatID)
		if err != nil {
			logger.Error("failed to initialize telegram notifier", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("telegram ops notifier initialized")
	}

	emailService := services.NewEmailService(services.EmailConfig{
		Host: cfg.SMTPHost,
		Port: cfg.SMTPPort,
		User: cfg.SMTPUser,
		Pass: cfg.SMTPPass,
		From: cfg.SMTPFrom,
	})

	wsHub := brackets.NewHub(logger)
	go wsHub.Run()

	txManager := repositories.NewSQLTxManager(dbConn)
	playerRepo := repositories.NewPostgresPlayerRepository(dbConn)
	teamRepo := repositories.NewPostgresTeamRepository(dbConn)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	entryRepo := repositories.NewPostgresEntryRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	resultRepo := repositories.NewPostgresMatchResultRepository(dbConn)
	logRepo := repositories.NewPostgresMatchLogRepository(dbConn)

	ratingService := services.NewRatingService(playerRepo, logRepo, leaderboard, logger)
	pairingService := services.NewPairingService(
		tournamentRepo, entryRepo, matchRepo, playerRepo,
		ratingService, emailService, wsHub, logger,
	)
	advancementService := services.NewAdvancementService(
		txManager, tournamentRepo, matchRepo, resultRepo, playerRepo, teamRepo,
		pairingService, emailService, wsHub, logger,
	)
	matchService := services.NewMatchService(
		txManager, matchRepo, resultRepo, logRepo, playerRepo,
		ratingService, emailService, opsNotifier, wsHub, advancementService,
		rand.New(rand.NewSource(time.Now().UnixNano())), logger,
	)
	tournamentService := services.NewTournamentService(
		txManager, tournamentRepo, entryRepo, matchRepo,
		pairingService, emailService, logger,
	)
	teamService := services.NewTeamService(teamRepo, playerRepo, uploader, logger)
	playerService := services.NewPlayerService(playerRepo)
	leaderboardService := services.NewLeaderboardService(leaderboard, playerRepo, logger)

	// Планировщик: запуск турниров, авторазрешение матчей, продвижение сетки.
	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()
	go func() {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		logger.Info("scheduler started", slog.Duration("interval", cfg.SweepInterval))

		runSweeps := func(now time.Time) {
			if err := tournamentService.SweepTournaments(schedulerCtx, now); err != nil {
				logger.Error("tournament sweep failed", slog.Any("error", err))
			}
			if err := matchService.SweepPendingMatches(schedulerCtx, now); err != nil {
				logger.Error("match sweep failed", slog.Any("error", err))
			}
			if err := advancementService.SweepOngoingTournaments(schedulerCtx, now); err != nil {
				logger.Error("advancement sweep failed", slog.Any("error", err))
			}
		}

		runSweeps(time.Now())
		for {
			select {
			case <-schedulerCtx.Done():
				return
			case now := <-ticker.C:
				runSweeps(now)
			}
		}
	}()

	tournamentHandler := handlers.NewTournamentHandler(tournamentService, matchService)
	matchHandler := handlers.NewMatchHandler(matchService)
	teamHandler := handlers.NewTeamHandler(teamService)
	playerHandler := handlers.NewPlayerHandler(playerService, leaderboardService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, logger)

	router := chi.NewRouter()
	api.SetupRoutes(router, cfg.JWTSecretKey,
		tournamentHandler, matchHandler, teamHandler, playerHandler, webSocketHandler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		stopScheduler()

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/onepay/onepay-api/internal/config"
	"github.com/onepay/onepay-api/internal/domain/admin"
	"github.com/onepay/onepay-api/internal/domain/ledger"
	"github.com/onepay/onepay-api/internal/domain/notification"
	"github.com/onepay/onepay-api/internal/domain/ppob"
	"github.com/onepay/onepay-api/internal/middleware"
	"github.com/onepay/onepay-api/internal/pkg/database"
	"github.com/onepay/onepay-api/internal/pkg/digiflazz"
	"github.com/onepay/onepay-api/internal/pkg/fcm"
	"github.com/onepay/onepay-api/internal/pkg/jwt"
	"github.com/onepay/onepay-api/internal/pkg/logger"
	"github.com/onepay/onepay-api/internal/pkg/response"
)

func main() {
	cfg := config.Load()

	logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Env,
	})

	log.Info().Str("env", cfg.Env).Str("port", cfg.Port).Msg("starting onepay api")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer database.ClosePostgres(db)

	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, FCM token caching disabled")
		redisClient = nil
	}
	if redisClient != nil {
		defer database.CloseRedis(redisClient)
	}

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	authMiddleware := middleware.Auth(jwtService)

	providerClient := digiflazz.NewClient(digiflazz.Config{
		BaseURL:       cfg.DigiflazzBaseURL,
		Username:      cfg.DigiflazzUsername,
		DevKey:        cfg.DigiflazzDevKey,
		ProdKey:       cfg.DigiflazzProdKey,
		UseProduction: cfg.DigiflazzUseProduction,
		Timeout:       cfg.DigiflazzTimeout,
	})

	ledgerRepo := ledger.NewRepository(db)
	ledgerService := ledger.NewService(ledgerRepo)
	ledgerHandler := ledger.NewHandler(ledgerService)

	ppobRepo := ppob.NewRepository(db)
	ppobService := ppob.NewService(ppobRepo, ledgerService, providerClient,
		digiflazz.DefaultOutcomePolicy{}, cfg.DigiflazzConfirmDelay)
	ppobHandler := ppob.NewHandler(ppobService)

	notificationRepo := notification.NewRepository(db)
	notificationHandler := buildNotificationHandler(cfg, redisClient, notificationRepo)

	adminRepo := admin.NewRepository(db)
	adminHandler := admin.NewHandler(adminRepo)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := db.PingContext(req.Context()); err != nil {
			response.Error(w, http.StatusServiceUnavailable, "UNHEALTHY", "database unreachable")
			return
		}
		response.OK(w, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/", ledgerHandler.Routes(authMiddleware))
		r.Mount("/digiflazz", ppobHandler.Routes(authMiddleware))
		r.Mount("/admin", adminHandler.Routes(authMiddleware))
		if notificationHandler != nil {
			r.Mount("/notifications", notificationHandler.Routes(authMiddleware))
		}
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("server stopped")
}

// buildNotificationHandler wires the push stack. A missing or unreadable
// Firebase credential disables the notification endpoints instead of
// failing startup; the rest of the API keeps working without push.
func buildNotificationHandler(cfg *config.Config, cache *redis.Client, repo *notification.Repository) *notification.Handler {
	account, err := fcm.LoadServiceAccount(cfg.FirebaseCredentialsFile)
	if err != nil {
		log.Warn().Err(err).Msg("firebase credentials unavailable, notifications disabled")
		return nil
	}

	tokenSource, err := fcm.NewTokenSource(account, cache)
	if err != nil {
		log.Warn().Err(err).Msg("invalid firebase credentials, notifications disabled")
		return nil
	}

	fcmClient := fcm.NewClient(account.ProjectID)
	svc := notification.NewService(repo, fcmClient, tokenSource, cfg.PushConcurrency)
	return notification.NewHandler(svc)
}

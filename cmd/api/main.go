package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diagnosis/passwordless-api/internal/alias"
	"github.com/diagnosis/passwordless-api/internal/demo"
	"github.com/diagnosis/passwordless-api/internal/dispatch"
	"github.com/diagnosis/passwordless-api/internal/http/handlers"
	mw "github.com/diagnosis/passwordless-api/internal/http/middleware"
	"github.com/diagnosis/passwordless-api/internal/mailer"
	"github.com/diagnosis/passwordless-api/internal/ratelimit"
	"github.com/diagnosis/passwordless-api/internal/repo/postgres"
	"github.com/diagnosis/passwordless-api/internal/risk"
	"github.com/diagnosis/passwordless-api/internal/service"
	"github.com/diagnosis/passwordless-api/pkg/config"
	"github.com/diagnosis/passwordless-api/pkg/database"
	"github.com/diagnosis/passwordless-api/pkg/events"
	"github.com/diagnosis/passwordless-api/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

func main() {
	cfg := config.Load()

	// Connect to database
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Connect to event bus
	var bus events.EventBus
	natsBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Warn("NATS unavailable, events disabled", "error", err)
		bus = events.NoopBus{}
	} else {
		bus = natsBus
	}
	defer bus.Close()

	// Rate limiter
	limiter, err := ratelimit.NewRedisLimiter(cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer limiter.Close()

	// Repositories
	userRepo := postgres.NewUserRepository(pool)
	tokenRepo := postgres.NewTokenRepository(pool)

	// Hourly sweep of consumed tokens older than a day
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			deleted, err := tokenRepo.DeleteExpired(ctx, 24*time.Hour)
			if err != nil {
				logger.Warn("Token sweep failed", "error", err)
				continue
			}
			if deleted > 0 {
				logger.Info("Swept inactive tokens", "deleted", deleted)
			}
		}
	}()

	// Token lifecycle
	bindings := alias.Default()
	registry := demo.NewRegistry(cfg.Passwordless.DemoUsers)
	tokenService := service.NewTokenService(tokenRepo, userRepo, bindings, registry, cfg.Passwordless.TokenExpiry)

	// Dispatchers
	emailDispatcher, err := dispatch.NewEmailDispatcher(
		selectMailer(cfg),
		cfg.Passwordless.EmailFrom,
		cfg.Passwordless.EmailSubject,
		cfg.Passwordless.EmailPlaintext,
		cfg.Passwordless.EmailHTML,
	)
	if err != nil {
		logger.Error("Failed to build email dispatcher", "error", err)
		os.Exit(1)
	}
	smsDispatcher := dispatch.NewSMSDispatcher(
		cfg.Twilio,
		cfg.Passwordless.MobileFrom,
		cfg.Passwordless.MobileMessage,
		cfg.Passwordless.TestSuppression,
	)
	bridge := dispatch.NewVerifyBridge(cfg.Twilio)
	riskClient := risk.NewClient(cfg.Recaptcha)

	flow := service.NewFlowService(tokenService, userRepo, emailDispatcher, smsDispatcher, bridge, riskClient, bus, cfg)

	// Handlers
	h := handlers.New(flow, limiter, cfg)

	// Router
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.TokenRequestRateLimit)
			r.Post("/email", h.RequestEmailToken)
			r.Post("/mobile", h.RequestMobileToken)
		})
		r.Post("/token", h.Exchange)
	})

	r.Route("/verify", func(r chi.Router) {
		r.Use(h.RequireJWT)
		r.Group(func(r chi.Router) {
			r.Use(h.TokenRequestRateLimit)
			r.Post("/email", h.RequestEmailVerification)
			r.Post("/mobile", h.RequestMobileVerification)
		})
		r.Post("/", h.VerifyAlias)
	})

	// Start server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Shutdown error", "error", err)
		}
	}()

	logger.Info("Starting passwordless API", "port", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}

func selectMailer(cfg *config.Config) mailer.Sender {
	if cfg.Email.DevMode {
		return mailer.NewDevMailer()
	}
	if cfg.Email.MailerSendKey != "" {
		return mailer.NewMailerSend(cfg.Email.MailerSendKey, cfg.Passwordless.EmailFromName, cfg.Passwordless.EmailFrom)
	}
	return mailer.NewSMTPMailer(
		cfg.Email.SMTPHost,
		cfg.Email.SMTPPort,
		cfg.Passwordless.EmailFrom,
		cfg.Email.SMTPUser,
		cfg.Email.SMTPPass,
		cfg.Email.SMTPUseTLS,
	)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/saqrlabs/trustcore/internal/auth"
	"github.com/saqrlabs/trustcore/internal/background"
	"github.com/saqrlabs/trustcore/internal/config"
	"github.com/saqrlabs/trustcore/internal/database"
	"github.com/saqrlabs/trustcore/internal/events"
	"github.com/saqrlabs/trustcore/internal/fraud"
	"github.com/saqrlabs/trustcore/internal/handlers"
	middlewareCustom "github.com/saqrlabs/trustcore/internal/middleware"
	"github.com/saqrlabs/trustcore/internal/models"
	"github.com/saqrlabs/trustcore/internal/repositories"
	"github.com/saqrlabs/trustcore/internal/routes"
	"github.com/saqrlabs/trustcore/internal/services"
	pkgauth "github.com/saqrlabs/trustcore/pkg/auth"
	pkghttp "github.com/saqrlabs/trustcore/pkg/http"
	pkglogger "github.com/saqrlabs/trustcore/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	loginAttemptRepo := repositories.NewLoginAttemptRepository(db)
	claimTokenRepo := repositories.NewClaimTokenRepository(db)
	activityRepo := repositories.NewActivityRepository(db)
	trustStateRepo := repositories.NewTrustStateRepository(db)
	assessmentRepo := repositories.NewRiskAssessmentRepository(db)
	rewardLedgerRepo := repositories.NewRewardLedgerRepository(db)
	securityEventRepo := repositories.NewSecurityEventRepository(db)

	// Event bus and subscribers
	bus := events.NewBus(256, logger)
	if cfg.Email.Enabled {
		notifier, err := events.NewSESNotifier(cfg.Email.AWSRegion, cfg.Email.FromAddress, userRepo, logger)
		if err != nil {
			logger.Error("failed to initialize SES notifier", slog.Any("error", err))
			os.Exit(1)
		}
		bus.Subscribe(notifier)
	}

	// Fraud engine
	engine := fraud.NewEngine(activityRepo, userRepo, rewardLedgerRepo, loginAttemptRepo, fraud.Config{
		MaxAdsPerHour:        cfg.Security.MaxAdsPerHour,
		MaxAdsPerDay:         cfg.Security.MaxAdsPerDay,
		MinWatchSeconds:      cfg.Security.MinWatchSeconds,
		MaxWatchSeconds:      cfg.Security.MaxWatchSeconds,
		NominalAdSeconds:     cfg.Security.NominalAdSeconds,
		MaxDevicesPerAccount: cfg.Security.MaxDevicesPerAccount,
		MaxAccountsPerIP:     cfg.Security.MaxAccountsPerIP,
		PointsPerView:        cfg.Security.PointsPerView,
		DailyClaimLimit:      cfg.Security.DailyClaimLimit,
	}, logger)

	// Initialize services
	auditLogger := pkglogger.NewAuditLogger(logger)
	auditService := services.NewAuditService(securityEventRepo, logger)

	trustService := services.NewTrustService(engine, trustStateRepo, assessmentRepo, auditService, bus, services.TrustPolicyConfig{
		LowRiskThreshold:    cfg.Security.LowRiskThreshold,
		MediumRiskThreshold: cfg.Security.MediumRiskThreshold,
		HighRiskThreshold:   cfg.Security.HighRiskThreshold,
		WarningThreshold:    cfg.Security.WarningThreshold,
		BanThreshold:        cfg.Security.BanThreshold,
		SuspensionDuration:  cfg.Security.SuspensionDuration,
		BatchSize:           cfg.Security.RescoreBatchSize,
	}, logger)

	loginGuard := services.NewLoginGuardService(loginAttemptRepo, services.LoginGuardConfig{
		MaxAttempts:     cfg.Security.MaxLoginAttempts,
		AttemptWindow:   cfg.Security.LoginAttemptWindow,
		LockoutDuration: cfg.Security.LockoutDuration,
	}, bus, logger)

	tokenIssuer := services.NewTokenIssuerService(claimTokenRepo, trustService, services.TokenIssuerConfig{
		TokenTTL:           cfg.Security.TokenTTL,
		MaxTokensPerMinute: cfg.Security.MaxTokensPerMinute,
	}, logger)

	redeemService := services.NewRedeemService(claimTokenRepo, activityRepo, rewardLedgerRepo, db, auditService, bus, services.RedeemConfig{
		MinWatchSeconds: cfg.Security.MinWatchSeconds,
		MaxWatchSeconds: cfg.Security.MaxWatchSeconds,
		PointsPerView:   cfg.Security.PointsPerView,
		DailyClaimLimit: cfg.Security.DailyClaimLimit,
	}, logger)

	// Initialize token manager
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)

	authService := services.NewAuthService(userRepo, loginGuard, trustService, tokenManager, logger, auditLogger)

	// Initialize handlers
	ipConfig := pkghttp.NewIPConfig(cfg.Server.TrustedProxies)
	authHandler := handlers.NewAuthHandler(authService, ipConfig)
	rewardsHandler := handlers.NewRewardsHandler(tokenIssuer, redeemService, ipConfig, auditLogger)
	securityHandler := handlers.NewSecurityHandler(trustService)

	// Background workers
	cleanupManager := background.NewCleanupManager(claimTokenRepo, loginAttemptRepo, trustStateRepo, background.CleanupConfig{
		Interval:         cfg.Security.CleanupInterval,
		AttemptRetention: cfg.Security.AttemptRetention,
		TokenRetention:   cfg.Security.TokenRetention,
	}, logger)
	rescoreManager := background.NewRescoreManager(trustService, cfg.Security.RescoreInterval, logger)

	// Bootstrap first admin user if configured
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminUser(ctx, userRepo, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	cancel()

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.NewCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, authHandler, rewardsHandler, securityHandler, tokenManager, userRepo)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start background workers
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	go bus.Start(workerCtx)
	go cleanupManager.Start(workerCtx)
	go rescoreManager.Start(workerCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	workerCancel()
	cleanupManager.Stop()
	rescoreManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// ensureAdminUser creates the first admin user if ADMIN_EMAIL and ADMIN_PASSWORD are set
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, logger *slog.Logger) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin user creation")
		return nil
	}

	_, err := userRepo.GetByEmail(ctx, models.NormalizeIdentity(adminEmail))
	if err == nil {
		logger.Info("admin user already exists")
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}

	hashedPassword, err := pkgauth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := &models.User{
		Email:        models.NormalizeIdentity(adminEmail),
		PasswordHash: hashedPassword,
		Name:         "Admin",
		Role:         "admin",
	}

	if _, err := userRepo.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created successfully")
	return nil
}

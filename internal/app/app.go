package app

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

	"auxilium-api/internal/config"
	"auxilium-api/internal/database"
	"auxilium-api/internal/handler"
	"auxilium-api/internal/ids"
	"auxilium-api/internal/metrics"
	"auxilium-api/internal/middleware"
	"auxilium-api/internal/ratelimit"
	"auxilium-api/internal/recaptcha"
	"auxilium-api/internal/repository"
	"auxilium-api/internal/router"
	"auxilium-api/internal/service"
)

const limiterSweepInterval = time.Minute

type captchaVerifier interface {
	Verify(ctx context.Context, token string, remoteIP string) error
}

type App struct {
	server       *http.Server
	cleanupFuncs []func()
}

// Build connects both stores and wires every service behind the HTTP router.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.cleanupFuncs = append(a.cleanupFuncs, db.Close)

	if err := db.EnsureSchema(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	slog.Info("connecting to document store")
	docs, err := database.NewMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to connect to document store: %w", err)
	}
	a.cleanupFuncs = append(a.cleanupFuncs, func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := docs.Close(closeCtx); err != nil {
			slog.Warn("document store disconnect failed", "error", err)
		}
	})

	if err := docs.EnsureIndexes(ctx, cfg.MongoCasesCollection, cfg.MongoUsersCollection); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to ensure document indexes: %w", err)
	}

	userRepo := repository.NewUserRepository(db.Pool)
	caseRepo := repository.NewCaseRepository(docs.Collection(cfg.MongoCasesCollection))
	profileRepo := repository.NewProfileRepository(docs.Collection(cfg.MongoUsersCollection))
	slog.Info("stores ready")

	tokens, err := service.NewTokenService(
		cfg.JWTSecret, cfg.JWTAlgorithm, cfg.JWTAccessTTL, cfg.JWTRefreshTTL,
		service.WithTokenIDs(ids.NewTokenIDs(time.Now)),
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	limiter := ratelimit.NewSlidingWindow(cfg.MaxLoginAttempts, cfg.RateLimitWindowMinutes)
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	go sweepLimiter(sweepCtx, limiter)
	a.cleanupFuncs = append(a.cleanupFuncs, sweepCancel)

	registry := metrics.New()

	authService := service.NewAuthService(service.AuthDependencies{
		Credentials: userRepo,
		Profiles:    profileRepo,
		Cases:       caseRepo,
		Tokens:      tokens,
		Hasher:      service.NewPasswordHasher(service.DefaultArgon2Params),
		Limiter:     limiter,
		Captcha:     newCaptchaVerifier(cfg),
		IDs:         ids.NewGenerator(cfg.InstanceQualifiedDNS),
		Observer:    registry,
	})
	caseService := service.NewCaseService(caseRepo)
	userService := service.NewUserService(userRepo, profileRepo)

	appRouter := router.New(cfg, registry, middleware.NewAuthMiddleware(authService), router.Handlers{
		Auth:   handler.NewAuthHandler(authService),
		Case:   handler.NewCaseHandler(caseService),
		User:   handler.NewUserHandler(userService),
		Health: handler.NewHealthHandler(map[string]handler.Pinger{
			"postgres": db,
			"mongo":    docs,
		}),
	})

	a.server = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return a, nil
}

func newCaptchaVerifier(cfg *config.Config) captchaVerifier {
	if !cfg.RecaptchaEnabled {
		slog.Warn("reCAPTCHA verification is disabled")
		return recaptcha.Disabled{}
	}
	return recaptcha.NewVerifier(cfg.RecaptchaSecretKey, cfg.RecaptchaScoreThreshold, cfg.RecaptchaVerifyURL, cfg.RecaptchaTimeout)
}

func sweepLimiter(ctx context.Context, limiter *ratelimit.SlidingWindow) {
	ticker := time.NewTicker(limiterSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if dropped := limiter.Sweep(); dropped > 0 {
				slog.Debug("login limiter swept", "identifiers", dropped)
			}
		}
	}
}

func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Close releases every resource acquired by Build, newest first.
func (a *App) Close() {
	for i := len(a.cleanupFuncs) - 1; i >= 0; i-- {
		a.cleanupFuncs[i]()
	}
	a.cleanupFuncs = nil
}

func (a *App) Run() error {
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
	case err := <-serveErr:
		a.Close()
		return fmt.Errorf("server failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	shutdownErr := a.server.Shutdown(ctx)
	a.Close()
	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	slog.Info("server stopped")
	return nil
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ronittamrakar/xordon/internal/api"
	"github.com/ronittamrakar/xordon/internal/auth"
	"github.com/ronittamrakar/xordon/internal/config"
	"github.com/ronittamrakar/xordon/internal/coord"
	"github.com/ronittamrakar/xordon/internal/db"
	"github.com/ronittamrakar/xordon/internal/guard"
	"github.com/ronittamrakar/xordon/internal/middleware"
	"github.com/ronittamrakar/xordon/internal/models"
	"github.com/ronittamrakar/xordon/internal/observ"
	"github.com/ronittamrakar/xordon/internal/ratelimit"
	"github.com/ronittamrakar/xordon/internal/rbac"
	"github.com/ronittamrakar/xordon/internal/repository/postgres"
	"github.com/ronittamrakar/xordon/internal/tasks"
	"github.com/ronittamrakar/xordon/internal/tenant"
)

// tokenSweepInterval is how often expired token rows are swept. Lazy
// deletion already keeps expired tokens unusable; the sweep only bounds
// table growth.
const tokenSweepInterval = time.Hour

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()
	pool := database.Pool()

	// Redis is a soft dependency: without it the rate limiter runs on
	// its in-process fallback.
	redisClient, err := db.NewRedis(ctx, cfg.RedisURL, logger)
	if err != nil {
		logger.Warn("redis unavailable, rate limiting is per-instance", zap.Error(err))
	}

	// Stores.
	tokenStore := postgres.NewTokenStore(pool)
	userStore := postgres.NewUserStore(pool)
	workspaceStore := postgres.NewWorkspaceStore(pool)
	companyStore := postgres.NewCompanyStore(pool)
	eventStore := postgres.NewSecurityEventStore(pool)
	taskStore := postgres.NewTaskStore(pool)
	lockStore := postgres.NewLockStore(pool)
	counterStore := postgres.NewCounterStore(pool)
	prober := postgres.NewOwnershipProber(pool)

	audit := observ.NewAuditSink(logger, eventStore)

	// The dev identity override only exists when both gates are open.
	var override *auth.DevIdentityOverride
	if cfg.IsDev() && cfg.AllowDevBypass {
		override = auth.NewDevIdentityOverride(cfg.Env, cfg.AllowDevBypass, cfg.DevUserID)
		logger.Warn("dev identity override is ENABLED", zap.Int64("dev_user_id", cfg.DevUserID))
	}

	authenticator := auth.New(tokenStore, audit, logger, override)
	resolver := tenant.NewResolver(workspaceStore, companyStore, userStore, audit, logger)
	engine := rbac.NewEngine(nil)
	ownership := guard.New(prober)
	locker := coord.NewLocker(lockStore, audit, logger)
	counters := coord.NewCounter(counterStore, locker)
	queue := tasks.NewQueue(taskStore)

	// Rate limiter: redis window when available, always an in-process
	// fallback behind it.
	var primary ratelimit.Store
	if redisClient != nil {
		primary = ratelimit.NewRedisStore(redisClient)
	}
	limiter := ratelimit.New(cfg.RateLimit.Window, map[string]int{
		ratelimit.ScopeAPI:   cfg.RateLimit.APIPerWindow,
		ratelimit.ScopeLogin: cfg.RateLimit.LoginPerWindow,
	}, primary, ratelimit.NewMemoryStore(), logger)

	// Worker.
	worker := tasks.NewWorker(taskStore, logger, tasks.WorkerOptions{
		PollInterval: cfg.Worker.PollInterval,
		BatchSize:    cfg.Worker.BatchSize,
		StaleAfter:   cfg.Worker.StaleAfter,
	})
	worker.Register(api.TaskTypeWelcome, welcomeHandler(counters, logger))
	go worker.Run(ctx)

	go sweepTokens(ctx, authenticator, logger)

	// Handlers.
	authHandler := api.NewAuthHandler(userStore, authenticator, resolver, queue, logger)
	meHandler := api.NewMeHandler(userStore, logger)
	workspaceHandler := api.NewWorkspaceHandler(workspaceStore, resolver, logger)
	companyHandler := api.NewCompanyHandler(companyStore, ownership, logger)

	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	router.GET("/v1/health", func(c *gin.Context) {
		if err := database.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/v1")

	// Public credential endpoints, on the tight login budget.
	public := v1.Group("/auth", middleware.RateLimit(limiter, ratelimit.ScopeLogin, audit))
	public.POST("/signup", authHandler.Signup)
	public.POST("/login", authHandler.Login)

	// Everything else: an address-keyed limit at ingress so requests
	// with missing or invalid tokens are bounded too, then identity,
	// then the per-user budget, then tenancy where a route needs it.
	authed := v1.Group("",
		middleware.RateLimitByIP(limiter, ratelimit.ScopeAPI, audit),
		middleware.Authenticate(authenticator),
		middleware.RateLimit(limiter, ratelimit.ScopeAPI, audit),
	)
	authed.POST("/auth/logout", authHandler.Logout)
	authed.POST("/auth/logout-all", authHandler.LogoutAll)
	authed.GET("/workspaces", workspaceHandler.List)
	authed.POST("/workspaces", workspaceHandler.Create)

	tenanted := authed.Group("", middleware.ResolveTenant(resolver))
	tenanted.GET("/me", meHandler.Me)
	tenanted.GET("/members",
		middleware.RequireRole(engine, rbac.RoleManager), workspaceHandler.Members)
	tenanted.GET("/companies",
		middleware.RequirePermission(engine, "companies.view"), companyHandler.List)
	tenanted.GET("/companies/:id",
		middleware.RequirePermission(engine, "companies.view"), companyHandler.Get)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// welcomeHandler processes signup welcome tasks. Delivery is a stub
// until the mail integration lands; the signups counter moves either
// way so growth dashboards see every signup exactly once per task.
func welcomeHandler(counters *coord.Counter, logger *zap.Logger) tasks.Handler {
	return func(ctx context.Context, task models.Task) error {
		var payload struct {
			UserID      int64 `json:"user_id"`
			WorkspaceID int64 `json:"workspace_id"`
		}
		if err := json.Unmarshal(task.Payload, &payload); err != nil {
			return fmt.Errorf("decode welcome payload: %w", err)
		}

		total, err := counters.Increment(ctx, "signups.welcomed", 1)
		if err != nil {
			return fmt.Errorf("count welcomed signup: %w", err)
		}

		logger.Info("welcome processed",
			zap.Int64("user_id", payload.UserID),
			zap.Int64("workspace_id", payload.WorkspaceID),
			zap.Int64("total_welcomed", total),
		)
		return nil
	}
}

// sweepTokens deletes expired token rows on a slow cadence.
func sweepTokens(ctx context.Context, authenticator *auth.Authenticator, logger *zap.Logger) {
	ticker := time.NewTicker(tokenSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := authenticator.SweepExpired(ctx); err != nil {
				logger.Error("token sweep failed", zap.Error(err))
			}
		}
	}
}

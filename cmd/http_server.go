package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/frahmantamala/kakeibo/api"
	"github.com/frahmantamala/kakeibo/internal"
	"github.com/frahmantamala/kakeibo/internal/auth"
	"github.com/frahmantamala/kakeibo/internal/category"
	categoryStore "github.com/frahmantamala/kakeibo/internal/category/gormstore"
	"github.com/frahmantamala/kakeibo/internal/expense"
	"github.com/frahmantamala/kakeibo/internal/expense/gormstore"
	"github.com/frahmantamala/kakeibo/internal/session"
	"github.com/frahmantamala/kakeibo/internal/transport/rest"
	"github.com/frahmantamala/kakeibo/pkg/logger"
	"github.com/frahmantamala/kakeibo/pkg/ratelimit"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return startHTTPServer(cmd.Context())
	},
}

type Dependencies struct {
	Config        *internal.Config
	SQLDB         *sql.DB
	Sessions      session.Store
	MemorySession *session.MemoryStore
	AuthService   *auth.Service
	GlobalLimiter *ratelimit.Limiter
	LoginLimiter  *ratelimit.Limiter
	Router        *chi.Mux
	APIDoc        *openapi3.T
	Logger        *slog.Logger

	closeSessions func() error
}

func (d *Dependencies) Close() {
	if err := d.closeSessions(); err != nil {
		d.Logger.Error("Session store close error", "error", err)
	}
	if err := d.SQLDB.Close(); err != nil {
		d.Logger.Error("Database close error", "error", err)
	}
}

func startHTTPServer(ctx context.Context) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger.Init(cfg.AppEnv, cfg.Logging.Level)
	lg := logger.LoggerWrapper()

	deps, err := initializeDependencies(ctx, cfg, lg)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close()

	if err := checkSecurityDefaults(ctx, deps); err != nil {
		return err
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           deps.Router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		lg.Info("Starting HTTP server",
			"address", server.Addr,
			"url", fmt.Sprintf("http://localhost:%d", cfg.Server.Port),
			"environment", cfg.AppEnv,
			"database_driver", cfg.Database.Driver,
			"database", cfg.Database.RedactedDSN(),
			"session_store", cfg.Session.Store)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		lg.Info("Shutting down HTTP server", "timeout", cfg.Server.ShutdownTimeout)

		shutdownCtx, cancel := internal.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return deps.GlobalLimiter.RunSweeper(gctx, cfg.RateLimit.SweepInterval)
	})
	g.Go(func() error {
		return deps.LoginLimiter.RunSweeper(gctx, cfg.RateLimit.SweepInterval)
	})
	if deps.MemorySession != nil {
		g.Go(func() error {
			return deps.MemorySession.RunSweeper(gctx, cfg.Session.SweepInterval)
		})
	}

	if err := g.Wait(); err != nil {
		lg.Error("Server stopped with error", "error", err)
		return err
	}

	lg.Info("Server stopped")
	return nil
}

func initializeDependencies(ctx context.Context, cfg *internal.Config, lg *slog.Logger) (*Dependencies, error) {
	apiDoc, err := api.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load API document: %w", err)
	}
	lg.Debug("API document loaded", "version", apiDoc.Info.Version, "paths", apiDoc.Paths.Len())

	gdb, sqlDB, err := initDB(ctx, cfg.Database, lg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	sessions, memSessions, closeSessions, err := initSessionStore(ctx, cfg.Session)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	authService := newAuthService(cfg, sqlDB, sessions, lg)
	if _, err := authService.EnsureDefaultUser(ctx); err != nil {
		_ = closeSessions()
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to provision default user: %w", err)
	}

	sameSite := http.SameSiteStrictMode
	if cfg.IsProduction() {
		sameSite = http.SameSiteLaxMode
	}
	cookies := session.NewCookieCodec(session.CookieOptions{
		Name:     cfg.Security.CookieName,
		Secret:   cfg.Security.SessionSecret,
		Secure:   cfg.Security.CookieSecure,
		SameSite: sameSite,
	})

	expenseService := expense.NewService(gormstore.NewExpenseRepository(gdb), lg)

	deps := &Dependencies{
		Config:        cfg,
		SQLDB:         sqlDB,
		Sessions:      sessions,
		MemorySession: memSessions,
		AuthService:   authService,
		APIDoc:        apiDoc,
		GlobalLimiter: ratelimit.New(ratelimit.Config{Max: cfg.RateLimit.GlobalMax, Window: cfg.RateLimit.Window}),
		LoginLimiter:  ratelimit.New(ratelimit.Config{Max: cfg.RateLimit.LoginMax, Window: cfg.RateLimit.Window}),
		Logger:        lg,
		closeSessions: closeSessions,
	}

	deps.Router = rest.NewRouter(rest.Dependencies{
		AuthHandler:     auth.NewHandler(authService, cookies, cfg.Session.Rolling, lg),
		ExpenseHandler:  expense.NewHandler(expenseService, lg),
		CategoryHandler: category.NewHandler(category.NewService(categoryStore.NewCategoryRepository(gdb), lg), lg),
		HealthChecks: map[string]rest.CheckFunc{
			"database":      sqlDB.PingContext,
			"session_store": sessions.Ping,
		},
		GlobalLimiter:  deps.GlobalLimiter,
		LoginLimiter:   deps.LoginLimiter,
		AllowedOrigins: cfg.Server.Origins(),
		TrustProxy:     cfg.Server.TrustProxy,
		Logger:         lg,
	})

	return deps, nil
}

// checkSecurityDefaults warns about shipped secrets still in use. A
// production server refuses to sign cookies with the shipped secret.
func checkSecurityDefaults(ctx context.Context, deps *Dependencies) error {
	cfg := deps.Config

	if cfg.Security.SessionSecret == internal.DefaultSessionSecret {
		if cfg.IsProduction() {
			return errors.New("security.session_secret must be set in production")
		}
		deps.Logger.Warn("using the built-in session secret; set KAKEIBO_SECURITY_SESSION_SECRET")
	}

	usingDefault, err := deps.AuthService.UsingDefaultPassword(ctx)
	if err != nil {
		deps.Logger.Error("could not check the admin password", "error", err)
		return nil
	}
	if usingDefault {
		deps.Logger.Warn("the admin account still uses the default password; run `kakeibo admin set-password`",
			"username", cfg.Security.AdminUsername)
	}
	if cfg.IsProduction() && !cfg.Security.CookieSecure {
		deps.Logger.Warn("security.cookie_secure is off in production; the session cookie is sent over plain http")
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medq/medq/internal/config"
	"github.com/medq/medq/internal/domain/assignment"
	"github.com/medq/medq/internal/domain/diagnostic"
	"github.com/medq/medq/internal/domain/questionnaire"
	"github.com/medq/medq/internal/platform/auth"
	"github.com/medq/medq/internal/platform/db"
	"github.com/medq/medq/internal/platform/events"
	"github.com/medq/medq/internal/platform/httpx"
	"github.com/medq/medq/internal/platform/middleware"
	"github.com/medq/medq/migrations"
)

const (
	requestBodyLimit = "1M"
	requestTimeout   = 30 * time.Second
	shutdownTimeout  = 10 * time.Second
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "medq-server",
		Short: "Medical questionnaire API server",
	}
	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// migrationSource returns the embedded schema unless dir points at a
// directory on disk.
func migrationSource(dir string) fs.FS {
	if dir == "" {
		return migrations.FS
	}
	return os.DirFS(dir)
}

func openMigrator(ctx context.Context, dir string) (*db.Migrator, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if dir == "" {
		dir = cfg.MigrationsDir
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return db.NewMigrator(pool, migrationSource(dir)), pool, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			ctx := cmd.Context()
			migrator, pool, err := openMigrator(ctx, dir)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (default: embedded)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			ctx := cmd.Context()
			migrator, pool, err := openMigrator(ctx, dir)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printStatus(cmd.OutOrStdout(), statuses)
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (default: embedded)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func printStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	if cfg.IsDev() {
		out = zerolog.ConsoleWriter{Out: out}
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func newPublisher(cfg *config.Config, logger zerolog.Logger) (events.Publisher, func()) {
	if cfg.AMQPURL == "" {
		return events.NewLogPublisher(logger), func() {}
	}
	p, err := events.DialAMQP(cfg.AMQPURL, cfg.EventsQueue)
	if err != nil {
		logger.Warn().Err(err).Msg("amqp unavailable, logging events instead")
		return events.NewLogPublisher(logger), func() {}
	}
	logger.Info().Str("queue", cfg.EventsQueue).Msg("publishing events to amqp")
	return p, func() {
		if err := p.Close(); err != nil {
			logger.Warn().Err(err).Msg("close amqp publisher")
		}
	}
}

// services is everything the router needs, built once at startup.
type services struct {
	questionnaires *questionnaire.Service
	assignments    *assignment.Service
	diagnostics    *diagnostic.Engine
}

func newServices(pool *pgxpool.Pool, publisher events.Publisher, logger zerolog.Logger) services {
	tx := db.NewTransactor(pool)
	catalog := questionnaire.NewService(
		questionnaire.NewQuestionnaireRepoPG(pool),
		questionnaire.NewModuleRepoPG(pool),
		questionnaire.NewOutputRepoPG(pool),
		tx, logger,
	)
	assignments := assignment.NewService(
		assignment.NewAssignmentRepoPG(pool),
		assignment.NewAnswerRepoPG(pool),
		catalog, tx, publisher, logger,
	)
	return services{
		questionnaires: catalog,
		assignments:    assignments,
		diagnostics:    diagnostic.NewEngine(assignments, catalog, logger),
	}
}

// newEcho builds the HTTP surface. session may be nil in tests.
func newEcho(cfg *config.Config, logger zerolog.Logger, svc services, session echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = httpx.JSONSerializer{}
	e.Validator = httpx.NewValidator()

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(requestBodyLimit))
	e.Use(middleware.RequestTimeout(requestTimeout))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))

	apiV1 := e.Group("/api/v1")
	if cfg.DevAuth() {
		logger.Warn().Msg("development auth enabled: requests run as admin unless X-User-* headers are set")
		apiV1.Use(auth.DevAuthMiddleware())
	} else {
		apiV1.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.AuthSigningKey),
		}))
	}
	apiV1.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		IdleTTL:           cfg.RateLimitIdleTTL,
	}))
	if session != nil {
		apiV1.Use(session)
	}

	questionnaire.NewHandler(svc.questionnaires).RegisterRoutes(apiV1)
	assignment.NewHandler(svc.assignments).RegisterRoutes(apiV1)
	diagnostic.NewHandler(svc.diagnostics).RegisterRoutes(apiV1)
	return e
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stdout)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return err
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	publisher, closePublisher := newPublisher(cfg, logger)
	defer closePublisher()

	e := newEcho(cfg, logger, newServices(pool, publisher, logger), db.SessionMiddleware(pool))
	e.GET("/health", db.HealthHandler(pool, func() *db.PoolStats { return db.GetPoolStats(pool) }))

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

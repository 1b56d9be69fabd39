package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/healthlink/cdabridge/internal/config"
	"github.com/healthlink/cdabridge/internal/extract"
	"github.com/healthlink/cdabridge/internal/platform/db"
	"github.com/healthlink/cdabridge/internal/platform/middleware"
	"github.com/healthlink/cdabridge/internal/platform/telemetry"
	"github.com/healthlink/cdabridge/internal/summary"
	"github.com/healthlink/cdabridge/internal/terminology"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cda-server",
		Short: "CDA document extraction server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(extractCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the extraction API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// extractCmd runs a one-shot extraction over a document file and prints the
// summary as JSON, for pipeline use without a server.
func extractCmd() *cobra.Command {
	var topics string
	cmd := &cobra.Command{
		Use:   "extract <document.xml>",
		Short: "Extract topics from a CDA document file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("validate config: %w", err)
			}

			ctx := cmd.Context()
			catalog, pool, err := openCatalog(ctx, cfg, logger)
			if err != nil {
				return err
			}
			if pool != nil {
				defer pool.Close()
			}

			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read document: %w", err)
			}

			res := terminology.NewResolver(catalog, cfg.DefaultLanguage, logger)
			x := extract.New(res, cfg.DefaultLanguage, logger, nil)
			svc := summary.NewService(x, logger)

			var want []string
			if topics != "" {
				want = strings.Split(topics, ",")
			}
			result, err := svc.Extract(ctx, raw, want)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	cmd.Flags().StringVar(&topics, "topics", "", "comma-separated topic subset (default: all)")
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run catalog database migrations",
	}

	var dir string
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required for migrations")
			}

			ctx := cmd.Context()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, dir).Up(ctx)
			if err != nil {
				return err
			}
			logger.Info().Int("applied", count).Msg("migrations complete")
			return nil
		},
	}
	upCmd.Flags().StringVar(&dir, "dir", "migrations", "migrations directory")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required for migrations")
			}

			ctx := cmd.Context()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir).Status(ctx)
			if err != nil {
				return err
			}
			for _, s := range statuses {
				state := "pending"
				if s.Applied {
					state = "applied " + s.AppliedAt.Format(time.RFC3339)
				}
				fmt.Printf("%03d %-40s %s\n", s.Version, s.Name, state)
			}
			return nil
		},
	}
	statusCmd.Flags().StringVar(&dir, "dir", "migrations", "migrations directory")

	cmd.AddCommand(upCmd)
	cmd.AddCommand(statusCmd)
	return cmd
}

func newLogger() zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}

// openCatalog picks the configured terminology catalog source: the Postgres
// repo with DATABASE_URL, a JSON concepts file with CATALOG_PATH, or an empty
// in-memory catalog. The returned pool is nil except for the Postgres case.
func openCatalog(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (terminology.Catalog, *pgxpool.Pool, error) {
	switch {
	case cfg.DatabaseURL != "":
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		logger.Info().Msg("using database-backed terminology catalog")
		return terminology.NewPGCatalog(pool), pool, nil
	case cfg.CatalogPath != "":
		catalog, err := terminology.LoadCatalogFile(cfg.CatalogPath)
		if err != nil {
			return nil, nil, fmt.Errorf("load catalog file: %w", err)
		}
		logger.Info().Str("path", cfg.CatalogPath).Msg("loaded terminology catalog file")
		return catalog, nil, nil
	default:
		logger.Warn().Msg("no catalog configured; terminology resolution degrades to synthesized labels")
		return terminology.NewMemoryCatalog(), nil, nil
	}
}

func runServer() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	catalog, pool, err := openCatalog(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open terminology catalog")
	}
	if pool != nil {
		defer pool.Close()
	}

	// Extraction pipeline
	metrics := telemetry.NewProvider()
	res := terminology.NewResolver(catalog, cfg.DefaultLanguage, logger)
	res.SetMetrics(metrics)
	x := extract.New(res, cfg.DefaultLanguage, logger, metrics)
	svc := summary.NewService(x, logger)
	handler := summary.NewHandler(svc, metrics)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Content-Type", "X-Request-ID"},
	}))

	apiV1 := e.Group("/api/v1")
	handler.RegisterRoutes(apiV1)

	e.GET("/healthz", db.HealthHandler(pool))
	e.GET("/metrics", metrics.PrometheusHandler())

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

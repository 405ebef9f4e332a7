// Package main is the entry point for the LaunchPal API server. It dispatches
// three subcommands (serve, migrate and version) via a switch on os.Args.
// serve runs migrations on startup so a fresh container needs no separate
// migration step.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/launchpal/launchpal/internal/api"
	"github.com/launchpal/launchpal/internal/auth"
	"github.com/launchpal/launchpal/internal/config"
	"github.com/launchpal/launchpal/internal/db"
	"github.com/launchpal/launchpal/internal/safego"
	"github.com/launchpal/launchpal/internal/telemetry"
)

var version = "0.1.0"

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	if command == "version" {
		fmt.Printf("LaunchPal v%s\n", version)
		return nil
	}

	var cfg *config.Config
	var err error
	if command == "serve" {
		// Only the log level is applied live; everything else needs a restart.
		cfg, err = config.Watch(os.Getenv("CONFIG_PATH"), func(next *config.Config) {
			telemetry.SetLevel(next.Logging.Level)
		})
	} else {
		cfg, err = config.Load(os.Getenv("CONFIG_PATH"))
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	switch command {
	case "serve":
		return serve(cfg)
	case "migrate":
		if len(os.Args) < 3 {
			return fmt.Errorf("usage: %s migrate <up|down|force VERSION>", os.Args[0])
		}
		if os.Args[2] == "force" {
			if len(os.Args) < 4 {
				return fmt.Errorf("usage: %s migrate force VERSION", os.Args[0])
			}
			return forceMigration(cfg, os.Args[3])
		}
		return runMigrations(cfg, os.Args[2])
	case "check":
		return checkDatabase(cfg, os.Stdout)
	default:
		return fmt.Errorf("unknown command: %s\nAvailable commands: serve, migrate, check, version", command)
	}
}

func serve(cfg *config.Config) error {
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level)

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := auth.ValidateJWTSecret(); err != nil {
		return fmt.Errorf("security configuration error: %w", err)
	}

	slog.Info("connecting to database",
		"host", cfg.Database.Host, "port", cfg.Database.Port,
		"name", cfg.Database.Name, "ssl_mode", cfg.Database.SSLMode)
	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	telemetry.StartDBStatsCollector(database)

	if err := db.RunMigrations(database, "up"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if v, dirty, err := db.GetMigrationVersion(database); err != nil {
		slog.Warn("failed to get migration version", "error", err)
	} else {
		slog.Info("database schema ready", "version", v, "dirty", dirty)
	}

	var rdb redis.UniversalClient
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			slog.Warn("redis not reachable at startup", "addr", cfg.Redis.Addr, "error", err)
		}
	}

	if cfg.Telemetry.Metrics.Enabled {
		startMetricsServer(cfg.Telemetry.Metrics.PrometheusPort)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api.Version = version
	router, bgServices, err := api.NewRouter(ctx, cfg, database, rdb)
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}
	defer bgServices.Shutdown()

	server := &http.Server{
		Addr:              cfg.Server.GetAddress(),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	safego.Go("http-server", func() {
		slog.Info("starting server",
			"addr", cfg.Server.GetAddress(),
			"base_url", cfg.Server.BaseURL,
			"media_backend", cfg.Media.Backend,
			"redis", cfg.Redis.Enabled)

		var err error
		if cfg.Security.TLS.Enabled {
			err = server.ListenAndServeTLS(cfg.Security.TLS.CertFile, cfg.Security.TLS.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	})

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		return fmt.Errorf("failed to start server: %w", err)
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// startMetricsServer serves /metrics on its own port, off the public ingress
// path and outside the rate-limited router.
func startMetricsServer(port int) {
	addr := fmt.Sprintf(":%d", port)
	safego.Go("metrics-server", func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		slog.Info("starting Prometheus metrics server", "addr", addr)
		srv := &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", "error", err)
		}
	})
}

func runMigrations(cfg *config.Config, direction string) error {
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level)

	database, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	slog.Info("running migrations", "direction", direction)
	if err := db.RunMigrations(database, direction); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	v, dirty, err := db.GetMigrationVersion(database)
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	slog.Info("migration completed", "version", v, "dirty", dirty)
	return nil
}

// forceMigration clears a dirty schema_migrations row after a crashed
// migration so that the next start can retry.
func forceMigration(cfg *config.Config, arg string) error {
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level)

	version, err := strconv.Atoi(arg)
	if err != nil {
		return fmt.Errorf("invalid migration version %q", arg)
	}
	database, err := db.Connect(cfg.Database.GetDSN(), 1, 0)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	before, dirty, err := db.GetMigrationVersion(database)
	if err != nil {
		return err
	}
	if err := db.ForceMigrationVersion(database, version); err != nil {
		return err
	}
	slog.Info("migration version forced", "from", before, "was_dirty", dirty, "to", version)
	return nil
}

// checkDatabase verifies connectivity and prints the schema version with a
// row count per table. It exits non-zero when anything fails so it can gate
// a deployment.
func checkDatabase(cfg *config.Config, w io.Writer) error {
	database, err := db.Connect(cfg.Database.GetDSN(), 1, 0)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	version, dirty, err := db.GetMigrationVersion(database)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "schema version: %d (dirty: %t)\n", version, dirty)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, table := range []string{"users", "products", "launches", "platform_credentials", "audit_logs"} {
		var n int
		if err := database.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return fmt.Errorf("failed to count %s: %w", table, err)
		}
		fmt.Fprintf(w, "%-22s %d\n", table, n)
	}
	return nil
}

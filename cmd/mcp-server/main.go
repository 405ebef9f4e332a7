// Package main runs the LaunchPal MCP server: JSON-RPC 2.0 over stdin and
// stdout, one message per line. Logs go to stderr so they never corrupt the
// protocol stream.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/launchpal/launchpal/internal/config"
	"github.com/launchpal/launchpal/internal/mcp/client"
	"github.com/launchpal/launchpal/internal/mcp/localauth"
	"github.com/launchpal/launchpal/internal/mcp/protocol"
	"github.com/launchpal/launchpal/internal/mcp/tools"
	"github.com/launchpal/launchpal/internal/safego"
	"github.com/launchpal/launchpal/internal/telemetry"
)

const (
	serverName    = "launchpal-mcp"
	serverVersion = "2.0.0"
)

func main() {
	cfg, err := config.LoadMCP()
	if err != nil {
		log.Fatalf("Error: %v\n", err)
	}

	level := "info"
	if cfg.Debug {
		level = "debug"
	}
	telemetry.SetupLoggerTo(os.Stderr, "text", level)

	store := localauth.NewStore(cfg.ProductHunt.TokenPath)
	var login *localauth.LoginServer
	newLogin := func() (tools.LoginFlow, error) {
		l, err := localauth.NewLoginServer(cfg.ProductHunt, store)
		if err != nil {
			return nil, err
		}
		login = l
		return l, nil
	}

	api := client.New(cfg.APIURL, cfg.APIKey, cfg.RequestTimeout)
	srv := protocol.NewServer(
		protocol.ImplementationInfo{Name: serverName, Version: serverVersion},
		tools.NewHandler(api, store, newLogin, cfg.ProductHunt.LoginTimeout),
		tools.Prompts{},
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if store.Info().Authenticated {
		slog.Info("authenticated with Product Hunt", "token_path", store.Path())
	} else {
		slog.Warn("not authenticated with Product Hunt; use the login_producthunt tool")
	}
	slog.Debug("MCP server started", "api_url", cfg.APIURL)
	checkBackend(ctx, api)

	// Serve blocks reading stdin; closing it on a signal unblocks the scanner.
	safego.Go("stdin-closer", func() {
		<-ctx.Done()
		_ = os.Stdin.Close()
	})
	err = srv.Serve(ctx, os.Stdin, os.Stdout)
	if ctx.Err() != nil {
		err = nil
	}

	if login != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := login.Shutdown(shutdownCtx); err != nil {
			slog.Warn("login server shutdown failed", "error", err)
		}
		cancel()
	}
	if err != nil {
		slog.Error("MCP server stopped", "error", err)
		os.Exit(1)
	}
}

// checkBackend warns when the API server is unreachable or outside the
// supported version range. Neither stops the server; tools report their own
// errors per call.
func checkBackend(ctx context.Context, api *client.Client) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	v, ok, err := api.CheckBackend(ctx)
	switch {
	case err != nil:
		slog.Warn("LaunchPal API not reachable", "error", err)
	case !ok:
		slog.Warn("LaunchPal API version is not supported by this server", "version", v.Version, "supported", client.BackendConstraint)
	default:
		slog.Debug("LaunchPal API version", "version", v.Version)
	}
}

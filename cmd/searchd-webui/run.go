package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vmunix/searchd/internal/admission"
	"github.com/vmunix/searchd/internal/config"
	"github.com/vmunix/searchd/internal/engine"
	"github.com/vmunix/searchd/internal/logging"
	"github.com/vmunix/searchd/internal/store"
	"github.com/vmunix/searchd/internal/webui"
)

func runWebUI(path, host string, port int, allowPublic bool) error {
	if !allowPublic && !isLoopback(host) {
		return fmt.Errorf("refusing to bind non-loopback address %q without --allow-public", host)
	}

	resolvedPath, err := resolveConfigPath(path)
	if err != nil {
		return err
	}

	rc, err := config.Load(resolvedPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.Setup(rc.App.LogLevel)

	st, err := store.Open(rc.App.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = st.Close() }()

	pacer := admission.NewPacer(time.Now)
	gate := admission.NewGate(st, pacer, time.Now)
	eng := engine.New(st, gate, time.Now, rand.New(rand.NewSource(time.Now().UnixNano())), logger)

	srv := webui.NewServer(st, eng, resolvedPath, *rc, logger)
	if err := srv.BootstrapPasswordFromEnv(); err != nil {
		return fmt.Errorf("bootstrap web ui password: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	srv.RegisterRoutes(e)

	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("addr", addr).Msg("web ui starting")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("web ui server error")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("received signal, shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info().Msg("web ui stopped")
	return nil
}

// isLoopback reports whether host is a loopback address or hostname.
func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func resolveConfigPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	discovered, err := config.Discover()
	if err != nil {
		return config.DefaultPath(), nil
	}
	return discovered, nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"pickme-intel/internal/auth"
	"pickme-intel/internal/httpapi"
	"pickme-intel/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func serveCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), c)
		},
	}
}

func handlersFor(a *app, m *auth.Manager) httpapi.Handlers {
	return httpapi.Handlers{
		Credits:               a.credits,
		Pricing:               a.pricing,
		Audit:                 a.audit,
		Lookups:               a.lookups,
		Auth:                  m,
		Admins:                auth.NewDirectory(a.cfg.Admin),
		Env:                   a.cfg.App.Env,
		DefaultInitialCredits: a.cfg.Billing.DefaultInitialCredits,
		Ping:                  a.ping,
	}
}

func runServe(ctx context.Context, c *cli) error {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, log := c.cfg, c.log
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		return fmt.Errorf("auth init: %w", err)
	}
	if cfg.Admin.Email == "" {
		log.Warn("ADMIN_EMAIL not set; no one can log in")
	}

	a, err := newApp(rootCtx, cfg, log, appOptions{rateLimit: true})
	if err != nil {
		return err
	}
	defer a.Close()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           newRouter(a, handlersFor(a, authManager)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening",
			"addr", srv.Addr,
			"env", cfg.App.Env,
			"store", cfg.Store.Driver,
			"rate_limit", a.limiter != nil,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
	return nil
}

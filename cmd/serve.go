package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"looprec/backend/internal/actionlog"
	"looprec/backend/internal/api/routes"
	"looprec/backend/internal/observability"
	"looprec/backend/internal/recorder"
	"looprec/backend/internal/services"
	"looprec/backend/pkg/auth"
	"looprec/backend/pkg/chrome"
	"looprec/backend/pkg/database"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the recording API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(parent context.Context) error {
	cfg := appCfg
	logger := observability.GetLogger()

	auth.InitJWT(cfg.JWT.Secret)
	if !auth.Enabled() {
		logger.Warn("JWT secret is empty, API authentication is disabled")
	}

	var store actionlog.Store = actionlog.NewMemoryStore()
	if cfg.Database.Enabled {
		if err := database.InitDatabase(cfg, logger); err != nil {
			return err
		}
		store = database.NewActionStore(database.DB)
	} else {
		logger.Info("Database disabled, recordings are kept in memory")
	}

	execPath, err := chrome.ExecPath(cfg.Chrome.ExecPath)
	if err != nil {
		logger.Warn("Chrome not found, recording will rely on chromedp's lookup", zap.Error(err))
	} else {
		logger.Info("Using Chrome", zap.String("path", execPath))
	}
	recorder.Manager.Configure(store, logger, recorder.LaunchOptions{
		ExecPath:   execPath,
		Headless:   cfg.Chrome.HeadlessMode,
		HoverRate:  cfg.Chrome.HoverRate,
		CloseGrace: cfg.Recorder.CloseGrace,
	})

	janitor, err := services.NewJanitor(recorder.Manager, cfg.Recorder.SweepSchedule, cfg.Recorder.IdleTimeout, logger)
	if err != nil {
		return err
	}

	gin.SetMode(cfg.Server.Mode)
	srv := &http.Server{
		Addr:        fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:     routes.SetupRoutes(cfg, logger),
		ReadTimeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		// generated scripts and exports are small; websockets clear their deadline
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server starting", zap.String("addr", srv.Addr), zap.String("version", Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		janitor.Start()
		<-gctx.Done()
		logger.Info("Shutting down server...")

		janitor.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		recorder.Manager.Shutdown()
		logger.Info("Server shutdown complete")
		return err
	})
	return g.Wait()
}

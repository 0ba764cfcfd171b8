package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/beanhop/backend/internal/httpapi"
	"github.com/beanhop/backend/internal/middleware"
)

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.repo.Ping(ctx); err != nil {
				log.WithError(err).Warn("datastore ping failed; continuing")
			}

			proxies, err := middleware.ParseTrustedProxies(cfg.TrustedProxies())
			if err != nil {
				return fmt.Errorf("TRUSTED_PROXIES: %w", err)
			}

			api := httpapi.New(a.services(), httpapi.Options{
				AllowedOrigins: cfg.AllowedOrigins(),
				TrustedProxies: proxies,
				RateLimitRPS:   cfg.RateLimitRPS,
				RateLimitBurst: cfg.RateLimitBurst,
				DashboardURL:   cfg.SupabaseDashboardURL,
			}, log, a.metrics)

			server := &http.Server{
				Addr:         fmt.Sprintf(":%d", cfg.Port),
				Handler:      api.Handler(),
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 30 * time.Second,
				IdleTimeout:  120 * time.Second,
			}

			go api.SweepRateLimits(ctx, time.Minute)

			errCh := make(chan error, 1)
			go func() {
				log.WithField("port", cfg.Port).Info("BeanHop API listening")
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("server error: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			log.Info("server stopped")
			return nil
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 8000, "listen port (overrides PORT)")
	return cmd
}

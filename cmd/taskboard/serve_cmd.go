package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	handler "taskboard-backend/api"
	"taskboard-backend/pkg/database"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := cfg.NewLogger()

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			db, err := database.GetDatabase(ctx, handler.DatabaseConfigFrom(cfg), log)
			if err != nil {
				return err
			}
			defer database.ResetDatabase()

			router, err := handler.NewRouter(handler.Deps{Config: cfg, DB: db, Log: log})
			if err != nil {
				return err
			}

			if addr == "" {
				addr = net.JoinHostPort("", cfg.Port)
			}
			srv := &http.Server{
				Addr:              addr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.WithField("addr", addr).WithField("environment", cfg.Environment).Info("server listening")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			log.Info("shutting down")
			shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
			defer stop()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to :$PORT)")
	return cmd
}

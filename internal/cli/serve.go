package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"mymoney/internal/backend"
	apphttp "mymoney/internal/http"
	applog "mymoney/internal/log"
	"mymoney/internal/services"
)

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the JSON API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := SignalContext(cmd.Context(), a.logger)
			defer cancel()
			return a.withEngine(ctx, func(res *backend.BackendResult, engine *services.Engine) error {
				return a.serve(ctx, res, engine)
			})
		},
	}
}

func (a *app) serve(ctx context.Context, res *backend.BackendResult, engine *services.Engine) error {
	opts := apphttp.Options{Logger: a.logger}
	if res.AMQP != nil {
		opts.Requester = res.AMQP
	}

	srv := apphttp.NewServer(":"+a.cfg.Port, res.Store, engine, opts)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Starting mymoney server",
			applog.FieldOperation, applog.OpStartup,
			"port", a.cfg.Port,
			"backend", a.cfg.DataBackend,
			"amqp", res.AMQP != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			a.logger.Error("Server error", applog.FieldError, err, "port", a.cfg.Port)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down server", applog.FieldOperation, applog.OpShutdown)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Server shutdown error", applog.FieldError, err)
		return err
	}
	a.logger.Info("Server stopped gracefully")
	return nil
}

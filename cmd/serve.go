package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/pharmadir/internal/api"
	"github.com/sells-group/pharmadir/internal/directory"
	"github.com/sells-group/pharmadir/internal/scheduler"
	"github.com/sells-group/pharmadir/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the directory API and sync on a schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		tel, err := telemetry.New(ctx, telemetry.DefaultServiceName, version)
		if err != nil {
			return err
		}
		defer func() {
			if err := tel.Shutdown(context.Background()); err != nil {
				zap.L().Warn("telemetry shutdown", zap.Error(err))
			}
		}()

		syncMetrics, err := telemetry.NewSyncMetrics(tel.MeterProvider())
		if err != nil {
			return eris.Wrap(err, "serve: sync metrics")
		}
		httpMetrics, err := telemetry.NewHTTPMetrics(tel.MeterProvider())
		if err != nil {
			return eris.Wrap(err, "serve: http metrics")
		}

		catalog, err := catalogFor(nil)
		if err != nil {
			return err
		}
		engine := newEngine(st, catalog, syncMetrics)
		sched := scheduler.New(engine, scheduler.Config{
			Interval:   cfg.Sync.Interval,
			RunOnStart: cfg.Sync.OnStart,
		})

		dir := directory.New(st, catalog, directory.Limits{
			Default: cfg.Query.DefaultLimit,
			Max:     cfg.Query.MaxLimit,
		})
		mux := api.NewServer(dir, engine, st,
			api.WithCORSOrigins(cfg.Server.CORSOrigins),
			api.WithMetricsHandler(tel.Handler()),
			api.WithMiddlewares(api.LoggingMiddleware, httpMetrics.Middleware),
		)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return startServer(gctx, mux, resolvePort(servePort, cfg.Server.Port))
		})
		g.Go(func() error {
			return sched.Start(gctx)
		})
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// resolvePort prefers the flag value over the configured port.
func resolvePort(flag, configured int) int {
	if flag != 0 {
		return flag
	}
	return configured
}

// startServer serves handler until ctx is done, then shuts down gracefully.
func startServer(ctx context.Context, handler http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- eris.Wrap(err, "server listen")
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zap.L().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "server shutdown")
	}
	return <-errCh
}

package helper

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ankalabs/pulse/internal"
	"github.com/ankalabs/pulse/pkg/logutils"
	"github.com/ankalabs/pulse/pkg/metrics"
)

var (
	readHeaderTimeout = 10 * time.Second
	cancelTimeout     = 10 * time.Second
)

// ServerRunner starts the runtime and blocks until a shutdown signal.
type ServerRunner struct {
	rt *Runtime
}

func NewServerRunner(rt *Runtime) *ServerRunner {
	return &ServerRunner{rt: rt}
}

// StartRuntime brings up the queue, worker, and cleaner, then reconciles
// the recurring jobs against the active checks in the database.
func (sr *ServerRunner) StartRuntime(ctx context.Context) error {
	sr.rt.Queue.Start()
	sr.rt.Worker.Start()
	if err := sr.rt.Cleaner.Start(); err != nil {
		return err
	}
	return sr.rt.Scheduler.SyncChecks(ctx)
}

// StopRuntime drains in reverse order: no new recurring enqueues, then
// in-flight jobs finish, then the cleaner cron stops.
func (sr *ServerRunner) StopRuntime() {
	sr.rt.Queue.Stop()
	sr.rt.Worker.Stop()
	sr.rt.Cleaner.Stop()
}

// StartMetricsServer exposes Prometheus metrics on their own listener so
// scrapes never contend with API traffic.
func (sr *ServerRunner) StartMetricsServer() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              sr.rt.Config.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logutils.Log.Errorf("metrics server: %s", err)
		}
	}()
}

// StartServer runs the gin server until SIGINT or SIGTERM, then shuts
// the runtime down gracefully.
func (sr *ServerRunner) StartServer() {
	logutils.Log.Info("starting server")
	backend := internal.Register(sr.rt.Register)

	// reference: https://gin-gonic.com/en/docs/examples/graceful-restart-or-stop
	srv := &http.Server{
		Addr:              sr.rt.Config.ServerAddr,
		Handler:           backend.R,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logutils.Log.Fatalf("listen: %s", err)
		}
	}()

	// kill (no params) by default sends syscall.SIGTERM
	// kill -2 is syscall.SIGINT
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logutils.Log.Info("shutdown signal received")

	sr.StopRuntime()

	ctx, cancel := context.WithTimeout(context.Background(), cancelTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logutils.Log.Errorf("server shutdown: %s", err)
	}
	logutils.Log.Info("server exiting")
}

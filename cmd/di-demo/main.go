// Command di-demo serves a small notes API whose services live in request scopes.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dozm/di/v2"
	"github.com/dozm/di/v2/config"
	"github.com/dozm/di/v2/diagnostics"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	configPath := flag.String("config", "di.yaml", "container options file")
	source := flag.String("dsn", "file::memory:?cache=shared", "sqlite data source")
	production := flag.Bool("production", false, "use the production logger")
	flag.Parse()

	logger, err := newLogger(*production)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(*addr, *configPath, dsn(*source), logger); err != nil {
		logger.Fatal("di-demo failed", zap.Error(err))
	}
}

func newLogger(production bool) (*zap.Logger, error) {
	if production {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func run(addr, configPath string, source dsn, logger *zap.Logger) error {
	opts, err := config.LoadFile(configPath, true, di.DefaultOptions())
	if err != nil {
		return err
	}
	opts = config.FromEnv(opts)
	opts.Observer = diagnostics.NewZapObserver(logger)

	c, err := newContainer(opts, logger, source)
	if err != nil {
		return err
	}
	defer func() {
		if err := di.Dispose(c); err != nil {
			logger.Error("container dispose failed", zap.Error(err))
		}
	}()

	server := &http.Server{Addr: addr, Handler: newRouter(c, logger)}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Info("listening", zap.String("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return server.Shutdown(shutdownCtx)
}

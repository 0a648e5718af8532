package devserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/vaultguard/internal/devserver/config"
	"github.com/dmitrijs2005/vaultguard/internal/logging"
)

const shutdownTimeout = 5 * time.Second

// App runs the dev server until a signal arrives or the context ends.
type App struct {
	config *config.Config
	logger logging.Logger
	server *Server
}

func NewApp(c *config.Config, logger logging.Logger, opts ...Option) *App {
	return &App{config: c, logger: logger, server: New(c, logger, opts...)}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// serve blocks until ctx ends, then shuts the listener down gracefully.
func (app *App) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           app.server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(cancelFunc)

	ln, err := net.Listen("tcp", app.config.Addr)
	if err != nil {
		return err
	}
	app.logger.Info(ctx, "dev API server listening", "addr", ln.Addr().String(), "prefix", APIPrefix)

	var wg sync.WaitGroup
	var serveErr error

	wg.Add(1)
	go func() {
		defer wg.Done()
		if serveErr = app.serve(ctx, ln); serveErr != nil {
			app.logger.Error(ctx, serveErr.Error())
			cancelFunc()
		}
	}()

	wg.Wait()
	app.logger.Info(ctx, "dev API server stopped")
	return serveErr
}

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/alanyoungcy/sentitrader/internal/server"
	"github.com/alanyoungcy/sentitrader/internal/server/handler"
	"github.com/alanyoungcy/sentitrader/internal/strategy"
)

const shutdownTimeout = 15 * time.Second

// agentRunner starts agent runs on behalf of the HTTP API. Runs outlive the
// request that triggered them and are bound to the server's context.
type agentRunner struct {
	app  *App
	deps *Dependencies
	ctx  context.Context
	wg   sync.WaitGroup
}

func (r *agentRunner) Agents() []strategy.AgentInfo {
	return r.deps.Registry.ListInfo()
}

func (r *agentRunner) Trigger(name string, unwind bool) error {
	agent, err := r.deps.Registry.Get(name)
	if err != nil {
		return err
	}
	if r.ctx.Err() != nil {
		return errors.New("server is shutting down")
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.app.runAgent(r.ctx, r.deps, agent, unwind)
	}()
	return nil
}

// ServeMode runs the operator HTTP API until ctx is cancelled, then waits for
// in-flight agent runs to finish.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	runner := &agentRunner{app: a, deps: deps, ctx: ctx}

	srv := server.NewServer(server.Config{
		Addr:               ":" + strconv.Itoa(a.cfg.Server.Port),
		APIKey:             a.cfg.Server.APIKey,
		RateLimitPerMinute: a.cfg.Server.RateLimitPerMinute,
	}, serverHandlers(a, deps, runner), deps.RateLimiter, a.logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("server shutdown", slog.String("error", err.Error()))
	}
	runner.wg.Wait()

	if runErr != nil {
		return fmt.Errorf("app: serve: %w", runErr)
	}
	return nil
}

func serverHandlers(a *App, deps *Dependencies, runner handler.AgentRunner) server.Handlers {
	return server.Handlers{
		Health:    handler.NewHealthHandler(a.cfg.Mode, deps.Wallet),
		Agents:    handler.NewAgentHandler(runner, a.logger),
		Positions: handler.NewPositionHandler(deps.Positions, deps.Wallet, a.logger),
		Logs:      handler.NewLogHandler(deps.Logs, deps.Wallet, a.logger),
	}
}

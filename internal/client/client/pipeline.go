package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/dmitrijs2005/vaultguard/internal/client/apperr"
	"github.com/dmitrijs2005/vaultguard/internal/common"
	"github.com/dmitrijs2005/vaultguard/internal/logging"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/dmitrijs2005/vaultguard/internal/client/client"

const (
	pathRefresh      = "/auth/refresh"
	pathReportFailed = "/auth/report-failed"
	pathLogout       = "/auth/logout"
	pathLogin        = "/auth/login"
)

var errNotReplayable = errors.New("request body cannot be replayed")

// Pipeline sends authenticated requests. On a 401 it refreshes the session
// once for all concurrent callers and replays each failed request exactly
// once.
//
// The first caller to see a 401 becomes the leader and performs the refresh;
// callers arriving while it runs queue up as waiters and are released in
// FIFO order with the leader's outcome.
type Pipeline struct {
	http    *http.Client
	refresh func(ctx context.Context) error
	log     logging.Logger
	tracer  trace.Tracer

	mu         sync.Mutex
	refreshing bool
	waiters    []chan error

	hookMu        sync.RWMutex
	onSessionLost func(ctx context.Context)
}

// NewPipeline sends requests with hc. refresh must rotate the session
// cookies without going through the pipeline.
func NewPipeline(hc *http.Client, refresh func(ctx context.Context) error, log logging.Logger) *Pipeline {
	return &Pipeline{
		http:    hc,
		refresh: refresh,
		log:     log,
		tracer:  otel.Tracer(tracerName),
	}
}

// OnSessionLost sets the hook run when the session cannot be refreshed.
// The auth controller installs its silent logout here.
func (p *Pipeline) OnSessionLost(fn func(ctx context.Context)) {
	p.hookMu.Lock()
	p.onSessionLost = fn
	p.hookMu.Unlock()
}

func (p *Pipeline) sessionLost(ctx context.Context) {
	p.hookMu.RLock()
	fn := p.onSessionLost
	p.hookMu.RUnlock()
	if fn != nil {
		fn(ctx)
	}
}

// Waiting reports how many callers are queued behind an in-flight refresh.
func (p *Pipeline) Waiting() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiters)
}

// Refreshing reports whether a refresh is in flight.
func (p *Pipeline) Refreshing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshing
}

// Do sends req and handles an expired session. A returned response is owned
// by the caller.
func (p *Pipeline) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if req.Header.Get(common.RequestIDHeaderName) == "" {
		req.Header.Set(common.RequestIDHeaderName, uuid.NewString())
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	path := req.URL.Path
	switch {
	case strings.HasSuffix(path, pathRefresh):
		p.log.Warn(ctx, "refresh rejected, session lost")
		p.sessionLost(context.WithoutCancel(ctx))
		return resp, nil
	case strings.HasSuffix(path, pathReportFailed),
		strings.HasSuffix(path, pathLogout),
		strings.HasSuffix(path, pathLogin):
		return resp, nil
	}

	drain(resp)

	if err := p.awaitRefresh(ctx); err != nil {
		return nil, err
	}
	return p.replay(req)
}

// awaitRefresh either performs the refresh or waits for the one in flight.
func (p *Pipeline) awaitRefresh(ctx context.Context) error {
	p.mu.Lock()
	if p.refreshing {
		ch := make(chan error, 1)
		p.waiters = append(p.waiters, ch)
		p.mu.Unlock()

		select {
		case err := <-ch:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	p.refreshing = true
	p.mu.Unlock()

	// The refresh outlives the leader's context so that waiters are
	// always released.
	rctx := context.WithoutCancel(ctx)
	err := p.doRefresh(rctx)

	p.mu.Lock()
	waiters := p.waiters
	p.waiters = nil
	p.refreshing = false
	p.mu.Unlock()

	for _, w := range waiters {
		w <- err
	}

	if err != nil {
		p.sessionLost(rctx)
	}
	return err
}

func (p *Pipeline) doRefresh(ctx context.Context) error {
	ctx, span := p.tracer.Start(ctx, "auth.refresh")
	defer span.End()

	p.log.Debug(ctx, "access token expired, refreshing session")

	if err := p.refresh(ctx); err != nil {
		p.log.Warn(ctx, "session refresh failed", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "refresh failed")
		return apperr.RefreshFailed(err)
	}

	span.SetAttributes(attribute.Int("refresh.waiters", p.Waiting()))
	return nil
}

// replay resends req once with the current cookies. It never refreshes.
func (p *Pipeline) replay(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	if req.Body != nil && req.Body != http.NoBody {
		if req.GetBody == nil {
			return nil, errNotReplayable
		}
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		r.Body = body
	}
	// The jar adds the rotated cookies.
	r.Header.Del("Cookie")

	return p.http.Do(r)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
	_ = resp.Body.Close()
}

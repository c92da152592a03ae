// Package resource implements the one-shot barrier that pre-fetches a
// component's external style resources before its first paint.
//
// A Gate fetches every URL concurrently, each raced against a timeout.
// Failures and timeouts are tolerated: they contribute no content and are
// logged, never aborting the batch. Once every outcome is known the gate is
// ready and exposes the successful bodies joined by newlines in input order.
package resource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultTimeout is applied to each fetch unless overridden.
const DefaultTimeout = 5000 * time.Millisecond

// ErrTimeout is reported for fetches that did not settle in time.
var ErrTimeout = errors.New("resource: fetch timed out")

// State is the readiness of a Gate.
type State int

const (
	// Pending means fetches are outstanding (or have not started).
	Pending State = iota
	// Ready means every fetch settled or timed out.
	Ready
	// ResolvedEmpty means no resources were declared.
	ResolvedEmpty
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	case ResolvedEmpty:
		return "resolved-empty"
	default:
		return "unknown"
	}
}

// Fetcher retrieves the body of a resource.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, url string) (string, error)

// Fetch calls f(ctx, url).
func (f FetcherFunc) Fetch(ctx context.Context, url string) (string, error) {
	return f(ctx, url)
}

// HTTPFetcher fetches resources with an http.Client.
type HTTPFetcher struct {
	Client *http.Client
}

// Fetch issues a GET for url. Non-2xx responses are errors.
func (h HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("resource: GET %s: %s", url, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Option configures a Gate.
type Option func(*Gate)

// WithFetcher sets the fetcher. Defaults to HTTPFetcher with http.DefaultClient.
func WithFetcher(f Fetcher) Option {
	return func(g *Gate) {
		g.fetcher = f
	}
}

// WithLogger sets the logger used for fetch failures.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = l
	}
}

// WithTimeout sets the per-fetch timeout. See SetTimeout for accepted values.
func WithTimeout(v any) Option {
	return func(g *Gate) {
		g.SetTimeout(v)
	}
}

// Gate is a single-resolution readiness barrier for a list of resources.
// It is consumed, never re-created, for the lifetime of its owner.
type Gate struct {
	urls    []string
	fetcher Fetcher
	logger  *slog.Logger

	mu      sync.Mutex
	timeout time.Duration
	state   State
	text    string

	start sync.Once
	done  chan struct{}
}

// New creates a gate for urls. Fetching does not begin until Start.
func New(urls []string, opts ...Option) *Gate {
	g := &Gate{
		urls:    append([]string(nil), urls...),
		fetcher: HTTPFetcher{},
		logger:  slog.Default(),
		timeout: DefaultTimeout,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// URLs returns the declared resource URLs.
func (g *Gate) URLs() []string {
	return append([]string(nil), g.urls...)
}

// SetTimeout sets the per-fetch timeout. Integer values are milliseconds and
// a time.Duration is taken as is. Anything else, or a non-positive value,
// reverts to DefaultTimeout. Changes after Start have no effect.
func (g *Gate) SetTimeout(v any) {
	d := DefaultTimeout
	switch t := v.(type) {
	case time.Duration:
		d = t
	case int:
		d = time.Duration(t) * time.Millisecond
	case int8:
		d = time.Duration(t) * time.Millisecond
	case int16:
		d = time.Duration(t) * time.Millisecond
	case int32:
		d = time.Duration(t) * time.Millisecond
	case int64:
		d = time.Duration(t) * time.Millisecond
	case uint:
		d = time.Duration(t) * time.Millisecond
	case uint8:
		d = time.Duration(t) * time.Millisecond
	case uint16:
		d = time.Duration(t) * time.Millisecond
	case uint32:
		d = time.Duration(t) * time.Millisecond
	case uint64:
		d = time.Duration(t) * time.Millisecond
	}
	if d <= 0 {
		d = DefaultTimeout
	}

	g.mu.Lock()
	g.timeout = d
	g.mu.Unlock()
}

// Timeout returns the per-fetch timeout.
func (g *Gate) Timeout() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.timeout
}

// Start begins fetching. Only the first call has any effect; ctx bounds the
// fetches, and cancelling it settles outstanding fetches as failures.
func (g *Gate) Start(ctx context.Context) {
	g.start.Do(func() {
		if len(g.urls) == 0 {
			g.settle(ResolvedEmpty, "")
			return
		}
		go g.run(ctx)
	})
}

func (g *Gate) run(ctx context.Context) {
	timeout := g.Timeout()
	bodies := make([]string, len(g.urls))

	eg, ctx := errgroup.WithContext(ctx)
	for i, u := range g.urls {
		eg.Go(func() error {
			body, err := g.fetchOne(ctx, u, timeout)
			if err != nil {
				g.logger.Error("resource fetch failed", "url", u, "err", err)
				return nil
			}
			bodies[i] = body
			return nil
		})
	}
	_ = eg.Wait()

	var parts []string
	for _, b := range bodies {
		if b != "" {
			parts = append(parts, b)
		}
	}
	g.settle(Ready, strings.Join(parts, "\n"))
}

type outcome struct {
	body string
	err  error
}

// fetchOne races a single fetch against the timeout. A fetcher that ignores
// its context is abandoned rather than waited on.
func (g *Gate) fetchOne(ctx context.Context, url string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ch := make(chan outcome, 1)
	go func() {
		body, err := g.fetcher.Fetch(ctx, url)
		ch <- outcome{body: body, err: err}
	}()

	select {
	case o := <-ch:
		return o.body, o.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
		return "", ctx.Err()
	}
}

func (g *Gate) settle(s State, text string) {
	g.mu.Lock()
	g.state = s
	g.text = text
	g.mu.Unlock()
	close(g.done)
}

// Ready returns a channel closed once the gate has resolved.
func (g *Gate) Ready() <-chan struct{} {
	return g.done
}

// Wait blocks until the gate resolves or ctx is done, returning the
// aggregated resource text.
func (g *Gate) Wait(ctx context.Context) (string, error) {
	select {
	case <-g.done:
		return g.Text(), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Text returns the aggregated resource text. Empty until resolved.
func (g *Gate) Text() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.text
}

// State returns the gate's readiness.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

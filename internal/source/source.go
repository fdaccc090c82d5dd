// Package source retrieves raw payloads for agents: SODA datasets, local news listings and
// government record pages. Every fetcher returns a JSON string or an error; it never hangs
// past its own timeout.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lighthouse.app/cityintel/common/logger"
	"lighthouse.app/cityintel/internal/model"
)

// ErrNoData is returned when every upstream source for an agent failed or returned nothing.
var ErrNoData = errors.New("no data from upstream sources")

type Fetcher interface {
	Fetch(ctx context.Context, agent model.Agent) (string, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, agent model.Agent) (string, error)

func (f FetcherFunc) Fetch(ctx context.Context, agent model.Agent) (string, error) {
	return f(ctx, agent)
}

// Router dispatches to the fetcher registered for the agent's source type.
type Router struct {
	fetchers map[model.SourceType]Fetcher
}

func NewRouter(fetchers map[model.SourceType]Fetcher) *Router {
	return &Router{fetchers: fetchers}
}

func (r *Router) Fetch(ctx context.Context, agent model.Agent) (string, error) {
	f, ok := r.fetchers[agent.Source]
	if !ok {
		return "", fmt.Errorf("no fetcher for source %q", agent.Source)
	}
	return f.Fetch(ctx, agent)
}

type options struct {
	now func() time.Time
}

type Option func(*options)

// WithClock overrides the time source used for query windows, payload timestamps and budgets.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func applyOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func component(ctx context.Context, name string) context.Context {
	return logger.WithLogFields(ctx, logger.LogFields{Component: name})
}

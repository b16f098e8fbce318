// Package providers implements the context provider registry.
//
// A provider is a read-only context source: queried once per decision cycle,
// it returns one prioritized fragment for the prompt compiler. Providers are
// independently fallible; one failing provider is logged and excluded, the
// rest still contribute (partial-failure isolation).
package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/questweaver-ai/questweaver/internal/model"
)

// ErrProviderNotFound is returned when Get names an unregistered provider.
var ErrProviderNotFound = errors.New("providers: provider not found")

// View is the read-only per-cycle session view handed to each provider.
type View struct {
	SessionID uuid.UUID
	World     model.WorldState
	Metrics   model.SessionMetrics
}

// Provider produces one context fragment per decision cycle.
type Provider interface {
	// Name is the unique provider identifier.
	Name() string
	// Context computes the provider's fragment for the given session view.
	Context(ctx context.Context, view View) (model.ProviderContext, error)
}

// Registry holds named providers and fans out context gathering.
type Registry struct {
	logger *slog.Logger

	providers map[string]Provider
	ordered   []string // registration order; ties in priority resolve by this
}

// NewRegistry creates an empty provider registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger,
		providers: make(map[string]Provider),
	}
}

// Register adds a provider. Registering a duplicate name is an error.
func (r *Registry) Register(p Provider) error {
	name := p.Name()
	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("providers: duplicate provider %q", name)
	}
	r.providers[name] = p
	r.ordered = append(r.ordered, name)
	return nil
}

// Get returns the provider with the given name.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotFound, name)
	}
	return p, nil
}

// Names returns provider names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// GetAllContexts queries every provider concurrently and returns their
// fragments sorted by priority descending; ties preserve registration order.
// A provider error (or panic) excludes that provider only.
func (r *Registry) GetAllContexts(ctx context.Context, view View) []model.ProviderContext {
	results := make([]*model.ProviderContext, len(r.ordered))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range r.ordered {
		i, p := i, r.providers[name]
		g.Go(func() error {
			defer func() {
				if rec := recover(); rec != nil {
					r.logger.Error("providers: provider panicked",
						"provider", p.Name(), "panic", rec)
				}
			}()

			pc, err := p.Context(gctx, view)
			if err != nil {
				r.logger.Warn("providers: provider failed, excluding",
					"provider", p.Name(), "session_id", view.SessionID, "error", err)
				return nil // isolation: never abort the group
			}
			pc.Provider = p.Name()
			results[i] = &pc
			return nil
		})
	}
	_ = g.Wait() // member errors are swallowed above

	out := make([]model.ProviderContext, 0, len(results))
	for _, pc := range results {
		if pc != nil {
			out = append(out, *pc)
		}
	}

	// Stable sort over the registration-ordered slice keeps ties deterministic.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}

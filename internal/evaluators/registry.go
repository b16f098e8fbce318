// Package evaluators implements the post-cycle evaluator registry.
//
// An evaluator is a pure function over a window of the event log: it emits
// weighted facts, detected patterns, and recommendations, and never touches
// providers or world state. Like providers, evaluators are failure-isolated;
// one evaluator's error excludes only that evaluator.
package evaluators

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/questweaver-ai/questweaver/internal/model"
)

// Evaluator analyzes one event window after a decision cycle.
type Evaluator interface {
	// Name is the unique evaluator identifier.
	Name() string
	// Evaluate scans the window and reports what it learned.
	Evaluate(events []model.Event, sessionID uuid.UUID) (model.EvaluationResult, error)
}

// Registry holds named evaluators and fans out evaluation.
type Registry struct {
	logger *slog.Logger

	evaluators map[string]Evaluator
	ordered    []string
}

// NewRegistry creates an empty evaluator registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:     logger,
		evaluators: make(map[string]Evaluator),
	}
}

// NewDefaultRegistry creates a registry with the five standard evaluators.
func NewDefaultRegistry(logger *slog.Logger) (*Registry, error) {
	r := NewRegistry(logger)
	defaults := []Evaluator{
		SuccessPatternEvaluator{},
		MistakeLearningEvaluator{},
		GoalProgressEvaluator{},
		RelationshipEvaluator{},
		EfficiencyEvaluator{},
	}
	for _, e := range defaults {
		if err := r.Register(e); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds an evaluator. Registering a duplicate name is an error.
func (r *Registry) Register(e Evaluator) error {
	name := e.Name()
	if _, exists := r.evaluators[name]; exists {
		return fmt.Errorf("evaluators: duplicate evaluator %q", name)
	}
	r.evaluators[name] = e
	r.ordered = append(r.ordered, name)
	return nil
}

// Names returns evaluator names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// EvaluateAll runs every evaluator concurrently over the same window and
// aggregates results in registration order. A failing or panicking evaluator
// is logged and excluded; the rest still report.
func (r *Registry) EvaluateAll(events []model.Event, sessionID uuid.UUID) []model.EvaluationResult {
	results := make([]*model.EvaluationResult, len(r.ordered))

	var g errgroup.Group
	for i, name := range r.ordered {
		i, e := i, r.evaluators[name]
		g.Go(func() error {
			defer func() {
				if rec := recover(); rec != nil {
					r.logger.Error("evaluators: evaluator panicked",
						"evaluator", e.Name(), "panic", rec)
				}
			}()

			res, err := e.Evaluate(events, sessionID)
			if err != nil {
				r.logger.Warn("evaluators: evaluator failed, excluding",
					"evaluator", e.Name(), "session_id", sessionID, "error", err)
				return nil
			}
			res.Evaluator = e.Name()
			results[i] = &res
			return nil
		})
	}
	_ = g.Wait()

	out := make([]model.EvaluationResult, 0, len(results))
	for _, res := range results {
		if res != nil {
			out = append(out, *res)
		}
	}
	return out
}

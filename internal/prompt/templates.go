// Package prompt implements reasoning template selection and prompt
// compilation.
//
// A template names the providers and event kinds it wants, and the compiler
// merges provider contexts, an event-log window, and a memory digest into the
// prompt sent to the reasoning service. Missing data renders an explicit
// "none available" placeholder so the model never sees an ambiguous blank.
package prompt

import (
	"errors"
	"fmt"

	"github.com/questweaver-ai/questweaver/internal/model"
)

// ErrTemplateNotFound is returned when Get names an unregistered template.
var ErrTemplateNotFound = errors.New("prompt: template not found")

// Template names.
const (
	TemplateCombat      = "combat"
	TemplateSocial      = "social"
	TemplateExploration = "exploration"
	TemplateDecision    = "decision"
	TemplateLearning    = "learning"
	TemplatePlanning    = "planning"
)

// DefaultEventWindow is the number of recent events compiled into a prompt
// when a template does not override it.
const DefaultEventWindow = 20

// DefaultMemoryLimit is the maximum number of memory entries compiled into a
// prompt.
const DefaultMemoryLimit = 10

// Template describes one reasoning mode.
type Template struct {
	Name string
	// System is the system instruction for the reasoning service.
	System string
	// Providers filters which provider fragments are compiled in.
	// Empty means all.
	Providers []string
	// EventKinds filters the event window. Empty means all kinds.
	EventKinds []model.EventKind
	// EventWindow caps the event window; zero falls back to
	// DefaultEventWindow.
	EventWindow int
}

// Registry holds reasoning templates by name.
type Registry struct {
	templates map[string]Template
}

// NewRegistry creates a registry with no templates.
func NewRegistry() *Registry {
	return &Registry{templates: make(map[string]Template)}
}

// NewDefaultRegistry creates a registry with the six standard templates.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, t := range defaultTemplates {
		r.Register(t)
	}
	return r
}

// Register adds or replaces a template.
func (r *Registry) Register(t Template) {
	r.templates[t.Name] = t
}

// Get returns the template with the given name.
func (r *Registry) Get(name string) (Template, error) {
	t, ok := r.templates[name]
	if !ok {
		return Template{}, fmt.Errorf("%w: %q", ErrTemplateNotFound, name)
	}
	return t, nil
}

// hostileTypes are entity types that force the combat template.
var hostileTypes = map[string]bool{
	"goblin":   true,
	"orc":      true,
	"skeleton": true,
	"bandit":   true,
	"wolf":     true,
	"dragon":   true,
	"monster":  true,
	"hostile":  true,
}

// Select picks a template for the current world state and recent events.
// The cascade is a pure function: hostile entity visible → combat; active
// dialogue → social; more than two recent observations → exploration;
// otherwise the default decision template.
func Select(world model.WorldState, recent []model.Event) string {
	for _, e := range world.VisibleEntities {
		if hostileTypes[e.Type] {
			return TemplateCombat
		}
	}
	if world.ActiveDialogue != nil {
		return TemplateSocial
	}

	observations := 0
	for _, ev := range recent {
		if ev.Kind == model.EventObservation {
			observations++
		}
	}
	if observations > 2 {
		return TemplateExploration
	}
	return TemplateDecision
}

var defaultTemplates = []Template{
	{
		Name: TemplateCombat,
		System: "You are an autonomous game agent in combat. Assess threats, " +
			"use your stats and inventory, and fight or retreat deliberately. " +
			"Reason briefly, then act with the provided tools.",
		Providers:  []string{"world_state", "memory", "performance", "recent_events"},
		EventKinds: []model.EventKind{model.EventAction, model.EventReward, model.EventError, model.EventObservation},
	},
	{
		Name: TemplateSocial,
		System: "You are an autonomous game agent in a conversation. Stay in " +
			"character, remember who you are talking to, and pursue your goals " +
			"through dialogue before resorting to other tools.",
		Providers:  []string{"world_state", "goals", "memory", "recent_events"},
		EventKinds: []model.EventKind{model.EventMessage, model.EventAction, model.EventObservation},
	},
	{
		Name: TemplateExploration,
		System: "You are an autonomous game agent exploring unfamiliar " +
			"territory. Note what you observe, build a picture of the area, and " +
			"move with intent rather than wandering.",
		Providers:  []string{"world_state", "goals", "memory", "recent_events"},
		EventKinds: []model.EventKind{model.EventObservation, model.EventAction, model.EventState},
	},
	{
		Name: TemplateDecision,
		System: "You are an autonomous game agent. Weigh your goals, your " +
			"memories, and the current situation, then take the single most " +
			"useful action with the provided tools.",
	},
	{
		Name: TemplateLearning,
		System: "You are an autonomous game agent reflecting on recent " +
			"outcomes. Identify what worked, what failed and why, and state the " +
			"lesson before choosing your next action.",
		Providers:  []string{"memory", "performance", "recent_events"},
		EventKinds: []model.EventKind{model.EventAction, model.EventReward, model.EventError},
	},
	{
		Name: TemplatePlanning,
		System: "You are an autonomous game agent planning ahead. Break your " +
			"active quests into next steps, order them, and begin with the first " +
			"one.",
		Providers: []string{"goals", "world_state", "memory"},
	},
}

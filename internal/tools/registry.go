// Package tools implements the tool registry: the fixed catalog of named,
// schema-validated world-mutation operations the reasoning service may invoke.
//
// Tools are pure: Execute receives the current world state by value and
// returns a ToolResult carrying a new state. A failed result carries the
// input state unchanged. Validation failures on known tools are domain
// outcomes; unknown tools and malformed arguments are configuration errors.
package tools

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/questweaver-ai/questweaver/internal/model"
)

var (
	// ErrToolNotFound is returned when an invocation names an unregistered tool.
	ErrToolNotFound = errors.New("tools: tool not found")
	// ErrInvalidArguments is returned when arguments fail schema validation.
	ErrInvalidArguments = errors.New("tools: invalid arguments")
)

// Tool is one registered world-mutation operation.
type Tool interface {
	// Name is the unique tool identifier.
	Name() string
	// Description explains the tool to the reasoning service.
	Description() string
	// SchemaJSON is the JSON Schema for the tool's argument object.
	SchemaJSON() string
	// Execute applies the tool to the given state and returns the outcome.
	// Arguments have already passed schema validation.
	Execute(args map[string]any, state model.WorldState) model.ToolResult
}

// Registry holds the tool catalog with compiled argument schemas.
type Registry struct {
	tools   map[string]*registered
	ordered []string // registration order, for a stable catalog
}

type registered struct {
	tool   Tool
	schema *jsonschema.Schema
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*registered)}
}

// NewDefaultRegistry creates a registry with the eight built-in tools.
func NewDefaultRegistry() (*Registry, error) {
	r := NewRegistry()
	builtin := []Tool{
		MoveTool{},
		InteractTool{},
		AttackTool{},
		UseItemTool{},
		SpeakTool{},
		QuestActionTool{},
		InventoryActionTool{},
		WaitTool{},
	}
	for _, t := range builtin {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register compiles the tool's argument schema and adds it to the catalog.
// Registering a duplicate name is an error.
func (r *Registry) Register(t Tool) error {
	name := t.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tools: duplicate tool %q", name)
	}

	schema, err := jsonschema.CompileString(name+".schema.json", t.SchemaJSON())
	if err != nil {
		return fmt.Errorf("tools: compile schema for %q: %w", name, err)
	}

	r.tools[name] = &registered{tool: t, schema: schema}
	r.ordered = append(r.ordered, name)
	return nil
}

// Get returns the tool with the given name.
func (r *Registry) Get(name string) (Tool, error) {
	reg, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrToolNotFound, name)
	}
	return reg.tool, nil
}

// Names returns the tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// CatalogEntry describes one tool for the reasoning-service request.
type CatalogEntry struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Catalog returns the tool schema catalog in registration order.
func (r *Registry) Catalog() []CatalogEntry {
	out := make([]CatalogEntry, 0, len(r.ordered))
	for _, name := range r.ordered {
		t := r.tools[name].tool
		var params map[string]any
		if err := json.Unmarshal([]byte(t.SchemaJSON()), &params); err != nil {
			// Schemas are compiled at registration; this cannot fail for a
			// registered tool.
			continue
		}
		out = append(out, CatalogEntry{
			Name:        name,
			Description: t.Description(),
			Parameters:  params,
		})
	}
	return out
}

// Execute validates and runs one invocation against the given state.
//
// Unknown tool names and schema violations return errors (configuration
// failures); everything past validation is expressed as a ToolResult,
// including domain failures.
func (r *Registry) Execute(inv model.ToolInvocation, state model.WorldState) (model.ToolResult, error) {
	reg, ok := r.tools[inv.Tool]
	if !ok {
		return model.ToolResult{}, fmt.Errorf("%w: %q", ErrToolNotFound, inv.Tool)
	}

	args := inv.Arguments
	if args == nil {
		args = map[string]any{}
	}
	if err := reg.schema.Validate(normalize(args)); err != nil {
		return model.ToolResult{}, fmt.Errorf("%w: %s: %v", ErrInvalidArguments, inv.Tool, err)
	}

	return reg.tool.Execute(args, state), nil
}

// normalize round-trips arguments through JSON so schema validation sees the
// same value shapes it would for a decoded request body (float64 numbers,
// map[string]any objects).
func normalize(args map[string]any) any {
	raw, err := json.Marshal(args)
	if err != nil {
		return args
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return args
	}
	return v
}

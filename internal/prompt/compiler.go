package prompt

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/questweaver-ai/questweaver/internal/model"
)

// CompiledPrompt is the assembled input for one reasoning call.
type CompiledPrompt struct {
	Template string
	System   string
	User     string
}

// Compiler renders provider contexts, an event window, and a memory digest
// into a single prompt.
type Compiler struct {
	registry    *Registry
	memoryLimit int
}

// NewCompiler creates a compiler backed by the given template registry.
func NewCompiler(registry *Registry) *Compiler {
	return &Compiler{registry: registry, memoryLimit: DefaultMemoryLimit}
}

var bodyTmpl = template.Must(template.New("prompt").Parse(`## Context
{{- range .Contexts}}

# from {{.Provider}} (priority {{.Priority}})
{{.Content}}
{{- else}}

none available
{{- end}}

## Recent Events
{{- range .Events}}
- [{{.Kind}}] {{.Summary}}
{{- else}}
none available
{{- end}}

## Memories
{{- range .Memories}}
- ({{.Type}}, confidence {{printf "%.2f" .Confidence}}) {{.Content}}
{{- else}}
none available
{{- end}}

Decide on your next action now. Respond with brief reasoning, then call
exactly one tool.`))

type bodyData struct {
	Contexts []model.ProviderContext
	Events   []eventLine
	Memories []model.MemoryEntry
}

type eventLine struct {
	Kind    model.EventKind
	Summary string
}

// Compile renders the named template against the given inputs. Provider
// fragments are filtered to the template's provider list, events to its
// kinds and window, and memories are truncated to the digest limit. Expired
// provider fragments are dropped.
func (c *Compiler) Compile(name string, contexts []model.ProviderContext, events []model.Event, memories []model.MemoryEntry) (CompiledPrompt, error) {
	t, err := c.registry.Get(name)
	if err != nil {
		return CompiledPrompt{}, err
	}

	data := bodyData{
		Contexts: filterContexts(t, contexts, time.Now()),
		Events:   windowEvents(t, events),
		Memories: memories,
	}
	if len(data.Memories) > c.memoryLimit {
		data.Memories = data.Memories[:c.memoryLimit]
	}

	var buf strings.Builder
	if err := bodyTmpl.Execute(&buf, data); err != nil {
		return CompiledPrompt{}, fmt.Errorf("prompt: render %q: %w", name, err)
	}
	return CompiledPrompt{Template: t.Name, System: t.System, User: buf.String()}, nil
}

func filterContexts(t Template, contexts []model.ProviderContext, now time.Time) []model.ProviderContext {
	allowed := map[string]bool{}
	for _, p := range t.Providers {
		allowed[p] = true
	}
	out := make([]model.ProviderContext, 0, len(contexts))
	for _, pc := range contexts {
		if len(allowed) > 0 && !allowed[pc.Provider] {
			continue
		}
		if pc.Expired(now) {
			continue
		}
		out = append(out, pc)
	}
	return out
}

// windowEvents keeps the template's event kinds and trims to the most recent
// window, preserving chronological order.
func windowEvents(t Template, events []model.Event) []eventLine {
	kinds := map[model.EventKind]bool{}
	for _, k := range t.EventKinds {
		kinds[k] = true
	}
	kept := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if len(kinds) > 0 && !kinds[ev.Kind] {
			continue
		}
		kept = append(kept, ev)
	}
	window := t.EventWindow
	if window <= 0 {
		window = DefaultEventWindow
	}
	if len(kept) > window {
		kept = kept[len(kept)-window:]
	}
	lines := make([]eventLine, len(kept))
	for i, ev := range kept {
		lines[i] = eventLine{Kind: ev.Kind, Summary: summarize(ev)}
	}
	return lines
}

func summarize(ev model.Event) string {
	if d, ok := ev.Payload["description"].(string); ok && d != "" {
		return d
	}
	if c, ok := ev.Payload["text"].(string); ok && c != "" {
		return c
	}
	if len(ev.Payload) == 0 {
		return string(ev.Kind) + " from " + ev.Source
	}
	b, err := json.Marshal(ev.Payload)
	if err != nil {
		return string(ev.Kind) + " from " + ev.Source
	}
	return string(b)
}

// Package tools matches tool-call requests from the Live service against a
// registry of local handlers and produces the tool-response payload.
package tools

import (
	"sync"

	"github.com/rabbittyjenny-sketch/soulweaver/pkg/live"
)

// Tool is one locally executable function the model can invoke.
type Tool struct {
	// Name is the unique identifier (e.g., "get_daily_prediction").
	Name string

	// Description helps the model decide when to use the tool.
	Description string

	// Parameters is the schema for the tool's arguments, in the
	// Gemini function-declaration format.
	Parameters map[string]any

	// Enabled controls whether the tool is declared to the service and
	// dispatchable. Disabled tools produce the not-found fallback.
	Enabled bool

	// Handler receives the parsed arguments and returns a result string.
	// Failures are captured into the response payload, never propagated.
	Handler func(args map[string]any) (string, error)
}

// Registry is an ordered collection of tools.
type Registry struct {
	mu    sync.Mutex
	tools []Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a tool, replacing any existing tool of the same name
// in place.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.tools {
		if r.tools[i].Name == t.Name {
			r.tools[i] = t
			return
		}
	}
	r.tools = append(r.tools, t)
}

// SetEnabled flips a tool's enablement. Unknown names are ignored.
func (r *Registry) SetEnabled(name string, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.tools {
		if r.tools[i].Name == name {
			r.tools[i].Enabled = enabled
			return
		}
	}
}

// Lookup returns the tool with the given name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.tools {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}

// Declarations returns the function declarations for the enabled tools,
// in registration order. Only these are exposed to the service.
func (r *Registry) Declarations() []live.FunctionDeclaration {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []live.FunctionDeclaration
	for _, t := range r.tools {
		if !t.Enabled {
			continue
		}
		out = append(out, live.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}
	return out
}

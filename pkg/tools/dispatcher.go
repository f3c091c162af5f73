package tools

import (
	"fmt"
	"log/slog"

	"github.com/rabbittyjenny-sketch/soulweaver/pkg/live"
)

// Dispatcher executes tool-call requests against a registry.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher over the given registry.
func NewDispatcher(registry *Registry, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{registry: registry, logger: logger}
}

// Dispatch executes every function call in the request synchronously and
// returns exactly one response per call, id-matched in order. Unknown or
// disabled tools and handler failures produce textual results; the batch
// is never aborted.
func (d *Dispatcher) Dispatch(req live.ToolCallRequest) []live.FunctionResponse {
	responses := make([]live.FunctionResponse, 0, len(req.FunctionCalls))

	for _, fc := range req.FunctionCalls {
		result := d.execute(fc)
		responses = append(responses, live.FunctionResponse{
			ID:       fc.ID,
			Name:     fc.Name,
			Response: map[string]any{"result": result},
		})
	}

	return responses
}

func (d *Dispatcher) execute(fc live.FunctionCall) (result string) {
	// A panicking handler must not escape the event-handler boundary.
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("tool handler panicked", "tool", fc.Name, "panic", r)
			result = fmt.Sprintf("Error: tool %q failed", fc.Name)
		}
	}()

	tool, ok := d.registry.Lookup(fc.Name)
	if !ok || !tool.Enabled || tool.Handler == nil {
		d.logger.Warn("tool call for unavailable tool", "tool", fc.Name)
		return fmt.Sprintf("Function %q is not available.", fc.Name)
	}

	d.logger.Debug("executing tool", "tool", fc.Name, "call_id", fc.ID)

	out, err := tool.Handler(fc.Args)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return out
}

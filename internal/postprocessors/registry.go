package postprocessors

import (
	"fmt"
	"slices"
	"strings"

	"github.com/custodia-labs/lexcorpus/internal/core/domain"
	"github.com/custodia-labs/lexcorpus/internal/core/ports/driven"
)

// BuilderFunc creates a PostProcessor from its step settings.
type BuilderFunc func(cfg map[string]any) (driven.PostProcessor, error)

// Step names a processor and its settings within a pipeline definition.
type Step struct {
	Name   string
	Config map[string]any
}

// Registry maps processor names to their builders.
type Registry struct {
	builders map[string]BuilderFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]BuilderFunc)}
}

// Register adds a builder. Registering a name twice is a wiring bug and panics.
func (r *Registry) Register(name string, builder BuilderFunc) {
	if _, dup := r.builders[name]; dup {
		panic(fmt.Sprintf("postprocessors: %q registered twice", name))
	}
	r.builders[name] = builder
}

// Build creates the processor registered under name.
func (r *Registry) Build(name string, cfg map[string]any) (driven.PostProcessor, error) {
	builder, ok := r.builders[name]
	if !ok {
		return nil, fmt.Errorf("unknown processor %q (known: %s): %w",
			name, strings.Join(r.Names(), ", "), domain.ErrInvalidInput)
	}
	processor, err := builder(cfg)
	if err != nil {
		return nil, fmt.Errorf("processor %s: %w", name, err)
	}
	return processor, nil
}

// BuildPipeline builds each step in order. A pipeline needs at least one
// step, since the first one creates the chunks.
func (r *Registry) BuildPipeline(steps ...Step) (*Pipeline, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("pipeline has no steps: %w", domain.ErrInvalidInput)
	}
	processors := make([]driven.PostProcessor, 0, len(steps))
	for i, step := range steps {
		processor, err := r.Build(step.Name, step.Config)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		processors = append(processors, processor)
	}
	return NewPipeline(processors...), nil
}

// Names returns the registered processor names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

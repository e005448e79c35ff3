package content

import "log/slog"

// Registry maps strategy names to generators. Registration happens once at
// startup; lookups afterwards are read-only.
type Registry struct {
	generators map[string]Generator
	defName    string
}

func NewRegistry() *Registry {
	return &Registry{generators: make(map[string]Generator)}
}

// Register adds a generator. The first registered generator becomes the
// default.
func (r *Registry) Register(name string, g Generator) {
	if len(r.generators) == 0 {
		r.defName = name
	}
	r.generators[name] = g
}

func (r *Registry) Get(name string) (Generator, bool) {
	g, ok := r.generators[name]
	return g, ok
}

func (r *Registry) Default() Generator {
	return r.generators[r.defName]
}

// Resolve returns the generator for the given strategy name, falling back to
// the default for empty or unknown names.
func (r *Registry) Resolve(name string) Generator {
	if name == "" {
		return r.Default()
	}
	g, ok := r.generators[name]
	if !ok {
		slog.Warn("content strategy not registered, using default", "strategy", name, "default", r.defName)
		return r.Default()
	}
	return g
}

func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.generators))
	for name := range r.generators {
		out = append(out, name)
	}
	return out
}

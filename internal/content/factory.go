package content

import "github.com/mlevan/autopost/internal/config"

// BuildRegistry wires up every strategy the configuration allows. The
// placeholder is always available and is the default; the OpenAI-backed
// strategies register only when an API key is present.
func BuildRegistry(cfg config.OpenAIConfig, history LinkHistory) *Registry {
	r := NewRegistry()
	r.Register("placeholder", PlaceholderGenerator{})
	if cfg.APIKey != "" {
		r.Register("openai", NewOpenAIGenerator(cfg.APIKey, cfg.Model))
		r.Register("news", NewNewsDigestGenerator(cfg.APIKey, cfg.Model, history))
	}
	return r
}

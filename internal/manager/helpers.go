package manager

import (
	"strings"

	"musicd/internal/registry"
	"musicd/pkg/types"
)

// resolveRequest validates req and returns its variant and effective token
// budget. It never touches the registry, so invalid requests load nothing.
func (m *Manager) resolveRequest(req GenerationRequest) (types.Variant, int, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return types.Variant{}, 0, newError(KindInvalidRequest, req.Variant, nil, "prompt is required")
	}
	name := req.Variant
	if strings.TrimSpace(name) == "" {
		name = registry.DefaultVariant
	}
	v, ok := registry.Find(m.variants, name)
	if !ok {
		return types.Variant{}, 0, newError(KindInvalidRequest, name, nil,
			"unknown model %q (available: %s)", name, strings.Join(registry.Names(m.variants), ", "))
	}
	maxTokens := req.MaxTokens
	switch {
	case maxTokens < 0:
		return types.Variant{}, 0, newError(KindInvalidRequest, v.Name, nil, "max_tokens must be positive, got %d", maxTokens)
	case maxTokens == 0:
		maxTokens = v.DefaultMaxTokens
	case m.maxTokensLimit > 0 && maxTokens > m.maxTokensLimit:
		return types.Variant{}, 0, newError(KindInvalidRequest, v.Name, nil, "max_tokens %d exceeds limit %d", maxTokens, m.maxTokensLimit)
	}
	return v, maxTokens, nil
}

package types

// Variant is a named model size configuration. Each variant maps to one
// pretrained model identifier and carries its own default token budget.
type Variant struct {
	// Short name used by clients to select the variant.
	// example: small
	Name string `json:"name" yaml:"name" toml:"name" example:"small"`
	// Model identifier understood by the inference backend.
	// example: facebook/musicgen-small
	ModelID string `json:"model_id" yaml:"model_id" toml:"model_id" example:"facebook/musicgen-small"`
	// Token budget used when a request does not specify max_tokens.
	// example: 256
	DefaultMaxTokens int `json:"default_max_tokens" yaml:"default_max_tokens" toml:"default_max_tokens" example:"256"`
	// Optional human-friendly description.
	Description string `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
}

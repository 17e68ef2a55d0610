package types

// GenerateRequest is the JSON body accepted by POST /generate.
type GenerateRequest struct {
	// Required text describing the music to generate.
	// example: A calming piano melody
	Prompt string `json:"prompt" example:"A calming piano melody"`
	// Optional variant name. Defaults to "small".
	// example: small
	Model string `json:"model,omitempty" example:"small"`
	// Optional token budget; omitted or 0 uses the variant default.
	// example: 256
	MaxTokens int `json:"max_tokens,omitempty" example:"256"`
}

// GenerateResponse is returned by POST /generate on success.
type GenerateResponse struct {
	// Always true for this payload.
	Success bool `json:"success" example:"true"`
	// URL path from which the generated file can be fetched.
	// example: /static/generated/music_small_1700000000_1a2b3c4d.wav
	AudioURL string `json:"audio_url" example:"/static/generated/music_small_1700000000_1a2b3c4d.wav"`
	// Base name of the generated file.
	// example: music_small_1700000000_1a2b3c4d.wav
	Filename string `json:"filename" example:"music_small_1700000000_1a2b3c4d.wav"`
	// Audio length in seconds.
	// example: 5.12
	Duration float64 `json:"duration" example:"5.12"`
	// Wall-clock generation time in seconds.
	// example: 12.4
	GenerationTime float64 `json:"generation_time" example:"12.4"`
	// Variant used for the generation.
	// example: small
	Model string `json:"model" example:"small"`
	// Sample rate of the written audio in Hz.
	// example: 32000
	SampleRate int `json:"sample_rate" example:"32000"`
	// Token budget that was applied.
	// example: 256
	MaxTokens int `json:"max_tokens" example:"256"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Always false for this payload.
	Success bool `json:"success" example:"false"`
	// Error message.
	// example: prompt is required
	Error string `json:"error" example:"prompt is required"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	// example: healthy
	Status string `json:"status" example:"healthy"`
}

// ModelsResponse wraps the list of variants returned by GET /models.
type ModelsResponse struct {
	// Configured variants.
	Models []Variant `json:"models"`
}

package types

// HandleStatus summarizes a loaded model handle for /status.
type HandleStatus struct {
	// Variant served by this handle.
	// example: small
	Variant string `json:"variant" example:"small"`
	// Model identifier loaded into the handle.
	// example: facebook/musicgen-small
	ModelID string `json:"model_id" example:"facebook/musicgen-small"`
	// Device kind the handle is bound to.
	// example: cuda
	Device string `json:"device" example:"cuda"`
	// Human-readable device description.
	// example: CUDA: NVIDIA GeForce RTX 4090
	DeviceDescriptor string `json:"device_descriptor" example:"CUDA: NVIDIA GeForce RTX 4090"`
	// Sample rate reported by the model.
	// example: 32000
	SampleRate int `json:"sample_rate" example:"32000"`
	// Time the handle finished loading (unix seconds).
	// example: 1700000000
	LoadedAt int64 `json:"loaded_at_unix" example:"1700000000"`
	// Seconds spent loading the model.
	// example: 8.5
	LoadSeconds float64 `json:"load_seconds" example:"8.5"`
	// Last time this handle served a generation (unix seconds).
	// example: 1700000000
	LastUsed int64 `json:"last_used_unix" example:"1700000000"`
	// Requests waiting for the handle, including the in-flight one.
	// example: 0
	QueueLen int `json:"queue_len" example:"0"`
	// In-flight generations (0 or 1).
	// example: 1
	Inflight int `json:"inflight" example:"1"`
	// Maximum queued requests allowed before backpressure triggers.
	// example: 32
	MaxQueueDepth int `json:"max_queue_depth" example:"32"`
	// Number of generations served by this handle.
	// example: 3
	Generations uint64 `json:"generations" example:"3"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Loaded handles, sorted by variant name.
	Handles []HandleStatus `json:"handles"`
	// Variants loads currently in progress.
	Loading []string `json:"loading,omitempty"`
	// Configured variants.
	Variants []Variant `json:"variants"`
	// Last error observed by the manager (if any).
	LastError string `json:"last_error,omitempty"`
	// Total number of successful model loads.
	// example: 2
	LoadsTotal uint64 `json:"loads_total" example:"2"`
	// Total number of failed model loads.
	// example: 0
	LoadFailuresTotal uint64 `json:"load_failures_total" example:"0"`
	// Total number of successful generations.
	// example: 12
	GenerationsTotal uint64 `json:"generations_total" example:"12"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}

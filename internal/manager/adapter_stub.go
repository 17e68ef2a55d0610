package manager

import (
	"context"

	"musicd/internal/device"
)

// unavailableBackend refuses every load. It is used when no inference worker
// is configured so that production binaries never fabricate audio.
type unavailableBackend struct {
	reason string
}

// NewUnavailableBackend returns a Backend whose Load and Ping fail with a
// dependency-unavailable error carrying reason.
func NewUnavailableBackend(reason string) Backend {
	if reason == "" {
		reason = "no inference backend configured"
	}
	return &unavailableBackend{reason: reason}
}

func (b *unavailableBackend) Load(ctx context.Context, modelID string, dev device.Device) (Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, ErrDependencyUnavailable(b.reason)
}

func (b *unavailableBackend) Ping(context.Context) error {
	return ErrDependencyUnavailable(b.reason)
}

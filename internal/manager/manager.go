package manager

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"musicd/internal/device"
	"musicd/pkg/types"
)

// Manager owns the variant catalog, the handle registry and the output
// policy. It is safe for concurrent use; one Manager per process.
type Manager struct {
	mu        sync.RWMutex
	lastErr   string
	publisher EventPublisher

	variants    []types.Variant
	backend     Backend
	runtime     device.Runtime
	devicePref  string
	outputDir   string
	uniqueNames bool
	writer      AudioWriter
	handles     *handleRegistry

	// Queue config
	maxQueueDepth  int
	maxWait        time.Duration
	maxTokensLimit int

	log         zerolog.Logger
	generations atomic.Uint64
	startTime   time.Time
	now         func() time.Time
	suffix      func() string
}

// New constructs a Manager with package defaults, the given backend and the
// given output directory.
func New(backend Backend, outputDir string) *Manager {
	// Delegate to NewWithConfig to centralize defaults and option parsing
	return NewWithConfig(ManagerConfig{
		Backend:   backend,
		OutputDir: outputDir,
	})
}

// Variants returns a copy of the variant catalog.
func (m *Manager) Variants() []types.Variant {
	out := make([]types.Variant, len(m.variants))
	copy(out, m.variants)
	return out
}

// OutputDir is the directory synthesized file names are placed in.
func (m *Manager) OutputDir() string { return m.outputDir }

// SetEventPublisher replaces the event sink. Nil restores the no-op sink.
func (m *Manager) SetEventPublisher(p EventPublisher) {
	if p == nil {
		p = noopPublisher{}
	}
	m.mu.Lock()
	m.publisher = p
	m.mu.Unlock()
}

// Close releases every loaded model. The Manager must not be used afterwards.
func (m *Manager) Close() error {
	var first error
	for _, h := range m.handles.all() {
		if err := h.model.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m *Manager) publish(e Event) {
	m.mu.RLock()
	p := m.publisher
	m.mu.RUnlock()
	p.Publish(e)
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	if err == nil {
		m.lastErr = ""
	} else {
		m.lastErr = err.Error()
	}
	m.mu.Unlock()
}

package manager

import (
	"io"
	"time"

	"github.com/rs/zerolog"

	"musicd/internal/audiofile"
	"musicd/internal/device"
	"musicd/internal/registry"
	"musicd/pkg/types"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultMaxQueueDepth  = 32
	defaultMaxWait        = 10 * time.Minute
	defaultLoadTimeout    = 30 * time.Minute
	defaultMaxTokensLimit = 1503
	defaultOutputDir      = "."
)

// AudioWriter persists a mono waveform. Implementations pick the container.
type AudioWriter interface {
	Write(out io.WriteSeeker, samples []float32, sampleRate int) error
	Extension() string
}

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	// Variants is the catalog of model sizes. Nil uses registry.Defaults().
	Variants []types.Variant
	// Backend loads models. Nil uses an unavailable backend.
	Backend Backend
	// Runtime probes accelerators. Nil uses Backend when it implements
	// device.Runtime, else the host probe.
	Runtime device.Runtime
	// Device is the device preference: auto (default), mps, cuda or cpu.
	Device string
	// OutputDir receives generated files when a request has no output hint.
	OutputDir string
	// UniqueNames appends a random suffix to synthesized file names.
	UniqueNames bool
	// Writer encodes audio files. Nil uses 16-bit PCM WAV.
	Writer AudioWriter
	// MaxQueueDepth bounds waiting + in-flight requests per handle.
	MaxQueueDepth int
	// MaxWait bounds how long a request waits for admission.
	MaxWait time.Duration
	// LoadTimeout bounds one model load, independent of any waiter.
	LoadTimeout time.Duration
	// MaxTokensLimit rejects explicit budgets above it. Negative disables.
	MaxTokensLimit int
	// Logger receives structured lifecycle logs. Nil discards.
	Logger *zerolog.Logger
	// Publisher receives lifecycle events. Nil discards.
	Publisher EventPublisher
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		variants:    cfg.Variants,
		backend:     cfg.Backend,
		runtime:     cfg.Runtime,
		devicePref:  cfg.Device,
		outputDir:   cfg.OutputDir,
		uniqueNames: cfg.UniqueNames,
		writer:      cfg.Writer,
		publisher:   cfg.Publisher,
		log:         zerolog.Nop(),
		now:         time.Now,
		suffix:      randomSuffix,
	}
	if m.variants == nil {
		m.variants = registry.Defaults()
	}
	if m.backend == nil {
		m.backend = NewUnavailableBackend("")
	}
	if m.runtime == nil {
		if rt, ok := m.backend.(device.Runtime); ok {
			m.runtime = rt
		} else {
			m.runtime = device.NewHostRuntime()
		}
	}
	if m.outputDir == "" {
		m.outputDir = defaultOutputDir
	}
	if m.writer == nil {
		m.writer = audiofile.WAVWriter{}
	}
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	if cfg.Logger != nil {
		m.log = *cfg.Logger
	}
	// Apply defaults if unset
	if cfg.MaxQueueDepth <= 0 {
		m.maxQueueDepth = defaultMaxQueueDepth
	} else {
		m.maxQueueDepth = cfg.MaxQueueDepth
	}
	if cfg.MaxWait <= 0 {
		m.maxWait = defaultMaxWait
	} else {
		m.maxWait = cfg.MaxWait
	}
	loadTimeout := cfg.LoadTimeout
	if loadTimeout <= 0 {
		loadTimeout = defaultLoadTimeout
	}
	switch {
	case cfg.MaxTokensLimit == 0:
		m.maxTokensLimit = defaultMaxTokensLimit
	case cfg.MaxTokensLimit < 0:
		m.maxTokensLimit = 0
	default:
		m.maxTokensLimit = cfg.MaxTokensLimit
	}
	m.handles = newHandleRegistry(m.loadHandle, loadTimeout)
	m.startTime = m.now()
	return m
}

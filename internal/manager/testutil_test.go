package manager

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"musicd/internal/device"
)

// fixedRuntime reports the listed accelerators as available.
type fixedRuntime map[device.Kind]string

func (r fixedRuntime) Available(_ context.Context, k device.Kind) (string, bool) {
	d, ok := r[k]
	return d, ok
}

// fakeBackend is a lightweight in-memory backend used for tests.
type fakeBackend struct {
	rate            int
	samplesPerToken int
	loadDelay       time.Duration
	inferDelay      time.Duration
	failLoads       int
	encodeErr       error
	inferErr        error
	// loadGate, when non-nil, blocks loads until closed; loadStarted is
	// signalled when a load begins.
	loadGate    chan struct{}
	loadStarted chan string
	inferGate   chan struct{}
	inferStart  chan string

	mu          sync.Mutex
	loads       map[string]int
	devices     []device.Device
	closed      int
	inflight    map[string]int
	maxInflight map[string]int
	lastTokens  int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		rate:            32000,
		samplesPerToken: 640,
		loads:           make(map[string]int),
		inflight:        make(map[string]int),
		maxInflight:     make(map[string]int),
	}
}

func (b *fakeBackend) Load(ctx context.Context, modelID string, dev device.Device) (Model, error) {
	b.mu.Lock()
	b.loads[modelID]++
	b.devices = append(b.devices, dev)
	fail := b.failLoads > 0
	if fail {
		b.failLoads--
	}
	b.mu.Unlock()
	if b.loadStarted != nil {
		b.loadStarted <- modelID
	}
	if b.loadGate != nil {
		select {
		case <-b.loadGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := sleepCtx(ctx, b.loadDelay); err != nil {
		return nil, err
	}
	if fail {
		return nil, errors.New("weights not found")
	}
	return &fakeModel{b: b, id: modelID}, nil
}

func (b *fakeBackend) loadCount(modelID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loads[modelID]
}

func (b *fakeBackend) totalLoads() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.loads {
		n += c
	}
	return n
}

func (b *fakeBackend) peak(modelID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.maxInflight[modelID]
}

type fakeModel struct {
	b  *fakeBackend
	id string
}

func (m *fakeModel) SamplingRate() int { return m.b.rate }

func (m *fakeModel) Encode(ctx context.Context, prompt string) (EncodedInput, error) {
	if m.b.encodeErr != nil {
		return EncodedInput{}, m.b.encodeErr
	}
	words := strings.Fields(prompt)
	in := EncodedInput{InputIDs: make([]int64, len(words)), AttentionMask: make([]int64, len(words))}
	for i := range words {
		in.InputIDs[i] = int64(i + 1)
		in.AttentionMask[i] = 1
	}
	return in, nil
}

func (m *fakeModel) Infer(ctx context.Context, in EncodedInput, maxTokens int) (RawAudio, error) {
	b := m.b
	b.mu.Lock()
	b.lastTokens = maxTokens
	b.inflight[m.id]++
	if b.inflight[m.id] > b.maxInflight[m.id] {
		b.maxInflight[m.id] = b.inflight[m.id]
	}
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.inflight[m.id]--
		b.mu.Unlock()
	}()
	if b.inferStart != nil {
		b.inferStart <- m.id
	}
	if b.inferGate != nil {
		select {
		case <-b.inferGate:
		case <-ctx.Done():
			return RawAudio{}, ctx.Err()
		}
	}
	if err := sleepCtx(ctx, b.inferDelay); err != nil {
		return RawAudio{}, err
	}
	if b.inferErr != nil {
		return RawAudio{}, b.inferErr
	}
	samples := make([]float32, maxTokens*b.samplesPerToken)
	for i := range samples {
		samples[i] = 0.25
	}
	return RawAudio{Samples: samples}, nil
}

func (m *fakeModel) Close() error {
	m.b.mu.Lock()
	m.b.closed++
	m.b.mu.Unlock()
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// newTestManager builds a Manager writing into a temp dir on the CPU.
func newTestManager(t *testing.T, b Backend, mutate func(*ManagerConfig)) *Manager {
	t.Helper()
	cfg := ManagerConfig{
		Backend:   b,
		Runtime:   fixedRuntime{},
		OutputDir: t.TempDir(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewWithConfig(cfg)
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}

func waitFor(t *testing.T, ch <-chan string, what string) string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		return ""
	}
}

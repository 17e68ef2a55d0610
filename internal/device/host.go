package device

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// HostRuntime probes the local machine. It is used when the inference backend
// cannot report its own accelerators.
type HostRuntime struct {
	// GOOS and GOARCH default to the running platform.
	GOOS   string
	GOARCH string
	// NvidiaSMI is the nvidia-smi binary; defaults to "nvidia-smi" on PATH.
	NvidiaSMI string
	// ProbeTimeout bounds external probe commands (default 3s).
	ProbeTimeout time.Duration

	// run executes a probe command; replaced in tests.
	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewHostRuntime returns a runtime probing the current platform.
func NewHostRuntime() *HostRuntime {
	return &HostRuntime{GOOS: runtime.GOOS, GOARCH: runtime.GOARCH}
}

func (h *HostRuntime) Available(ctx context.Context, kind Kind) (string, bool) {
	switch kind {
	case KindMetal:
		if h.goos() == "darwin" && h.goarch() == "arm64" {
			return "Apple Silicon (MPS)", true
		}
		return "", false
	case KindCUDA:
		name, ok := h.cudaDeviceName(ctx)
		if !ok {
			return "", false
		}
		return "CUDA: " + name, true
	case KindCPU:
		return cpuDescriptor, true
	}
	return "", false
}

func (h *HostRuntime) cudaDeviceName(ctx context.Context) (string, bool) {
	bin := h.NvidiaSMI
	if bin == "" {
		bin = "nvidia-smi"
	}
	timeout := h.ProbeTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	run := h.run
	if run == nil {
		run = runCommand
	}
	out, err := run(ctx, bin, "--query-gpu=name", "--format=csv,noheader")
	if err != nil {
		return "", false
	}
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			return line, true
		}
	}
	return "", false
}

func (h *HostRuntime) goos() string {
	if h.GOOS != "" {
		return h.GOOS
	}
	return runtime.GOOS
}

func (h *HostRuntime) goarch() string {
	if h.GOARCH != "" {
		return h.GOARCH
	}
	return runtime.GOARCH
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, err
	}
	return exec.CommandContext(ctx, name, args...).Output()
}

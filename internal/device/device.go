// Package device picks the compute backend a model handle is bound to.
//
// Backends are probed in a fixed priority order: the Metal-class accelerator
// (Apple Silicon MPS), then the CUDA-class accelerator, then CPU. CPU is always
// available and is the terminal fallback, so selection never fails.
package device

import (
	"context"
	"fmt"
	"strings"
)

// Kind identifies a compute backend.
type Kind string

const (
	KindMetal Kind = "mps"
	KindCUDA  Kind = "cuda"
	KindCPU   Kind = "cpu"
)

// cpuDescriptor is reported for the CPU fallback.
const cpuDescriptor = "CPU"

// priority is the probe order. CPU is not probed.
var priority = []Kind{KindMetal, KindCUDA}

// Device is an immutable, tagged choice of compute backend.
type Device struct {
	Kind       Kind
	Descriptor string
}

func (d Device) String() string {
	if d.Descriptor == "" {
		return string(d.Kind)
	}
	return d.Descriptor
}

// CPU returns the fallback device.
func CPU() Device { return Device{Kind: KindCPU, Descriptor: cpuDescriptor} }

// Runtime reports which accelerators are present. Available returns a
// human-readable descriptor for the backend when it can be used.
type Runtime interface {
	Available(ctx context.Context, kind Kind) (descriptor string, ok bool)
}

// Select returns the first available backend in priority order, or CPU.
// A nil runtime selects CPU.
func Select(ctx context.Context, rt Runtime) Device {
	if rt == nil {
		return CPU()
	}
	for _, k := range priority {
		if desc, ok := rt.Available(ctx, k); ok {
			if desc == "" {
				desc = string(k)
			}
			return Device{Kind: k, Descriptor: desc}
		}
	}
	return CPU()
}

// Resolve honours an explicit preference. "auto" (or empty) runs Select;
// "cpu" always succeeds; an accelerator that is not available is an error.
func Resolve(ctx context.Context, rt Runtime, preference string) (Device, error) {
	p := strings.ToLower(strings.TrimSpace(preference))
	if p == "" || p == "auto" {
		return Select(ctx, rt), nil
	}
	k, err := ParseKind(p)
	if err != nil {
		return Device{}, err
	}
	if k == KindCPU {
		return CPU(), nil
	}
	if rt != nil {
		if desc, ok := rt.Available(ctx, k); ok {
			if desc == "" {
				desc = string(k)
			}
			return Device{Kind: k, Descriptor: desc}, nil
		}
	}
	return Device{}, fmt.Errorf("device %s requested but not available", k)
}

// ParseKind maps user input to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mps", "metal":
		return KindMetal, nil
	case "cuda", "gpu":
		return KindCUDA, nil
	case "cpu":
		return KindCPU, nil
	default:
		return "", fmt.Errorf("unknown device %q (want auto, mps, cuda or cpu)", s)
	}
}

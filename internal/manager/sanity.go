package manager

import (
	"context"
	"os"

	"musicd/internal/common/fsutil"
)

// SanityReport describes runtime checks for external dependencies.
type SanityReport struct {
	BackendReachable bool   `json:"backend_reachable"`
	OutputDir        string `json:"output_dir"`
	OutputWritable   bool   `json:"output_writable"`
	Error            string `json:"error,omitempty"`
}

// OK reports whether every check passed.
func (r SanityReport) OK() bool { return r.BackendReachable && r.OutputWritable }

// SanityCheck validates that the inference backend answers and that the
// output directory is writable. It creates the output directory if missing.
func (m *Manager) SanityCheck(ctx context.Context) SanityReport {
	r := SanityReport{OutputDir: m.outputDir, BackendReachable: true}
	if p, ok := m.backend.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			r.BackendReachable = false
			r.Error = err.Error()
		}
	}
	if err := os.MkdirAll(m.outputDir, 0o755); err != nil {
		if r.Error == "" {
			r.Error = err.Error()
		}
		return r
	}
	if err := fsutil.DirWritable(m.outputDir); err != nil {
		if r.Error == "" {
			r.Error = err.Error()
		}
		return r
	}
	r.OutputWritable = true
	return r
}

// Ready reports whether the Manager can accept generations.
func (m *Manager) Ready(ctx context.Context) bool { return m.SanityCheck(ctx).OK() }

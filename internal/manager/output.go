package manager

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"musicd/internal/audiofile"
	"musicd/internal/common/fsutil"
)

// outputPath returns the destination for a generation. A non-blank hint is
// used verbatim; otherwise the name is music_<variant>_<unix>[_<suffix>].
func (m *Manager) outputPath(variant, hint string) string {
	if strings.TrimSpace(hint) != "" {
		return hint
	}
	name := fmt.Sprintf("music_%s_%d", variant, m.now().Unix())
	if m.uniqueNames {
		name += "_" + m.suffix()
	}
	return filepath.Join(m.outputDir, name+m.writer.Extension())
}

// writeAudio persists w at path atomically: readers never observe a partial file.
func (m *Manager) writeAudio(path string, w Waveform) error {
	return fsutil.WriteAtomic(path, 0o644, func(f *os.File) error {
		return m.writer.Write(f, w.Samples, w.SampleRate)
	})
}

func randomSuffix() string { return uuid.New().String()[:8] }

func clipDuration(w Waveform) float64 { return audiofile.Duration(len(w.Samples), w.SampleRate) }

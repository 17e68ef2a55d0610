// Package audiofile serializes generated waveforms into WAV containers.
//
// Waveforms arrive as mono float32 samples in [-1, 1] and are stored as
// integer PCM. Sample count and sample rate survive a write/read round trip
// exactly; sample values are quantized to the configured bit depth.
package audiofile

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrNoSamples is returned when asked to write an empty waveform. A WAV with
// no frames has zero duration and is rejected by decoders.
var ErrNoSamples = errors.New("no samples to write")

// DefaultBitDepth is used when a WAVWriter has no explicit depth.
const DefaultBitDepth = 16

// pcmFormat is the WAVE_FORMAT_PCM audio format tag.
const pcmFormat = 1

// Clip is a decoded waveform.
type Clip struct {
	Samples    []float32
	SampleRate int
	Channels   int
	BitDepth   int
}

// Duration returns the clip length in seconds.
func (c Clip) Duration() float64 { return Duration(len(c.Samples), c.SampleRate) }

// Duration converts a sample count to seconds. A non-positive rate yields 0.
func Duration(sampleCount, sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(sampleCount) / float64(sampleRate)
}

// WAVWriter writes mono PCM WAV files.
type WAVWriter struct {
	// BitDepth is 16, 24 or 32. Zero means DefaultBitDepth.
	BitDepth int
}

// Extension is the file suffix for files produced by this writer.
func (WAVWriter) Extension() string { return ".wav" }

// Write encodes samples at sampleRate into out. The destination must be
// seekable because the RIFF sizes are patched after the data is written.
func (w WAVWriter) Write(out io.WriteSeeker, samples []float32, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if len(samples) == 0 {
		return ErrNoSamples
	}
	bd := w.BitDepth
	if bd == 0 {
		bd = DefaultBitDepth
	}
	switch bd {
	case 16, 24, 32:
	default:
		return fmt.Errorf("unsupported bit depth %d", bd)
	}
	enc := wav.NewEncoder(out, sampleRate, bd, 1, pcmFormat)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           toPCM(samples, bd),
		SourceBitDepth: bd,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	return nil
}

// Read decodes a PCM WAV stream. Multi-channel data is returned interleaved.
func Read(r io.ReadSeeker) (Clip, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		if err := dec.Err(); err != nil {
			return Clip{}, fmt.Errorf("invalid wav: %w", err)
		}
		return Clip{}, errors.New("invalid wav")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Clip{}, fmt.Errorf("read pcm: %w", err)
	}
	bd := int(dec.BitDepth)
	return Clip{
		Samples:    fromPCM(buf.Data, bd),
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   bd,
	}, nil
}

// fullScale is the largest positive integer sample for a bit depth.
func fullScale(bitDepth int) float64 {
	return float64(int64(1)<<(bitDepth-1) - 1)
}

func toPCM(samples []float32, bitDepth int) []int {
	scale := fullScale(bitDepth)
	out := make([]int, len(samples))
	for i, s := range samples {
		v := float64(s)
		switch {
		case math.IsNaN(v):
			v = 0
		case v > 1:
			v = 1
		case v < -1:
			v = -1
		}
		out[i] = int(math.Round(v * scale))
	}
	return out
}

func fromPCM(data []int, bitDepth int) []float32 {
	if bitDepth <= 0 {
		bitDepth = DefaultBitDepth
	}
	scale := fullScale(bitDepth)
	out := make([]float32, len(data))
	for i, v := range data {
		out[i] = float32(float64(v) / scale)
	}
	return out
}

package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"musicd/internal/device"
	"musicd/internal/manager"
	"musicd/internal/workertest"
)

type fakeGenerator struct {
	req    manager.GenerationRequest
	cfg    cliConfig
	err    error
	closed bool
}

func (f *fakeGenerator) Generate(_ context.Context, req manager.GenerationRequest) (manager.GenerationResult, error) {
	f.req = req
	if f.err != nil {
		return manager.GenerationResult{}, f.err
	}
	return manager.GenerationResult{
		FilePath:          "/tmp/music_small_1.wav",
		FileName:          "music_small_1.wav",
		DurationSeconds:   5.12,
		GenerationSeconds: 1.5,
		SampleRate:        32000,
		Variant:           req.Variant,
		MaxTokens:         256,
		Device:            device.CPU(),
	}, nil
}

func (f *fakeGenerator) Close() error {
	f.closed = true
	return nil
}

func runWithFake(t *testing.T, gen *fakeGenerator, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	factory := func(cfg cliConfig, _ zerolog.Logger) (generator, error) {
		gen.cfg = cfg
		return gen, nil
	}
	cmd := newRootCmd(&out, &errOut, factory)
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	gen := &fakeGenerator{}
	out, err := runWithFake(t, gen)
	require.NoError(t, err)

	assert.Equal(t, defaultPrompt, gen.req.Prompt)
	assert.Equal(t, "small", gen.req.Variant)
	assert.Equal(t, 0, gen.req.MaxTokens)
	assert.Empty(t, gen.req.Output)
	assert.Equal(t, ".", gen.cfg.OutputDir)
	assert.Equal(t, "auto", gen.cfg.Device)
	assert.Len(t, gen.cfg.Variants, 2)
	assert.True(t, gen.closed)

	assert.Contains(t, out, "Saved to: /tmp/music_small_1.wav")
	assert.Contains(t, out, "32000 Hz")
	assert.Contains(t, out, "Device: CPU")
}

func TestFlags(t *testing.T) {
	chdir(t, t.TempDir())
	gen := &fakeGenerator{}
	_, err := runWithFake(t, gen,
		"--prompt", "lofi beat", "-m", "medium", "--max-tokens", "512",
		"-o", "beat.wav", "--device", "cpu", "--backend-url", "http://worker:9000")
	require.NoError(t, err)

	assert.Equal(t, manager.GenerationRequest{
		Prompt: "lofi beat", Variant: "medium", MaxTokens: 512, Output: "beat.wav",
	}, gen.req)
	assert.Equal(t, "cpu", gen.cfg.Device)
	assert.Equal(t, "http://worker:9000", gen.cfg.BackendURL)
}

func TestEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("MUSICGEN_MODEL", "medium")
	t.Setenv("MUSICGEN_MAX_TOKENS", "100")
	t.Setenv("MUSICGEN_BACKEND_URL", "http://env-worker")

	gen := &fakeGenerator{}
	_, err := runWithFake(t, gen, "--max-tokens", "50")
	require.NoError(t, err)

	assert.Equal(t, "medium", gen.req.Variant)
	assert.Equal(t, 50, gen.req.MaxTokens, "flag beats env")
	assert.Equal(t, "http://env-worker", gen.cfg.BackendURL)
}

func TestDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("MUSICGEN_DEVICE", "")
	os.Unsetenv("MUSICGEN_DEVICE")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MUSICGEN_DEVICE=mps\n"), 0o644))

	gen := &fakeGenerator{}
	_, err := runWithFake(t, gen)
	require.NoError(t, err)
	assert.Equal(t, "mps", gen.cfg.Device)
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "musicgen.yaml")
	body := `backend_url: http://file-worker
output_dir: /srv/music
variants:
  - name: large
    model_id: facebook/musicgen-large
    default_max_tokens: 768
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	gen := &fakeGenerator{}
	_, err := runWithFake(t, gen, "--config", path, "--model", "large", "--output-dir", "out")
	require.NoError(t, err)

	assert.Equal(t, "http://file-worker", gen.cfg.BackendURL)
	assert.Equal(t, "out", gen.cfg.OutputDir, "flag beats config file")
	names := make([]string, 0, len(gen.cfg.Variants))
	for _, v := range gen.cfg.Variants {
		names = append(names, v.Name)
	}
	assert.Contains(t, names, "large")
}

func TestConfigFileMissing(t *testing.T) {
	_, err := runWithFake(t, &fakeGenerator{}, "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestGenerateErrorIsReturned(t *testing.T) {
	chdir(t, t.TempDir())
	gen := &fakeGenerator{err: errors.New("boom")}
	_, err := runWithFake(t, gen)
	require.EqualError(t, err, "boom")
	assert.True(t, gen.closed)
}

func TestRejectsPositionalArgs(t *testing.T) {
	_, err := runWithFake(t, &fakeGenerator{}, "extra")
	require.Error(t, err)
}

func TestVariantsCommand(t *testing.T) {
	chdir(t, t.TempDir())
	cache := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(cache, "models--facebook--musicgen-small"), 0o755))

	out, err := runWithFake(t, &fakeGenerator{}, "variants", "--hf-cache", cache)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "CACHED")
	assert.Regexp(t, `^small\s+facebook/musicgen-small\s+256\s+yes$`, lines[1])
	assert.Regexp(t, `^medium\s+facebook/musicgen-medium\s+512\s+no$`, lines[2])
}

func TestVariantsCommandWithoutCache(t *testing.T) {
	chdir(t, t.TempDir())
	out, err := runWithFake(t, &fakeGenerator{}, "variants", "--hf-cache", filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Contains(t, out, "medium")
}

func TestRunAgainstWorker(t *testing.T) {
	chdir(t, t.TempDir())
	w := workertest.NewServer(workertest.Options{})
	defer w.Close()

	dir := t.TempDir()
	outPath := filepath.Join(dir, "nested", "clip.wav")
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"--backend-url", w.URL,
		"--prompt", "upbeat jazz",
		"--max-tokens", "10",
		"--output", outPath,
	}, &stdout, &stderr)
	require.Equal(t, 0, code, "stderr: %s", stderr.String())

	info, err := os.Stat(outPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(44))
	assert.Contains(t, stdout.String(), "Saved to: "+outPath)
	assert.Equal(t, 1, w.Loads("facebook/musicgen-small"))
}

func TestRunWithoutWorkerFails(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("MUSICGEN_BACKEND_URL", "")
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--prompt", "x"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "Error:")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no file is written on failure")
}

func TestRunEmptyPromptFails(t *testing.T) {
	chdir(t, t.TempDir())
	w := workertest.NewServer(workertest.Options{})
	defer w.Close()

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"--backend-url", w.URL, "--prompt", "  "}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Equal(t, 0, w.TotalLoads())
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

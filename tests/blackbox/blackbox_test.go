package blackbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"musicd/internal/workertest"
	"musicd/pkg/types"
)

// findFreePort picks an available TCP port on localhost.
func findFreePort(t *testing.T) (int, func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	var port int
	fmt.Sscanf(portStr, "%d", &port)
	return port, func() { _ = ln.Close() }
}

func projectRootFromThisFile(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	// this file: <root>/tests/blackbox/blackbox_test.go
	return filepath.Dir(filepath.Dir(filepath.Dir(thisFile)))
}

func buildBinary(t *testing.T, pkg string) string {
	t.Helper()
	binPath := filepath.Join(t.TempDir(), filepath.Base(pkg))
	cmd := exec.Command("go", "build", "-o", binPath, pkg)
	cmd.Dir = projectRootFromThisFile(t)
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("go build %s failed: %v\n%s", pkg, err, string(out))
	}
	return binPath
}

type serverProc struct {
	cmd       *exec.Cmd
	base      string // http base URL, e.g. http://127.0.0.1:18080
	outputDir string
}

func startServer(t *testing.T, bin string, extra ...string) *serverProc {
	t.Helper()
	port, release := findFreePort(t)
	release()
	outputDir := t.TempDir()
	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	args := append([]string{
		"--addr", fmt.Sprintf("127.0.0.1:%d", port),
		"--output-dir", outputDir,
		"--log-format", "json",
	}, extra...)
	cmd := exec.Command(bin, args...)
	cmd.Dir = t.TempDir()
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() { _ = cmd.Process.Kill(); _ = cmd.Wait() })

	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(base + "/healthz")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not become healthy in time")
		}
		time.Sleep(50 * time.Millisecond)
	}
	return &serverProc{cmd: cmd, base: base, outputDir: outputDir}
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func postJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func TestBlackbox_Flow(t *testing.T) {
	worker := workertest.NewServer(workertest.Options{})
	defer worker.Close()
	bin := buildBinary(t, "./cmd/musicd")
	sp := startServer(t, bin, "--backend-url", worker.URL)

	// /models
	resp, body := get(t, sp.base+"/models")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/models %d %s", resp.StatusCode, string(body))
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("/models content-type=%s", ct)
	}
	var models types.ModelsResponse
	if err := json.Unmarshal(body, &models); err != nil {
		t.Fatalf("/models json: %v body=%s", err, string(body))
	}
	if len(models.Models) != 2 {
		t.Fatalf("expected 2 variants, got %d", len(models.Models))
	}

	// /readyz is 200 once the worker answers and the output dir is writable
	resp, body = get(t, sp.base+"/readyz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/readyz %d %s", resp.StatusCode, string(body))
	}

	// /generate without model uses small
	resp, body = postJSON(t, sp.base+"/generate", []byte(`{"prompt":"gentle piano","max_tokens":10}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/generate %d %s", resp.StatusCode, string(body))
	}
	var gen types.GenerateResponse
	if err := json.Unmarshal(body, &gen); err != nil {
		t.Fatalf("/generate json: %v body=%s", err, string(body))
	}
	if !gen.Success || gen.Model != "small" || gen.MaxTokens != 10 {
		t.Fatalf("unexpected response: %+v", gen)
	}
	if !strings.HasPrefix(gen.Filename, "music_small_") || !strings.HasSuffix(gen.Filename, ".wav") {
		t.Fatalf("unexpected filename %q", gen.Filename)
	}
	if _, err := os.Stat(filepath.Join(sp.outputDir, gen.Filename)); err != nil {
		t.Fatalf("generated file missing: %v", err)
	}

	// the audio URL serves the WAV
	resp, body = get(t, sp.base+gen.AudioURL)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s %d", gen.AudioURL, resp.StatusCode)
	}
	if len(body) < 44 || string(body[0:4]) != "RIFF" || string(body[8:12]) != "WAVE" {
		t.Fatalf("served file is not a WAV (len=%d)", len(body))
	}

	// /status shows the loaded handle
	resp, body = get(t, sp.base+"/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/status %d %s", resp.StatusCode, string(body))
	}
	if !bytes.Contains(body, []byte("facebook/musicgen-small")) {
		t.Fatalf("/status missing loaded model: %s", string(body))
	}

	// /metrics carries the generation counter
	resp, body = get(t, sp.base+"/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/metrics %d", resp.StatusCode)
	}
	if !bytes.Contains(body, []byte("musicd_generation_total")) {
		t.Fatalf("/metrics missing musicd_generation_total")
	}
}

func TestBlackbox_Generate_UnknownModel_400(t *testing.T) {
	worker := workertest.NewServer(workertest.Options{})
	defer worker.Close()
	bin := buildBinary(t, "./cmd/musicd")
	sp := startServer(t, bin, "--backend-url", worker.URL)

	resp, body := postJSON(t, sp.base+"/generate", []byte(`{"model":"large","prompt":"hi"}`))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d, body=%s", resp.StatusCode, string(body))
	}
	if worker.TotalLoads() != 0 {
		t.Fatalf("unknown model must not load anything")
	}
}

func TestBlackbox_NoWorker_NotReady(t *testing.T) {
	bin := buildBinary(t, "./cmd/musicd")
	sp := startServer(t, bin)

	resp, _ := get(t, sp.base+"/readyz")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("/readyz expected 503 without a worker, got %d", resp.StatusCode)
	}
	resp, body := postJSON(t, sp.base+"/generate", []byte(`{"prompt":"hi"}`))
	if resp.StatusCode < 500 {
		t.Fatalf("expected a 5xx without a worker, got %d, body=%s", resp.StatusCode, string(body))
	}
	entries, _ := os.ReadDir(sp.outputDir)
	if len(entries) != 0 {
		t.Fatalf("no file may be written on failure, found %d", len(entries))
	}
}

func TestBlackbox_CLI(t *testing.T) {
	worker := workertest.NewServer(workertest.Options{})
	defer worker.Close()
	bin := buildBinary(t, "./cmd/musicgen")

	dir := t.TempDir()
	out := filepath.Join(dir, "clip.wav")
	cmd := exec.Command(bin, "--prompt", "ambient drone", "--model", "medium", "--max-tokens", "10", "--output", out)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "MUSICGEN_BACKEND_URL="+worker.URL)
	stdout, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("musicgen failed: %v\n%s", err, string(stdout))
	}
	if !strings.Contains(string(stdout), "Saved to: "+out) {
		t.Fatalf("unexpected output:\n%s", string(stdout))
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if worker.Loads("facebook/musicgen-medium") != 1 {
		t.Fatalf("expected one medium load, got %d", worker.Loads("facebook/musicgen-medium"))
	}
}

func TestBlackbox_CLI_FailureExitCode(t *testing.T) {
	bin := buildBinary(t, "./cmd/musicgen")
	dir := t.TempDir()
	cmd := exec.Command(bin, "--prompt", "x")
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "MUSICGEN_BACKEND_URL=")
	out, err := cmd.CombinedOutput()
	exitErr, ok := err.(*exec.ExitError)
	if !ok || exitErr.ExitCode() != 1 {
		t.Fatalf("expected exit code 1, got err=%v\n%s", err, string(out))
	}
}

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"musicd/internal/httpapi"
	"musicd/internal/manager"
	"musicd/internal/workertest"
)

type stack struct {
	srv    *httptest.Server
	worker *workertest.Server
	mgr    *manager.Manager
	outDir string
}

// newStack wires a fake worker, a Manager writing unique names into a temp
// dir, and the HTTP API, the same way cmd/musicd does.
func newStack(t *testing.T, wopts workertest.Options, mutate func(*manager.ManagerConfig)) *stack {
	t.Helper()
	w := workertest.NewServer(wopts)
	t.Cleanup(w.Close)
	outDir := t.TempDir()
	cfg := manager.ManagerConfig{
		Backend:     manager.NewWorkerBackend(w.URL, "", 0, 0),
		OutputDir:   outDir,
		UniqueNames: true,
		Publisher:   httpapi.MetricsPublisher{},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	mgr := manager.NewWithConfig(cfg)
	httpapi.SetGeneratedDir(outDir, "/static/generated")
	srv := httptest.NewServer(httpapi.NewMux(mgr))
	t.Cleanup(srv.Close)
	return &stack{srv: srv, worker: w, mgr: mgr, outDir: outDir}
}

func (s *stack) generate(t *testing.T, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, s.srv.URL+"/generate", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.StatusCode, out
}

func (s *stack) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(s.srv.URL + path)
	if err != nil {
		t.Fatalf("get %s: %v", path, err)
	}
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp, b
}

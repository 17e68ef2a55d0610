// Package workertest provides an in-process fake of the inference worker HTTP
// protocol for tests. It synthesizes a sine wave instead of running a model.
package workertest

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Options configures a fake worker.
type Options struct {
	// SampleRate reported by loaded models. Default 32000.
	SampleRate int
	// SamplesPerToken maps token budget to output length. Default 640.
	SamplesPerToken int
	// LoadDelay and GenerateDelay simulate slow loads and inference.
	LoadDelay     time.Duration
	GenerateDelay time.Duration
	// MPS and CUDA are device names; empty means unavailable.
	MPS  string
	CUDA string
	// FailLoads fails the first n load calls with a generic error.
	FailLoads int
	// GenerateSampleRate overrides the X-Sampling-Rate header on generate
	// responses. Zero reports SampleRate.
	GenerateSampleRate int
	// GenerateErrorKind, when set, makes every generate call fail with that kind.
	GenerateErrorKind string
	// APIKey, when set, is required as a bearer token.
	APIKey string
}

// Server is a running fake worker.
type Server struct {
	*httptest.Server
	opts Options

	mu          sync.Mutex
	nextID      int
	sessions    map[string]string // session -> model
	loads       map[string]int    // model -> load calls
	devices     []string
	generations int
	inflight    map[string]int
	maxInflight map[string]int
	failLoads   int
}

// NewServer starts a fake worker. Callers must Close it.
func NewServer(opts Options) *Server {
	if opts.SampleRate == 0 {
		opts.SampleRate = 32000
	}
	if opts.SamplesPerToken == 0 {
		opts.SamplesPerToken = 640
	}
	s := &Server{
		opts:        opts,
		sessions:    make(map[string]string),
		loads:       make(map[string]int),
		inflight:    make(map[string]int),
		maxInflight: make(map[string]int),
		failLoads:   opts.FailLoads,
	}
	s.Server = httptest.NewServer(s.handler())
	return s
}

func (s *Server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /v1/backends", s.backends)
	mux.HandleFunc("POST /v1/models/load", s.load)
	mux.HandleFunc("POST /v1/models/unload", s.unload)
	mux.HandleFunc("POST /v1/encode", s.encode)
	mux.HandleFunc("POST /v1/generate", s.generate)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.APIKey != "" && r.Header.Get("Authorization") != "Bearer "+s.opts.APIKey {
			writeError(w, http.StatusUnauthorized, "unauthorized", "")
			return
		}
		mux.ServeHTTP(w, r)
	})
}

func (s *Server) backends(w http.ResponseWriter, r *http.Request) {
	type info struct {
		Available bool   `json:"available"`
		Name      string `json:"name"`
	}
	writeJSON(w, map[string]info{
		"mps":  {Available: s.opts.MPS != "", Name: s.opts.MPS},
		"cuda": {Available: s.opts.CUDA != "", Name: s.opts.CUDA},
	})
}

func (s *Server) load(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Model  string `json:"model"`
		Device string `json:"device"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Model == "" {
		writeError(w, http.StatusBadRequest, "model is required", "")
		return
	}
	if !sleep(r, s.opts.LoadDelay) {
		return
	}
	s.mu.Lock()
	s.loads[in.Model]++
	s.devices = append(s.devices, in.Device)
	if s.failLoads > 0 {
		s.failLoads--
		s.mu.Unlock()
		writeError(w, http.StatusInternalServerError, "weights not found for "+in.Model, "")
		return
	}
	s.nextID++
	id := "s" + strconv.Itoa(s.nextID)
	s.sessions[id] = in.Model
	s.mu.Unlock()
	writeJSON(w, map[string]any{"session": id, "sampling_rate": s.opts.SampleRate})
}

func (s *Server) unload(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Session string `json:"session"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)
	s.mu.Lock()
	delete(s.sessions, in.Session)
	s.mu.Unlock()
	writeJSON(w, map[string]any{"ok": true})
}

func (s *Server) encode(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Session string `json:"session"`
		Prompt  string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "bad request", "")
		return
	}
	if _, ok := s.model(in.Session); !ok {
		writeError(w, http.StatusNotFound, "unknown session", "")
		return
	}
	words := strings.Fields(in.Prompt)
	if len(words) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "prompt produced no tokens", "invalid_input")
		return
	}
	ids := make([]int64, len(words))
	mask := make([]int64, len(words))
	for i, word := range words {
		ids[i] = int64(len(word)*31 + i)
		mask[i] = 1
	}
	writeJSON(w, map[string]any{"input_ids": ids, "attention_mask": mask})
}

func (s *Server) generate(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Session      string  `json:"session"`
		InputIDs     []int64 `json:"input_ids"`
		MaxNewTokens int     `json:"max_new_tokens"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "bad request", "")
		return
	}
	model, ok := s.model(in.Session)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session", "")
		return
	}
	s.mu.Lock()
	s.inflight[model]++
	if s.inflight[model] > s.maxInflight[model] {
		s.maxInflight[model] = s.inflight[model]
	}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inflight[model]--
		s.mu.Unlock()
	}()
	if !sleep(r, s.opts.GenerateDelay) {
		return
	}
	if kind := s.opts.GenerateErrorKind; kind != "" {
		writeError(w, http.StatusInternalServerError, "generation failed: "+kind, kind)
		return
	}
	n := in.MaxNewTokens * s.opts.SamplesPerToken
	buf := make([]byte, 4*n)
	for i := 0; i < n; i++ {
		v := float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/float64(s.opts.SampleRate)))
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	s.mu.Lock()
	s.generations++
	s.mu.Unlock()
	w.Header().Set("Content-Type", "application/octet-stream")
	rate := s.opts.SampleRate
	if s.opts.GenerateSampleRate != 0 {
		rate = s.opts.GenerateSampleRate
	}
	w.Header().Set("X-Sampling-Rate", strconv.Itoa(rate))
	_, _ = w.Write(buf)
}

func (s *Server) model(session string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.sessions[session]
	return m, ok
}

// Loads returns how many load calls the worker received for model.
func (s *Server) Loads(model string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads[model]
}

// TotalLoads returns the number of load calls across all models.
func (s *Server) TotalLoads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.loads {
		n += c
	}
	return n
}

// Devices returns the device kinds requested by load calls, in order.
func (s *Server) Devices() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.devices...)
}

// Generations returns the number of successful generate calls.
func (s *Server) Generations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations
}

// MaxConcurrent returns the peak number of simultaneous generate calls on model.
func (s *Server) MaxConcurrent(model string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxInflight[model]
}

// Sessions returns the number of live sessions.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// SamplesFor returns the sample count produced for a token budget.
func (s *Server) SamplesFor(maxTokens int) int { return maxTokens * s.opts.SamplesPerToken }

func sleep(r *http.Request, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-r.Context().Done():
		return false
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg, kind string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg, "kind": kind})
}

// String describes the worker for test logs.
func (s *Server) String() string { return fmt.Sprintf("workertest(%s)", s.URL) }

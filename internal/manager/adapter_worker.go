package manager

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"musicd/internal/device"
)

// maxAudioBytes caps a single generate response body.
const maxAudioBytes = 1 << 30

// WorkerBackend implements Backend by talking to an inference worker process
// over HTTP. The worker owns the neural network; this side only moves prompts,
// token ids and PCM around. It also answers device availability probes and
// reachability pings on behalf of the worker.
type WorkerBackend struct {
	baseURL    string
	apiKey     string
	reqTimeout time.Duration
	httpClient *http.Client
}

// NewWorkerBackend constructs a worker-backed Backend. reqTimeout bounds each
// encode/generate call; zero leaves them bounded only by the caller context.
func NewWorkerBackend(baseURL, apiKey string, reqTimeout, connectTimeout time.Duration) *WorkerBackend {
	if connectTimeout <= 0 {
		connectTimeout = 5 * time.Second
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	// All requests carry context deadlines; the client itself has no timeout.
	return &WorkerBackend{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		reqTimeout: reqTimeout,
		httpClient: &http.Client{Transport: tr, Timeout: 0},
	}
}

type workerBackendInfo struct {
	Available bool   `json:"available"`
	Name      string `json:"name"`
}

type workerLoadRequest struct {
	Model         string `json:"model"`
	Device        string `json:"device"`
	InferenceOnly bool   `json:"inference_only"`
}

type workerLoadResponse struct {
	Session      string `json:"session"`
	SamplingRate int    `json:"sampling_rate"`
}

type workerEncodeRequest struct {
	Session string `json:"session"`
	Prompt  string `json:"prompt"`
}

type workerGenerateRequest struct {
	Session       string  `json:"session"`
	InputIDs      []int64 `json:"input_ids"`
	AttentionMask []int64 `json:"attention_mask"`
	MaxNewTokens  int     `json:"max_new_tokens"`
}

type workerSessionRequest struct {
	Session string `json:"session"`
}

type workerError struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// Ping checks the worker health endpoint.
func (b *WorkerBackend) Ping(ctx context.Context) error {
	resp, err := b.do(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// Available implements device.Runtime using the worker's view of the host.
func (b *WorkerBackend) Available(ctx context.Context, kind device.Kind) (string, bool) {
	var info map[string]workerBackendInfo
	if err := b.doJSON(ctx, http.MethodGet, "/v1/backends", nil, &info); err != nil {
		return "", false
	}
	bi, ok := info[string(kind)]
	if !ok || !bi.Available {
		return "", false
	}
	switch kind {
	case device.KindMetal:
		return "Apple Silicon (MPS)", true
	case device.KindCUDA:
		if bi.Name == "" {
			return "CUDA", true
		}
		return "CUDA: " + bi.Name, true
	}
	return bi.Name, true
}

// Load asks the worker to load modelID in inference-only mode on dev.
func (b *WorkerBackend) Load(ctx context.Context, modelID string, dev device.Device) (Model, error) {
	var out workerLoadResponse
	in := workerLoadRequest{Model: modelID, Device: string(dev.Kind), InferenceOnly: true}
	if err := b.doJSON(ctx, http.MethodPost, "/v1/models/load", in, &out); err != nil {
		return nil, err
	}
	if out.Session == "" {
		return nil, errors.New("worker returned empty session")
	}
	return &workerModel{backend: b, session: out.Session, sampleRate: out.SamplingRate}, nil
}

// workerModel is one loaded session on the worker.
type workerModel struct {
	backend    *WorkerBackend
	session    string
	sampleRate int
}

func (m *workerModel) SamplingRate() int { return m.sampleRate }

func (m *workerModel) Encode(ctx context.Context, prompt string) (EncodedInput, error) {
	ctx, cancel := m.backend.withTimeout(ctx)
	defer cancel()
	var out EncodedInput
	err := m.backend.doJSON(ctx, http.MethodPost, "/v1/encode", workerEncodeRequest{Session: m.session, Prompt: prompt}, &out)
	return out, err
}

func (m *workerModel) Infer(ctx context.Context, in EncodedInput, maxTokens int) (RawAudio, error) {
	ctx, cancel := m.backend.withTimeout(ctx)
	defer cancel()
	resp, err := m.backend.do(ctx, http.MethodPost, "/v1/generate", workerGenerateRequest{
		Session:       m.session,
		InputIDs:      in.InputIDs,
		AttentionMask: in.AttentionMask,
		MaxNewTokens:  maxTokens,
	})
	if err != nil {
		return RawAudio{}, err
	}
	defer resp.Body.Close()
	if v := resp.Header.Get("X-Sampling-Rate"); v != "" {
		rate, err := strconv.Atoi(v)
		if err != nil {
			return RawAudio{}, fmt.Errorf("worker sent bad X-Sampling-Rate %q", v)
		}
		if rate != m.sampleRate {
			return RawAudio{}, fmt.Errorf("worker audio is %d Hz, model loaded at %d Hz", rate, m.sampleRate)
		}
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes+1))
	if err != nil {
		if ctx.Err() != nil {
			return RawAudio{}, ctx.Err()
		}
		return RawAudio{}, err
	}
	if len(b) > maxAudioBytes {
		return RawAudio{}, fmt.Errorf("worker audio exceeds %d bytes", maxAudioBytes)
	}
	samples, err := decodeFloat32LE(b)
	if err != nil {
		return RawAudio{}, err
	}
	return RawAudio{Samples: samples}, nil
}

func (m *workerModel) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return m.backend.doJSON(ctx, http.MethodPost, "/v1/models/unload", workerSessionRequest{Session: m.session}, nil)
}

func decodeFloat32LE(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("worker audio length %d is not a multiple of 4", len(b))
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out, nil
}

func (b *WorkerBackend) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.reqTimeout > 0 {
		return context.WithTimeout(ctx, b.reqTimeout)
	}
	return context.WithCancel(ctx)
}

func (b *WorkerBackend) doJSON(ctx context.Context, method, path string, in, out any) error {
	resp, err := b.do(ctx, method, path, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode worker %s response: %w", path, err)
	}
	return nil
}

// do sends a request and returns the response only for 2xx statuses.
func (b *WorkerBackend) do(ctx context.Context, method, path string, in any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		// Translate context timeouts/cancels
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrDependencyUnavailable("inference worker unreachable: " + err.Error())
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, workerHTTPError(resp.Status, raw)
	}
	return resp, nil
}

// workerHTTPError maps the worker error body onto the sentinel causes.
func workerHTTPError(status string, raw []byte) error {
	var we workerError
	if err := json.Unmarshal(raw, &we); err != nil || we.Error == "" {
		return errors.New("worker http error: " + status + ": " + strings.TrimSpace(string(raw)))
	}
	switch we.Kind {
	case "resource_exhausted":
		return fmt.Errorf("%w: %s", ErrResourceExhausted, we.Error)
	case "invalid_input":
		return fmt.Errorf("%w: %s", ErrInvalidInput, we.Error)
	}
	return errors.New("worker http error: " + status + ": " + we.Error)
}

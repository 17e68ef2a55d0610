// Package manager is the generation orchestration layer. It owns model handle
// lifecycle, per-handle admission, and output artifact management. It is
// structured into small files by concern:
//
//   - manager.go: core Manager type, constructor, simple getters.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - types.go: request/result types and lifecycle state.
//   - errors.go: typed error taxonomy and helpers (IsInvalidRequest, IsTooBusy, ...).
//   - adapter_iface.go: Backend/Model contracts for the text-to-audio runtime.
//   - adapter_worker.go: HTTP client for an out-of-process inference worker.
//   - adapter_stub.go: backend used when no worker is configured.
//   - handle.go: a loaded model bound to one device.
//   - registry.go: single-flight, lazily populated variant -> handle cache.
//   - queue_admission.go: per-handle queueing and single in-flight generation.
//   - generate.go: the Generate entry point used by the CLI and HTTP adapters.
//   - output.go: output naming and atomic audio writes.
//   - status_report.go, sanity.go: Status/readiness reporting.
//   - ops.go: Preload for warming handles at startup.
//
// Handles are never evicted: once a variant is loaded it stays resident for the
// life of the process.
//
// External packages should treat this package as the orchestration layer and
// use public methods only (New/NewWithConfig, Generate, Preload, Status, Ready).
package manager

// Package manager holds the single model a serving process owns. It is
// structured into small files by concern:
//
//   - manager.go: Manager type, Ensure/Warm lifecycle and Close.
//   - config.go: Config and package defaults; New applies defaults.
//   - types.go: lifecycle State, Handle and Snapshot.
//   - errors.go: error types and helpers (IsTooBusy, IsModelLoadFailed, ...).
//   - admission.go: bounded queue and in-flight slots for inference calls.
//   - status_report.go: Status/Snapshot reporting helpers.
//   - events.go, eventpub_memory.go: lifecycle event publishing.
//   - metrics.go: load and inference Prometheus collectors.
//
// Lifecycle: uninitialized -> loading -> ready | failed. Exactly one load
// runs per Manager no matter how many callers race on Ensure; failed is
// terminal and the process must be restarted to retry.
//
// The handle is opaque to this package. Inference adapters (textgen,
// diffusion) supply the LoadFunc and assert the concrete handle type.
package manager

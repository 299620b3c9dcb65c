// Package daemon coordinates the long-running Tiny Tales process.
//
// It wires configuration, the library store, the workflow manager, and the
// local HTTP API into a single lifecycle with flock-based locking to prevent
// multiple instances. Workflow events are fanned out to websocket clients so
// a browser or the terminal viewer can follow story generation,
// illustrations, and exports as they happen.
//
// Keep orchestration logic here: individual workflow steps should live in their
// respective packages while the daemon focuses on startup, shutdown, and high
// level coordination.
package daemon

// Package workflow drives one story session through generation,
// illustration and export.
//
// The Manager owns the current in-memory session: the generated prose, its
// sentences and their illustrations. Only sentence text reaches the store;
// illustrations live in the session and are regenerated when a story is
// reopened from history unless the session already holds them. Every step
// resolves admin access first, publishes ntfy notifications, and fans out
// progress events to registered listeners such as the daemon's websocket hub.
//
// Export mutual exclusion lives here: a second Export while one is running
// fails with ErrBusy instead of queueing.
package workflow

// Package notifications pushes story and export milestones to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers publish unconditionally. Each event family can be switched off in
// the [notifications] section of config.toml.
package notifications

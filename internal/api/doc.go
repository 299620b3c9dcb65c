// Package api defines wire-format types and converters for the loopback HTTP
// API. It translates workflow sessions and store records into
// transport-friendly DTOs that a local UI can render without coupling to
// internal types.
//
// # Key Types
//
// Session/Sentence: the active story with per-sentence illustration state.
//
// Story/Post/Comment: history entries and published blog posts.
//
// User/Limits: admin-managed records and global feature switches.
//
// Status: manager state plus dependency availability.
//
// # Design Notes
//
// DTOs use camelCase JSON tags matching the field names the original web
// client kept in local storage. Timestamps use RFC3339 with milliseconds.
// List views never carry image data; only the active session does.
package api

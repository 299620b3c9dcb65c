// Package store persists the story library in SQLite: the recent generation
// history, published blog posts with their comments and likes, admin-managed
// user records, and the key/value settings that hold global limits and site
// configuration.
//
// Only sentence text is persisted. Illustrations are session state and never
// reach the database, so placeholders and data URIs cannot leak into history
// or published posts.
//
// The database is single-user local state. Schema changes bump the version in
// schema.go; users delete the database file to adopt the new schema.
package store

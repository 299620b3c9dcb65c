// Package admin implements the admin surface over the store: the shared
// password gate, feature access resolution combining global switches with a
// user's own capabilities, and CSV exports of the library and user records.
package admin

// Package viewer renders stories in the terminal with bubbletea.
//
// Slideshow pages through a session's sentences one at a time and follows
// workflow events, so illustrations that finish while the viewer is open show
// up on their page. History lists saved stories behind a fuzzy filter and
// returns the one the user picks.
package viewer

// Package compositor renders sentence cards and places them on fixed-size
// frames for the PDF, GIF and video exporters.
//
// A Surface supplies one captured bitmap per sentence. The compositor
// letterboxes each capture into the frame, filling the uncovered area with
// the nearest opaque background found by walking the card's ancestry.
package compositor

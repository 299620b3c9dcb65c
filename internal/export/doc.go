// Package export turns an illustrated story into a downloadable artifact: a
// paged PDF, an animated GIF, or a narrated video.
//
// Every exporter composites the same sentence cards. PDF pages include every
// sentence and render failed captures as grey pages; the GIF and video
// exports use only sentences with a real illustration. Gate applies the
// admin switches before any work starts.
//
// The pipeline holds no lock of its own. Callers that can run exports
// concurrently (the local API) serialize them.
package export

// Package main hosts the Tiny Tales CLI entrypoint and command graph.
//
// Commands run the story workflow in-process: they load the configuration,
// open the local library database and drive the workflow manager directly.
// "tinytales serve" starts the long-running daemon that exposes the same
// operations over the loopback HTTP API.
//
// Keep this package lean: add behavior to the internal packages first, then
// surface it through dedicated commands or flags here.
package main

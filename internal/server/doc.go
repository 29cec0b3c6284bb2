// Package server runs the local status HTTP server of the client.
//
// It owns the listener lifecycle: serving until the run context is cancelled
// and then shutting down gracefully within a bounded timeout.
package server

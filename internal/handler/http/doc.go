// Package http implements the local status surface of the client.
//
// It exposes the sync engine state, manual sync triggers, the list of
// permanently failed mutations and the Prometheus metrics endpoint. Every
// request gets a trace id and an access log entry before it reaches a handler.
package http

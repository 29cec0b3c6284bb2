package server

import "context"

// Server defines the lifecycle contract of the status server.
type Server interface {
	// Run serves requests until ctx is cancelled, then shuts down gracefully.
	// It returns a non-nil error only when serving fails.
	Run(ctx context.Context) error
}

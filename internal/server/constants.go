// Package server exposes watch control over HTTP and the event stream
// over WebSocket.
package server

import "time"

// Server configuration constants
const (
	// Inbound WebSocket messages per connection per sliding window.
	RateLimitMessages = 10
	RateLimitWindow   = time.Second

	// MaxProfileBytes caps request bodies carrying profile documents.
	MaxProfileBytes = 1 << 20

	// StatusRequestBuffer bounds queued inbound status requests per
	// connection; excess requests coalesce.
	StatusRequestBuffer = 4
)

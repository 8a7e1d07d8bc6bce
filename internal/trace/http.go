// Package trace - HTTP and WebSocket trace propagation.
package trace

import (
	"encoding/json"
	"net/http"
)

// Propagation header names.
const (
	TraceIDHeader = "x-trace-id"
	SpanIDHeader  = "x-span-id"
)

// Middleware extracts or creates a trace context per request and echoes
// the trace id on the response so clients can correlate.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc := extractFromHeaders(r)
		w.Header().Set(TraceIDHeader, tc.TraceID)
		ctx := WithContext(r.Context(), tc)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractFromHeaders(r *http.Request) Context {
	tc := Context{
		TraceID:      r.Header.Get(TraceIDHeader),
		ParentSpanID: r.Header.Get(SpanIDHeader),
		SpanID:       newSpanID(),
	}
	if tc.TraceID == "" {
		tc.TraceID = newTraceID()
	}
	return tc
}

// ExtractFromJSON picks a trace_id out of an inbound JSON message, for
// WebSocket frames that carry one. Returns a fresh context otherwise.
func ExtractFromJSON(data []byte) (Context, bool) {
	var msg struct {
		TraceID string `json:"trace_id"`
	}
	if err := json.Unmarshal(data, &msg); err != nil || msg.TraceID == "" {
		return New(), false
	}
	return Context{
		TraceID: msg.TraceID,
		SpanID:  newSpanID(),
	}, true
}

// Package context carries the request trace and the materialization run
// identifiers that log lines are tagged with.
package context

import (
	"context"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

type TraceContext struct {
	TraceID   string
	SpanID    string
	RequestID string
}

// NewTraceContext generates W3C-shaped ids: 32 hex trace id, 16 hex span id.
func NewTraceContext() *TraceContext {
	return &TraceContext{
		TraceID:   newHex(16),
		SpanID:    newHex(8),
		RequestID: uuid.NewString(),
	}
}

// ParseTraceparent reads a W3C traceparent header
// ("00-<trace id>-<parent id>-<flags>"). The parent id becomes SpanID.
func ParseTraceparent(header string) (*TraceContext, bool) {
	parts := strings.Split(strings.TrimSpace(header), "-")
	if len(parts) != 4 || len(parts[1]) != 32 || len(parts[2]) != 16 {
		return nil, false
	}
	if !isHex(parts[1]) || !isHex(parts[2]) || strings.Trim(parts[1], "0") == "" {
		return nil, false
	}
	return &TraceContext{TraceID: parts[1], SpanID: parts[2]}, true
}

func newHex(n int) string {
	u := uuid.New()
	return hex.EncodeToString(u[:n])
}

func isHex(s string) bool {
	_, err := hex.DecodeString(s)
	return err == nil
}

type traceContextKey struct{}

func WithTrace(ctx context.Context, trace *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, trace)
}

// GetTrace returns the trace stored in ctx, or nil.
func GetTrace(ctx context.Context) *TraceContext {
	t, _ := ctx.Value(traceContextKey{}).(*TraceContext)
	return t
}

// GetRequestID returns the request id of ctx, or "".
func GetRequestID(ctx context.Context) string {
	if t := GetTrace(ctx); t != nil {
		return t.RequestID
	}
	return ""
}

// RunContext identifies one materialization run: a fresh RunID per root.
type RunContext struct {
	RunID string
	Root  string
}

type runContextKey struct{}

func WithRun(ctx context.Context, run *RunContext) context.Context {
	return context.WithValue(ctx, runContextKey{}, run)
}

func GetRun(ctx context.Context) *RunContext {
	r, _ := ctx.Value(runContextKey{}).(*RunContext)
	return r
}

func NewRunContext(root string) *RunContext {
	return &RunContext{RunID: uuid.NewString(), Root: root}
}

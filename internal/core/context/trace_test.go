package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTraceparent(t *testing.T) {
	tc, ok := ParseTraceparent("00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	require.True(t, ok)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", tc.TraceID)
	assert.Equal(t, "00f067aa0ba902b7", tc.SpanID)

	for _, bad := range []string{
		"",
		"00-4bf92f3577b34da6-00f067aa0ba902b7-01",
		"00-00000000000000000000000000000000-00f067aa0ba902b7-01",
		"00-zzf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
	} {
		_, ok := ParseTraceparent(bad)
		assert.False(t, ok, bad)
	}
}

func TestNewTraceContext(t *testing.T) {
	tc := NewTraceContext()
	assert.Len(t, tc.TraceID, 32)
	assert.Len(t, tc.SpanID, 16)
	assert.NotEmpty(t, tc.RequestID)

	ctx := WithTrace(context.Background(), tc)
	assert.Same(t, tc, GetTrace(ctx))
	assert.Equal(t, tc.RequestID, GetRequestID(ctx))
	assert.Empty(t, GetRequestID(context.Background()))
	assert.Nil(t, GetRun(ctx))
}

package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracerProviderExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	tp, err := NewTracerProvider("vulnpilot-test", "test", &buf)
	require.NoError(t, err)

	_, span := StartSpan(context.Background(), "api.GET /user")
	span.SetAttributes(AttrStatusCode.Int(200))
	span.End()

	require.NoError(t, tp.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "api.GET /user")
}

func TestNilTracerProviderShutdown(t *testing.T) {
	var tp *TracerProvider
	assert.NoError(t, tp.Shutdown(context.Background()))
}

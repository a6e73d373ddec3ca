package api_test

import (
	"testing"

	"github.com/mautops/integration-monitor/internal/api"
	"github.com/stretchr/testify/assert"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
)

// TestTracingSampler 测试采样比例
func TestTracingSampler(t *testing.T) {
	assert.Equal(t, tracesdk.NeverSample().Description(), api.TracingSampler(0).Description())
	assert.Contains(t, api.TracingSampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, api.TracingSampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}

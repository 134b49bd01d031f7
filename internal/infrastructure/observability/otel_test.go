package observability

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitMetrics_NoopProvider(t *testing.T) {
	metrics, err := InitMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	assert.NotPanics(t, func() {
		RecordTransition(ctx, metrics, "ACCEPT", "success")
		RecordEscalation(ctx, metrics, "high_priority")
		RecordAuditDrop(ctx, metrics, "TASK_ACCEPTED")
		RecordCacheHit(ctx, metrics, "zone_distance:A:B")
		RecordDBMetric(ctx, metrics, "apply_transition", time.Millisecond)
	})
}

func TestKeyspace(t *testing.T) {
	assert.Equal(t, "zone_distance", keyspace("zone_distance:A:B"))
	assert.Equal(t, "plain", keyspace("plain"))
}

func TestComponentLogger(t *testing.T) {
	InitLogger("clearlink-transport-test", "test", "debug")
	assert.NotNil(t, ComponentLogger(context.Background(), "dispatch"))
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-7")
	assert.Equal(t, "req-7", RequestIDFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(context.Background()))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, parseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("loud"))
	assert.Equal(t, zerolog.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, parseLevel("warn"))
}

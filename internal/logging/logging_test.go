package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Writer: &buf})

	log.With(String("component", "mesh")).Debug(context.Background(), "refined",
		Int("elems", 5), Float("min_edge", 0.5))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "refined", rec["msg"])
	assert.Equal(t, "mesh", rec["component"])
	assert.Equal(t, 5.0, rec["elems"])
	assert.Equal(t, 0.5, rec["min_edge"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Writer: &buf})

	log.Info(context.Background(), "hidden")
	assert.Empty(t, buf.String())

	log.Warn(context.Background(), "shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestRunLoggerKeepsID(t *testing.T) {
	ctx, id := EnsureRunID(context.Background())
	require.NotEmpty(t, id)

	ctx2, id2 := EnsureRunID(ctx)
	assert.Equal(t, id, id2)
	assert.Equal(t, id, RunIDFromContext(ctx2))

	var buf bytes.Buffer
	_, log := WithRunLogger(ctx, New(Config{Writer: &buf}))
	log.Info(ctx, "hello")
	assert.Contains(t, buf.String(), "run_id="+id)
}

func TestOrNoop(t *testing.T) {
	assert.NotNil(t, OrNoop(nil))
	OrNoop(nil).Error(context.Background(), "dropped")
}

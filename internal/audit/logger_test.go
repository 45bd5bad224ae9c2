package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogActionWritesJSONL(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir)
	require.NoError(t, err)
	defer logger.Close()

	ctx := WithOperator(context.Background(), "op-7")
	logger.LogAction(ctx, "trigger", "GVA-07", "SUCCESS", 1350*time.Millisecond)
	logger.LogAction(context.Background(), "reset", "GVA-07", "ERROR", 10*time.Millisecond)

	file, err := os.Open(logger.FilePath())
	require.NoError(t, err)
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var entry Entry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		entries = append(entries, entry)
	}

	require.Len(t, entries, 2)
	assert.Equal(t, "op-7", entries[0].Operator)
	assert.Equal(t, "trigger", entries[0].Action)
	assert.Equal(t, "SUCCESS", entries[0].Outcome)
	assert.Equal(t, int64(1350), entries[0].LatencyMs)
	assert.Equal(t, "GVA-07", entries[0].UnitID)

	assert.Equal(t, "unknown", entries[1].Operator)
	assert.Equal(t, "reset", entries[1].Action)
}

func TestCloseIsIdempotent(t *testing.T) {
	logger, err := NewLogger(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, logger.Close())
	assert.NoError(t, logger.Close())

	// Writes after close are dropped, not panicking.
	logger.LogAction(context.Background(), "trigger", "GVA-07", "SUCCESS", 0)
}

func TestOperatorFromContext(t *testing.T) {
	assert.Equal(t, "unknown", OperatorFromContext(context.Background()))
	ctx := WithOperator(context.Background(), "op-1")
	assert.Equal(t, "op-1", OperatorFromContext(ctx))
}

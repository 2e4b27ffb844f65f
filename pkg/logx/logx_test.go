package logx

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecentEntriesCapturesLogs(t *testing.T) {
	logger := NewLogger("logx-test-a")
	logger.Info("primeira mensagem %d", 1)
	logger.Warn("segunda mensagem")

	entries := RecentEntries("logx-test-a", time.Time{})
	require.Len(t, entries, 2)
	assert.Equal(t, "primeira mensagem 1", entries[0].Message)
	assert.Equal(t, string(LevelInfo), entries[0].Level)
	assert.Equal(t, string(LevelWarn), entries[1].Level)
	assert.Equal(t, "logx-test-a", entries[0].Component)
}

func TestRecentEntriesFiltersByComponent(t *testing.T) {
	NewLogger("logx-test-b").Info("b message")
	NewLogger("logx-test-c").Info("c message")

	entries := RecentEntries("logx-test-b", time.Time{})
	require.NotEmpty(t, entries)
	for _, e := range entries {
		assert.Equal(t, "logx-test-b", e.Component)
	}
}

func TestDebugSuppressedByDefault(t *testing.T) {
	SetDebug(false)
	defer SetDebug(false)

	logger := NewLogger("logx-test-d")
	logger.Debug("invisible")
	assert.Empty(t, RecentEntries("logx-test-d", time.Time{}))

	SetDebug(true)
	logger.Debug("visible")
	entries := RecentEntries("logx-test-d", time.Time{})
	require.Len(t, entries, 1)
	assert.Equal(t, string(LevelDebug), entries[0].Level)
}

func TestErrorfReturnsFormattedError(t *testing.T) {
	base := errors.New("boom")
	err := Errorf("load config: %w", base)
	require.Error(t, err)
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "load config: boom", err.Error())
}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap(nil, "context"))

	base := errors.New("boom")
	err := Wrap(base, "open store")
	require.Error(t, err)
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "open store: boom", err.Error())
}

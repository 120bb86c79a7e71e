package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/teranos/softwaremap/sym"
)

func TestInitialize(t *testing.T) {
	tests := []struct {
		name       string
		jsonOutput bool
		verbosity  int
	}{
		{name: "JSON output mode", jsonOutput: true, verbosity: 0},
		{name: "Console output mode", jsonOutput: false, verbosity: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SWMAP_LOG_FORMAT", "")
			Logger = nil
			JSONOutput = false

			err := Initialize(tt.jsonOutput, tt.verbosity)
			require.NoError(t, err)
			require.NotNil(t, Logger)
			assert.Equal(t, tt.jsonOutput, JSONOutput)

			Logger = zap.NewNop().Sugar()
		})
	}
}

func TestInitialize_EnvForcesJSON(t *testing.T) {
	t.Setenv("SWMAP_LOG_FORMAT", "json")
	defer func() { Logger = zap.NewNop().Sugar(); JSONOutput = false }()

	require.NoError(t, Initialize(false, 1))
	assert.True(t, JSONOutput)
}

func TestVerbosityToLevel(t *testing.T) {
	tests := []struct {
		verbosity int
		want      zapcore.Level
	}{
		{-1, zapcore.WarnLevel},
		{0, zapcore.WarnLevel},
		{1, zapcore.InfoLevel},
		{2, zapcore.DebugLevel},
		{5, zapcore.DebugLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, VerbosityToLevel(tt.verbosity), "verbosity %d", tt.verbosity)
	}
}

func TestLevelName(t *testing.T) {
	assert.Equal(t, "User", LevelName(0))
	assert.Equal(t, "Debug (-vv)", LevelName(2))
	assert.Equal(t, "Trace (-vvv+)", LevelName(7))
}

func TestLoggerFromContext(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	original := Logger
	Logger = zap.New(core).Sugar()
	defer func() { Logger = original }()

	ctx := WithRunID(context.Background(), "run-123")
	ctx = WithComponent(ctx, "ix.wikidata")

	assert.Equal(t, "run-123", RunIDFromContext(ctx))

	LoggerFromContext(ctx).Infow("Committed entity", FieldEntityID, "Q7397")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "run-123", fields[FieldRunID])
	assert.Equal(t, "ix.wikidata", fields[FieldComponent])
	assert.Equal(t, "Q7397", fields[FieldEntityID])
}

func TestLoggerFromContext_NoFields(t *testing.T) {
	original := Logger
	defer func() { Logger = original }()
	Logger = zap.NewNop().Sugar()

	assert.Same(t, Logger, LoggerFromContext(context.Background()))
	assert.Empty(t, FieldsFromContext(context.Background()))
}

func TestSymbolHelpers(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := zap.New(core).Sugar()

	IxInfow(log, "Fetched rows", FieldKind, "publication", FieldCount, 12)
	PulseInfow(log, "Run finished")
	PulseOpenInfow(log, "Scheduler started")
	PulseCloseInfow(log, "Scheduler stopped")
	IxInfow(nil, "dropped")

	entries := logs.All()
	require.Len(t, entries, 4)
	assert.Equal(t, sym.IX, entries[0].ContextMap()[FieldSymbol])
	assert.Equal(t, "publication", entries[0].ContextMap()[FieldKind])
	assert.Equal(t, sym.Pulse, entries[1].ContextMap()[FieldSymbol])
	assert.Equal(t, sym.PulseOpen, entries[2].ContextMap()[FieldSymbol])
	assert.Equal(t, sym.PulseClose, entries[3].ContextMap()[FieldSymbol])
}

package logger_test

import (
	"context"
	"testing"

	"drive-service/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestGetLogger_FromContext(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	ctx := logger.WithLogger(context.Background(), zap.New(core))

	l := logger.GetLogger(ctx).With(zap.String("account_id", "a1"))
	l.Info("folder created", zap.String("name", "Docs"))
	l.Warn("blob delete failed")

	require.Equal(t, 2, logs.Len())
	entries := logs.All()
	assert.Equal(t, "folder created", entries[0].Message)
	assert.Equal(t, "a1", entries[0].ContextMap()["account_id"])
	assert.Equal(t, "Docs", entries[0].ContextMap()["name"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
}

func TestGetLogger_Missing(t *testing.T) {
	l := logger.GetLogger(context.Background())
	require.NotNil(t, l)
	assert.NotPanics(t, func() { l.Info("dropped") })
}

func TestNew(t *testing.T) {
	ctx, err := logger.New(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, logger.GetLogger(ctx))
}

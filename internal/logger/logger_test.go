package logger

import (
	"context"
	"sync"
	"testing"
	"time"

	common_models "twol-crm/internal/common/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type memLogStore struct {
	mu   sync.Mutex
	logs []common_models.Log
}

func (s *memLogStore) Insert(ctx context.Context, log common_models.Log) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, log)
	return nil
}

func (s *memLogStore) all() []common_models.Log {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]common_models.Log(nil), s.logs...)
}

func TestDBCoreTeesEntries(t *testing.T) {
	store := &memLogStore{}
	writer := newDBLogWriter(store, "twol-test", 16)

	base, observed := observer.New(zapcore.InfoLevel)
	log := zap.New(NewDBCore(base, writer)).With(zap.String("tenant_id", "tenant-a"))

	log.Debug("too quiet")
	log.Warn("permission set request failed", zap.String("ip", "10.0.0.1"), zap.Int("status", 500))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, writer.Close(ctx))

	assert.Equal(t, 1, observed.Len())

	logs := store.all()
	require.Len(t, logs, 1)
	assert.Equal(t, "permission set request failed", logs[0].Message)
	assert.Equal(t, "twol-test", logs[0].ApplicationId)
	assert.Equal(t, "tenant-a", logs[0].TenantId)
	assert.Equal(t, "10.0.0.1", logs[0].IpAddress)
	assert.Equal(t, 30, logs[0].LogLevelId)
}

func TestWriterDropsAfterClose(t *testing.T) {
	store := &memLogStore{}
	writer := newDBLogWriter(store, "app", 4)
	require.NoError(t, writer.Close(context.Background()))
	require.NoError(t, writer.Close(context.Background()))

	writer.AddLog(LogEntry{Level: zapcore.InfoLevel, Message: "late"})
	assert.Empty(t, store.all())
}

func TestMapLevelToInt(t *testing.T) {
	tests := []struct {
		level zapcore.Level
		want  int
	}{
		{zapcore.DebugLevel, 10},
		{zapcore.InfoLevel, 20},
		{zapcore.WarnLevel, 30},
		{zapcore.ErrorLevel, 40},
		{zapcore.FatalLevel, 50},
		{zapcore.DPanicLevel, 20},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mapLevelToInt(tt.level), tt.level.String())
	}
}

package logger

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	common_models "twol-crm/internal/common/models"
	"twol-crm/internal/config"
	"twol-crm/internal/database"

	"go.uber.org/zap/zapcore"
)

const logBuffer = 1000

// LogEntry holds the data passed from zap to the worker
type LogEntry struct {
	Level     zapcore.Level
	Message   string
	IpAddress string
	TenantID  string
	Caller    string
}

// LogStore persists log records.
type LogStore interface {
	Insert(ctx context.Context, log common_models.Log) error
}

type mongoLogStore struct {
	db *database.MongodbDB
}

func (s mongoLogStore) Insert(ctx context.Context, log common_models.Log) error {
	_, err := s.db.Collection("logs").InsertOne(ctx, log)
	return err
}

// DBLogWriter handles the async writing
type DBLogWriter struct {
	store   LogStore
	logChan chan LogEntry
	appId   string
	now     func() time.Time

	closeOnce sync.Once
	done      chan struct{}
	finished  chan struct{}
}

// NewDBLogWriter starts a writer persisting into the Mongo logs collection
func NewDBLogWriter(mongodb *database.MongodbDB, cfg *config.Config) *DBLogWriter {
	return newDBLogWriter(mongoLogStore{db: mongodb}, cfg.AppId, logBuffer)
}

func newDBLogWriter(store LogStore, appId string, buffer int) *DBLogWriter {
	writer := &DBLogWriter{
		store:   store,
		logChan: make(chan LogEntry, buffer),
		appId:   appId,
		now:     time.Now,
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}

	go writer.processLogs()

	return writer
}

// AddLog queues entry. It never blocks: when the buffer is full the entry is dropped.
func (w *DBLogWriter) AddLog(entry LogEntry) {
	select {
	case <-w.done:
		return
	default:
	}

	select {
	case w.logChan <- entry:
	default:
		fmt.Fprintln(os.Stderr, "DB Log Channel Full! Dropping log:", entry.Message)
	}
}

// Close stops accepting entries and waits until queued ones are written or ctx ends.
func (w *DBLogWriter) Close(ctx context.Context) error {
	w.closeOnce.Do(func() { close(w.done) })
	select {
	case <-w.finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *DBLogWriter) processLogs() {
	defer close(w.finished)
	for {
		select {
		case entry := <-w.logChan:
			w.write(entry)
		case <-w.done:
			for {
				select {
				case entry := <-w.logChan:
					w.write(entry)
				default:
					return
				}
			}
		}
	}
}

func (w *DBLogWriter) write(entry LogEntry) {
	record := common_models.Log{
		ApplicationId: w.appId,
		Message:       entry.Message,
		IpAddress:     entry.IpAddress,
		TenantId:      entry.TenantID,
		Caller:        entry.Caller,
		LogLevelId:    mapLevelToInt(entry.Level),
		CreatedOnUtc:  w.now().UTC(),
	}

	// errors are ignored to keep the app running
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = w.store.Insert(ctx, record)
}

func mapLevelToInt(l zapcore.Level) int {
	switch l {
	case zapcore.DebugLevel:
		return 10
	case zapcore.InfoLevel:
		return 20
	case zapcore.WarnLevel:
		return 30
	case zapcore.ErrorLevel:
		return 40
	case zapcore.FatalLevel:
		return 50
	default:
		return 20
	}
}

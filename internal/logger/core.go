package logger

import (
	"go.uber.org/zap/zapcore"
)

// DBCore is a zap core that copies every entry it writes to the DB log writer
type DBCore struct {
	zapcore.Core
	writer *DBLogWriter
	fields []zapcore.Field
}

// NewDBCore wraps an existing core (like console logger) and adds DB logging
func NewDBCore(baseCore zapcore.Core, writer *DBLogWriter) zapcore.Core {
	return &DBCore{
		Core:   baseCore,
		writer: writer,
	}
}

// With keeps the tee for child loggers
func (c *DBCore) With(fields []zapcore.Field) zapcore.Core {
	return &DBCore{
		Core:   c.Core.With(fields),
		writer: c.writer,
		fields: append(append([]zapcore.Field(nil), c.fields...), fields...),
	}
}

// Write is called for every log entry
func (c *DBCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	record := LogEntry{
		Level:   entry.Level,
		Message: entry.Message,
		Caller:  entry.Caller.Function,
	}

	for _, group := range [][]zapcore.Field{c.fields, fields} {
		for _, f := range group {
			if f.Type != zapcore.StringType {
				continue
			}
			switch f.Key {
			case "ip":
				record.IpAddress = f.String
			case "tenant_id":
				record.TenantID = f.String
			}
		}
	}

	c.writer.AddLog(record)

	return c.Core.Write(entry, fields)
}

// Check decides if we should log this level
func (c *DBCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

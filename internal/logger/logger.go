package logger

import (
	"context"

	"twol-crm/internal/config"
	"twol-crm/internal/database"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewLogger builds the application logger. Entries go to the console and, asynchronously,
// to the Mongo logs collection.
func NewLogger(lc fx.Lifecycle, cfg *config.Config, mongodb *database.MongodbDB) (*zap.Logger, error) {
	dbWriter := NewDBLogWriter(mongodb, cfg)

	logger, err := build(cfg, dbWriter)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			_ = logger.Sync()
			return dbWriter.Close(ctx)
		},
	})

	zap.ReplaceGlobals(logger)
	return logger, nil
}

func build(cfg *config.Config, writer *DBLogWriter) (*zap.Logger, error) {
	var zapConfig zap.Config
	if cfg.IsProduction() {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	// Caller function names end up in the DB record
	zapConfig.EncoderConfig.FunctionKey = "func"

	baseLogger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}

	core := NewDBCore(baseLogger.Core(), writer)
	return zap.New(core, zap.AddCaller()).With(zap.String("app_id", cfg.AppId)), nil
}

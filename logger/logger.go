package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. Development gets a colored console encoder,
// everything else JSON with ISO8601 timestamps. A non-empty file is appended
// to the output paths next to stderr.
func New(env, file string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if env == "development" {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if file != "" {
		config.OutputPaths = append(config.OutputPaths, file)
		config.ErrorOutputPaths = append(config.ErrorOutputPaths, file)
	}

	return config.Build()
}

// Record returns the standard fields for a bridge record
func Record(id, sourceTx, lockID string) []zap.Field {
	fields := []zap.Field{zap.String("record_id", id)}
	if sourceTx != "" {
		fields = append(fields, zap.String("source_tx", sourceTx))
	}
	if lockID != "" {
		fields = append(fields, zap.String("lock_id", lockID))
	}
	return fields
}

package internal

import (
	"github.com/ThreeDotsLabs/watermill"
	"go.uber.org/zap"
)

// zapWatermillLogger adapts a zap logger to watermill.LoggerAdapter.
type zapWatermillLogger struct {
	logger *zap.SugaredLogger
}

// NewWatermillLogger adapts logger for watermill publishers and subscribers.
func NewWatermillLogger(logger *zap.SugaredLogger) watermill.LoggerAdapter {
	return zapWatermillLogger{logger: logger}
}

func (l zapWatermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	l.logger.With(keyValues(fields)...).Errorw(msg, "error", err)
}

func (l zapWatermillLogger) Info(msg string, fields watermill.LogFields) {
	l.logger.Infow(msg, keyValues(fields)...)
}

func (l zapWatermillLogger) Debug(msg string, fields watermill.LogFields) {
	l.logger.Debugw(msg, keyValues(fields)...)
}

func (l zapWatermillLogger) Trace(msg string, fields watermill.LogFields) {
	l.logger.Debugw(msg, keyValues(fields)...)
}

func (l zapWatermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return zapWatermillLogger{logger: l.logger.With(keyValues(fields)...)}
}

func keyValues(fields watermill.LogFields) []interface{} {
	out := make([]interface{}, 0, len(fields)*2)
	for key, value := range fields {
		out = append(out, key, value)
	}
	return out
}

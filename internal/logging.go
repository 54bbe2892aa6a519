package internal

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger returns a JSON logger named gitevents/<component>.
// LOG_LEVEL selects the minimum level (debug, info, warn, error).
func NewLogger(component string) *zap.SugaredLogger {
	name := "gitevents"
	if component != "" {
		name = name + "/" + component
	}

	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		if parsed, err := zapcore.ParseLevel(raw); err == nil {
			level.SetLevel(parsed)
		}
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.Lock(os.Stdout), level)
	return zap.New(core).Named(name).Sugar()
}

// WithRequestID returns a child logger tagged with the request id.
func WithRequestID(logger *zap.SugaredLogger, requestID string) *zap.SugaredLogger {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if requestID == "" {
		return logger
	}
	return logger.With("request_id", requestID)
}

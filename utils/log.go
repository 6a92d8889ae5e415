package utils

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var logger atomic.Value

func init() {
	logger.Store(zap.NewNop())
}

// Logger returns the logger shared by all packages. It discards everything
// until SetLogger is called.
func Logger() *zap.Logger {
	return logger.Load().(*zap.Logger)
}

func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger.Store(l)
}

// NewLogger builds the process logger used by the command line tool.
func NewLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	return cfg.Build()
}

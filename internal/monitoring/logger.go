// Package monitoring holds the package-level diagnostic logger shared by the
// drift-correction packages.
package monitoring

import (
	"fmt"
	"log"

	"go.uber.org/zap"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// ZapLogf adapts a zap logger to the Logf signature. Messages are emitted at
// info level through the sugared logger.
func ZapLogf(l *zap.Logger) func(format string, v ...interface{}) {
	if l == nil {
		return nil
	}
	s := l.WithOptions(zap.AddCallerSkip(1)).Sugar()
	return func(format string, v ...interface{}) {
		s.Infof(format, v...)
	}
}

// NewZapLogger builds the CLI logger. Verbose switches to the development
// encoder with debug level enabled.
func NewZapLogger(verbose bool) (*zap.Logger, error) {
	var cfg zap.Config
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Encoding = "console"
		cfg.EncoderConfig.TimeKey = "ts"
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}
	return l, nil
}

// RunLogf returns a logger that prefixes every message with a run label.
func RunLogf(label string) func(format string, v ...interface{}) {
	return func(format string, v ...interface{}) {
		Logf("[%s] "+format, append([]interface{}{label}, v...)...)
	}
}

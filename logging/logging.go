// Package logging builds the *zap.Logger every long-lived component
// receives through its constructor, matching route-beacon-ri's pattern
// of passing a logger in rather than each package calling a global.
// The underlying zap Core (file, syslog, stderr) is an external
// collaborator this package does not own; New only fixes the encoding
// and level policy kbgpd runs with.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field name conventions every kbgpd log line that concerns a session
// should use, so log aggregation can filter/group by them uniformly.
const (
	FieldPeer  = "peer"
	FieldState = "state"
	FieldAFI   = "afi"
	FieldSAFI  = "safi"
)

// New builds a production-style JSON logger at the given level
// ("debug", "info", "warn", "error"; unrecognized values fall back to
// "info"). debug is exabgp's long-standing switch for turning on very
// chatty per-message tracing (spec §6 exabgp_debug_*); when true it
// forces the level to debug regardless of levelName.
func New(levelName string, debug bool) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		level = zapcore.InfoLevel
	}
	if debug {
		level = zapcore.DebugLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// Peer returns a child logger with the session's identity pre-bound,
// the shape every reactor component should pass down to the things it
// constructs for one neighbor.
func Peer(base *zap.Logger, name string) *zap.Logger {
	return base.With(zap.String(FieldPeer, name))
}

// Nop is used by tests and by constructors that received no logger.
func Nop() *zap.Logger {
	return zap.NewNop()
}

// MustEnv is a small convenience for main: read exabgp_log_enable and
// build either a real or a no-op logger.
func MustEnv() *zap.Logger {
	if os.Getenv("exabgp_log_enable") == "" {
		return Nop()
	}
	level := os.Getenv("exabgp_log_level")
	debug := os.Getenv("exabgp_debug_all") != ""
	log, err := New(level, debug)
	if err != nil {
		return Nop()
	}
	return log
}

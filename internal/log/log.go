// Package log provides the subsystem loggers every other package in
// coraxumd takes at construction time, following the decred ecosystem's
// standard logging setup: a single rotating backend, one slog.Logger per
// subsystem tag, and a SetLogLevels entry point for runtime reconfiguration
// from internal/config.
package log

import (
	"os"
	"path/filepath"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
)

// Subsystem tags, one per package that logs.
const (
	TagChain    = "CHNS"
	TagConsensus = "CNSS"
	TagMiner    = "MINR"
	TagStore    = "STOR"
	TagUtxo     = "UTXO"
	TagRPC      = "RPCS"
	TagGossip   = "GOSP"
	TagMempool  = "MEMP"
)

var backendLog = slog.NewBackend(os.Stdout)

// loggers holds every subsystem logger constructed so far, so SetLogLevels
// can adjust them all without each package re-registering itself.
var loggers = make(map[string]slog.Logger)

// logRotator, once InitLogRotator is called, also receives every Write the
// backend performs, splitting output to stdout and to a size-rotated file.
var logRotator *rotator.Rotator

// defaultLevel is the level new subsystem loggers start at; SetLogLevels
// updates it.
var defaultLevel = slog.LevelInfo

// Logger returns the slog.Logger for tag, creating it at the level last
// passed to SetLogLevels (info until then) if this is the first request for
// that tag.
func Logger(tag string) slog.Logger {
	if l, ok := loggers[tag]; ok {
		return l
	}
	l := backendLog.Logger(tag)
	l.SetLevel(defaultLevel)
	loggers[tag] = l
	return l
}

// SetLogLevels sets every registered subsystem logger, and every one created
// afterwards, to level, parsed via slog.LevelFromString; an invalid level is
// a no-op returning false.
func SetLogLevels(level string) bool {
	lvl, ok := slog.LevelFromString(level)
	if !ok {
		return false
	}
	defaultLevel = lvl
	for _, l := range loggers {
		l.SetLevel(lvl)
	}
	return true
}

// InitLogRotator opens a rotating log file at logFile (created if needed,
// including parent directories) and tees backendLog's output to it,
// following the same rotate-on-10MB, keep-all-old-files policy dcrd uses.
func InitLogRotator(logFile string) error {
	if err := os.MkdirAll(filepath.Dir(logFile), 0700); err != nil {
		return err
	}
	r, err := rotator.New(logFile, 10*1024, false, 0)
	if err != nil {
		return err
	}
	logRotator = r
	backendLog = slog.NewBackend(logWriter{})
	for tag, l := range loggers {
		level := l.Level()
		nl := backendLog.Logger(tag)
		nl.SetLevel(level)
		loggers[tag] = nl
	}
	return nil
}

// logWriter fans every backend write out to both stdout and the rotator,
// matching dcrd's combined console+file logging behavior.
type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	os.Stdout.Write(p)
	if logRotator != nil {
		logRotator.Write(p)
	}
	return len(p), nil
}

package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "time/tzdata"
)

// traceLevelValue sits one step below slog.LevelDebug (-4).
const traceLevelValue = slog.Level(-8)

// slogLevels maps configured level names to slog levels. Unknown names
// fall back to info.
var slogLevels = map[LogLevel]slog.Level{
	LogLevelTrace: traceLevelValue,
	LogLevelDebug: slog.LevelDebug,
	LogLevelInfo:  slog.LevelInfo,
	LogLevelWarn:  slog.LevelWarn,
	LogLevelError: slog.LevelError,
}

func parseLogLevel(level string) slog.Level {
	return parseSlogLevel(LogLevel(level))
}

func parseSlogLevel(level LogLevel) slog.Level {
	if lvl, ok := slogLevels[level]; ok {
		return lvl
	}
	return slog.LevelInfo
}

// CentralLogger owns the handler chain and the log file of the process.
// Components never log through it directly; they take a Module logger. The
// chain is fixed at construction, so Module needs no locking; mu only
// guards the file writer against a concurrent Close.
type CentralLogger struct {
	levels   map[string]slog.Level
	fallback slog.Level
	timezone *time.Location
	handler  slog.Handler

	mu   sync.Mutex
	file *BufferedFileWriter
}

// NewCentralLogger builds the console text and JSON file handlers described
// by cfg. Missing sections take their defaults; with every output disabled
// the console is used at DefaultLevel.
func NewCentralLogger(cfg *LoggingConfig) (*CentralLogger, error) {
	if cfg == nil {
		return nil, fmt.Errorf("logging config cannot be nil")
	}
	applyConfigDefaults(cfg)

	tz := time.UTC
	if cfg.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %s: %w", cfg.Timezone, err)
		}
		tz = loc
	}

	cl := &CentralLogger{
		levels:   make(map[string]slog.Level, len(cfg.ModuleLevels)),
		fallback: parseLogLevel(cfg.DefaultLevel),
		timezone: tz,
	}
	for module, level := range cfg.ModuleLevels {
		cl.levels[module] = parseLogLevel(level)
	}

	handler, err := cl.buildHandler(cfg, os.Stdout)
	if err != nil {
		return nil, err
	}
	cl.handler = handler
	return cl, nil
}

func (cl *CentralLogger) buildHandler(cfg *LoggingConfig, console io.Writer) (slog.Handler, error) {
	var handlers []slog.Handler
	if cfg.Console.Enabled {
		handlers = append(handlers, newTextHandler(console, parseLogLevel(cfg.Console.Level), cl.timezone))
	}
	if out := cfg.FileOutput; out.Enabled {
		if dir := filepath.Dir(out.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
			}
		}
		writer, err := NewBufferedFileWriter(out.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to create log writer: %w", err)
		}
		cl.file = writer
		handlers = append(handlers, newJSONHandler(writer, parseLogLevel(out.Level), cl.timezone))
	}

	switch len(handlers) {
	case 0:
		return newTextHandler(console, cl.fallback, cl.timezone), nil
	case 1:
		return handlers[0], nil
	default:
		return newMultiWriterHandler(handlers...), nil
	}
}

// Module returns a logger for the named component at its configured level.
// Nested modules ("ledger.shift") created from the result keep the
// parent's level.
func (cl *CentralLogger) Module(name string) Logger {
	if cl == nil {
		return nil
	}
	level, ok := cl.levels[name]
	if !ok {
		level = cl.fallback
	}
	return &moduleLogger{
		module:   name,
		logger:   slog.New(cl.handler),
		level:    level,
		timezone: cl.timezone,
	}
}

// Flush pushes buffered file output to the OS.
func (cl *CentralLogger) Flush() error {
	if cl == nil {
		return nil
	}
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.file == nil {
		return nil
	}
	if err := cl.file.Flush(); err != nil {
		return fmt.Errorf("failed to flush log file: %w", err)
	}
	return nil
}

// Close flushes and closes the log file. Later file writes are dropped.
func (cl *CentralLogger) Close() error {
	if cl == nil {
		return nil
	}
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.file == nil {
		return nil
	}
	err := cl.file.Close()
	cl.file = nil
	if err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	return nil
}

var (
	globalLogger   *CentralLogger
	globalLoggerMu sync.Mutex
)

// SetGlobal installs cl as the process logger returned by Global.
func SetGlobal(cl *CentralLogger) {
	globalLoggerMu.Lock()
	defer globalLoggerMu.Unlock()
	globalLogger = cl
}

// Global returns the process logger. Before SetGlobal it is a console
// logger at info level, so packages may log during early startup and in
// tests.
func Global() *CentralLogger {
	globalLoggerMu.Lock()
	defer globalLoggerMu.Unlock()
	if globalLogger == nil {
		globalLogger = &CentralLogger{
			levels:   map[string]slog.Level{},
			fallback: slog.LevelInfo,
			timezone: time.UTC,
			handler:  newTextHandler(os.Stdout, slog.LevelInfo, time.UTC),
		}
	}
	return globalLogger
}

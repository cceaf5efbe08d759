package logger

import (
	"fmt"
	"io"
	"sync/atomic"

	echolog "github.com/labstack/gommon/log"
)

// EchoLoggerAdapter routes echo's internal logger (startup errors, binder
// and renderer failures) into a module logger.
//
//	e.Logger = logger.NewEchoLoggerAdapter(log.Module("echo"))
//
// Output, prefix and header are owned by the module logger, so their
// setters are no-ops. SetLevel only drops messages below the given level;
// the module level still applies.
type EchoLoggerAdapter struct {
	logger Logger
	level  atomic.Uint32
}

// NewEchoLoggerAdapter creates an adapter over log. A nil log discards.
func NewEchoLoggerAdapter(log Logger) *EchoLoggerAdapter {
	if log == nil {
		log = NewSlogLogger(io.Discard, LogLevelError, nil)
	}
	a := &EchoLoggerAdapter{logger: log}
	a.level.Store(uint32(echolog.DEBUG))
	return a
}

func (a *EchoLoggerAdapter) Output() io.Writer { return io.Discard }
func (a *EchoLoggerAdapter) SetOutput(io.Writer) {}
func (a *EchoLoggerAdapter) Prefix() string { return "" }
func (a *EchoLoggerAdapter) SetPrefix(string) {}
func (a *EchoLoggerAdapter) SetHeader(string) {}
func (a *EchoLoggerAdapter) Level() echolog.Lvl { return echolog.Lvl(a.level.Load()) }
func (a *EchoLoggerAdapter) SetLevel(l echolog.Lvl) { a.level.Store(uint32(l)) }

var echoLevels = map[echolog.Lvl]LogLevel{
	echolog.DEBUG: LogLevelDebug,
	echolog.INFO:  LogLevelInfo,
	echolog.WARN:  LogLevelWarn,
	echolog.ERROR: LogLevelError,
}

func (a *EchoLoggerAdapter) emit(lvl echolog.Lvl, msg string, fields ...Field) {
	if lvl < a.Level() {
		return
	}
	level, ok := echoLevels[lvl]
	if !ok {
		level = LogLevelError
	}
	a.logger.Log(level, RedactSensitiveData(msg), RedactSensitiveFields(fields)...)
}

func (a *EchoLoggerAdapter) Print(i ...any) { a.emit(echolog.INFO, fmt.Sprint(i...)) }
func (a *EchoLoggerAdapter) Printf(format string, args ...any) { a.emit(echolog.INFO, fmt.Sprintf(format, args...)) }
func (a *EchoLoggerAdapter) Printj(j echolog.JSON) { a.emit(echolog.INFO, "echo", Any("data", j)) }

func (a *EchoLoggerAdapter) Debug(i ...any) { a.emit(echolog.DEBUG, fmt.Sprint(i...)) }
func (a *EchoLoggerAdapter) Debugf(format string, args ...any) { a.emit(echolog.DEBUG, fmt.Sprintf(format, args...)) }
func (a *EchoLoggerAdapter) Debugj(j echolog.JSON) { a.emit(echolog.DEBUG, "echo", Any("data", j)) }

func (a *EchoLoggerAdapter) Info(i ...any) { a.emit(echolog.INFO, fmt.Sprint(i...)) }
func (a *EchoLoggerAdapter) Infof(format string, args ...any) { a.emit(echolog.INFO, fmt.Sprintf(format, args...)) }
func (a *EchoLoggerAdapter) Infoj(j echolog.JSON) { a.emit(echolog.INFO, "echo", Any("data", j)) }

func (a *EchoLoggerAdapter) Warn(i ...any) { a.emit(echolog.WARN, fmt.Sprint(i...)) }
func (a *EchoLoggerAdapter) Warnf(format string, args ...any) { a.emit(echolog.WARN, fmt.Sprintf(format, args...)) }
func (a *EchoLoggerAdapter) Warnj(j echolog.JSON) { a.emit(echolog.WARN, "echo", Any("data", j)) }

func (a *EchoLoggerAdapter) Error(i ...any) { a.emit(echolog.ERROR, fmt.Sprint(i...)) }
func (a *EchoLoggerAdapter) Errorf(format string, args ...any) { a.emit(echolog.ERROR, fmt.Sprintf(format, args...)) }
func (a *EchoLoggerAdapter) Errorj(j echolog.JSON) { a.emit(echolog.ERROR, "echo", Any("data", j)) }

// Fatal and Panic log at ERROR and then panic rather than exit.
func (a *EchoLoggerAdapter) Fatal(i ...any) { a.fail(fmt.Sprint(i...)) }
func (a *EchoLoggerAdapter) Fatalf(format string, args ...any) {
	a.fail(fmt.Sprintf(format, args...))
}
func (a *EchoLoggerAdapter) Fatalj(j echolog.JSON) { a.fail(fmt.Sprintf("%v", j)) }
func (a *EchoLoggerAdapter) Panic(i ...any) { a.fail(fmt.Sprint(i...)) }
func (a *EchoLoggerAdapter) Panicf(format string, args ...any) {
	a.fail(fmt.Sprintf(format, args...))
}
func (a *EchoLoggerAdapter) Panicj(j echolog.JSON) { a.fail(fmt.Sprintf("%v", j)) }

func (a *EchoLoggerAdapter) fail(msg string) {
	a.logger.Error(RedactSensitiveData(msg))
	panic("echo: " + msg)
}

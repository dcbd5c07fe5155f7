package util

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the severity of a console message
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	logMu     sync.RWMutex
	logLevel  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	useColors = true
	console   = newConsole()
)

func newConsole() *zap.Logger {
	encCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.TimeEncoderOfLayout("15:04:05"),
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	if useColors {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), logLevel)
	return zap.New(core)
}

// SetLogLevel sets the minimum level to display
func SetLogLevel(level LogLevel) {
	switch level {
	case LevelDebug:
		logLevel.SetLevel(zapcore.DebugLevel)
	case LevelWarn:
		logLevel.SetLevel(zapcore.WarnLevel)
	case LevelError:
		logLevel.SetLevel(zapcore.ErrorLevel)
	default:
		logLevel.SetLevel(zapcore.InfoLevel)
	}
}

// SetVerbose enables verbose (debug) logging
func SetVerbose(verbose bool) {
	if verbose {
		SetLogLevel(LevelDebug)
	}
}

// SetQuiet enables quiet mode (errors only)
func SetQuiet(quiet bool) {
	if quiet {
		SetLogLevel(LevelError)
	}
}

// IsQuiet reports whether only errors are displayed
func IsQuiet() bool {
	return logLevel.Level() >= zapcore.ErrorLevel
}

// SetColors enables or disables coloured level names
func SetColors(enabled bool) {
	logMu.Lock()
	defer logMu.Unlock()
	useColors = enabled
	console = newConsole()
}

// Logger returns the console logger so library packages can share its level.
func Logger() *zap.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	return console
}

func sugar() *zap.SugaredLogger {
	return Logger().Sugar()
}

// DebugLog logs debug messages
func DebugLog(format string, args ...interface{}) {
	sugar().Debugf(format, args...)
}

// InfoLog logs informational messages
func InfoLog(format string, args ...interface{}) {
	sugar().Infof(format, args...)
}

// WarnLog logs warning messages
func WarnLog(format string, args ...interface{}) {
	sugar().Warnf(format, args...)
}

// ErrorLog logs error messages
func ErrorLog(format string, args ...interface{}) {
	sugar().Errorf(format, args...)
}

// SuccessLog logs success messages (shown unless quiet)
func SuccessLog(format string, args ...interface{}) {
	sugar().Infof("OK "+format, args...)
}

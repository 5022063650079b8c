// Package logger provides structured logging using zerolog.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config represents logger configuration.
type Config struct {
	Output string // "stdout", "stderr", or file path
	Level  string // "debug", "info", "warn", "error"
	File   string // log file path (used when Output is not stdout/stderr)

	// ErrorFile receives every record at error level or above, rotated.
	// Empty disables the durable error log.
	ErrorFile       string
	ErrorMaxSizeMB  int // default 10
	ErrorMaxBackups int // default 3
	ErrorMaxAgeDays int // default 28
}

// Init initializes the global zerolog logger with the given configuration.
func Init(cfg Config) error {
	level := parseLevel(cfg.Level)

	var writer io.Writer
	console := false
	switch strings.ToLower(cfg.Output) {
	case "stdout", "":
		writer = os.Stdout
		console = true
	case "stderr":
		writer = os.Stderr
		console = true
	default:
		// File output
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return err
		}
		writer = f
	}

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.TimestampFieldName = "time"
	zerolog.LevelFieldName = "level"
	zerolog.MessageFieldName = "message"

	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		parts := strings.Split(file, string(filepath.Separator))
		if len(parts) > 1 {
			return filepath.Join(parts[len(parts)-2:]...) + ":" + strconv.Itoa(line)
		}
		return filepath.Base(file) + ":" + strconv.Itoa(line)
	}

	// Use ConsoleWriter for stdout/stderr (color output), JSON for files
	if console {
		cw := zerolog.ConsoleWriter{
			Out:        writer,
			TimeFormat: time.TimeOnly,
		}
		if level == zerolog.DebugLevel {
			cw.PartsOrder = []string{"time", "level", "message", "caller"}
			cw.FormatCaller = func(i interface{}) string {
				return "(" + fmt.Sprint(i) + ")"
			}
		}
		writer = cw
	}

	if cfg.ErrorFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.ErrorFile), 0o755); err != nil {
			return err
		}
		writer = zerolog.MultiLevelWriter(writer, &zerolog.FilteredLevelWriter{
			Writer: zerolog.LevelWriterAdapter{Writer: newErrorSink(cfg)},
			Level:  zerolog.ErrorLevel,
		})
	}

	ctx := zerolog.New(writer).With().Timestamp()
	if level == zerolog.DebugLevel {
		// Add Caller only for DEBUG level
		ctx = ctx.Caller()
	}
	logger := ctx.Logger()

	zerolog.DefaultContextLogger = &logger
	zlog.Logger = logger

	return nil
}

func newErrorSink(cfg Config) *lumberjack.Logger {
	sink := &lumberjack.Logger{
		Filename:   cfg.ErrorFile,
		MaxSize:    cfg.ErrorMaxSizeMB,
		MaxBackups: cfg.ErrorMaxBackups,
		MaxAge:     cfg.ErrorMaxAgeDays,
	}
	if sink.MaxSize <= 0 {
		sink.MaxSize = 10
	}
	if sink.MaxBackups <= 0 {
		sink.MaxBackups = 3
	}
	if sink.MaxAge <= 0 {
		sink.MaxAge = 28
	}
	return sink
}

// Recover logs a panic with its stack and lets the process continue.
// It must be deferred directly.
func Recover(scope string) {
	if r := recover(); r != nil {
		zlog.Error().
			Str("scope", scope).
			Str("stack", string(debug.Stack())).
			Msgf("recovered panic: %v", r)
	}
}

// Tail returns at most maxBytes from the end of the file at path.
// A missing file yields an empty string.
func Tail(path string, maxBytes int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	offset := max(info.Size()-maxBytes, 0)
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return "", err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	if offset > 0 {
		// drop the partial first line
		if i := strings.IndexByte(string(data), '\n'); i >= 0 {
			data = data[i+1:]
		}
	}
	return string(data), nil
}

// parseLevel parses the log level string.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

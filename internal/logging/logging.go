// Package logging configures the global zerolog logger.
package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	DefaultMaxSizeMB  = 20
	DefaultMaxBackups = 3
	DefaultMaxAgeDays = 14

	timeFormat = "2006-01-02 15:04:05"
)

// Apply sets the global level and writes to a rotating file at logFile.
// Console output goes to stderr only at debug level and below, so log lines
// do not tear through the interactive UI. An empty logFile disables the file.
func Apply(level, logFile string) {
	applyLevel(level)
	log.Logger = zerolog.New(outputs(os.Stderr, logFile)).With().Timestamp().Logger()
}

func applyLevel(level string) {
	switch level {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func outputs(console io.Writer, logFile string) io.Writer {
	var writers []io.Writer
	if zerolog.GlobalLevel() <= zerolog.DebugLevel || logFile == "" {
		writers = append(writers, zerolog.ConsoleWriter{Out: console, TimeFormat: timeFormat})
	}

	if logFile != "" {
		if err := ensureLogDir(logFile); err != nil {
			fallback := zerolog.New(zerolog.ConsoleWriter{Out: console, TimeFormat: timeFormat})
			fallback.Warn().Err(err).Str("path", logFile).Msg("Failed to prepare log directory; logging to console only")
			return zerolog.ConsoleWriter{Out: console, TimeFormat: timeFormat}
		}
		writers = append(writers, zerolog.ConsoleWriter{
			Out: &lumberjack.Logger{
				Filename:   logFile,
				MaxSize:    DefaultMaxSizeMB,
				MaxBackups: DefaultMaxBackups,
				MaxAge:     DefaultMaxAgeDays,
				Compress:   true,
			},
			TimeFormat: timeFormat,
			NoColor:    true,
		})
	}

	if len(writers) == 1 {
		return writers[0]
	}
	return zerolog.MultiLevelWriter(writers...)
}

func ensureLogDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

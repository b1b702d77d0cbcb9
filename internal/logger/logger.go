package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Service is attached to every log line as the "service" field.
const Service = "exstem-practice"

// Setup initializes the global zerolog logger.
//   - level: trace, debug, info, warn, error, fatal or panic (default info)
//   - format: "pretty" for console output, anything else for JSON
func Setup(level, format string) zerolog.Logger {
	return New(os.Stdout, level, format)
}

// New builds the logger on an explicit writer. Durations are logged in
// milliseconds so runner and worker timings read the same.
func New(out io.Writer, level, format string) zerolog.Logger {
	writer := out
	if format == "pretty" {
		writer = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(lvl)
	zerolog.DurationFieldUnit = time.Millisecond

	return zerolog.New(writer).
		Level(lvl).
		With().
		Timestamp().
		Str("service", Service).
		Caller().
		Logger()
}

package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New builds the service logger: human-readable console output at debug level
// in development, JSON at info level everywhere else.
func New(environment string) zerolog.Logger {
	var out io.Writer = os.Stdout
	level := zerolog.InfoLevel
	if environment == "development" {
		out = zerolog.ConsoleWriter{Out: os.Stdout}
		level = zerolog.DebugLevel
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

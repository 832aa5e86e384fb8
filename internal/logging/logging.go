package logging

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New builds the process logger. Debug mode lowers the level and keeps
// the console writer readable during development; production emits JSON.
func New(debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	var logger zerolog.Logger
	if debug {
		output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
		logger = zerolog.New(output).Level(level).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	}

	log.Logger = logger
	return logger
}

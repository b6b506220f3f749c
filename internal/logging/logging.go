package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures zerolog for the process. Development gets human-readable
// console output at debug level; everything else gets JSON.
func Setup(environment, level string) zerolog.Logger {
	var writer io.Writer = os.Stdout
	if environment == "development" {
		writer = zerolog.ConsoleWriter{Out: os.Stdout}
	}
	return SetupWithWriter(environment, level, writer)
}

// SetupWithWriter is Setup with an explicit destination.
func SetupWithWriter(environment, level string, writer io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if environment == "development" && lvl > zerolog.DebugLevel {
		lvl = zerolog.DebugLevel
	}

	logger := zerolog.New(writer).With().Timestamp().Str("service", "coach-scheduling").Logger().Level(lvl)
	log.Logger = logger
	return logger
}

// Package logging sets up the global zerolog logger and the HTTP request
// logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global logger. DEV gets a console writer at debug
// level, every other environment JSON at info.
func Init(env string) {
	InitTo(os.Stdout, env)
}

// InitTo is Init with an explicit JSON destination.
func InitTo(w io.Writer, env string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	logger := zerolog.New(w).With().Timestamp().Logger()
	if IsDevelopment(env) {
		logger = logger.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}).Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	log.Logger = logger.With().Caller().Logger()
}

func IsDevelopment(env string) bool {
	return strings.EqualFold(env, "DEV") || env == ""
}

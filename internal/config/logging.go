package config

import (
	"os"

	"github.com/rs/zerolog"
)

// NewLogger builds a zerolog.Logger at the configured level. Callers
// receive the logger as a dependency rather than reaching for a
// package-level global, per the "no process-global singleton" design
// note in spec.md §9 (applied here to logging as much as to the bus).
func NewLogger(component string, levelName string) zerolog.Logger {
	level, err := zerolog.ParseLevel(levelName)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		Level(level).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

// Package logging builds the process logger.
package logging

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// New returns a JSON logger writing to stderr at the given level. An
// unrecognised level falls back to info.
func New(level string) *log.Logger {
	logger := log.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&log.JSONFormatter{})
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
		defer logger.WithField("level", level).Warn("unknown log level, using info")
	}
	logger.SetLevel(lvl)
	return logger
}

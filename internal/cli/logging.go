package cli

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

var (
	errInvalidLogLevel  = errors.New("unrecognized log level")
	errInvalidLogFormat = errors.New("unrecognized log format")
)

// initLog configures the standard logrus logger.
func initLog(level, format string) error {
	switch format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&log.TextFormatter{})
	case "color":
		log.SetFormatter(&log.TextFormatter{ForceColors: true})
	default:
		return fmt.Errorf("%q: %w", format, errInvalidLogFormat)
	}

	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("%q: %w", level, errInvalidLogLevel)
	}
	log.SetLevel(lvl)
	return nil
}

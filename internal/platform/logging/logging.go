// Package logging configures the process-wide logrus logger.
package logging

import (
	"os"
	"strings"

	"github.com/gip-inclusion/employee-records/internal/platform/config"
	"github.com/sirupsen/logrus"
)

// New builds a logger from configuration. Unknown levels fall back to info.
func New(cfg config.LoggingConfig) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if strings.ToLower(cfg.Format) == "json" {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	return log
}

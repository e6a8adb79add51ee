// Package logger builds the process-wide logrus logger.
package logger

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// New returns a JSON logger writing to out. Unknown levels fall back to info.
func New(out io.Writer, level string) *logrus.Logger {
	log := logrus.New()
	log.Out = out
	log.Formatter = &logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "severity",
			logrus.FieldKeyMsg:   "message",
		},
		TimestampFormat: time.RFC3339Nano,
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.Level = lvl
	return log
}

// Component tags every entry with the emitting component.
func Component(log *logrus.Logger, name string) *logrus.Entry {
	return log.WithField("component", name)
}

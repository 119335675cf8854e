// Package logging builds the logrus loggers used by the command line tools.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Format is the output format of log entries.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Options configures New.
type Options struct {
	// Level is a logrus level name (debug, info, warn, error). Empty
	// means info.
	Level string

	// Format defaults to FormatText.
	Format Format

	// Out defaults to os.Stderr.
	Out io.Writer
}

// New returns a logger configured by opts.
func New(opts Options) (*logrus.Logger, error) {
	logger := logrus.New()

	logger.Out = opts.Out
	if logger.Out == nil {
		logger.Out = os.Stderr
	}

	level := logrus.InfoLevel
	if opts.Level != "" {
		var err error
		level, err = logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, err
		}
	}
	logger.SetLevel(level)

	switch opts.Format {
	case FormatText, "":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	case FormatJSON:
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unsupported log format: %s", opts.Format)
	}

	return logger, nil
}

// Discard returns a logger that drops everything. Useful as a default when
// callers pass no logger.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.Out = io.Discard
	return logger
}

// Package logging configures the process-wide logrus logger and hands out
// component-scoped entries. Components log through their named entry;
// nothing else in the repo touches the logrus singleton directly.
package logging

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Options selects level, format and destination for the shared logger.
type Options struct {
	// Level is a logrus level name. Empty means info. The LOG_LEVEL
	// environment variable wins over this field.
	Level string
	// Format is "json" or "text". Empty means json.
	Format string
	// Output is "stdout", "stderr", or a file path. File outputs rotate.
	Output string
	// MaxAgeDays bounds rotated file retention. Zero keeps the default.
	MaxAgeDays int
}

// Configure applies the options to the standard logger.
func Configure(opts Options) error {
	logger := logrus.StandardLogger()

	level := opts.Level
	if env := strings.TrimSpace(os.Getenv("LOG_LEVEL")); env != "" {
		level = env
	}
	if level == "" {
		level = "info"
	}
	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logger.SetLevel(parsed)

	switch opts.Format {
	case "", "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	default:
		return fmt.Errorf("invalid log format %q", opts.Format)
	}

	switch opts.Output {
	case "", "stdout":
		logger.SetOutput(os.Stdout)
	case "stderr":
		logger.SetOutput(os.Stderr)
	default:
		maxAge := opts.MaxAgeDays
		if maxAge <= 0 {
			maxAge = 7
		}
		logger.SetOutput(&lumberjack.Logger{
			Filename: opts.Output,
			MaxAge:   maxAge,
			MaxSize:  100,
			Compress: true,
		})
	}

	return nil
}

// Component returns an entry tagged with the component name.
func Component(name string) *logrus.Entry {
	return logrus.StandardLogger().WithField("component", name)
}

// Exchange returns an entry tagged with component and exchange.
func Exchange(component, exchange string) *logrus.Entry {
	return Component(component).WithField("exchange", exchange)
}

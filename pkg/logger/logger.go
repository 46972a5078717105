package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var log *logrus.Logger

func Init(verbose bool) {
	log = logrus.New()

	log.SetOutput(os.Stdout)

	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05Z07:00",
	})

	if verbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
}

// InitWithConfig builds the logger from the log section of the configuration.
// Output is one of stdout, stderr or file (filePath is then required).
func InitWithConfig(level, format, output, filePath string) error {
	l := logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	l.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "", "json":
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05Z07:00",
		})
	case "text":
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02T15:04:05Z07:00",
		})
	default:
		return fmt.Errorf("unsupported log format %q", format)
	}

	var w io.Writer
	switch strings.ToLower(output) {
	case "", "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	case "file":
		if filePath == "" {
			return fmt.Errorf("log output is file but no file path configured")
		}
		f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		w = f
	default:
		return fmt.Errorf("unsupported log output %q", output)
	}
	l.SetOutput(w)

	log = l
	return nil
}

func GetLogger() *logrus.Logger {
	if log == nil {
		Init(false)
	}
	return log
}

func Debug(format string, args ...any) {
	GetLogger().Debugf(format, args...)
}

func Info(format string, args ...any) {
	GetLogger().Infof(format, args...)
}

func Warn(format string, args ...any) {
	GetLogger().Warnf(format, args...)
}

func Error(format string, args ...any) {
	GetLogger().Errorf(format, args...)
}

func Fatal(format string, args ...interface{}) {
	GetLogger().Fatalf(format, args...)
}

func WithField(key string, value interface{}) *logrus.Entry {
	return GetLogger().WithField(key, value)
}

func WithFields(fields logrus.Fields) *logrus.Entry {
	return GetLogger().WithFields(fields)
}

package log

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// TimestampFormat defines the timestamp format in log output.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

var defaultLogger = logrus.StandardLogger()

func init() {
	defaultLogger.Out = os.Stderr
}

// Configure sets the format and level on logger. An unknown level falls
// back to info.
func Configure(logger *logrus.Logger, format, level string) error {
	var formatter logrus.Formatter
	switch format {
	case "json":
		formatter = &logrus.JSONFormatter{TimestampFormat: TimestampFormat}
	case "text":
		formatter = &logrus.TextFormatter{TimestampFormat: TimestampFormat}
	case "":
		// Just stick with the default
	default:
		return fmt.Errorf("invalid log format %q", format)
	}

	logrusLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logrusLevel = logrus.InfoLevel
	}
	logger.SetLevel(logrusLevel)
	if formatter != nil {
		logger.Formatter = formatter
	}
	return nil
}

// Default returns the process logger.
func Default() *logrus.Logger { return defaultLogger }

// Discard returns a logger that drops everything. Components fall back to it
// when the caller does not supply one.
func Discard() logrus.FieldLogger {
	l := logrus.New()
	l.Out = io.Discard
	l.SetLevel(logrus.PanicLevel)
	return l
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l logrus.FieldLogger) logrus.FieldLogger {
	if l == nil {
		return Discard()
	}
	return l
}

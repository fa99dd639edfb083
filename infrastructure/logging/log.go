// Package logging holds the process-wide logrus logger.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the global logger instance
var Logger = logrus.New()

func init() {
	Logger.SetOutput(os.Stderr)
	Logger.SetLevel(logrus.InfoLevel)
	SetTextFormat()
}

// SetVerbosity maps the -v level onto a log level: 0 info, 1 debug,
// 2 and above trace (raw device output).
func SetVerbosity(level int) {
	switch {
	case level <= 0:
		Logger.SetLevel(logrus.InfoLevel)
	case level == 1:
		Logger.SetLevel(logrus.DebugLevel)
	default:
		Logger.SetLevel(logrus.TraceLevel)
	}
}

// SetLogLevel sets the logging level
func SetLogLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	Logger.SetLevel(lvl)
	return nil
}

// SetLogOutput sets the log output destination
func SetLogOutput(w io.Writer) {
	Logger.SetOutput(w)
}

// SetTextFormat restores the default human-readable format.
func SetTextFormat() {
	Logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
}

// SetJSONFormat enables JSON log format
func SetJSONFormat() {
	Logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05Z07:00",
	})
}

// WithSwitch returns a logger with switch context
func WithSwitch(target string) *logrus.Entry {
	return Logger.WithField("switch", target)
}

// WithVLAN returns a logger with switch and VLAN context
func WithVLAN(target string, vlanID int) *logrus.Entry {
	return Logger.WithFields(logrus.Fields{"switch": target, "vlan": vlanID})
}

// Package logging configures the process-wide logrus logger and hands out
// per-component entries.
package logging

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// Setup applies level ("debug", "info", ...) and format ("text" or "json")
// to the standard logrus logger. An unknown level falls back to info.
func Setup(level, format string, out io.Writer) {
	logger := logrus.StandardLogger()
	if out != nil {
		logger.SetOutput(out)
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	if strings.EqualFold(format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// Component returns a logger tagged with the given component name.
func Component(name string) *logrus.Entry {
	return logrus.WithField("component", name)
}

// HTTP returns a logger for request handling.
func HTTP() *logrus.Entry { return Component("http") }

// DB returns a logger for store operations.
func DB() *logrus.Entry { return Component("db") }

// Export returns a logger for spreadsheet exports.
func Export() *logrus.Entry { return Component("export") }

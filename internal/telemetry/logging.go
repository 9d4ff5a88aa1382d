package telemetry

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// InitLogging configures the global logrus logger.
// Unknown levels fall back to info; format "json" selects the JSON formatter.
func InitLogging(level, format string) {
	logrus.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)

	if strings.EqualFold(format, "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

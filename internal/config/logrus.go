package config

import (
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger builds the shared structured logger. JSON output so import
// runs can be traced per-row in log aggregation.
func NewLogger(environment string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	if environment == "production" {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	return logger
}

// Package logging provides the project-wide structured logger.
package logging

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	once      sync.Once
	projectLog *logrus.Logger
)

// GetProjectLogger returns the process-wide logger, initializing it on first use.
func GetProjectLogger() *logrus.Logger {
	once.Do(func() {
		projectLog = logrus.New()
		projectLog.SetOutput(os.Stderr)
		projectLog.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
		if lvl := os.Getenv("HALOFX_LOG_LEVEL"); lvl != "" {
			if parsed, err := logrus.ParseLevel(lvl); err == nil {
				projectLog.SetLevel(parsed)
			}
		}
	})
	return projectLog
}

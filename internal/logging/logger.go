package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// New builds the process logger. Production environments get JSON output for
// log aggregation; everything else gets the human-readable text formatter.
func New(environment, level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if strings.EqualFold(environment, "production") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// WithCall scopes a logger to one telephony call.
func WithCall(log logrus.FieldLogger, callID string) logrus.FieldLogger {
	return log.WithField("call_id", callID)
}

// WithSession scopes a logger to a call and its remote voice-AI session.
func WithSession(log logrus.FieldLogger, callID, remoteSessionID string) logrus.FieldLogger {
	return log.WithFields(logrus.Fields{
		"call_id":           callID,
		"remote_session_id": remoteSessionID,
	})
}

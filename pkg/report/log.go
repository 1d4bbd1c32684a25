package report

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Log writes events to a logger instead of a remote coordinator. Used when
// no reporter endpoint is configured, and alongside HTTP so a campaign's
// transitions are always visible in the process log.
type Log struct {
	logger *logrus.Logger
}

// NewLog creates a reporter writing to the given logger.
func NewLog(logger *logrus.Logger) *Log {
	return &Log{logger: logger}
}

// Status implements Reporter.
func (l *Log) Status(_ context.Context, event StatusEvent) error {
	fields := logrus.Fields{
		"operation": event.Operation,
		"variant":   event.Variant,
		"requested": event.Requested.String(),
	}
	if event.Success != nil {
		fields["success"] = *event.Success
	}
	l.logger.WithFields(fields).Info("impairment status")
	return nil
}

// Info implements Reporter.
func (l *Log) Info(_ context.Context, message string) error {
	l.logger.Info(message)
	return nil
}

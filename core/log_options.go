// Package core provides small building blocks shared by the proxy and its
// modifiers: request context helpers and options for customizing log entries.
package core

import (
	"github.com/2005czq/lunettes/domain"
	"github.com/google/uuid"
)

// LogOption customizes a log entry before it is written.
type LogOption func(log *domain.Log) error

// LogWithContext is an option to add a context map to a log entry.
func LogWithContext(context map[string]any) LogOption {
	return func(log *domain.Log) error {
		log.Context = context
		return nil
	}
}

// LogWithRequestID is an option to associate a log entry with a request ID.
func LogWithRequestID(id uuid.UUID) LogOption {
	return func(log *domain.Log) error {
		log.RequestID = &id
		return nil
	}
}

// Package alerting defines the alert sink boundary. The transport behind
// the Sink interface (chat webhook, pager, ...) is an external
// collaborator; this package only shapes messages and guards dispatch.
package alerting

import (
	"context"
	"time"
)

// Message is the structured payload handed to the alert sink.
type Message struct {
	Title       string            `json:"title"`
	Severity    string            `json:"severity"`
	Color       string            `json:"color"`
	Fields      map[string]string `json:"fields"`
	Environment string            `json:"environment"`
	Timestamp   time.Time         `json:"timestamp"`
}

// Sink is the outbound alert capability.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, msg Message) error

// Send implements Sink.
func (f SinkFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// SeverityColor maps a severity name to the color conventions alert
// transports expect.
func SeverityColor(severity string) string {
	switch severity {
	case "critical":
		return "#d00000"
	case "high":
		return "#e85d04"
	case "medium":
		return "#ffba08"
	default:
		return "#6c757d"
	}
}

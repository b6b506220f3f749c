// Package notify hands booking confirmations and reminders to the external
// email service. Rendering and delivery happen there; this package only
// transports a template kind plus its data.
package notify

import (
	"context"
	"errors"

	"alcyxob/coach-scheduling/internal/metrics"
)

// Kind names the template the email service should render.
type Kind string

const (
	KindBookingConfirmation Kind = "booking_confirmation"
	KindAppointmentReminder Kind = "appointment_reminder"
)

// Data is the flat set of template variables.
type Data map[string]string

// ErrRateLimited is returned when a recipient has used up the send budget
// for the current window.
var ErrRateLimited = errors.New("notification rate limit exceeded")

// Notifier sends one templated message and returns the id the transport
// assigned to it.
type Notifier interface {
	Send(ctx context.Context, recipient string, kind Kind, data Data) (string, error)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, recipient string, kind Kind, data Data) (string, error)

func (f NotifierFunc) Send(ctx context.Context, recipient string, kind Kind, data Data) (string, error) {
	return f(ctx, recipient, kind, data)
}

type instrumented struct {
	next    Notifier
	metrics *metrics.Metrics
}

// WithMetrics counts every send by kind and status.
func WithMetrics(next Notifier, m *metrics.Metrics) Notifier {
	if m == nil {
		return next
	}
	return &instrumented{next: next, metrics: m}
}

func (n *instrumented) Send(ctx context.Context, recipient string, kind Kind, data Data) (string, error) {
	id, err := n.next.Send(ctx, recipient, kind, data)
	switch {
	case err == nil:
		n.metrics.IncNotification(string(kind), "sent")
	case errors.Is(err, ErrRateLimited):
		n.metrics.IncNotification(string(kind), "rate_limited")
	default:
		n.metrics.IncNotification(string(kind), "failed")
	}
	return id, err
}

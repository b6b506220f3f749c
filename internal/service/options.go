package service

import (
	"time"

	"alcyxob/coach-scheduling/internal/metrics"

	"github.com/rs/zerolog"
)

// Option configures the ambient dependencies shared by every service.
type Option func(*options)

type options struct {
	now     func() time.Time
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

func buildOptions(component string, opts []Option) options {
	o := options{
		now:    time.Now,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.With().Str("component", component).Logger()
	return o
}

// WithClock overrides the wall clock. Slots and reminder windows are
// evaluated against its wall-clock reading.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"alcyxob/coach-scheduling/internal/metrics"
	"alcyxob/coach-scheduling/internal/repository/memory"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	msgs     []*nats.Msg
	flushErr error
	deadline bool
}

func (f *fakePublisher) PublishMsg(m *nats.Msg) error {
	f.msgs = append(f.msgs, m)
	return nil
}

func (f *fakePublisher) FlushWithContext(ctx context.Context) error {
	_, f.deadline = ctx.Deadline()
	return f.flushErr
}

func countingNotifier(calls *int) Notifier {
	return NotifierFunc(func(ctx context.Context, recipient string, kind Kind, data Data) (string, error) {
		*calls++
		return "msg-1", nil
	})
}

func TestNATSNotifierPublishesDeliveryRequest(t *testing.T) {
	pub := &fakePublisher{}
	n := newNATSNotifier(pub, "coach.notifications.email", zerolog.Nop())
	n.now = func() time.Time { return time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC) }

	id, err := n.Send(context.Background(), "ana@example.com", KindAppointmentReminder, Data{"time": "14:00"})
	require.NoError(t, err)
	require.Len(t, pub.msgs, 1)
	assert.True(t, pub.deadline, "flush must run under a deadline")

	msg := pub.msgs[0]
	assert.Equal(t, "coach.notifications.email", msg.Subject)
	assert.Equal(t, id, msg.Header.Get(nats.MsgIdHdr))

	var req deliveryRequest
	require.NoError(t, json.Unmarshal(msg.Data, &req))
	assert.Equal(t, id, req.MessageID)
	assert.Equal(t, "ana@example.com", req.Recipient)
	assert.Equal(t, KindAppointmentReminder, req.Kind)
	assert.Equal(t, "14:00", req.Data["time"])
}

func TestNATSNotifierFlushFailure(t *testing.T) {
	pub := &fakePublisher{flushErr: nats.ErrTimeout}
	n := newNATSNotifier(pub, "subj", zerolog.Nop())

	id, err := n.Send(context.Background(), "ana@example.com", KindBookingConfirmation, nil)
	assert.Empty(t, id)
	assert.ErrorIs(t, err, nats.ErrTimeout)
}

func TestRateLimitedBlocksAfterLimit(t *testing.T) {
	store := memory.NewStore()
	calls := 0
	limiter := NewRateLimited(countingNotifier(&calls), store.SendCounter(),
		RateLimitConfig{Limit: 2, Window: time.Hour}, zerolog.Nop())
	limiter.now = func() time.Time { return time.Date(2024, 1, 1, 10, 5, 0, 0, time.UTC) }

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := limiter.Send(ctx, "ana@example.com", KindAppointmentReminder, nil)
		require.NoError(t, err)
	}
	_, err := limiter.Send(ctx, " ANA@example.com ", KindAppointmentReminder, nil)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 2, calls)

	// Other recipients have their own budget
	_, err = limiter.Send(ctx, "ben@example.com", KindAppointmentReminder, nil)
	assert.NoError(t, err)

	// Next window starts fresh
	limiter.now = func() time.Time { return time.Date(2024, 1, 1, 11, 5, 0, 0, time.UTC) }
	_, err = limiter.Send(ctx, "ana@example.com", KindAppointmentReminder, nil)
	assert.NoError(t, err)
	assert.Equal(t, 4, calls)
}

func TestRateLimitedDisabled(t *testing.T) {
	calls := 0
	limiter := NewRateLimited(countingNotifier(&calls), nil, RateLimitConfig{}, zerolog.Nop())
	for i := 0; i < 5; i++ {
		_, err := limiter.Send(context.Background(), "ana@example.com", KindAppointmentReminder, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 5, calls)
}

func TestWithMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	fail := true
	n := WithMetrics(NotifierFunc(func(ctx context.Context, recipient string, kind Kind, data Data) (string, error) {
		if fail {
			return "", errors.New("broker down")
		}
		return "id", nil
	}), m)

	_, err := n.Send(context.Background(), "a@example.com", KindAppointmentReminder, nil)
	require.Error(t, err)
	fail = false
	_, err = n.Send(context.Background(), "a@example.com", KindAppointmentReminder, nil)
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(reg, "coach_scheduling_notify_sends_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(zerolog.New(&buf))

	id, err := n.Send(context.Background(), "ana@example.com", KindBookingConfirmation, Data{"date": "2024-01-01"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Contains(t, buf.String(), `"data.date":"2024-01-01"`)
	assert.Contains(t, buf.String(), id)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = n.Send(ctx, "ana@example.com", KindBookingConfirmation, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

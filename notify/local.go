// ABOUTME: In-process dispatcher holding pending notifications in memory
// ABOUTME: A ticker loop delivers due notifications to the sink
package notify

import (
	"context"
	"crypto/rand"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/oklog/ulid/v2"
)

// Sink receives notifications when they fire.
type Sink interface {
	Deliver(ctx context.Context, n Notification) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, n Notification) error

// Deliver calls f.
func (f SinkFunc) Deliver(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// LogSink writes fired notifications to the log.
type LogSink struct{}

// Deliver logs n.
func (LogSink) Deliver(_ context.Context, n Notification) error {
	log.Info(n.Message.Title,
		"contact", n.Message.ContactName,
		"due", n.Due.Local().Format(time.Kitchen),
		"lead", n.LeadMinutes,
	)
	return nil
}

// MultiSink delivers to every sink, returning the first error.
type MultiSink []Sink

// Deliver fans n out.
func (m MultiSink) Deliver(ctx context.Context, n Notification) error {
	var first error
	for _, s := range m {
		if err := s.Deliver(ctx, n); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// LocalDispatcher keeps pending notifications in memory and delivers them
// from a ticker loop.
type LocalDispatcher struct {
	sink     Sink
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	pending map[Handle]Notification
	entropy *ulid.MonotonicEntropy

	shutdownComplete chan struct{}
}

// NewLocalDispatcher constructs a dispatcher polling every interval.
func NewLocalDispatcher(sink Sink, interval time.Duration) *LocalDispatcher {
	if sink == nil {
		sink = LogSink{}
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &LocalDispatcher{
		sink:             sink,
		interval:         interval,
		now:              time.Now,
		pending:          make(map[Handle]Notification),
		entropy:          ulid.Monotonic(rand.Reader, 0),
		shutdownComplete: make(chan struct{}),
	}
}

// Schedule records one pending notification per lead offset.
func (d *LocalDispatcher) Schedule(ctx context.Context, due time.Time, leadMinutes []int, msg Message) ([]Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	handles := make([]Handle, 0, len(leadMinutes))
	for _, lead := range leadMinutes {
		id, err := ulid.New(ulid.Timestamp(d.now()), d.entropy)
		if err != nil {
			return nil, err
		}
		h := Handle(id.String())
		d.pending[h] = Notification{
			Handle:      h,
			Due:         due,
			FireAt:      FireTime(due, lead),
			LeadMinutes: lead,
			Message:     msg,
		}
		handles = append(handles, h)
	}
	return handles, nil
}

// Cancel drops pending notifications. Unknown handles are ignored.
func (d *LocalDispatcher) Cancel(ctx context.Context, handles []Handle) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, h := range handles {
		delete(d.pending, h)
	}
	return nil
}

// Pending returns pending notifications ordered by fire time.
func (d *LocalDispatcher) Pending() []Notification {
	d.mu.Lock()
	out := make([]Notification, 0, len(d.pending))
	for _, n := range d.pending {
		out = append(out, n)
	}
	d.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].FireAt.Equal(out[j].FireAt) {
			return out[i].Handle < out[j].Handle
		}
		return out[i].FireAt.Before(out[j].FireAt)
	})
	return out
}

// Run delivers due notifications until ctx is cancelled. It should be
// called in a goroutine.
func (d *LocalDispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer func() {
		ticker.Stop()
		close(d.shutdownComplete)
	}()

	for {
		d.deliverDue(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Wait blocks until Run returns.
func (d *LocalDispatcher) Wait() {
	<-d.shutdownComplete
}

func (d *LocalDispatcher) deliverDue(ctx context.Context) {
	now := d.now()

	d.mu.Lock()
	var due []Notification
	for h, n := range d.pending {
		if !n.FireAt.After(now) {
			due = append(due, n)
			delete(d.pending, h)
		}
	}
	d.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].FireAt.Before(due[j].FireAt) })
	for _, n := range due {
		if err := d.sink.Deliver(ctx, n); err != nil {
			failureCounter.WithLabelValues("deliver").Inc()
			log.Warn("deliver notification", "handle", n.Handle, "reminder", n.Message.ReminderID, "err", err)
			continue
		}
		deliveredCounter.Inc()
	}
}

// Package audit records authenticated account actions: who connected which
// platform, created or deleted which product, scheduled which launch. Events
// are persisted for the account's own audit view and optionally shipped to
// external destinations for retention outside the database.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/launchpal/launchpal/internal/safego"
)

// Event is one audited action.
type Event struct {
	Timestamp    time.Time      `json:"timestamp"`
	Action       string         `json:"action"`
	UserID       string         `json:"user_id,omitempty"`
	ResourceType string         `json:"resource_type,omitempty"`
	ResourceID   string         `json:"resource_id,omitempty"`
	AuthMethod   string         `json:"auth_method,omitempty"`
	StatusCode   int            `json:"status_code"`
	IPAddress    string         `json:"ip_address,omitempty"`
	RequestID    string         `json:"request_id,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Store persists events.
type Store interface {
	Save(ctx context.Context, e *Event) error
}

// Shipper sends events to an external destination.
type Shipper interface {
	Ship(ctx context.Context, e *Event) error
	Close() error
}

const (
	queueSize    = 1024
	writeTimeout = 5 * time.Second
)

// Recorder hands events to a single background writer so request latency
// never includes the database insert or the shippers. When the queue is full
// events are dropped with a warning.
type Recorder struct {
	store   Store
	shipper Shipper
	queue   chan *Event

	closeOnce sync.Once
	done      chan struct{}
}

// NewRecorder starts the writer. store and shipper may each be nil.
func NewRecorder(store Store, shipper Shipper) *Recorder {
	r := &Recorder{
		store:   store,
		shipper: shipper,
		queue:   make(chan *Event, queueSize),
		done:    make(chan struct{}),
	}
	safego.Go("audit-recorder", r.run)
	return r
}

// Record queues e without blocking.
func (r *Recorder) Record(e *Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	select {
	case r.queue <- e:
	default:
		slog.Warn("audit queue full, dropping event", "action", e.Action, "user_id", e.UserID)
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for e := range r.queue {
		r.write(e)
	}
}

func (r *Recorder) write(e *Event) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if r.store != nil {
		if err := r.store.Save(ctx, e); err != nil {
			slog.Error("failed to persist audit event", "action", e.Action, "error", err)
		}
	}
	if r.shipper != nil {
		if err := r.shipper.Ship(ctx, e); err != nil {
			slog.Error("failed to ship audit event", "action", e.Action, "error", err)
		}
	}
}

// Close drains queued events and closes the shipper. Record must not be
// called afterwards.
func (r *Recorder) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.queue)
		<-r.done
		if r.shipper != nil {
			err = r.shipper.Close()
		}
	})
	return err
}

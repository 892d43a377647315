package outbox

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/asreview/prior/internal/models"
)

const (
	defaultInterval   = 2 * time.Second
	defaultMaxBackoff = time.Minute
	defaultBatch      = 50
)

// Labeler delivers one decision to the backend
type Labeler interface {
	LabelItem(ctx context.Context, projectID string, docID int64, label models.Label) error
}

// temporary is implemented by errors that know whether a retry can help
type temporary interface {
	Temporary() bool
}

// Dispatcher drains the queue into a Labeler
type Dispatcher struct {
	queue      *Queue
	labeler    Labeler
	interval   time.Duration
	maxBackoff time.Duration
	batch      int
	wake       chan struct{}
	onSent     func(models.Decision)
	log        *slog.Logger
}

// DispatcherOption configures a Dispatcher
type DispatcherOption func(*Dispatcher)

// WithInterval sets the idle poll interval and the base backoff
func WithInterval(d time.Duration) DispatcherOption {
	return func(ds *Dispatcher) {
		if d > 0 {
			ds.interval = d
		}
	}
}

// WithMaxBackoff caps the delay between failed attempts
func WithMaxBackoff(d time.Duration) DispatcherOption {
	return func(ds *Dispatcher) {
		if d > 0 {
			ds.maxBackoff = d
		}
	}
}

// WithOnSent registers a callback invoked after each delivery
func WithOnSent(fn func(models.Decision)) DispatcherOption {
	return func(ds *Dispatcher) {
		ds.onSent = fn
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) DispatcherOption {
	return func(ds *Dispatcher) {
		if l != nil {
			ds.log = l
		}
	}
}

// NewDispatcher creates a dispatcher for queue
func NewDispatcher(queue *Queue, labeler Labeler, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		queue:      queue,
		labeler:    labeler,
		interval:   defaultInterval,
		maxBackoff: defaultMaxBackoff,
		batch:      defaultBatch,
		wake:       make(chan struct{}, 1),
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Notify wakes Run early. It never blocks.
func (d *Dispatcher) Notify() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// IncludeItem queues a relevant decision and wakes the dispatcher
func (d *Dispatcher) IncludeItem(ctx context.Context, projectID string, docID int64) error {
	return d.enqueue(ctx, projectID, docID, models.LabelRelevant)
}

// ExcludeItem queues an irrelevant decision and wakes the dispatcher
func (d *Dispatcher) ExcludeItem(ctx context.Context, projectID string, docID int64) error {
	return d.enqueue(ctx, projectID, docID, models.LabelIrrelevant)
}

func (d *Dispatcher) enqueue(ctx context.Context, projectID string, docID int64, label models.Label) error {
	dec, err := d.queue.Enqueue(ctx, projectID, docID, label)
	if err != nil {
		return err
	}
	d.log.Debug("outbox: queued", "id", dec.ID, "project", projectID, "doc", docID, "label", label.String())
	d.Notify()
	return nil
}

// Flush delivers pending decisions oldest first. It stops at the first
// retryable failure so decisions reach the backend in order. Decisions the
// backend refuses outright are marked rejected and skipped.
func (d *Dispatcher) Flush(ctx context.Context) (int, error) {
	sent := 0
	for {
		pending, err := d.queue.Pending(ctx, d.batch)
		if err != nil {
			return sent, err
		}
		if len(pending) == 0 {
			return sent, nil
		}

		for _, dec := range pending {
			if err := ctx.Err(); err != nil {
				return sent, err
			}
			err := d.labeler.LabelItem(ctx, dec.ProjectID, dec.DocumentID, dec.Label)
			if err != nil {
				if permanent(err) {
					d.log.Warn("outbox: rejected", "id", dec.ID, "doc", dec.DocumentID, "err", err)
					if mErr := d.queue.MarkRejected(ctx, dec.ID, err); mErr != nil {
						return sent, mErr
					}
					continue
				}
				if mErr := d.queue.MarkFailed(ctx, dec.ID, err); mErr != nil {
					d.log.Error("outbox: mark failed", "id", dec.ID, "err", mErr)
				}
				return sent, err
			}
			if err := d.queue.MarkSent(ctx, dec.ID); err != nil {
				return sent, err
			}
			sent++
			if d.onSent != nil {
				d.onSent(dec)
			}
		}
	}
}

// permanent reports whether err says the backend will never accept the decision
func permanent(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var t temporary
	if errors.As(err, &t) {
		return !t.Temporary()
	}
	return false
}

// Run flushes until ctx is done, backing off exponentially after failures
func (d *Dispatcher) Run(ctx context.Context) error {
	failures := 0
	for {
		_, err := d.Flush(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			failures++
			d.log.Warn("outbox: flush failed", "err", err, "failures", failures)
		} else {
			failures = 0
		}

		timer := time.NewTimer(d.backoff(failures))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-d.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// backoff returns the wait before the next flush
func (d *Dispatcher) backoff(failures int) time.Duration {
	if failures <= 0 {
		return d.interval
	}
	delay := d.interval
	for i := 0; i < failures && delay < d.maxBackoff; i++ {
		delay *= 2
	}
	if delay > d.maxBackoff {
		delay = d.maxBackoff
	}
	return delay
}

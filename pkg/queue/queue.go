// Package queue buffers telemetry events durably and delivers them in FIFO batches.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/cuemby/feelback/pkg/log"
	"github.com/cuemby/feelback/pkg/metrics"
	"github.com/cuemby/feelback/pkg/storage"
	"github.com/cuemby/feelback/pkg/transport"
	"github.com/cuemby/feelback/pkg/types"
	"github.com/rs/zerolog"
)

// Config controls batching and the queue bound
type Config struct {
	// BatchSize is the most events sent per flush and the length that triggers one
	BatchSize int

	// MaxSize bounds pending plus in-flight events; zero means unbounded
	MaxSize int
}

// DefaultConfig returns a batch size of 20 and a bound of 1000 events
func DefaultConfig() Config {
	return Config{BatchSize: 20, MaxSize: 1000}
}

// claim is a batch removed from the head and handed to the transport
type claim struct {
	id     uint64
	events []types.QueuedEvent
}

// Queue is an ordered, durable buffer of telemetry events. Every mutation is
// mirrored to the store by a background persister; flushes claim a batch
// before sending so concurrent triggers never send the same event twice.
type Queue struct {
	store     storage.Store
	transport transport.Transport
	config    Config
	logger    zerolog.Logger

	mu        sync.Mutex
	pending   []types.QueuedEvent
	inflight  []claim
	nextClaim uint64
	stopped   bool

	ctx       context.Context
	cancel    context.CancelFunc
	persistCh chan struct{}
	doneCh    chan struct{}
	stopOnce  sync.Once
}

// New loads any persisted events and starts the persister. A missing or
// unreadable snapshot yields an empty queue.
func New(store storage.Store, tr transport.Transport, cfg Config) *Queue {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		store:     store,
		transport: tr,
		config:    cfg,
		logger:    log.WithComponent("queue"),
		ctx:       ctx,
		cancel:    cancel,
		persistCh: make(chan struct{}, 1),
		doneCh:    make(chan struct{}),
	}

	events, err := LoadSnapshot(store)
	if err != nil {
		q.logger.Warn().Err(err).Msg("Discarding unreadable persisted queue")
		metrics.PersistFailures.Inc()
	}
	q.pending = events
	metrics.QueueDepth.Set(float64(len(events)))

	if len(events) > 0 {
		q.logger.Info().Int("events", len(events)).Msg("Restored persisted events")
	}

	go q.persistLoop()
	return q
}

// Enqueue appends an event to the tail. It never blocks on I/O; when the
// queue reaches the batch size an asynchronous flush is triggered.
func (q *Queue) Enqueue(event types.QueuedEvent) {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		q.logger.Debug().Str("event_type", event.EventType).Msg("Queue stopped, event not accepted")
		return
	}

	q.pending = append(q.pending, event)
	dropped := q.enforceBoundLocked()
	depth := len(q.pending)
	q.mu.Unlock()

	metrics.EventsEnqueued.WithLabelValues(event.EventType).Inc()
	metrics.QueueDepth.Set(float64(depth))
	if dropped > 0 {
		metrics.EventsDropped.Add(float64(dropped))
		q.logger.Warn().
			Int("dropped", dropped).
			Int("max_size", q.config.MaxSize).
			Msg("Queue full, dropped oldest events")
	}

	q.requestPersist()

	if depth >= q.config.BatchSize {
		q.TriggerFlush()
	}
}

// enforceBoundLocked drops the oldest pending events once the bound is exceeded
func (q *Queue) enforceBoundLocked() int {
	if q.config.MaxSize <= 0 {
		return 0
	}
	total := len(q.pending)
	for _, c := range q.inflight {
		total += len(c.events)
	}
	excess := total - q.config.MaxSize
	if excess <= 0 {
		return 0
	}
	if excess > len(q.pending) {
		excess = len(q.pending)
	}
	q.pending = append([]types.QueuedEvent(nil), q.pending[excess:]...)
	return excess
}

// Flush claims up to BatchSize events from the head and attempts one send.
// On failure the batch goes back to the head of the queue and the error is
// returned; nothing is retried until the next flush.
func (q *Queue) Flush(ctx context.Context) error {
	_, err := q.flushOnce(ctx)
	return err
}

// Drain sends batch after batch until nothing is left to claim or a send fails
func (q *Queue) Drain(ctx context.Context) error {
	for {
		sent, err := q.flushOnce(ctx)
		if err != nil || !sent {
			return err
		}
	}
}

func (q *Queue) flushOnce(ctx context.Context) (bool, error) {
	c, ok := q.claim()
	if !ok {
		return false, nil
	}

	q.logger.Debug().Int("events", len(c.events)).Uint64("claim", c.id).Msg("Sending batch")

	if err := q.transport.SendEvents(ctx, c.events); err != nil {
		q.release(c, false)
		metrics.BatchSendFailures.Inc()
		metrics.UpdateComponent(metrics.ComponentTransport, false, err.Error())
		q.logger.Warn().Err(err).Int("events", len(c.events)).Msg("Batch send failed, events requeued")
		return false, fmt.Errorf("failed to send batch: %w", err)
	}

	q.release(c, true)
	metrics.EventsSent.Add(float64(len(c.events)))
	metrics.UpdateComponent(metrics.ComponentTransport, true, "")
	return true, nil
}

// TriggerFlush runs Flush in the background. It is a no-op once stopped.
func (q *Queue) TriggerFlush() {
	q.mu.Lock()
	stopped := q.stopped
	q.mu.Unlock()
	if stopped {
		return
	}

	go func() {
		_ = q.Flush(q.ctx)
	}()
}

func (q *Queue) claim() (claim, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped || len(q.pending) == 0 {
		return claim{}, false
	}

	n := min(q.config.BatchSize, len(q.pending))
	batch := append([]types.QueuedEvent(nil), q.pending[:n]...)
	q.pending = append([]types.QueuedEvent(nil), q.pending[n:]...)

	q.nextClaim++
	c := claim{id: q.nextClaim, events: batch}
	q.inflight = append(q.inflight, c)
	metrics.QueueDepth.Set(float64(len(q.pending)))
	return c, true
}

// release resolves a claim. Delivered batches are dropped; failed ones are
// put back ahead of everything enqueued since.
func (q *Queue) release(c claim, delivered bool) {
	q.mu.Lock()
	for i, inf := range q.inflight {
		if inf.id == c.id {
			q.inflight = append(q.inflight[:i], q.inflight[i+1:]...)
			break
		}
	}
	if !delivered {
		q.pending = append(append([]types.QueuedEvent(nil), c.events...), q.pending...)
	}
	depth := len(q.pending)
	q.mu.Unlock()

	metrics.QueueDepth.Set(float64(depth))
	q.requestPersist()
}

// Len returns the number of events not yet acknowledged, in flight included
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.pending)
	for _, c := range q.inflight {
		n += len(c.events)
	}
	return n
}

// Snapshot returns what would be persisted now: in-flight batches in claim
// order followed by pending events.
func (q *Queue) Snapshot() []types.QueuedEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshotLocked()
}

func (q *Queue) snapshotLocked() []types.QueuedEvent {
	out := make([]types.QueuedEvent, 0, len(q.pending))
	for _, c := range q.inflight {
		out = append(out, c.events...)
	}
	return append(out, q.pending...)
}

// Stop cancels scheduling, rejects further flushes and waits for the final
// snapshot write. It does not wait for network calls in progress.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		q.mu.Lock()
		q.stopped = true
		q.mu.Unlock()

		q.cancel()
		close(q.persistCh)
		<-q.doneCh
	})
}

func (q *Queue) requestPersist() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return
	}
	select {
	case q.persistCh <- struct{}{}:
	default:
	}
}

func (q *Queue) persistLoop() {
	defer close(q.doneCh)

	for range q.persistCh {
		q.persist()
	}
	// final write after Stop
	q.persist()
}

func (q *Queue) persist() {
	q.mu.Lock()
	events := q.snapshotLocked()
	q.mu.Unlock()

	data, err := json.Marshal(events)
	if err != nil {
		q.persistFailed(fmt.Errorf("failed to encode queue: %w", err))
		return
	}
	if err := q.store.Put(storage.KeyEventQueue, data); err != nil {
		q.persistFailed(fmt.Errorf("failed to write queue: %w", err))
		return
	}
	metrics.UpdateComponent(metrics.ComponentStorage, true, "")
}

func (q *Queue) persistFailed(err error) {
	metrics.PersistFailures.Inc()
	metrics.UpdateComponent(metrics.ComponentStorage, false, err.Error())
	q.logger.Error().Err(err).Msg("Failed to persist queue")
}

// LoadSnapshot reads the persisted queue. A missing key is an empty queue;
// malformed data returns an empty queue along with the decode error.
func LoadSnapshot(store storage.Store) ([]types.QueuedEvent, error) {
	data, err := store.Get(storage.KeyEventQueue)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read queue: %w", err)
	}

	var events []types.QueuedEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("malformed queue snapshot: %w", err)
	}
	return events, nil
}

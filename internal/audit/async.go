package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/geoclock/timekeeper/internal/errors"
	"github.com/geoclock/timekeeper/internal/logger"
	"github.com/geoclock/timekeeper/internal/observability/metrics"
)

// AsyncOptions configures an AsyncSink.
type AsyncOptions struct {
	BufferSize   int
	Workers      int
	WriteTimeout time.Duration
	Logger       logger.Logger
	Metrics      *metrics.AuditMetrics
	// Now stamps events whose At is zero.
	Now func() time.Time
}

// Stats are cumulative AsyncSink counters.
type Stats struct {
	Received  uint64
	Delivered uint64
	Dropped   uint64
	Failed    uint64
}

type queued struct {
	ctx   context.Context
	event Event
}

// AsyncSink queues events for a backend and delivers them from worker
// goroutines. Record never blocks; events are dropped when the queue is full.
type AsyncSink struct {
	backend Backend
	queue   chan queued
	opts    AsyncOptions
	log     logger.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	received  atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
}

// NewAsyncSink starts the workers and returns the sink. Call Close to stop them.
func NewAsyncSink(backend Backend, opts AsyncOptions) *AsyncSink {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 1024
	}
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.Global().Module("audit")
	}

	s := &AsyncSink{
		backend: backend,
		queue:   make(chan queued, opts.BufferSize),
		opts:    opts,
		log:     opts.Logger,
	}
	for i := range opts.Workers {
		s.wg.Add(1)
		go s.worker(i)
	}
	return s
}

// Record enqueues the event. The request context is detached from
// cancellation so delivery survives the end of the request.
func (s *AsyncSink) Record(ctx context.Context, event Event) {
	if event.At.IsZero() {
		event.At = s.opts.Now().UTC()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.drop(event, "sink closed")
		return
	}

	select {
	case s.queue <- queued{ctx: context.WithoutCancel(ctx), event: event}:
		s.received.Add(1)
		s.opts.Metrics.SetQueueDepth(len(s.queue))
	default:
		s.drop(event, "queue full")
	}
}

func (s *AsyncSink) drop(event Event, reason string) {
	s.dropped.Add(1)
	s.opts.Metrics.RecordDropped()
	s.log.Warn("audit event dropped",
		logger.String("reason", reason),
		logger.String("action", event.Action),
		logger.String("entity_id", event.EntityID))
}

func (s *AsyncSink) worker(id int) {
	defer s.wg.Done()
	for item := range s.queue {
		s.deliver(id, item)
		s.opts.Metrics.SetQueueDepth(len(s.queue))
	}
}

func (s *AsyncSink) deliver(worker int, item queued) {
	ctx, cancel := context.WithTimeout(item.ctx, s.opts.WriteTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			s.failed.Add(1)
			s.opts.Metrics.RecordBackendError(s.backend.Name())
			s.log.Error("audit backend panicked",
				logger.Int("worker", worker),
				logger.String("backend", s.backend.Name()),
				logger.Any("panic", r))
		}
	}()

	if err := s.backend.Write(ctx, item.event); err != nil {
		s.failed.Add(1)
		s.opts.Metrics.RecordBackendError(s.backend.Name())
		s.log.Error("audit backend failed",
			logger.String("backend", s.backend.Name()),
			logger.String("action", item.event.Action),
			logger.Error(err))
		return
	}
	s.delivered.Add(1)
	s.opts.Metrics.RecordDelivered(s.backend.Name())
}

// Close stops accepting events and waits for the queue to drain or ctx to
// expire. It is safe to call more than once.
func (s *AsyncSink) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Newf("audit sink drain interrupted: %w", ctx.Err()).
			Component("audit").
			Category(errors.CategoryAudit).
			Context("queued", len(s.queue)).
			Build()
	}
}

// Stats returns a snapshot of the counters.
func (s *AsyncSink) Stats() Stats {
	return Stats{
		Received:  s.received.Load(),
		Delivered: s.delivered.Load(),
		Dropped:   s.dropped.Load(),
		Failed:    s.failed.Load(),
	}
}

package classifier

import (
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/imageclassifier-go/internal/errors"
	"github.com/tphakala/imageclassifier-go/internal/logger"
	"github.com/tphakala/imageclassifier-go/internal/observability/metrics"
)

// Recognizer is anything that can classify a photo.
type Recognizer interface {
	RecognizeContext(ctx context.Context, img image.Image, orientation int) ([]Recognition, error)
}

// Request is a photo submitted to the Scheduler.
type Request struct {
	Image       image.Image
	Orientation int
}

// Validate checks that the request carries an image.
func (r Request) Validate() error {
	if r.Image == nil {
		return fmt.Errorf("%w: request has no image", ErrImageDecode)
	}
	return nil
}

// Result is delivered once per Future.
type Result struct {
	Recognitions []Recognition
	Err          error
	QueueWait    time.Duration
	Duration     time.Duration
}

// Future is the pending result of a submitted Request.
type Future struct {
	id     string
	done   chan struct{}
	result Result
}

func newFuture() *Future {
	return &Future{id: uuid.NewString(), done: make(chan struct{})}
}

// ID identifies the request in logs and history.
func (f *Future) ID() string { return f.id }

// Done is closed once the result is available.
func (f *Future) Done() <-chan struct{} { return f.done }

// Result returns the delivered result. It must only be called after Done is closed.
func (f *Future) Result() Result { return f.result }

// Wait blocks until the result is ready or ctx is done.
func (f *Future) Wait(ctx context.Context) ([]Recognition, error) {
	select {
	case <-f.done:
		return f.result.Recognitions, f.result.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *Future) complete(r Result) {
	f.result = r
	close(f.done)
}

type job struct {
	ctx      context.Context
	req      Request
	future   *Future
	enqueued time.Time
}

// queueDepthRecorder is implemented by recorders that track queue depth.
type queueDepthRecorder interface {
	SetQueueDepth(depth int)
}

// Scheduler runs recognitions on a fixed pool of workers fed by a bounded
// queue, keeping inference off the caller's goroutine.
type Scheduler struct {
	recognizer Recognizer
	queue      chan *job
	stopping   chan struct{}
	recorder   metrics.Recorder
	log        logger.Logger
	depth      atomic.Int64

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerRecorder reports queue wait times and depth to r.
func WithSchedulerRecorder(r metrics.Recorder) SchedulerOption {
	return func(s *Scheduler) {
		if r != nil {
			s.recorder = r
		}
	}
}

// NewScheduler starts workers goroutines that consume up to queueSize
// pending requests.
func NewScheduler(recognizer Recognizer, workers, queueSize int, opts ...SchedulerOption) *Scheduler {
	if recognizer == nil {
		panic("classifier: NewScheduler called with nil recognizer")
	}
	workers = max(1, workers)
	queueSize = max(1, queueSize)

	s := &Scheduler{
		recognizer: recognizer,
		queue:      make(chan *job, queueSize),
		stopping:   make(chan struct{}),
		recorder:   metrics.NoopRecorder{},
		log:        GetLogger().Module("scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.wg.Add(workers)
	for range workers {
		go s.worker()
	}

	return s
}

// Submit queues req. It never blocks: a full queue returns ErrQueueFull.
func (s *Scheduler) Submit(ctx context.Context, req Request) (*Future, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrSchedulerStopped
	}

	j := &job{ctx: ctx, req: req, future: newFuture(), enqueued: time.Now()}
	select {
	case s.queue <- j:
		s.setDepth(s.depth.Add(1))
		return j.future, nil
	default:
		return nil, errors.New(ErrQueueFull).
			Component(componentName).
			Category(errors.CategoryLimit).
			Context("queue_capacity", cap(s.queue)).
			Build()
	}
}

// RecognizeContext submits a request and waits for its result.
func (s *Scheduler) RecognizeContext(ctx context.Context, img image.Image, orientation int) ([]Recognition, error) {
	f, err := s.Submit(ctx, Request{Image: img, Orientation: orientation})
	if err != nil {
		return nil, err
	}
	return f.Wait(ctx)
}

// Stop rejects queued requests with ErrSchedulerStopped and waits for the
// workers to exit. Requests already running complete normally.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.stopping)
	close(s.queue)
	s.mu.Unlock()

	s.wg.Wait()
}

// QueueDepth returns the number of requests waiting for a worker.
func (s *Scheduler) QueueDepth() int { return int(s.depth.Load()) }

func (s *Scheduler) worker() {
	defer s.wg.Done()

	for j := range s.queue {
		s.setDepth(s.depth.Add(-1))

		select {
		case <-s.stopping:
			j.future.complete(Result{Err: ErrSchedulerStopped})
			continue
		default:
		}

		s.process(j)
	}
}

func (s *Scheduler) process(j *job) {
	wait := time.Since(j.enqueued)
	s.recorder.RecordDuration(metrics.OpQueueWait, wait.Seconds())

	if err := j.ctx.Err(); err != nil {
		j.future.complete(Result{Err: err, QueueWait: wait})
		return
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic during recognition",
				logger.String("request_id", j.future.id),
				logger.Any("panic", r))
			j.future.complete(Result{
				Err: errors.Newf("panic during recognition: %v", r).
					Component(componentName).
					Category(errors.CategoryWorker).
					Build(),
				QueueWait: wait,
				Duration:  time.Since(start),
			})
		}
	}()

	recs, err := s.recognizer.RecognizeContext(j.ctx, j.req.Image, j.req.Orientation)
	j.future.complete(Result{
		Recognitions: recs,
		Err:          err,
		QueueWait:    wait,
		Duration:     time.Since(start),
	})
}

func (s *Scheduler) setDepth(depth int64) {
	if r, ok := s.recorder.(queueDepthRecorder); ok {
		r.SetQueueDepth(int(depth))
	}
}

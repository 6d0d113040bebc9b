package classifier

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/imageclassifier-go/internal/errors"
	"github.com/tphakala/imageclassifier-go/internal/observability/metrics"
)

type recognizerFunc func(ctx context.Context, img image.Image, orientation int) ([]Recognition, error)

func (f recognizerFunc) RecognizeContext(ctx context.Context, img image.Image, orientation int) ([]Recognition, error) {
	return f(ctx, img, orientation)
}

// blockingRecognizer signals started for each call and waits for release.
type blockingRecognizer struct {
	started chan struct{}
	release chan struct{}
}

func newBlockingRecognizer() *blockingRecognizer {
	return &blockingRecognizer{started: make(chan struct{}, 16), release: make(chan struct{})}
}

func (b *blockingRecognizer) RecognizeContext(_ context.Context, _ image.Image, _ int) ([]Recognition, error) {
	b.started <- struct{}{}
	<-b.release
	return []Recognition{{Label: "done", Confidence: 1}}, nil
}

func waitStarted(t *testing.T, b *blockingRecognizer) {
	t.Helper()
	select {
	case <-b.started:
	case <-time.After(5 * time.Second):
		t.Fatal("recognizer was not started")
	}
}

func TestSchedulerDeliversResult(t *testing.T) {
	t.Parallel()

	c, err := New(newFakeEngine(2, 2, TypeUInt8, []uint8{255, 0, 128}), []string{"cat", "dog", "bird"})
	require.NoError(t, err)

	s := NewScheduler(c, 2, 4)
	defer s.Stop()

	f, err := s.Submit(t.Context(), Request{Image: solid(4, 4, red)})
	require.NoError(t, err)
	assert.NotEmpty(t, f.ID())

	got, err := f.Wait(t.Context())
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "cat", got[0].Label)

	<-f.Done()
	assert.Equal(t, got, f.Result().Recognitions)
}

func TestSchedulerRecognizeContext(t *testing.T) {
	t.Parallel()

	s := NewScheduler(recognizerFunc(func(_ context.Context, _ image.Image, orientation int) ([]Recognition, error) {
		return []Recognition{{Label: "turns", Confidence: float32(orientation)}}, nil
	}), 1, 1)
	defer s.Stop()

	got, err := s.RecognizeContext(t.Context(), solid(1, 1, red), 90)
	require.NoError(t, err)
	assert.InDelta(t, 90, got[0].Confidence, 1e-6)
}

func TestSchedulerRejectsMissingImage(t *testing.T) {
	t.Parallel()

	s := NewScheduler(newBlockingRecognizer(), 1, 1)
	defer s.Stop()

	_, err := s.Submit(t.Context(), Request{})
	assert.ErrorIs(t, err, ErrImageDecode)
}

func TestSchedulerQueueFull(t *testing.T) {
	t.Parallel()

	b := newBlockingRecognizer()
	s := NewScheduler(b, 1, 1)

	first, err := s.Submit(t.Context(), Request{Image: solid(1, 1, red)})
	require.NoError(t, err)
	waitStarted(t, b)

	second, err := s.Submit(t.Context(), Request{Image: solid(1, 1, red)})
	require.NoError(t, err)
	assert.Equal(t, 1, s.QueueDepth())

	_, err = s.Submit(t.Context(), Request{Image: solid(1, 1, red)})
	require.ErrorIs(t, err, ErrQueueFull)

	close(b.release)
	_, err = first.Wait(t.Context())
	require.NoError(t, err)
	_, err = second.Wait(t.Context())
	require.NoError(t, err)

	s.Stop()
}

func TestSchedulerStopRejectsQueued(t *testing.T) {
	t.Parallel()

	b := newBlockingRecognizer()
	s := NewScheduler(b, 1, 1)

	running, err := s.Submit(t.Context(), Request{Image: solid(1, 1, red)})
	require.NoError(t, err)
	waitStarted(t, b)

	queued, err := s.Submit(t.Context(), Request{Image: solid(1, 1, red)})
	require.NoError(t, err)

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	require.Eventually(t, func() bool {
		_, err := s.Submit(t.Context(), Request{Image: solid(1, 1, red)})
		return errors.Is(err, ErrSchedulerStopped)
	}, 5*time.Second, time.Millisecond)

	close(b.release)
	<-stopped

	_, err = running.Wait(t.Context())
	require.NoError(t, err)

	_, err = queued.Wait(t.Context())
	assert.ErrorIs(t, err, ErrSchedulerStopped)

	// idempotent
	s.Stop()
}

func TestSchedulerSkipsCancelledRequests(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	s := NewScheduler(recognizerFunc(func(context.Context, image.Image, int) ([]Recognition, error) {
		calls.Add(1)
		return nil, nil
	}), 1, 1)
	defer s.Stop()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	f, err := s.Submit(ctx, Request{Image: solid(1, 1, red)})
	require.NoError(t, err)

	select {
	case <-f.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("result not delivered")
	}
	assert.ErrorIs(t, f.Result().Err, context.Canceled)
	assert.Zero(t, calls.Load())
}

func TestFutureWaitHonoursContext(t *testing.T) {
	t.Parallel()

	b := newBlockingRecognizer()
	s := NewScheduler(b, 1, 1)

	f, err := s.Submit(t.Context(), Request{Image: solid(1, 1, red)})
	require.NoError(t, err)
	waitStarted(t, b)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	_, err = f.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(b.release)
	s.Stop()
}

func TestSchedulerRecoversPanics(t *testing.T) {
	t.Parallel()

	s := NewScheduler(recognizerFunc(func(context.Context, image.Image, int) ([]Recognition, error) {
		panic("boom")
	}), 1, 1)
	defer s.Stop()

	_, err := s.RecognizeContext(t.Context(), solid(1, 1, red), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	// the worker survives
	_, err = s.RecognizeContext(t.Context(), solid(1, 1, red), 0)
	require.Error(t, err)
}

func TestSchedulerConcurrentSubmissions(t *testing.T) {
	t.Parallel()

	engine := newFakeEngine(2, 2, TypeUInt8, []uint8{3, 2, 1})
	c, err := New(engine, []string{"a", "b", "c"})
	require.NoError(t, err)

	rec := metrics.NewTestRecorder()
	s := NewScheduler(c, 4, 64, WithSchedulerRecorder(rec))
	defer s.Stop()

	const n = 32
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Go(func() {
			got, err := s.RecognizeContext(t.Context(), solid(3, 3, blue), 0)
			if err == nil && got[0].Label != "a" {
				err = assert.AnError
			}
			errs <- err
		})
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(n), engine.runs.Load())
	assert.Equal(t, n, rec.DurationCount(metrics.OpQueueWait))
}

func TestNewSchedulerNilRecognizerPanics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { NewScheduler(nil, 1, 1) })
}

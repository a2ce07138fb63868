package room

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/chenBenjamin97/smart-room/pkg/detection"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeSource struct {
	mu       sync.Mutex
	seq      uint64
	fail     bool
	created  int32
	released int32
	closed   bool
}

func (s *fakeSource) Next() (*detection.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail {
		return nil, ErrNoFrame
	}
	s.seq++
	atomic.AddInt32(&s.created, 1)
	return detection.NewFrame(s.seq, frameSize, frameSize, nil, func() {
		atomic.AddInt32(&s.released, 1)
	}), nil
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSource) setFail(fail bool) {
	s.mu.Lock()
	s.fail = fail
	s.mu.Unlock()
}

func (s *fakeSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func personDetector() detection.Detector {
	return detection.DetectorFunc(func(ctx context.Context, frame *detection.Frame) ([]detection.RawDetection, error) {
		return []detection.RawDetection{personAt(515, 595)}, nil
	})
}

func runLoop(t *testing.T, l *Loop) (stop func()) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- l.Run(ctx) }()

	return func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("loop did not stop")
		}
	}
}

func TestLoopSynchronousDetection(t *testing.T) {
	s, sink := newTestSession(t)
	src := &fakeSource{}
	stop := runLoop(t, NewLoop(s, src, personDetector(), LoopOptions{Period: 2 * time.Millisecond}))

	require.Eventually(t, func() bool { return s.Snapshot().Stats.Ticks >= 3 }, time.Second, time.Millisecond)
	stop()

	assert.Equal(t, []bool{false, false, false, true}, onStates(sink.last()))
	assert.True(t, src.isClosed())
	assert.Equal(t, atomic.LoadInt32(&src.created), atomic.LoadInt32(&src.released))
}

func TestLoopAsyncDetectionUsesLatestResult(t *testing.T) {
	s, sink := newTestSession(t)
	src := &fakeSource{}
	stop := runLoop(t, NewLoop(s, src, personDetector(), LoopOptions{Period: 2 * time.Millisecond, Async: true}))

	require.Eventually(t, func() bool {
		return s.Snapshot().Occupied.Contains(3)
	}, time.Second, time.Millisecond)
	stop()

	assert.Equal(t, []bool{false, false, false, true}, onStates(sink.last()))
	assert.True(t, src.isClosed())
	assert.Equal(t, atomic.LoadInt32(&src.created), atomic.LoadInt32(&src.released))
}

func TestLoopSkipsTicksWithoutFrames(t *testing.T) {
	s, sink := newTestSession(t)
	src := &fakeSource{fail: true}
	stop := runLoop(t, NewLoop(s, src, personDetector(), LoopOptions{Period: time.Millisecond}))

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, s.Snapshot().Stats.Ticks)
	assert.Zero(t, sink.count())

	src.setFail(false)
	require.Eventually(t, func() bool { return s.Snapshot().Stats.Ticks > 0 }, time.Second, time.Millisecond)
	stop()
}

func TestLoopRecoversFromDetectorPanic(t *testing.T) {
	s, _ := newTestSession(t)
	src := &fakeSource{}

	var calls int32
	det := detection.DetectorFunc(func(ctx context.Context, frame *detection.Frame) ([]detection.RawDetection, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			panic("corrupt frame")
		}
		return nil, nil
	})
	stop := runLoop(t, NewLoop(s, src, det, LoopOptions{Period: time.Millisecond}))

	require.Eventually(t, func() bool { return s.Snapshot().Stats.Ticks >= 2 }, time.Second, time.Millisecond)
	stop()

	assert.Equal(t, atomic.LoadInt32(&src.created), atomic.LoadInt32(&src.released))
}

func TestWorkerOfferReplacesPendingFrame(t *testing.T) {
	w := newDetectionWorker(personDetector(), nil)

	released := make([]bool, 3)
	for i := range released {
		i := i
		w.Offer(detection.NewFrame(uint64(i), frameSize, frameSize, nil, func() { released[i] = true }))
	}

	assert.Equal(t, []bool{true, true, false}, released)
	w.drain()
	assert.Equal(t, []bool{true, true, true}, released)

	_, ok := w.Take()
	assert.False(t, ok)
}

func TestWorkerResultIsTakenOnce(t *testing.T) {
	w := newDetectionWorker(personDetector(), nil)

	w.detect(context.Background(), detection.NewFrame(5, frameSize, frameSize, nil, nil))

	res, ok := w.Take()
	require.True(t, ok)
	assert.Equal(t, uint64(5), res.seq)
	assert.Len(t, res.raw, 1)

	_, ok = w.Take()
	assert.False(t, ok)
	assert.Less(t, w.Since(), time.Second)
}

//hangingDetector reports one person on its first call and blocks on every later call until ctx ends.
func hangingDetector(calls *int32) detection.Detector {
	return detection.DetectorFunc(func(ctx context.Context, frame *detection.Frame) ([]detection.RawDetection, error) {
		if atomic.AddInt32(calls, 1) == 1 {
			return []detection.RawDetection{personAt(515, 595)}, nil
		}
		<-ctx.Done()
		return nil, ctx.Err()
	})
}

func countTicks(s *Session) *int32 {
	var ticks int32
	s.AddObserver(ObserverFunc(func(*detection.Frame, TickResult) {
		atomic.AddInt32(&ticks, 1)
	}))
	return &ticks
}

func TestLoopAsyncCountsEachDetectionOnce(t *testing.T) {
	s, sink := newTestSession(t)
	ticks := countTicks(s)
	src := &fakeSource{}

	var calls int32
	stop := runLoop(t, NewLoop(s, src, hangingDetector(&calls), LoopOptions{
		Period:       2 * time.Millisecond,
		Async:        true,
		MaxResultAge: time.Minute,
	}))

	require.Eventually(t, func() bool { return atomic.LoadInt32(ticks) >= 50 }, 2*time.Second, time.Millisecond)
	stop()

	snap := s.Snapshot()
	assert.Equal(t, uint64(1), snap.Stats.Ticks)
	assert.Equal(t, 1, snap.Stats.TotalPeople)
	assert.InDelta(t, 0.1, snap.Stats.ElectricitySaved, 1e-9)
	assert.True(t, snap.Occupied.Contains(3), "occupancy is held while the next inference runs")
	assert.Equal(t, []bool{false, false, false, true}, onStates(sink.last()))
	assert.Equal(t, atomic.LoadInt32(&src.created), atomic.LoadInt32(&src.released))
}

func TestLoopAsyncStalledDetectorEmptiesRoom(t *testing.T) {
	s, sink := newTestSession(t)
	src := &fakeSource{}

	var calls int32
	stop := runLoop(t, NewLoop(s, src, hangingDetector(&calls), LoopOptions{
		Period:       2 * time.Millisecond,
		Async:        true,
		MaxResultAge: 20 * time.Millisecond,
	}))

	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		return snap.Stats.Ticks == 2 && snap.Stats.TotalPeople == 0
	}, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	stop()

	snap := s.Snapshot()
	assert.Equal(t, uint64(2), snap.Stats.Ticks, "a stalled detector empties the room once")
	assert.InDelta(t, 0.1, snap.Stats.ElectricitySaved, 1e-9)
	assert.Empty(t, snap.Occupied.IDs())
	assert.Equal(t, []bool{false, false, false, false}, onStates(sink.last()))
}

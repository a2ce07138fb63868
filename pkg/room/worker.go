package room

import (
	"context"
	"sync"
	"time"

	"github.com/chenBenjamin97/smart-room/pkg/detection"
	"github.com/chenBenjamin97/smart-room/pkg/metrics"
)

//detectionResult is the detector output for one frame
type detectionResult struct {
	seq uint64
	raw []detection.RawDetection
	err error
}

//detectionWorker runs the detector off the control loop. Frames are handed over through a single slot:
//a frame not yet picked up is replaced (and released) by a newer one, so capture never waits on
//inference. Every completed result is taken by the loop exactly once.
type detectionWorker struct {
	detector detection.Detector
	metrics  *metrics.Metrics
	slot     chan *detection.Frame

	mu       sync.Mutex
	latest   *detectionResult
	lastDone time.Time
}

func newDetectionWorker(d detection.Detector, m *metrics.Metrics) *detectionWorker {
	return &detectionWorker{
		detector: d,
		metrics:  m,
		slot:     make(chan *detection.Frame, 1),
		lastDone: time.Now(),
	}
}

//Offer hands a frame to the worker, taking over the caller's reference. Only the loop goroutine calls it.
func (w *detectionWorker) Offer(frame *detection.Frame) {
	for {
		select {
		case w.slot <- frame:
			return
		default:
			select {
			case stale := <-w.slot:
				stale.Release()
			default:
			}
		}
	}
}

//Take hands over the most recent completed result not taken yet
func (w *detectionWorker) Take() (*detectionResult, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	res := w.latest
	w.latest = nil
	return res, res != nil
}

//Since returns the time elapsed since the last completed detection, or since the worker was created
func (w *detectionWorker) Since() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return time.Since(w.lastDone)
}

//Run detects frames from the slot until ctx is cancelled
func (w *detectionWorker) Run(ctx context.Context) error {
	defer w.drain()

	for {
		select {
		case <-ctx.Done():
			return nil
		case frame := <-w.slot:
			w.detect(ctx, frame)
		}
	}
}

func (w *detectionWorker) detect(ctx context.Context, frame *detection.Frame) {
	defer frame.Release()

	start := time.Now()
	raw, err := w.detector.Detect(ctx, frame)
	w.metrics.RecordDetection(time.Since(start), err)

	w.mu.Lock()
	w.latest = &detectionResult{seq: frame.Seq, raw: raw, err: err}
	w.lastDone = time.Now()
	w.mu.Unlock()
}

func (w *detectionWorker) drain() {
	for {
		select {
		case frame := <-w.slot:
			frame.Release()
		default:
			return
		}
	}
}

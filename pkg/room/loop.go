package room

import (
	"context"
	"errors"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chenBenjamin97/smart-room/pkg/detection"
	"github.com/chenBenjamin97/smart-room/pkg/metrics"
	"github.com/chenBenjamin97/smart-room/pkg/utils"
)

//ErrNoFrame is returned by a Source that has no frame available right now.
var ErrNoFrame = errors.New("room: no frame available")

//Source is the capture collaborator.
type Source interface {
	Next() (*detection.Frame, error)
	Close() error
}

//LoopOptions tune the loop driver.
type LoopOptions struct {
	//Period between ticks. A tick that overruns delays the next one; ticks never overlap.
	Period time.Duration
	//Async runs the detector on a dedicated worker fed with the latest frame.
	Async bool
	//MaxResultAge is how long an async tick holds the last occupancy without a completed detection
	//before treating the room as empty.
	MaxResultAge time.Duration
	Metrics      *metrics.Metrics
}

//Loop drives a session from a capture source and a detector.
type Loop struct {
	session  *Session
	source   Source
	detector detection.Detector
	opts     LoopOptions

	captureFailing  bool
	detectorStalled bool
}

//NewLoop returns a loop. Zero durations use the defaults (30ms period, 1s result age).
func NewLoop(s *Session, src Source, det detection.Detector, opts LoopOptions) *Loop {
	if opts.Period <= 0 {
		opts.Period = utils.DefaultTickPeriod
	}
	if opts.MaxResultAge <= 0 {
		opts.MaxResultAge = utils.DefaultMaxResultAge
	}
	return &Loop{session: s, source: src, detector: det, opts: opts}
}

//Run ticks until ctx is cancelled, then releases the capture source.
func (l *Loop) Run(ctx context.Context) error {
	defer func() {
		if err := l.source.Close(); err != nil {
			log.Printf("Loop: Error closing capture source, got '%v'", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	var worker *detectionWorker
	if l.opts.Async {
		worker = newDetectionWorker(l.detector, l.opts.Metrics)
		g.Go(func() error {
			return worker.Run(gctx)
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(l.opts.Period)
		defer ticker.Stop()

		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if gctx.Err() != nil {
					return nil
				}
				l.tick(gctx, worker)
			}
		}
	})

	err := g.Wait()
	if worker != nil {
		worker.drain()
	}
	return err
}

//tick never lets a failure escape: capture failure skips the tick, detector failure is zero detections
//and a panic leaves the session as it was.
func (l *Loop) tick(ctx context.Context, worker *detectionWorker) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Loop: Recovered from panic in tick, got '%v'", r)
			l.opts.Metrics.RecordSkippedTick("panic")
		}
	}()

	frame, err := l.source.Next()
	if err != nil || frame == nil {
		if !l.captureFailing {
			log.Printf("Loop: Could not read frame, skipping ticks until capture recovers, got '%v'", err)
			l.captureFailing = true
		}
		l.opts.Metrics.RecordSkippedTick("capture")
		return
	}
	if l.captureFailing {
		log.Printf("Loop: Capture recovered")
		l.captureFailing = false
	}
	defer frame.Release()

	if worker != nil {
		l.asyncTick(frame, worker)
		return
	}

	start := time.Now()
	raw, detErr := l.detector.Detect(ctx, frame)
	l.opts.Metrics.RecordDetection(time.Since(start), detErr)
	l.session.Step(frame, raw, detErr)
}

//asyncTick steps the session once per completed detection. While an inference is in flight the last
//occupancy is held; once no detection completed for MaxResultAge the room counts as empty.
func (l *Loop) asyncTick(frame *detection.Frame, worker *detectionWorker) {
	worker.Offer(frame.Retain())

	if res, ok := worker.Take(); ok {
		if l.detectorStalled {
			log.Printf("Loop: Detector recovered")
			l.detectorStalled = false
		}
		l.session.Step(frame, res.raw, res.err)
		return
	}

	if worker.Since() < l.opts.MaxResultAge {
		l.session.Hold(frame)
		return
	}

	if !l.detectorStalled {
		log.Printf("Loop: No detection completed for %v, treating the room as empty", l.opts.MaxResultAge)
		l.detectorStalled = true
		l.session.Step(frame, nil, nil)
		return
	}
	l.session.Hold(frame)
}

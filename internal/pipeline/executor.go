// Package pipeline runs the four-stage frame pipeline:
// read -> detect -> merge+blur -> write. Bounded channels connect the
// stages, so backpressure is the only rate limiting: the reader blocks
// when the slowest stage falls behind.
package pipeline

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/neutrinographics/faceguard/internal/blur"
	"github.com/neutrinographics/faceguard/internal/media"
	"github.com/neutrinographics/faceguard/internal/observability"
	"github.com/neutrinographics/faceguard/internal/vision"
)

// ErrCanceled reports a user-initiated stop. It is distinct from any
// worker failure so callers can tell the two apart.
var ErrCanceled = errors.New("job canceled")

// queueCap bounds each inter-stage channel.
const queueCap = 8

// Progress is invoked after each written frame. Returning false stops
// the job, equivalent to setting the cancellation flag.
type Progress func(frameIndex int) bool

// Executor owns the four pipeline workers for one job.
type Executor struct {
	Reader    media.FrameReader
	Writer    media.FrameWriter
	Detector  vision.Detector
	Filter    *vision.Filter
	Merger    *vision.Merger
	Blurrer   blur.Blurrer
	Lookahead int
	Progress  Progress
	Cancel    *atomic.Bool
}

// detected carries a frame and its filtered regions between stages.
type detected struct {
	frame   *media.Frame
	regions []vision.Region
}

// Run executes the pipeline to completion. It returns nil on success,
// ErrCanceled when the job was stopped, or the first worker error.
func (e *Executor) Run() error {
	if e.Cancel == nil {
		e.Cancel = &atomic.Bool{}
	}
	if e.Filter == nil {
		e.Filter = vision.NewFilter(nil, nil)
	}

	frames := make(chan *media.Frame, queueCap)
	regions := make(chan detected, queueCap)
	ready := make(chan *media.Frame, queueCap)

	// done unblocks senders whose receiver has already exited.
	done := make(chan struct{})
	var doneOnce sync.Once
	stop := func() { doneOnce.Do(func() { close(done) }) }
	defer stop()

	var mu sync.Mutex
	var firstErr error
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
		e.Cancel.Store(true)
		stop()
	}

	// A worker that exits because of cancellation closes done so that
	// peers blocked on a full channel wake up. Normal EOF leaves done
	// open and the stages drain in order.
	unblock := func() {
		if e.Cancel.Load() {
			stop()
		}
	}

	var wg sync.WaitGroup
	wg.Add(4)

	go func() {
		defer wg.Done()
		defer unblock()
		defer close(frames)
		e.readLoop(frames, done, fail)
	}()

	go func() {
		defer wg.Done()
		defer unblock()
		defer close(regions)
		e.detectLoop(frames, regions, done, fail)
	}()

	go func() {
		defer wg.Done()
		defer unblock()
		defer close(ready)
		e.mergeBlurLoop(regions, ready, done, fail)
	}()

	go func() {
		defer wg.Done()
		defer unblock()
		e.writeLoop(ready, fail)
	}()

	wg.Wait()

	mu.Lock()
	err := firstErr
	mu.Unlock()
	if err != nil {
		return err
	}
	if e.Cancel.Load() {
		return ErrCanceled
	}
	return nil
}

func (e *Executor) readLoop(out chan<- *media.Frame, done <-chan struct{}, fail func(error)) {
	for !e.Cancel.Load() {
		frame, err := e.Reader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			fail(fmt.Errorf("read: %w", err))
			return
		}
		select {
		case out <- frame:
		case <-done:
			return
		}
	}
}

func (e *Executor) detectLoop(in <-chan *media.Frame, out chan<- detected, done <-chan struct{}, fail func(error)) {
	for frame := range in {
		if e.Cancel.Load() {
			return
		}
		start := time.Now()
		found, err := e.Detector.Detect(frame)
		if err != nil {
			fail(fmt.Errorf("detect frame %d: %w", frame.Index, err))
			return
		}
		observability.StageDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())
		observability.FacesDetected.Add(float64(len(found)))

		select {
		case out <- detected{frame: frame, regions: e.Filter.Apply(found)}:
		case <-done:
			return
		}
	}
}

// mergeBlurLoop buffers K+1 frames so each flushed frame sees up to K
// future frames' regions. At EOF the buffer drains with progressively
// smaller lookahead windows.
func (e *Executor) mergeBlurLoop(in <-chan detected, out chan<- *media.Frame, done <-chan struct{}, fail func(error)) {
	buffer := make([]detected, 0, e.Lookahead+1)

	flush := func() bool {
		oldest := buffer[0]
		buffer = buffer[1:]

		lookahead := make([][]vision.Region, len(buffer))
		for i, d := range buffer {
			lookahead[i] = d.regions
		}
		merged := e.Merger.Merge(oldest.regions, lookahead)

		start := time.Now()
		if err := e.Blurrer.Blur(oldest.frame, merged); err != nil {
			fail(fmt.Errorf("blur frame %d: %w", oldest.frame.Index, err))
			return false
		}
		observability.StageDuration.WithLabelValues("blur").Observe(time.Since(start).Seconds())

		select {
		case out <- oldest.frame:
			return true
		case <-done:
			return false
		}
	}

	for d := range in {
		if e.Cancel.Load() {
			return
		}
		buffer = append(buffer, d)
		if len(buffer) > e.Lookahead {
			if !flush() {
				return
			}
		}
	}
	for len(buffer) > 0 && !e.Cancel.Load() {
		if !flush() {
			return
		}
	}
}

func (e *Executor) writeLoop(in <-chan *media.Frame, fail func(error)) {
	defer func() {
		if err := e.Writer.Close(); err != nil {
			fail(fmt.Errorf("finalize output: %w", err))
		}
	}()

	for frame := range in {
		if e.Cancel.Load() {
			return
		}
		start := time.Now()
		if err := e.Writer.Write(frame); err != nil {
			fail(fmt.Errorf("write frame %d: %w", frame.Index, err))
			return
		}
		observability.StageDuration.WithLabelValues("write").Observe(time.Since(start).Seconds())
		observability.FramesProcessed.Inc()

		if e.Progress != nil && !e.Progress(frame.Index) {
			slog.Info("progress callback requested stop", "frame", frame.Index)
			e.Cancel.Store(true)
			return
		}
	}
}

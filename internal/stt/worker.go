package stt

import (
	"context"
	"time"

	"github.com/centralita-ai/voice-orchestrator/internal/config"
	"github.com/centralita-ai/voice-orchestrator/internal/core/event"
	"github.com/centralita-ai/voice-orchestrator/internal/fault"
	"github.com/centralita-ai/voice-orchestrator/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Result pairs a segment with its transcription.
type Result struct {
	Segment   event.SegmentData
	Text      *Transcription
	LatencyMS int64
}

// Worker serializes STT requests for one session: one in flight, a short
// queue behind it. When the queue overflows the oldest queued segment is
// dropped so the freshest audio wins. Failures consume a per-call budget;
// exhausting it fails the call.
type Worker struct {
	client   *Client
	cap      *semaphore.Weighted
	cfg      config.PipelineConfig
	callID   string
	language string

	queue  chan event.SegmentData
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// Callbacks run on the worker goroutine, in segment order. OnDropped
	// fires for queue overflow evictions; OnFailure for a failed request
	// still inside the per-call budget; OnFatal when the budget is spent.
	OnResult  func(Result)
	OnDropped func(event.SegmentData)
	OnFailure func(error)
	OnFatal   func(error)

	failures int
}

// NewWorker builds the per-session STT worker. cap is the process-wide
// in-flight semaphore shared by all sessions.
func NewWorker(client *Client, cap *semaphore.Weighted, cfg config.PipelineConfig, callID, language string) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		client:   client,
		cap:      cap,
		cfg:      cfg,
		callID:   callID,
		language: language,
		queue:    make(chan event.SegmentData, cfg.STTQueueDepth),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start launches the worker goroutine.
func (w *Worker) Start() {
	go w.run()
}

// Submit enqueues a segment. A full queue evicts the oldest waiting
// segment. Only the pipeline goroutine calls Submit.
func (w *Worker) Submit(seg event.SegmentData) {
	for {
		select {
		case w.queue <- seg:
			return
		default:
		}
		select {
		case old := <-w.queue:
			logger.Base().Warn("transcription queue full, dropping oldest segment",
				zap.String("call_id", w.callID),
				zap.Duration("dropped_duration", old.Duration))
			if w.OnDropped != nil {
				w.OnDropped(old)
			}
		default:
		}
	}
}

// Stop cancels the in-flight request and waits for the goroutine.
func (w *Worker) Stop() {
	w.cancel()
	<-w.done
}

func (w *Worker) run() {
	defer close(w.done)
	for {
		select {
		case <-w.ctx.Done():
			return
		case seg := <-w.queue:
			if !w.process(seg) {
				return
			}
		}
	}
}

// process transcribes one segment; it returns false when the worker must
// stop because the call failed.
func (w *Worker) process(seg event.SegmentData) bool {
	acquire, cancelAcquire := context.WithTimeout(w.ctx, w.cfg.CapAcquireWait)
	err := w.cap.Acquire(acquire, 1)
	cancelAcquire()
	if err != nil {
		if w.ctx.Err() != nil {
			return false
		}
		// process-wide cap saturated within the bounded wait
		return w.fail(fault.Wrap(fault.KindOverloaded, "speech recognition capacity exhausted", fault.ErrOverloaded), seg)
	}
	defer w.cap.Release(1)

	timeout := TimeoutFor(w.cfg.STTBaseTimeout, seg.Duration, w.cfg.MaxSegmentDuration)
	reqCtx, cancelReq := context.WithTimeout(w.ctx, timeout)
	start := time.Now()
	text, err := w.client.Transcribe(reqCtx, seg.Samples, w.language, w.callID)
	cancelReq()
	latency := time.Since(start).Milliseconds()

	if err != nil {
		if w.ctx.Err() != nil {
			return false
		}
		return w.fail(fault.Wrap(fault.KindDependency, "transcription failed", err), seg)
	}

	w.failures = 0
	if w.OnResult != nil {
		w.OnResult(Result{Segment: seg, Text: text, LatencyMS: latency})
	}
	return true
}

func (w *Worker) fail(err error, seg event.SegmentData) bool {
	w.failures++
	logger.Base().Warn("transcription attempt failed",
		zap.String("call_id", w.callID),
		zap.Int("failures", w.failures),
		zap.Error(err))
	if w.failures > w.cfg.MaxSTTRetriesPerCall {
		if w.OnFatal != nil {
			w.OnFatal(err)
		}
		return false
	}
	if w.OnFailure != nil {
		w.OnFailure(err)
	}
	return true
}

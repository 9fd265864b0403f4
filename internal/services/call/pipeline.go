package call

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/centralita-ai/voice-orchestrator/internal/bridge"
	"github.com/centralita-ai/voice-orchestrator/internal/core/event"
	"github.com/centralita-ai/voice-orchestrator/internal/core/session"
	"github.com/centralita-ai/voice-orchestrator/internal/core/turn"
	"github.com/centralita-ai/voice-orchestrator/internal/correction"
	"github.com/centralita-ai/voice-orchestrator/internal/dialogue"
	"github.com/centralita-ai/voice-orchestrator/internal/domain"
	"github.com/centralita-ai/voice-orchestrator/internal/ingress"
	"github.com/centralita-ai/voice-orchestrator/internal/metrics"
	"github.com/centralita-ai/voice-orchestrator/internal/playback"
	"github.com/centralita-ai/voice-orchestrator/internal/preprocess"
	"github.com/centralita-ai/voice-orchestrator/internal/recording"
	"github.com/centralita-ai/voice-orchestrator/internal/sentiment"
	"github.com/centralita-ai/voice-orchestrator/internal/stt"
	"github.com/centralita-ai/voice-orchestrator/internal/tts"
	"github.com/centralita-ai/voice-orchestrator/internal/voiceprofile"
	"github.com/centralita-ai/voice-orchestrator/pkg/logger"
	"go.uber.org/zap"
)

// Spanish fallback lines spoken when a stage fails mid-call.
const (
	apologyDidNotCatch = "Perdona, no te he escuchado bien. ¿Puedes repetirlo?"
	apologyGoodbye     = "Lo siento, estamos teniendo problemas técnicos. Te llamaremos de vuelta. Gracias por tu paciencia."
	apologyShort       = "Disculpa, continúo."
)

// maxSTTApologies bounds how often the assistant asks the caller to
// repeat over the whole call before giving up.
const maxSTTApologies = 2

// pendingTurn accumulates the current user turn across segments.
type pendingTurn struct {
	parts         []string
	rawParts      []string
	confidences   []float64
	corrections   []domain.CorrectionPair
	clarification *correction.Clarification
	sttLatencies  []int64
	denoiseMS     []int64
	startedAt     time.Time
	inflightSegs  int
}

// pipeline is the per-call wiring. It lives exactly as long as the
// session does.
type pipeline struct {
	svc  *Service
	sess *session.Session
	conn *bridge.Conn

	agent    *domain.Agent
	sysBase  *domain.ContextProfile
	machine  *turn.Machine
	segments *ingress.Segmenter
	pre      *preprocess.Pipeline
	enroller *voiceprofile.Enroller
	worker   *stt.Worker
	streamer *tts.Streamer
	player   *playback.Controller
	tracker  *sentiment.Tracker
	memory   *dialogue.Memory

	segCh chan event.SegmentData

	mu             sync.Mutex
	pending        pendingTurn
	lastProsody    *preprocess.ProsodyResult
	lastVoiceEnd   time.Time
	speechActive   bool
	lastFused      sentiment.Fused
	inboundAudio   []int16
	rawUserText    []string
	allCorrections []domain.CorrectionPair
	sttApologies   int
	turnCancel     context.CancelFunc
	committing     bool
}

// Run accepts a bridge connection and drives the call to completion. It
// returns when the call has fully closed.
func (s *Service) Run(conn *bridge.Conn) {
	hs := conn.Handshake()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	sess, err := s.registry.Open(ctx, hs.OrgID, hs.AgentID, hs.CallerID, hs.CallID)
	cancel()
	if err != nil {
		logger.Base().Warn("call admission refused",
			zap.String("call_id", hs.CallID), zap.Error(err))
		_ = conn.WriteControl(bridge.Control{Type: bridge.ControlHangup})
		_ = conn.Close()
		return
	}

	p, err := s.buildPipeline(sess, conn)
	if err != nil {
		logger.Base().Error("failed to build call pipeline",
			zap.String("call_id", sess.CallID), zap.Error(err))
		s.registry.Close(sess.CallID, session.OutcomeError)
		_ = conn.Close()
		return
	}
	p.run()
}

func (s *Service) buildPipeline(sess *session.Session, conn *bridge.Conn) (*pipeline, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	agent, err := s.agents.GetByID(ctx, sess.OrgID, sess.AgentID)
	if err != nil {
		return nil, err
	}
	var profile *domain.ContextProfile
	if agent.ContextProfileID != nil {
		profile, err = s.agents.GetContextProfile(ctx, sess.OrgID, *agent.ContextProfileID)
		if err != nil {
			logger.Base().Warn("context profile unavailable, using defaults",
				zap.String("agent_id", agent.ID), zap.Error(err))
		}
	}

	language := "es"
	if lang, ok := agent.RuntimeConfig["language"].(string); ok && lang != "" {
		language = lang
	}
	voiceID := ""
	if agent.VoiceProfileID != nil {
		voiceID = *agent.VoiceProfileID
	}

	cfg := s.cfg.Pipeline
	p := &pipeline{
		svc:      s,
		sess:     sess,
		conn:     conn,
		agent:    agent,
		sysBase:  profile,
		machine:  turn.NewMachine(),
		segments: ingress.NewSegmenter(sess.CallID, sess.OrgID, cfg, sess.Bus),
		pre:      preprocess.NewPipeline(s.cfg, sess.Bus, sess.CallID, sess.OrgID),
		worker:   stt.NewWorker(s.sttClient, s.sttCap, cfg, sess.CallID, language),
		streamer: tts.NewStreamer(s.ttsClient, s.ttsCap, cfg, sess.CallID, voiceID),
		tracker:  sentiment.NewTracker(),
		memory:   dialogue.NewMemory(cfg.MaxContextTurns),
		segCh:    make(chan event.SegmentData, 8),
	}
	var embedder voiceprofile.Embedder
	if ex := p.pre.Extractor(); ex != nil {
		embedder = ex
	}
	p.enroller = voiceprofile.NewEnroller(sess.CallID, s.profiles, embedder, cfg.VoiceProfileWindow)
	p.player = playback.NewController(sess.CallID, sess.OrgID, conn, p.streamer, sess.Bus)
	p.segments.BindPlayer(p.player)
	p.pending.startedAt = time.Now()

	p.worker.OnResult = p.onTranscription
	p.worker.OnDropped = p.onSegmentDropped
	p.worker.OnFailure = p.onSTTFailure
	p.worker.OnFatal = p.onSTTFatal
	p.streamer.OnChunk = func(chunk tts.Chunk) {
		p.sess.RecordLatency("tts", chunk.FirstByte)
		p.player.Enqueue(chunk)
	}
	p.streamer.OnError = p.onSynthesisError

	bus := sess.Bus
	bus.Subscribe(event.IngressSpeech, p.onSpeech)
	bus.Subscribe(event.IngressSegment, p.onSegment)
	bus.Subscribe(event.IngressInterruption, p.onInterruption)
	bus.Subscribe(event.IngressClosed, p.onIngressClosed)
	bus.Subscribe(event.PlaybackFinished, p.onPlaybackFinished)

	// cleanups run in reverse on every exit path
	sess.OnClose(func() { _ = conn.Close() })
	sess.OnClose(func() { s.profiles.Delete(sess.CallID) })
	sess.OnClose(p.worker.Stop)
	sess.OnClose(p.streamer.Close)
	sess.OnClose(p.player.Close)
	return p, nil
}

// run starts the pipeline goroutines and blocks until the session dies,
// then persists the recording.
func (p *pipeline) run() {
	p.worker.Start()
	p.streamer.Start()
	p.player.Start()
	go p.segmentLoop()
	go p.pauseLoop()
	go p.readLoop()

	<-p.sess.Context().Done()
	p.persistRecording()
}

// readLoop pulls bridge messages until the stream closes.
func (p *pipeline) readLoop() {
	for {
		msg, err := p.conn.Read()
		if err != nil {
			p.segments.Close()
			return
		}
		if msg.Control != nil {
			p.handleControl(*msg.Control)
			continue
		}
		p.mu.Lock()
		p.inboundAudio = append(p.inboundAudio, msg.Samples...)
		p.mu.Unlock()
		p.segments.Feed(msg.Samples)
	}
}

func (p *pipeline) handleControl(ctl bridge.Control) {
	switch ctl.Type {
	case bridge.ControlHangup:
		p.segments.Close()
	case bridge.ControlDTMF:
		_ = p.sess.Bus.Publish(event.New(event.BridgeDTMF, p.sess.CallID).
			WithOrg(p.sess.OrgID).
			WithData(event.DTMFData{Digit: ctl.Digit}))
		p.svc.recorder.RecordStage(p.sess.OrgID, p.sess.CallID, "dtmf", ctl.Digit, "", 0, nil)
	case bridge.ControlMetadata:
		_ = p.sess.Bus.Publish(event.New(event.BridgeMetadata, p.sess.CallID).
			WithOrg(p.sess.OrgID).
			WithData(ctl.Metadata))
		p.svc.recorder.RecordStage(p.sess.OrgID, p.sess.CallID, "bridge_metadata", "", "", 0, domain.JSONB(ctl.Metadata))
	}
}

// pauseLoop watches silence and commits the user turn when the pause
// crosses the end-of-turn threshold.
func (p *pipeline) pauseLoop() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-p.sess.Context().Done():
			return
		case <-ticker.C:
		}
		state := p.machine.State()
		if state != turn.UserTurn && state != turn.ThinkingPause {
			continue
		}

		p.mu.Lock()
		if p.speechActive || p.committing || p.lastVoiceEnd.IsZero() {
			p.mu.Unlock()
			continue
		}
		pause := time.Since(p.lastVoiceEnd) + p.svc.cfg.Pipeline.MinSilence
		prosody := p.lastProsody
		p.mu.Unlock()

		isQuestion := prosody != nil && prosody.IsQuestion
		thinking := prosody != nil && !prosody.IsQuestion &&
			(prosody.Tone == "calm" || prosody.Tone == "")

		switch turn.ClassifyPause(p.svc.cfg.Pipeline, pause, isQuestion, thinking) {
		case turn.PauseEndOfTurn:
			p.segments.Flush()
			p.mu.Lock()
			p.committing = true
			p.mu.Unlock()
			go p.commitUserTurn()
		case turn.PauseThinking:
			if state == turn.UserTurn {
				p.machine.TryTransition(turn.ThinkingPause)
			}
		}
	}
}

// segmentLoop conditions segments in arrival order and hands them to the
// transcription worker.
func (p *pipeline) segmentLoop() {
	for {
		select {
		case <-p.sess.Context().Done():
			return
		case seg := <-p.segCh:
			conditioned := p.pre.Run(p.sess.Context(), seg.Samples, p.segments.ProsodyWindow(), p.svc.profiles.Get(p.sess.CallID))
			p.enroller.Observe(p.sess.Context(), conditioned.Samples)

			p.mu.Lock()
			if conditioned.Prosody != nil {
				p.lastProsody = conditioned.Prosody
			}
			if conditioned.DenoiseMS > 0 {
				p.pending.denoiseMS = append(p.pending.denoiseMS, conditioned.DenoiseMS)
			}
			p.mu.Unlock()
			p.sess.RecordLatency(preprocess.StageDenoise, time.Duration(conditioned.DenoiseMS)*time.Millisecond)

			seg.Samples = conditioned.Samples
			p.worker.Submit(seg)
		}
	}
}

// --- bus handlers, invoked synchronously in publish order ---

func (p *pipeline) onSpeech(*event.Event) {
	p.mu.Lock()
	p.speechActive = true
	if len(p.pending.parts) == 0 && p.pending.inflightSegs == 0 {
		p.pending.startedAt = time.Now()
	}
	p.mu.Unlock()

	switch p.machine.State() {
	case turn.Listening, turn.Interrupted, turn.ThinkingPause:
		p.machine.TryTransition(turn.UserTurn)
	}
}

func (p *pipeline) onSegment(ev *event.Event) {
	seg, ok := ev.Data.(event.SegmentData)
	if !ok {
		return
	}
	p.mu.Lock()
	p.speechActive = false
	p.lastVoiceEnd = time.Now()
	p.pending.inflightSegs++
	p.mu.Unlock()

	select {
	case p.segCh <- seg:
	default:
		// conditioning backlog; drop the segment rather than the call
		p.mu.Lock()
		p.pending.inflightSegs--
		p.mu.Unlock()
		logger.Base().Warn("segment conditioning backlog, dropped segment",
			zap.String("call_id", p.sess.CallID))
	}
}

func (p *pipeline) onInterruption(ev *event.Event) {
	state := p.machine.State()
	if state != turn.AssistantTurn && state != turn.Clarifying {
		return
	}
	if !p.machine.TryTransition(turn.Interrupted) {
		return
	}
	n := p.sess.CountInterruption()

	p.mu.Lock()
	cancel := p.turnCancel
	p.turnCancel = nil
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	p.streamer.Cancel()
	p.player.Cancel()

	data, _ := ev.Data.(event.InterruptionData)
	p.svc.recorder.RecordStage(p.sess.OrgID, p.sess.CallID, "interruption", "", "",
		data.PlayedUntil, domain.JSONB{"count": n})
	p.svc.emitter.Emit(p.sess.Context(), p.sess.OrgID, domain.EventInterruption, p.sess.CallID,
		map[string]interface{}{
			"played_until_ms": data.PlayedUntil.Milliseconds(),
			"count":           n,
		})
}

func (p *pipeline) onIngressClosed(*event.Event) {
	p.sess.Drain()
	_ = p.machine.Transition(turn.Ended)
	p.svc.registry.Close(p.sess.CallID, session.OutcomeEnded)
}

func (p *pipeline) onPlaybackFinished(*event.Event) {
	switch p.machine.State() {
	case turn.AssistantTurn, turn.Clarifying:
		p.machine.TryTransition(turn.Listening)
	}
}

// --- transcription callbacks, on the worker goroutine in order ---

func (p *pipeline) onTranscription(res stt.Result) {
	outcome := p.svc.corrector.Correct(p.sess.Context(), p.sess.OrgID, res.Text)
	p.sess.RecordLatency("stt", time.Duration(res.LatencyMS)*time.Millisecond)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending.inflightSegs--
	if outcome.Text != "" {
		p.pending.parts = append(p.pending.parts, outcome.Text)
		p.pending.rawParts = append(p.pending.rawParts, res.Text.Text)
		p.pending.confidences = append(p.pending.confidences, res.Text.Confidence)
	}
	p.pending.corrections = append(p.pending.corrections, outcome.Corrections...)
	p.pending.sttLatencies = append(p.pending.sttLatencies, res.LatencyMS)
	if outcome.Clarification != nil && p.pending.clarification == nil {
		p.pending.clarification = outcome.Clarification
	}
}

func (p *pipeline) onSegmentDropped(seg event.SegmentData) {
	p.mu.Lock()
	p.pending.inflightSegs--
	p.mu.Unlock()
	p.svc.recorder.RecordStage(p.sess.OrgID, p.sess.CallID, "stt_dropped", "", "",
		seg.Duration, nil)
}

func (p *pipeline) onSTTFailure(err error) {
	p.mu.Lock()
	p.pending.inflightSegs--
	p.sttApologies++
	n := p.sttApologies
	p.mu.Unlock()

	p.svc.recorder.RecordStage(p.sess.OrgID, p.sess.CallID, "stt_failure", "", "", 0,
		domain.JSONB{"error": err.Error()})
	line, hangUp := apologyFor(n)
	p.speak(line)
	if hangUp {
		go p.closeAfterPlayback(session.OutcomeEnded)
	}
}

// apologyFor maps the nth transcription failure of the call to the line
// to speak and whether the call should wind down. The count accumulates
// over the whole call; successful turns in between never replenish it.
func apologyFor(n int) (string, bool) {
	if n <= maxSTTApologies {
		return apologyDidNotCatch, false
	}
	return apologyGoodbye, true
}

func (p *pipeline) onSTTFatal(err error) {
	logger.Base().Error("transcription budget exhausted, failing call",
		zap.String("call_id", p.sess.CallID), zap.Error(err))
	p.speak(apologyGoodbye)
	go p.closeAfterPlayback(session.OutcomeError)
}

func (p *pipeline) onSynthesisError(text string, err error) {
	p.svc.recorder.RecordStage(p.sess.OrgID, p.sess.CallID, "turn_error", text, "", 0,
		domain.JSONB{"error": err.Error()})
	logger.Base().Warn("synthesis failed, sentence skipped",
		zap.String("call_id", p.sess.CallID), zap.Error(err))
}

// speak queues a single canned line, interrupting nothing.
func (p *pipeline) speak(line string) {
	p.streamer.Enqueue(line)
}

// closeAfterPlayback lets the farewell play out, then closes.
func (p *pipeline) closeAfterPlayback(outcome session.Outcome) {
	deadline := time.After(10 * time.Second)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-p.sess.Context().Done():
			return
		case <-deadline:
			p.svc.registry.Close(p.sess.CallID, outcome)
			return
		case <-ticker.C:
			if !p.player.IsSpeaking() {
				p.svc.registry.Close(p.sess.CallID, outcome)
				return
			}
		}
	}
}

// commitUserTurn waits for in-flight transcriptions, then either asks a
// clarification or runs the assistant turn.
func (p *pipeline) commitUserTurn() {
	defer func() {
		p.mu.Lock()
		p.committing = false
		p.mu.Unlock()
	}()

	// the flushed segment may still be in the transcription queue
	waitUntil := time.Now().Add(p.svc.cfg.Pipeline.STTBaseTimeout + time.Second)
	for {
		p.mu.Lock()
		inflight := p.pending.inflightSegs
		p.mu.Unlock()
		if inflight <= 0 || time.Now().After(waitUntil) || p.sess.Context().Err() != nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if p.sess.Context().Err() != nil {
		return
	}

	p.mu.Lock()
	pend := p.pending
	p.pending = pendingTurn{startedAt: time.Now()}
	prosody := p.lastProsody
	p.mu.Unlock()

	text := strings.TrimSpace(strings.Join(pend.parts, " "))
	if text == "" {
		p.machine.TryTransition(turn.Listening)
		return
	}

	state := p.machine.State()
	if state != turn.UserTurn && state != turn.ThinkingPause {
		// an interruption or close won the race
		return
	}

	fused := sentiment.Fuse(text, prosody)
	flags, rolling := p.tracker.Observe(text, fused, prosody != nil && prosody.IsQuestion)
	p.mu.Lock()
	p.lastFused = fused
	p.mu.Unlock()

	if fused.Label == sentiment.LabelFrustrated || fused.Label == sentiment.LabelAngry ||
		rolling < p.svc.cfg.Pipeline.SentimentAlertScore {
		p.svc.emitter.EmitSentimentAlert(p.sess.Context(), p.sess.OrgID, p.sess.CallID,
			map[string]interface{}{"label": fused.Label, "score": fused.Score, "rolling": rolling})
	}

	// clarification instead of committing, if the allowance lasts
	if pend.clarification != nil &&
		p.sess.TryClarify(p.svc.cfg.Pipeline.MaxClarificationsPerCall) {
		if p.machine.TryTransition(turn.Clarifying) {
			_ = p.sess.Bus.Publish(event.New(event.TurnClarification, p.sess.CallID).
				WithOrg(p.sess.OrgID).WithData(pend.clarification))
			p.svc.recorder.RecordStage(p.sess.OrgID, p.sess.CallID, "clarification",
				pend.clarification.Word, string(pend.clarification.Strategy), 0,
				domain.JSONB{"category": string(pend.clarification.Category)})
			p.speak(pend.clarification.Prompt)
			return
		}
	}

	if !p.machine.TryTransition(turn.AssistantTurn) {
		return
	}
	p.finishUserTurn(pend, text, fused)
	p.runAssistantTurn(text, flags)
}

func (p *pipeline) finishUserTurn(pend pendingTurn, text string, fused sentiment.Fused) {
	ended := time.Now()
	p.mu.Lock()
	p.rawUserText = append(p.rawUserText, strings.TrimSpace(strings.Join(pend.rawParts, " ")))
	p.allCorrections = append(p.allCorrections, pend.corrections...)
	p.mu.Unlock()
	p.sess.AppendTranscript(domain.TurnRoleUser, text, avgFloat(pend.confidences))
	p.memory.Append("user", text)
	_ = p.sess.Bus.Publish(event.New(event.TurnCommitted, p.sess.CallID).WithOrg(p.sess.OrgID))

	rec := metrics.TurnRecord{
		OrgID:          p.sess.OrgID,
		CallID:         p.sess.CallID,
		Role:           domain.TurnRoleUser,
		Text:           text,
		StartedAt:      pend.startedAt,
		EndedAt:        ended,
		STTConfidence:  avgFloat(pend.confidences),
		Corrections:    pend.corrections,
		SentimentLabel: fused.Label,
		SentimentScore: fused.Score,
		STTLatencyMS:   avgInt(pend.sttLatencies),
		DenoiseMS:      avgInt(pend.denoiseMS),
	}
	p.svc.recorder.RecordTurn(rec)
	p.svc.emitter.Emit(p.sess.Context(), p.sess.OrgID, domain.EventTurnCompleted, p.sess.CallID,
		map[string]interface{}{"role": "user", "sentiment": fused.Label})
}

// runAssistantTurn streams the model response into synthesis. An
// interruption cancels it; the tool calls it already issued complete.
func (p *pipeline) runAssistantTurn(userText string, flags []string) {
	turnCtx, cancel := context.WithCancel(p.sess.Context())
	p.mu.Lock()
	p.turnCancel = cancel
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		if p.turnCancel != nil {
			p.turnCancel = nil
		}
		p.mu.Unlock()
		cancel()
	}()

	system := dialogue.BuildSystemPrompt(p.sysBase, p.agent.RuntimeConfig, flags)
	started := time.Now()
	var firstChunk time.Duration

	res, err := p.svc.engine.Respond(turnCtx, dialogue.TurnInput{
		ConversationID: p.sess.CallID,
		System:         system,
		Memory:         p.memory,
		User:           userText,
	}, func(chunk string) error {
		if firstChunk == 0 {
			firstChunk = time.Since(started)
		}
		select {
		case <-turnCtx.Done():
			return turnCtx.Err()
		default:
		}
		p.streamer.Enqueue(chunk)
		return nil
	})
	llmLatency := time.Since(started)
	p.sess.RecordLatency("llm", llmLatency)

	p.handleToolCalls(res.ToolCalls)

	interrupted := turnCtx.Err() != nil
	if err != nil && !interrupted {
		logger.Base().Warn("assistant turn failed",
			zap.String("call_id", p.sess.CallID), zap.Error(err))
		p.svc.recorder.RecordStage(p.sess.OrgID, p.sess.CallID, "turn_error", userText, "",
			llmLatency, domain.JSONB{"error": err.Error()})
		p.speak(apologyShort)
		p.machine.TryTransition(turn.Listening)
		return
	}

	if interrupted {
		// text is discarded; the turn row keeps the interruption fact
		p.svc.recorder.RecordTurn(metrics.TurnRecord{
			OrgID:          p.sess.OrgID,
			CallID:         p.sess.CallID,
			Role:           domain.TurnRoleAssistant,
			Text:           "",
			StartedAt:      started,
			EndedAt:        time.Now(),
			LLMLatencyMS:   int64Ptr(llmLatency.Milliseconds()),
			WasInterrupted: true,
		})
		return
	}

	p.sess.AppendTranscript(domain.TurnRoleAssistant, res.Text, 1)
	p.memory.Append("assistant", res.Text)
	p.svc.recorder.RecordTurn(metrics.TurnRecord{
		OrgID:        p.sess.OrgID,
		CallID:       p.sess.CallID,
		Role:         domain.TurnRoleAssistant,
		Text:         res.Text,
		StartedAt:    started,
		EndedAt:      time.Now(),
		LLMLatencyMS: int64Ptr(llmLatency.Milliseconds()),
		TTSLatencyMS: int64Ptr(firstChunk.Milliseconds()),
	})
	p.svc.emitter.Emit(p.sess.Context(), p.sess.OrgID, domain.EventTurnCompleted, p.sess.CallID,
		map[string]interface{}{"role": "assistant"})
}

func (p *pipeline) handleToolCalls(calls []dialogue.ToolCall) {
	for _, call := range calls {
		switch call.Name {
		case dialogue.ToolTransferToAgent:
			p.svc.emitter.Emit(p.sess.Context(), p.sess.OrgID, domain.EventTransferRequested,
				p.sess.CallID, call.Arguments)
		case dialogue.ToolScheduleCallback:
			p.svc.emitter.Emit(p.sess.Context(), p.sess.OrgID, domain.EventCallbackScheduled,
				p.sess.CallID, call.Arguments)
		}
		p.svc.recorder.RecordStage(p.sess.OrgID, p.sess.CallID, "tool_call",
			string(call.Name), "", 0, nil)
	}
}

// persistRecording writes the call artifacts after the session closed.
func (p *pipeline) persistRecording() {
	p.mu.Lock()
	samples := p.inboundAudio
	p.inboundAudio = nil
	fused := p.lastFused
	rawText := strings.TrimSpace(strings.Join(p.rawUserText, " "))
	corrections := p.allCorrections
	p.mu.Unlock()
	if len(samples) == 0 {
		return
	}

	meta, lines := onlineMetadata(p.sess.Transcript(), rawText, corrections, fused, p.sess.Latencies())

	ctx, cancel := context.WithTimeout(context.Background(),
		p.svc.cfg.Pipeline.RecordingRetryWindow+10*time.Second)
	defer cancel()
	_, err := p.svc.recordings.Persist(ctx, &recording.Bundle{
		CallID:     p.sess.CallID,
		OrgID:      p.sess.OrgID,
		Direction:  domain.DirectionInbound,
		Samples:    samples,
		Transcript: strings.Join(lines, "\n"),
		Metadata:   meta,
	})
	if err != nil {
		logger.Base().Error("recording persistence failed, marking call errored",
			zap.String("call_id", p.sess.CallID), zap.Error(err))
		markCtx, markCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer markCancel()
		if err := p.svc.calls.MarkError(markCtx, p.sess.OrgID, p.sess.CallID); err != nil {
			logger.Base().Error("failed to mark call errored",
				zap.String("call_id", p.sess.CallID), zap.Error(err))
		}
	}
}

// onlineMetadata assembles the metadata document the live pipeline writes
// beside the audio, plus the plain transcript lines. The raw text falls
// back to the corrected text when no raw segments were kept.
func onlineMetadata(transcript []session.TranscriptEntry, rawText string, corrections []domain.CorrectionPair, fused sentiment.Fused, lat map[string][]time.Duration) (domain.Metadata, []string) {
	var lines []string
	var userText []string
	var confidences []float64
	turnsBlock := make([]domain.TurnSummary, 0, len(transcript))
	for _, t := range transcript {
		lines = append(lines, string(t.Role)+": "+t.Text)
		if t.Role == domain.TurnRoleUser {
			userText = append(userText, t.Text)
			confidences = append(confidences, t.Confidence)
		}
		turnsBlock = append(turnsBlock, domain.TurnSummary{
			Role:          t.Role,
			Text:          t.Text,
			StartedAt:     t.At,
			STTConfidence: t.Confidence,
		})
	}

	sttAvg := avgDuration(lat["stt"])
	llmAvg := avgDuration(lat["llm"])
	ttsAvg := avgDuration(lat["tts"])
	correctedText := strings.Join(userText, " ")
	if rawText == "" {
		rawText = correctedText
	}
	return domain.Metadata{
		Transcription: domain.Transcription{
			Text:             rawText,
			CorrectedText:    correctedText,
			Language:         "es",
			Confidence:       avgFloat(confidences),
			CorrectionsMade:  corrections,
			CorrectionMethod: domain.ProcessingModeOnline,
		},
		Sentiment: domain.SentimentBlock{
			Label:         fused.Label,
			Score:         fused.Score,
			Confidence:    fused.Confidence,
			EmotionalTone: fused.Tone,
		},
		Turns: turnsBlock,
		Metrics: domain.MetricsBlock{
			STTMsAvg:     sttAvg,
			LLMMsAvg:     llmAvg,
			TTSMsAvg:     ttsAvg,
			DenoiseMsAvg: avgDuration(lat[preprocess.StageDenoise]),
			TotalMsAvg:   sttAvg + llmAvg + ttsAvg,
		},
		Processed:      false,
		ProcessingMode: domain.ProcessingModeOnline,
	}, lines
}

func avgFloat(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func avgInt(xs []int64) *int64 {
	if len(xs) == 0 {
		return nil
	}
	var sum int64
	for _, x := range xs {
		sum += x
	}
	avg := sum / int64(len(xs))
	return &avg
}

func avgDuration(xs []time.Duration) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum time.Duration
	for _, x := range xs {
		sum += x
	}
	return float64(sum.Milliseconds()) / float64(len(xs))
}

func int64Ptr(v int64) *int64 { return &v }

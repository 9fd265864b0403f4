package config

import "time"

// PipelineConfig is the enumerated set of per-call pipeline tunables.
// Every threshold, timeout and cap the pipeline consults lives here; no
// component reads free-form keys at runtime.
type PipelineConfig struct {
	// Turn detection
	EndOfTurnPause     time.Duration // silence that ends a user turn
	QuestionTurnPause  time.Duration // shortened end-of-turn pause after a prosodic question
	ThinkingPauseMin   time.Duration // silence range treated as a thinking pause
	ThinkingPauseMax   time.Duration
	MinSilence         time.Duration // forward silence that closes a segment
	MaxSegmentDuration time.Duration // hard bound on one segment
	MinSpeech          time.Duration // segments shorter than this never reach STT
	ProsodyWindow      time.Duration // ring buffer length for prosody analysis

	// Voice activity / interruption
	VADThreshold float64 // normalized energy threshold for speech

	// Clarification
	MaxClarificationsPerCall         int
	ClarificationConfidenceThreshold float64

	// Online correction
	OnlineCorrectionBudget time.Duration

	// Preprocessing stage timeouts
	DenoiseTimeout time.Duration
	ExtractTimeout time.Duration
	ProsodyTimeout time.Duration

	// STT
	STTQueueDepth      int           // segments queued behind the in-flight request
	STTBaseTimeout     time.Duration // wall clock for a MaxSegmentDuration segment, scaled otherwise
	VoiceProfileWindow time.Duration // clean speech required before embedding creation

	// Dialogue / TTS
	MaxContextTurns    int // user/assistant pairs kept in rolling memory
	MinChunkWords      int // sentence chunks shorter than this are held back
	TTSFirstByteTarget time.Duration

	// Process-wide caps
	STTInFlightCap int64
	TTSInFlightCap int64
	CapAcquireWait time.Duration // bounded wait before Overloaded

	// Cancellation propagation bound for outbound calls
	CancelPropagation time.Duration

	// Webhook delivery. WebhookAttempts counts retries after the
	// initial post.
	WebhookQueueCap int
	WebhookAttempts int
	WebhookWorkers  int

	// Sentiment alerting
	SentimentAlertScore    float64       // rolling 3-turn score below this alerts
	SentimentAlertCooldown time.Duration // per-call alert rate limit

	// STT failure handling
	MaxSTTRetriesPerCall int

	// Offline enrichment
	RetranscribeWERThreshold float64

	// Recording persistence
	RecordingRetryWindow time.Duration // bounded retry before the call goes to error
}

// DefaultPipeline returns the default pipeline tunables.
func DefaultPipeline() PipelineConfig {
	return PipelineConfig{
		EndOfTurnPause:     1500 * time.Millisecond,
		QuestionTurnPause:  600 * time.Millisecond,
		ThinkingPauseMin:   800 * time.Millisecond,
		ThinkingPauseMax:   2500 * time.Millisecond,
		MinSilence:         500 * time.Millisecond,
		MaxSegmentDuration: 8 * time.Second,
		MinSpeech:          250 * time.Millisecond,
		ProsodyWindow:      1500 * time.Millisecond,

		VADThreshold: 0.02,

		MaxClarificationsPerCall:         3,
		ClarificationConfidenceThreshold: 0.6,

		OnlineCorrectionBudget: 20 * time.Millisecond,

		DenoiseTimeout: 400 * time.Millisecond,
		ExtractTimeout: 250 * time.Millisecond,
		ProsodyTimeout: 150 * time.Millisecond,

		STTQueueDepth:      2,
		STTBaseTimeout:     3 * time.Second,
		VoiceProfileWindow: 3 * time.Second,

		MaxContextTurns:    10,
		MinChunkWords:      3,
		TTSFirstByteTarget: 400 * time.Millisecond,

		STTInFlightCap: 32,
		TTSInFlightCap: 32,
		CapAcquireWait: 500 * time.Millisecond,

		CancelPropagation: 200 * time.Millisecond,

		WebhookQueueCap: 1000,
		WebhookAttempts: 5,
		WebhookWorkers:  16,

		SentimentAlertScore:    -0.5,
		SentimentAlertCooldown: 30 * time.Second,

		MaxSTTRetriesPerCall: 2,

		RetranscribeWERThreshold: 0.2,

		RecordingRetryWindow: 60 * time.Second,
	}
}

// LoadPipelineFromEnv returns the defaults overridden by any environment
// variables that are set. Only the knobs operators actually turn are
// exposed; the rest stay code-level defaults.
func LoadPipelineFromEnv() PipelineConfig {
	p := DefaultPipeline()
	p.EndOfTurnPause = msEnv("PIPELINE_END_OF_TURN_PAUSE_MS", p.EndOfTurnPause)
	p.MinSilence = msEnv("PIPELINE_MIN_SILENCE_MS", p.MinSilence)
	p.MinSpeech = msEnv("PIPELINE_MIN_SPEECH_MS", p.MinSpeech)
	p.MaxClarificationsPerCall = getEnvAsIntOrDefault("PIPELINE_MAX_CLARIFICATIONS", p.MaxClarificationsPerCall)
	p.ClarificationConfidenceThreshold = getEnvAsFloatOrDefault("PIPELINE_CLARIFICATION_THRESHOLD", p.ClarificationConfidenceThreshold)
	p.VADThreshold = getEnvAsFloatOrDefault("PIPELINE_VAD_THRESHOLD", p.VADThreshold)
	p.STTInFlightCap = int64(getEnvAsIntOrDefault("PIPELINE_STT_IN_FLIGHT_CAP", int(p.STTInFlightCap)))
	p.TTSInFlightCap = int64(getEnvAsIntOrDefault("PIPELINE_TTS_IN_FLIGHT_CAP", int(p.TTSInFlightCap)))
	p.WebhookQueueCap = getEnvAsIntOrDefault("PIPELINE_WEBHOOK_QUEUE_CAP", p.WebhookQueueCap)
	p.WebhookWorkers = getEnvAsIntOrDefault("PIPELINE_WEBHOOK_WORKERS", p.WebhookWorkers)
	p.RetranscribeWERThreshold = getEnvAsFloatOrDefault("PIPELINE_RETRANSCRIBE_WER", p.RetranscribeWERThreshold)
	return p
}

func msEnv(key string, def time.Duration) time.Duration {
	ms := getEnvAsIntOrDefault(key, int(def/time.Millisecond))
	return time.Duration(ms) * time.Millisecond
}

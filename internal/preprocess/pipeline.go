package preprocess

import (
	"context"
	"time"

	"github.com/centralita-ai/voice-orchestrator/internal/config"
	"github.com/centralita-ai/voice-orchestrator/internal/core/event"
	"github.com/centralita-ai/voice-orchestrator/pkg/logger"
	"go.uber.org/zap"
)

// Conditioned is a segment after the preprocessing stages ran.
type Conditioned struct {
	Samples   []int16
	Prosody   *ProsodyResult
	Degraded  []string // stages skipped for this segment
	DenoiseMS int64
	ExtractMS int64
	ProsodyMS int64
}

// Pipeline applies the conditioning stages in order. A stage that errors
// is skipped for the segment and reported as degraded on the session bus;
// the next segment tries the stage again.
type Pipeline struct {
	denoise *DenoiseClient
	extract *ExtractClient
	prosody *ProsodyClient
	bus     event.Bus
	callID  string
	orgID   string
}

// NewPipeline builds the per-call conditioning pipeline. Stages with an
// empty base URL are disabled without being reported as degraded.
func NewPipeline(cfg *config.Config, bus event.Bus, callID, orgID string) *Pipeline {
	p := &Pipeline{bus: bus, callID: callID, orgID: orgID}
	if cfg.DenoiseBaseURL != "" {
		p.denoise = NewDenoiseClient(cfg.DenoiseBaseURL, cfg.Pipeline.DenoiseTimeout)
	}
	if cfg.ExtractBaseURL != "" {
		p.extract = NewExtractClient(cfg.ExtractBaseURL, cfg.Pipeline.ExtractTimeout)
	}
	if cfg.ProsodyBaseURL != "" {
		p.prosody = NewProsodyClient(cfg.ProsodyBaseURL, cfg.Pipeline.ProsodyTimeout)
	}
	return p
}

// Extractor exposes the extraction client for voice profile enrollment.
func (p *Pipeline) Extractor() *ExtractClient { return p.extract }

// Run conditions one segment. window is the rolling prosody window, which
// may extend before the segment start; profile is the session voice
// profile embedding or nil.
func (p *Pipeline) Run(ctx context.Context, samples, window []int16, profile []float32) Conditioned {
	out := Conditioned{Samples: samples}

	if p.denoise != nil {
		start := time.Now()
		cleaned, err := p.denoise.Denoise(ctx, out.Samples)
		out.DenoiseMS = time.Since(start).Milliseconds()
		if err != nil {
			p.degrade(StageDenoise, err, &out)
		} else {
			out.Samples = cleaned
		}
	}

	if p.extract != nil {
		start := time.Now()
		isolated, err := p.extract.Extract(ctx, out.Samples, profile)
		out.ExtractMS = time.Since(start).Milliseconds()
		if err != nil {
			p.degrade(StageExtract, err, &out)
		} else {
			out.Samples = isolated
		}
	}

	if p.prosody != nil && len(window) > 0 {
		start := time.Now()
		res, err := p.prosody.Analyze(ctx, window)
		out.ProsodyMS = time.Since(start).Milliseconds()
		if err != nil {
			p.degrade(StageProsody, err, &out)
		} else {
			out.Prosody = res
		}
	}

	return out
}

func (p *Pipeline) degrade(stage string, err error, out *Conditioned) {
	out.Degraded = append(out.Degraded, stage)
	logger.Base().Warn("preprocessing stage skipped",
		zap.String("call_id", p.callID),
		zap.String("stage", stage),
		zap.Error(err))
	_ = p.bus.Publish(event.New(event.DependencyDegraded, p.callID).
		WithOrg(p.orgID).
		WithData(event.DegradedData{Stage: stage, Reason: err.Error()}))
}

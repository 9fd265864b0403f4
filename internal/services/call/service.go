// Package call wires the per-call pipeline together: audio in from the
// bridge, through preprocessing, speech recognition, correction,
// sentiment, dialogue and synthesis, and back out to the bridge,
// persisting turns, recordings and webhook events along the way.
package call

import (
	"context"

	"github.com/centralita-ai/voice-orchestrator/internal/config"
	"github.com/centralita-ai/voice-orchestrator/internal/core/session"
	"github.com/centralita-ai/voice-orchestrator/internal/correction"
	"github.com/centralita-ai/voice-orchestrator/internal/dialogue"
	"github.com/centralita-ai/voice-orchestrator/internal/dispatch"
	"github.com/centralita-ai/voice-orchestrator/internal/domain"
	"github.com/centralita-ai/voice-orchestrator/internal/fault"
	"github.com/centralita-ai/voice-orchestrator/internal/metrics"
	"github.com/centralita-ai/voice-orchestrator/internal/recording"
	"github.com/centralita-ai/voice-orchestrator/internal/repository"
	"github.com/centralita-ai/voice-orchestrator/internal/stt"
	"github.com/centralita-ai/voice-orchestrator/internal/tts"
	"github.com/centralita-ai/voice-orchestrator/internal/voiceprofile"
	"github.com/centralita-ai/voice-orchestrator/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Service runs calls and answers call queries. One Service per process;
// per-call state lives in the pipelines it spawns.
type Service struct {
	cfg      *config.Config
	registry *session.Registry

	agents *repository.AgentRepository
	calls  *repository.CallRepository

	sttClient *stt.Client
	sttCap    *semaphore.Weighted
	ttsClient *tts.Client
	ttsCap    *semaphore.Weighted

	corrector  *correction.OnlineCorrector
	engine     *dialogue.Engine
	llm        *dialogue.Client
	recordings *recording.Service
	recorder   *metrics.Recorder
	emitter    *dispatch.Emitter
	profiles   *voiceprofile.Store
}

// Deps carries the singletons the service is built from.
type Deps struct {
	Config     *config.Config
	Registry   *session.Registry
	Agents     *repository.AgentRepository
	Calls      *repository.CallRepository
	STT        *stt.Client
	TTS        *tts.Client
	Corrector  *correction.OnlineCorrector
	Engine     *dialogue.Engine
	LLM        *dialogue.Client
	Recordings *recording.Service
	Recorder   *metrics.Recorder
	Emitter    *dispatch.Emitter
	Profiles   *voiceprofile.Store
}

// NewService builds the call service and its process-wide capacity caps.
func NewService(d Deps) *Service {
	return &Service{
		cfg:        d.Config,
		registry:   d.Registry,
		agents:     d.Agents,
		calls:      d.Calls,
		sttClient:  d.STT,
		sttCap:     semaphore.NewWeighted(d.Config.Pipeline.STTInFlightCap),
		ttsClient:  d.TTS,
		ttsCap:     semaphore.NewWeighted(d.Config.Pipeline.TTSInFlightCap),
		corrector:  d.Corrector,
		engine:     d.Engine,
		llm:        d.LLM,
		recordings: d.Recordings,
		recorder:   d.Recorder,
		emitter:    d.Emitter,
		profiles:   d.Profiles,
	}
}

// Registry exposes the session registry for shutdown draining.
func (s *Service) Registry() *session.Registry { return s.registry }

// Get returns one call row, tenant scoped. A miss that turns out to be
// another tenant's call is audited on the owner's event log; the caller
// still sees NotFound.
func (s *Service) Get(ctx context.Context, orgID, id string) (*domain.Call, error) {
	call, err := s.calls.GetByID(ctx, orgID, id)
	if err != nil {
		if fault.Is(err, fault.KindNotFound) {
			s.auditCrossTenant(ctx, orgID, id)
		}
		return nil, err
	}
	return call, nil
}

func (s *Service) auditCrossTenant(ctx context.Context, requestOrg, callID string) {
	owner, err := s.calls.OwnerOf(ctx, callID)
	if err != nil || owner == requestOrg {
		return
	}
	ev := &domain.CallEvent{
		OrganizationID: owner,
		CallID:         callID,
		Stage:          "cross_tenant_attempt",
		Params:         domain.JSONB{"requesting_org": requestOrg},
	}
	if err := s.calls.AppendEvent(ctx, ev); err != nil {
		logger.Base().Warn("failed to audit cross-tenant attempt",
			zap.String("call_id", callID), zap.Error(err))
	}
}

// List pages through an organization's calls, newest first.
func (s *Service) List(ctx context.Context, orgID string, limit, offset int) ([]*domain.Call, error) {
	return s.calls.List(ctx, orgID, limit, offset)
}

// Turns returns the committed turns of one call.
func (s *Service) Turns(ctx context.Context, orgID, callID string) ([]*domain.Turn, error) {
	if _, err := s.calls.GetByID(ctx, orgID, callID); err != nil {
		return nil, err
	}
	return s.calls.ListTurns(ctx, orgID, callID)
}

// Events returns the stage event log of one call.
func (s *Service) Events(ctx context.Context, orgID, callID string) ([]*domain.CallEvent, error) {
	if _, err := s.calls.GetByID(ctx, orgID, callID); err != nil {
		return nil, err
	}
	return s.calls.ListEvents(ctx, orgID, callID)
}

// Summary aggregates recent calls for the metrics endpoint.
func (s *Service) Summary(ctx context.Context, orgID string, days int) (*domain.CallSummary, error) {
	return s.recorder.Summary(ctx, orgID, days)
}

// End force-closes an active call from the API. Ending a call that is
// already gone reports NotFound from the registry.
func (s *Service) End(ctx context.Context, orgID, callID string) error {
	if _, err := s.registry.Get(orgID, callID); err != nil {
		return err
	}
	s.registry.Close(callID, session.OutcomeEnded)
	return nil
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/centralita-ai/voice-orchestrator/internal/domain"
	"github.com/centralita-ai/voice-orchestrator/internal/fault"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CallRepository handles database operations for calls, turns and call
// events. Turns are append-only within a call; events are written in turn
// order.
type CallRepository struct {
	db *gorm.DB
}

// NewCallRepository creates a new call repository.
func NewCallRepository(db *gorm.DB) *CallRepository {
	return &CallRepository{db: db}
}

// Create creates a new call row in status active.
func (r *CallRepository) Create(ctx context.Context, call *domain.Call) error {
	if call.ID == "" {
		call.ID = uuid.New().String()
	}
	if call.StartedAt.IsZero() {
		call.StartedAt = time.Now()
	}
	call.Status = domain.CallStatusActive
	if err := r.db.WithContext(ctx).Create(call).Error; err != nil {
		return fmt.Errorf("failed to create call: %w", err)
	}
	return nil
}

// GetByID retrieves a call within an organization. Cross-tenant ids yield
// NotFound, never Forbidden.
func (r *CallRepository) GetByID(ctx context.Context, orgID, id string) (*domain.Call, error) {
	var call domain.Call
	if err := r.db.WithContext(ctx).Where("id = ? AND organization_id = ?", id, orgID).First(&call).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fault.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get call: %w", err)
	}
	return &call, nil
}

// OwnerOf resolves the owning organization of a call id without tenant
// scoping. Audit use only; the result must never reach the API response.
func (r *CallRepository) OwnerOf(ctx context.Context, id string) (string, error) {
	var call domain.Call
	if err := r.db.WithContext(ctx).Select("organization_id").Where("id = ?", id).First(&call).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fault.ErrNotFound
		}
		return "", fmt.Errorf("failed to resolve call owner: %w", err)
	}
	return call.OrganizationID, nil
}

// List returns the org's calls, newest first.
func (r *CallRepository) List(ctx context.Context, orgID string, limit, offset int) ([]*domain.Call, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var calls []*domain.Call
	if err := r.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("started_at DESC").
		Limit(limit).Offset(offset).
		Find(&calls).Error; err != nil {
		return nil, fmt.Errorf("failed to list calls: %w", err)
	}
	return calls, nil
}

// MarkEnded transitions a call to ended. Idempotent: a call already ended
// stays ended with its original ended_at.
func (r *CallRepository) MarkEnded(ctx context.Context, orgID, id string, endedAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&domain.Call{}).
		Where("id = ? AND organization_id = ? AND status = ?", id, orgID, domain.CallStatusActive).
		Updates(map[string]interface{}{
			"status":     domain.CallStatusEnded,
			"ended_at":   endedAt,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to mark call ended: %w", res.Error)
	}
	return nil
}

// MarkError transitions a call to error status regardless of its current
// state. Used when an internal invariant broke.
func (r *CallRepository) MarkError(ctx context.Context, orgID, id string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&domain.Call{}).
		Where("id = ? AND organization_id = ?", id, orgID).
		Updates(map[string]interface{}{
			"status":     domain.CallStatusError,
			"ended_at":   now,
			"updated_at": now,
		}).Error
}

// CountActive returns the number of active calls in an organization.
func (r *CallRepository) CountActive(ctx context.Context, orgID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Call{}).
		Where("organization_id = ? AND status = ?", orgID, domain.CallStatusActive).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count active calls: %w", err)
	}
	return count, nil
}

// AppendTurn appends a turn to a call, assigning the next sequence number.
func (r *CallRepository) AppendTurn(ctx context.Context, turn *domain.Turn) error {
	if turn.ID == "" {
		turn.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxSeq int64
		if err := tx.Model(&domain.Turn{}).
			Where("call_id = ?", turn.CallID).
			Select("COALESCE(MAX(seq), 0)").Scan(&maxSeq).Error; err != nil {
			return fmt.Errorf("failed to read turn sequence: %w", err)
		}
		turn.Seq = int(maxSeq) + 1
		if err := tx.Create(turn).Error; err != nil {
			return fmt.Errorf("failed to append turn: %w", err)
		}
		return nil
	})
}

// ListTurns returns a call's turns in order.
func (r *CallRepository) ListTurns(ctx context.Context, orgID, callID string) ([]*domain.Turn, error) {
	var turns []*domain.Turn
	if err := r.db.WithContext(ctx).
		Where("call_id = ? AND organization_id = ?", callID, orgID).
		Order("seq").
		Find(&turns).Error; err != nil {
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}
	return turns, nil
}

// AppendEvent appends a structured event row for a call.
func (r *CallRepository) AppendEvent(ctx context.Context, event *domain.CallEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("failed to append call event: %w", err)
	}
	return nil
}

// ListEvents returns a call's events in write order.
func (r *CallRepository) ListEvents(ctx context.Context, orgID, callID string) ([]*domain.CallEvent, error) {
	var events []*domain.CallEvent
	if err := r.db.WithContext(ctx).
		Where("call_id = ? AND organization_id = ?", callID, orgID).
		Order("created_at").
		Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to list call events: %w", err)
	}
	return events, nil
}

// Summary aggregates per-turn metrics over the org's calls started in the
// last `days` days.
func (r *CallRepository) Summary(ctx context.Context, orgID string, days int) (*domain.CallSummary, error) {
	if days <= 0 {
		days = 7
	}
	since := time.Now().AddDate(0, 0, -days)

	var summary domain.CallSummary
	if err := r.db.WithContext(ctx).Model(&domain.Call{}).
		Where("organization_id = ? AND started_at >= ?", orgID, since).
		Count(&summary.TotalCalls).Error; err != nil {
		return nil, fmt.Errorf("failed to count calls: %w", err)
	}

	row := r.db.WithContext(ctx).Model(&domain.Turn{}).
		Select(`COUNT(*) AS total_turns,
			COALESCE(AVG(stt_latency_ms), 0) AS avg_stt,
			COALESCE(AVG(llm_latency_ms), 0) AS avg_llm,
			COALESCE(AVG(tts_latency_ms), 0) AS avg_tts,
			COALESCE(AVG(stt_confidence), 0) AS avg_conf,
			COALESCE(AVG(sentiment_score), 0) AS avg_sent,
			COALESCE(SUM(CASE WHEN was_interrupted THEN 1 ELSE 0 END), 0) AS interruptions`).
		Where("organization_id = ? AND created_at >= ?", orgID, since).
		Row()

	if err := row.Scan(&summary.TotalTurns, &summary.AvgSTTLatencyMs, &summary.AvgLLMLatencyMs,
		&summary.AvgTTSLatencyMs, &summary.AvgConfidence, &summary.AvgSentiment,
		&summary.Interruptions); err != nil {
		return nil, fmt.Errorf("failed to aggregate turn metrics: %w", err)
	}
	summary.AvgTotalMs = summary.AvgSTTLatencyMs + summary.AvgLLMLatencyMs + summary.AvgTTSLatencyMs
	return &summary, nil
}

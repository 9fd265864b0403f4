// Package correction implements transcript correction: an online pass
// that runs inside the turn latency budget with an exact dictionary, and
// a hybrid offline pass (exact, vector, phonetic) used by enrichment.
package correction

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/centralita-ai/voice-orchestrator/internal/domain"
	"github.com/centralita-ai/voice-orchestrator/internal/repository"
	"github.com/centralita-ai/voice-orchestrator/pkg/logger"
	rediscache "github.com/centralita-ai/voice-orchestrator/pkg/redis"
	"go.uber.org/zap"
)

// Snapshot is an immutable view of one organization's dictionary. Lookups
// during a call read the snapshot without locking; updates swap in a new
// snapshot.
type Snapshot struct {
	entries  map[string]*domain.CorrectionEntry // lowercased misheard form
	critical map[domain.CriticalCategory]map[string]struct{}
}

// Lookup returns the canonical form for a misheard token, if learned.
func (s *Snapshot) Lookup(token string) (*domain.CorrectionEntry, bool) {
	e, ok := s.entries[strings.ToLower(token)]
	return e, ok
}

// IsCritical reports whether the token is on any critical word list and
// names the category.
func (s *Snapshot) IsCritical(token string) (domain.CriticalCategory, bool) {
	t := strings.ToLower(token)
	for cat, words := range s.critical {
		if _, ok := words[t]; ok {
			return cat, true
		}
	}
	return "", false
}

// Len reports how many entries the snapshot holds.
func (s *Snapshot) Len() int { return len(s.entries) }

var criticalCategories = []domain.CriticalCategory{
	domain.CategoryNumbers,
	domain.CategoryDestructiveActions,
	domain.CategoryNegations,
	domain.CategoryConfirmations,
}

// Cache holds per-organization dictionary snapshots and refreshes them
// when a reload broadcast arrives on Redis.
type Cache struct {
	repo  *repository.DictionaryRepository
	redis rediscache.ServiceInterface

	mu        sync.RWMutex
	snapshots map[string]*Snapshot
}

// NewCache builds the cache and subscribes to reload broadcasts. redis
// may be nil in tests; reloads are then explicit.
func NewCache(ctx context.Context, repo *repository.DictionaryRepository, redisSvc rediscache.ServiceInterface) *Cache {
	c := &Cache{
		repo:      repo,
		redis:     redisSvc,
		snapshots: make(map[string]*Snapshot),
	}
	if redisSvc != nil {
		channel := redisSvc.GenerateKey(rediscache.DictReload, "broadcast")
		if err := redisSvc.Subscribe(ctx, channel, func(payload string) {
			var orgID string
			if err := json.Unmarshal([]byte(payload), &orgID); err != nil {
				logger.Base().Warn("bad dictionary reload payload", zap.String("payload", payload))
				return
			}
			if err := c.Reload(context.Background(), orgID); err != nil {
				logger.Base().Warn("dictionary reload failed",
					zap.String("org_id", orgID), zap.Error(err))
			}
		}); err != nil {
			logger.Base().Warn("dictionary reload subscription failed", zap.Error(err))
		}
	}
	return c
}

// Get returns the snapshot for the organization, loading it on first use.
func (c *Cache) Get(ctx context.Context, orgID string) (*Snapshot, error) {
	c.mu.RLock()
	snap, ok := c.snapshots[orgID]
	c.mu.RUnlock()
	if ok {
		return snap, nil
	}
	if err := c.Reload(ctx, orgID); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshots[orgID], nil
}

// Reload rebuilds the organization's snapshot from the database and swaps
// it in. In-flight lookups keep reading the old snapshot.
func (c *Cache) Reload(ctx context.Context, orgID string) error {
	entries, err := c.repo.ListForOrg(ctx, orgID)
	if err != nil {
		return err
	}
	snap := &Snapshot{
		entries:  make(map[string]*domain.CorrectionEntry, len(entries)),
		critical: make(map[domain.CriticalCategory]map[string]struct{}),
	}
	// ListForOrg orders tenant entries after seed entries, so a tenant
	// mapping overwrites the seed mapping for the same misheard form.
	for _, e := range entries {
		snap.entries[strings.ToLower(e.Misheard)] = e
	}
	for _, cat := range criticalCategories {
		words, err := c.repo.CriticalWords(ctx, orgID, cat)
		if err != nil {
			return err
		}
		set := make(map[string]struct{}, len(words))
		for _, w := range words {
			set[strings.ToLower(w)] = struct{}{}
		}
		snap.critical[cat] = set
	}

	c.mu.Lock()
	c.snapshots[orgID] = snap
	c.mu.Unlock()
	logger.Base().Info("dictionary snapshot reloaded",
		zap.String("org_id", orgID), zap.Int("entries", snap.Len()))
	return nil
}

// Broadcast asks every instance, this one included, to reload the
// organization's snapshot.
func (c *Cache) Broadcast(ctx context.Context, orgID string) {
	if c.redis == nil {
		_ = c.Reload(ctx, orgID)
		return
	}
	channel := c.redis.GenerateKey(rediscache.DictReload, "broadcast")
	if err := c.redis.Publish(ctx, channel, orgID); err != nil {
		logger.Base().Warn("dictionary reload broadcast failed", zap.Error(err))
		// fall back to a local reload so this instance stays fresh
		_ = c.Reload(ctx, orgID)
	}
}

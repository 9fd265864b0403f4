// Package recording persists call artifacts: the audio, the transcript
// and the canonical metadata document. Writes follow a fixed order so a
// metadata document never exists without its audio, and local disk stays
// authoritative when cloud storage lags behind.
package recording

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/centralita-ai/voice-orchestrator/internal/bridge"
	"github.com/centralita-ai/voice-orchestrator/internal/config"
	"github.com/centralita-ai/voice-orchestrator/internal/domain"
	"github.com/centralita-ai/voice-orchestrator/internal/repository"
	"github.com/centralita-ai/voice-orchestrator/pkg/gcs"
	"github.com/centralita-ai/voice-orchestrator/pkg/logger"
	"github.com/centralita-ai/voice-orchestrator/pkg/wav"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Artifact paths under the storage root. The layout is a contract with
// the offline enrichment worker; suffixes and prefixes are fixed.
func audioPath(callID, recID string) string {
	return filepath.Join("recordings", callID, recID+".wav")
}
func transcriptPath(callID, recID string) string {
	return filepath.Join("transcripts", callID, recID+"_transcript.json")
}
func metadataPath(callID, recID string) string {
	return filepath.Join("recordings", callID, recID+"_metadata.json")
}

// transcriptDoc is the transcript artifact written beside the audio.
type transcriptDoc struct {
	RecordingID    string               `json:"recording_id"`
	ConversationID string               `json:"conversation_id"`
	Transcript     string               `json:"transcript"`
	Turns          []domain.TurnSummary `json:"turns"`
}

func transcriptArtifact(recID string, b *Bundle) ([]byte, error) {
	doc := transcriptDoc{
		RecordingID:    recID,
		ConversationID: b.CallID,
		Transcript:     b.Transcript,
		Turns:          b.Metadata.Turns,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transcript artifact: %w", err)
	}
	return data, nil
}

// Bundle is everything the store persists for one recording.
type Bundle struct {
	CallID     string
	OrgID      string
	Direction  domain.Direction
	Samples    []int16
	Transcript string
	Metadata   domain.Metadata
}

// Store writes artifacts to local disk, to cloud storage or to both.
// In dual mode local disk is authoritative: a cloud failure is logged
// and retried by enrichment, never surfaced to the call.
type Store struct {
	mode        string
	root        string
	cloud       *gcs.Client
	repo        *repository.RecordingRepository
	retryWindow time.Duration
}

// NewStore builds the artifact store. cloud may be nil for local mode.
func NewStore(cfg *config.Config, cloud *gcs.Client, repo *repository.RecordingRepository) *Store {
	return &Store{
		mode:        cfg.RecordingStorageMode,
		root:        cfg.RecordingLocalPath,
		cloud:       cloud,
		repo:        repo,
		retryWindow: cfg.Pipeline.RecordingRetryWindow,
	}
}

// Save persists one recording. The write order is audio, transcript,
// metadata, then the database row; a failure at any step removes the
// artifacts already written. Transient failures are retried with a short
// pause inside the bounded retry window before the error is returned.
func (s *Store) Save(ctx context.Context, b *Bundle) (*domain.Recording, error) {
	recID := uuid.NewString()
	deadline := time.Now().Add(s.retryWindow)

	var rec *domain.Recording
	var err error
	for attempt := 1; ; attempt++ {
		rec, err = s.saveOnce(ctx, recID, b)
		if err == nil {
			return rec, nil
		}
		if ctx.Err() != nil || time.Now().After(deadline) {
			return nil, err
		}
		logger.Base().Warn("recording write failed, retrying",
			zap.String("call_id", b.CallID),
			zap.Int("attempt", attempt),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, err
		case <-time.After(2 * time.Second):
		}
	}
}

func (s *Store) saveOnce(ctx context.Context, recID string, b *Bundle) (*domain.Recording, error) {
	audio := wav.Encode(b.Samples, bridge.CanonicalRate)
	sum := sha256.Sum256(audio)
	checksum := hex.EncodeToString(sum[:])

	meta := b.Metadata
	meta.RecordingID = recID
	meta.ConversationID = b.CallID
	meta.OrgID = b.OrgID
	meta.Timestamp = time.Now().UTC()
	meta.Direction = b.Direction
	meta.Audio = domain.AudioBlock{
		Format:         "wav",
		SampleRate:     bridge.CanonicalRate,
		DurationSec:    float64(len(b.Samples)) / float64(bridge.CanonicalRate),
		SizeBytes:      int64(len(audio)),
		ChecksumSHA256: checksum,
	}
	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal recording metadata: %w", err)
	}
	transcriptJSON, err := transcriptArtifact(recID, b)
	if err != nil {
		return nil, err
	}

	var written []string
	cleanup := func() {
		for _, p := range written {
			if err := s.remove(ctx, p); err != nil {
				logger.Base().Warn("failed to clean up partial recording",
					zap.String("path", p), zap.Error(err))
			}
		}
	}

	for _, art := range []struct {
		path string
		data []byte
	}{
		{audioPath(b.CallID, recID), audio},
		{transcriptPath(b.CallID, recID), transcriptJSON},
		{metadataPath(b.CallID, recID), metaJSON},
	} {
		if err := s.write(ctx, art.path, art.data); err != nil {
			cleanup()
			return nil, err
		}
		written = append(written, art.path)
	}

	rec := &domain.Recording{
		ID:             recID,
		OrganizationID: b.OrgID,
		CallID:         b.CallID,
		Direction:      b.Direction,
		Format:         "wav",
		SampleRate:     bridge.CanonicalRate,
		DurationSec:    meta.Audio.DurationSec,
		SizeBytes:      meta.Audio.SizeBytes,
		ChecksumSHA256: checksum,
		Processed:      false,
		ProcessingMode: domain.ProcessingModeOnline,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to persist recording row: %w", err)
	}
	return rec, nil
}

func (s *Store) write(ctx context.Context, path string, data []byte) error {
	switch s.mode {
	case "gcs":
		if _, err := s.cloud.Upload(ctx, path, bytes.NewReader(data)); err != nil {
			return fmt.Errorf("failed to upload %s: %w", path, err)
		}
		return nil
	case "dual":
		if err := s.writeLocal(path, data); err != nil {
			return err
		}
		// local is authoritative; the cloud copy is best effort here and
		// reconciled by the enrichment worker
		if _, err := s.cloud.Upload(ctx, path, bytes.NewReader(data)); err != nil {
			logger.Base().Warn("cloud copy failed, local copy stands",
				zap.String("path", path), zap.Error(err))
		}
		return nil
	default: // local
		return s.writeLocal(path, data)
	}
}

func (s *Store) writeLocal(path string, data []byte) error {
	full := filepath.Join(s.root, path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("failed to create recording directory: %w", err)
	}
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp, full); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", path, err)
	}
	return nil
}

func (s *Store) remove(ctx context.Context, path string) error {
	switch s.mode {
	case "gcs":
		return s.cloud.Delete(ctx, path)
	case "dual":
		_ = s.cloud.Delete(ctx, path)
		return os.Remove(filepath.Join(s.root, path))
	default:
		return os.Remove(filepath.Join(s.root, path))
	}
}

// ReadAudio loads a recording's audio artifact.
func (s *Store) ReadAudio(ctx context.Context, callID, recID string) ([]byte, error) {
	return s.read(ctx, audioPath(callID, recID))
}

// ReadMetadata loads and parses a recording's metadata document.
func (s *Store) ReadMetadata(ctx context.Context, callID, recID string) (*domain.Metadata, error) {
	data, err := s.read(ctx, metadataPath(callID, recID))
	if err != nil {
		return nil, err
	}
	var meta domain.Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse recording metadata: %w", err)
	}
	return &meta, nil
}

// WriteMetadata replaces a recording's metadata document, used by the
// enrichment worker after offline processing.
func (s *Store) WriteMetadata(ctx context.Context, callID, recID string, meta *domain.Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal recording metadata: %w", err)
	}
	return s.write(ctx, metadataPath(callID, recID), data)
}

// PresignedAudioURL returns a time-limited download URL when cloud
// storage holds the audio, or empty for local-only storage.
func (s *Store) PresignedAudioURL(callID, recID string, expiry time.Duration) (string, error) {
	if s.cloud == nil || s.mode == "local" {
		return "", nil
	}
	uri := s.cloud.URI(filepath.ToSlash(audioPath(callID, recID)))
	return s.cloud.PresignedURL(uri, time.Now().Add(expiry))
}

func (s *Store) read(ctx context.Context, path string) ([]byte, error) {
	if s.mode == "gcs" {
		return s.cloud.Download(ctx, path)
	}
	data, err := os.ReadFile(filepath.Join(s.root, path))
	if err == nil {
		return data, nil
	}
	if s.mode == "dual" && s.cloud != nil {
		return s.cloud.Download(ctx, path)
	}
	return nil, err
}

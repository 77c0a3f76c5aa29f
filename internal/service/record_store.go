package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"trivia-quiz/internal/cache"
	"trivia-quiz/internal/domain"
	"trivia-quiz/internal/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// RecordStore keeps each player's most recent game records across sessions
type RecordStore interface {
	Append(ctx context.Context, playerID string, record domain.GameRecord) error
	// List returns at most MaxGameRecords records, newest first
	List(ctx context.Context, playerID string) ([]domain.GameRecord, error)
	// Clear drops every record kept for the player
	Clear(ctx context.Context, playerID string) error
}

// recordStoreImpl stores records as a capped JSON list in the cache
type recordStoreImpl struct {
	cache domain.Cache
	ttl   time.Duration
	group singleflight.Group // collapses concurrent reads of one player's list
}

// NewRecordStore returns a cache-backed store, or an in-memory one when cache is nil
func NewRecordStore(c domain.Cache, ttl time.Duration) RecordStore {
	if c == nil {
		logger.Get().Info("RecordStore initialized without cache. Records are kept in memory.")
		return NewMemoryRecordStore()
	}
	return &recordStoreImpl{
		cache: c,
		ttl:   ttl,
	}
}

func (s *recordStoreImpl) generateKey(playerID string) string {
	return cache.GenerateCacheKey("records", "player", playerID)
}

// Append pushes record onto the player's list and trims it to MaxGameRecords
func (s *recordStoreImpl) Append(ctx context.Context, playerID string, record domain.GameRecord) error {
	if playerID == "" {
		return domain.NewInvalidInputError("player id is required")
	}

	key := s.generateKey(playerID)
	data, err := json.Marshal(record)
	if err != nil {
		logger.Get().Error("Failed to marshal game record", zap.Error(err), zap.String("playerID", playerID))
		return domain.NewInternalError("failed to marshal game record", err)
	}

	if err := s.cache.PushCapped(ctx, key, string(data), domain.MaxGameRecords, s.ttl); err != nil {
		logger.Get().Error("Failed to store game record", zap.Error(err), zap.String("key", key))
		return domain.NewInternalError(fmt.Sprintf("failed to store game record for key %s", key), err)
	}
	logger.Get().Debug("Stored game record", zap.String("key", key), zap.Int("score", record.Score))
	return nil
}

// List reads the player's records. Entries that no longer decode are skipped.
func (s *recordStoreImpl) List(ctx context.Context, playerID string) ([]domain.GameRecord, error) {
	key := s.generateKey(playerID)
	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		return s.cache.ListRange(ctx, key)
	})
	if err != nil {
		logger.Get().Error("Failed to read game records", zap.Error(err), zap.String("key", key))
		return nil, domain.NewInternalError(fmt.Sprintf("failed to read game records for key %s", key), err)
	}
	if shared {
		logger.Get().Debug("Shared game record read", zap.String("key", key))
	}
	items := v.([]string)

	records := make([]domain.GameRecord, 0, len(items))
	for _, item := range items {
		var r domain.GameRecord
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			logger.Get().Warn("Skipping undecodable game record", zap.Error(err), zap.String("key", key))
			continue
		}
		records = append(records, r)
		if len(records) == domain.MaxGameRecords {
			break
		}
	}
	return records, nil
}

// Clear deletes the player's list
func (s *recordStoreImpl) Clear(ctx context.Context, playerID string) error {
	key := s.generateKey(playerID)
	if err := s.cache.Delete(ctx, key); err != nil {
		logger.Get().Error("Failed to clear game records", zap.Error(err), zap.String("key", key))
		return domain.NewInternalError(fmt.Sprintf("failed to clear game records for key %s", key), err)
	}
	return nil
}

// MemoryRecordStore is a process-local RecordStore
type MemoryRecordStore struct {
	mu      sync.Mutex
	records map[string][]domain.GameRecord
}

func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{records: make(map[string][]domain.GameRecord)}
}

func (m *MemoryRecordStore) Append(_ context.Context, playerID string, record domain.GameRecord) error {
	if playerID == "" {
		return domain.NewInvalidInputError("player id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[playerID] = domain.PrependRecord(m.records[playerID], record, domain.MaxGameRecords)
	return nil
}

func (m *MemoryRecordStore) List(_ context.Context, playerID string) ([]domain.GameRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyRecords(m.records[playerID], domain.MaxGameRecords), nil
}

func (m *MemoryRecordStore) Clear(_ context.Context, playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, playerID)
	return nil
}

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/annel0/celestial/internal/celestial"
)

// SnapshotStore хранит последнюю сводку неба мира для удалённых читателей.
type SnapshotStore interface {
	PutReport(ctx context.Context, worldID string, report celestial.Report) error
	GetReport(ctx context.Context, worldID string) (celestial.Report, error)
}

// ReportKey ключ сводки мира в кеше.
func ReportKey(worldID string) string {
	return "celestial:" + worldID + ":report"
}

// RepoSnapshotStore сериализует сводки в JSON поверх любого CacheRepo.
type RepoSnapshotStore struct {
	repo CacheRepo
	ttl  time.Duration
}

// NewSnapshotStore оборачивает CacheRepo. ttl = 0 — без истечения.
func NewSnapshotStore(repo CacheRepo, ttl time.Duration) *RepoSnapshotStore {
	return &RepoSnapshotStore{repo: repo, ttl: ttl}
}

// NewRedisSnapshotStore подключается к Redis и возвращает хранилище сводок.
func NewRedisSnapshotStore(config *CacheConfig, ttl time.Duration) (*RepoSnapshotStore, error) {
	rc, err := NewRedisCache(config)
	if err != nil {
		return nil, err
	}
	return NewSnapshotStore(rc, ttl), nil
}

// NewMemorySnapshotStore хранилище сводок в памяти процесса.
func NewMemorySnapshotStore(ttl time.Duration) *RepoSnapshotStore {
	return NewSnapshotStore(NewMemoryCache(), ttl)
}

func (s *RepoSnapshotStore) PutReport(ctx context.Context, worldID string, report celestial.Report) error {
	if worldID == "" {
		return ErrInvalidKey
	}
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return s.repo.Set(ctx, ReportKey(worldID), data, s.ttl)
}

// GetReport возвращает ErrCacheMiss если сводка ещё не записана.
func (s *RepoSnapshotStore) GetReport(ctx context.Context, worldID string) (celestial.Report, error) {
	var report celestial.Report
	if worldID == "" {
		return report, ErrInvalidKey
	}
	data, err := s.repo.Get(ctx, ReportKey(worldID))
	if err != nil {
		return report, err
	}
	if err := json.Unmarshal(data, &report); err != nil {
		return report, fmt.Errorf("unmarshal report: %w", err)
	}
	return report, nil
}

// TTL срок жизни записанной сводки, 0 — без истечения.
func (s *RepoSnapshotStore) TTL() time.Duration { return s.ttl }

// Metrics метрики нижележащего кеша.
func (s *RepoSnapshotStore) Metrics() *CacheMetrics { return s.repo.GetMetrics() }

// Close закрывает нижележащий кеш.
func (s *RepoSnapshotStore) Close() error { return s.repo.Close() }

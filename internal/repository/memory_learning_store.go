package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"MarketRadar/internal/domain/models"
	"MarketRadar/internal/domain/repository"
)

var errStoreClosed = errors.New("learning store closed")

// MemoryLearningStore keeps learning state in process memory.
type MemoryLearningStore struct {
	mu     sync.RWMutex
	nextID int64
	preds  []models.PredictionRecord
	stats  map[string]models.AssetLearningStats
	cfg    *models.LearningConfig
	closed bool
}

var _ repository.LearningStore = (*MemoryLearningStore)(nil)

func NewMemoryLearningStore() *MemoryLearningStore {
	return &MemoryLearningStore{stats: make(map[string]models.AssetLearningStats)}
}

func (s *MemoryLearningStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = false
	if s.stats == nil {
		s.stats = make(map[string]models.AssetLearningStats)
	}
	return nil
}

func (s *MemoryLearningStore) AppendPrediction(ctx context.Context, rec *models.PredictionRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, errStoreClosed
	}
	s.nextID++
	rec.ID = s.nextID
	s.preds = append(s.preds, clonePrediction(*rec))
	return rec.ID, nil
}

func (s *MemoryLearningStore) PredictionsBySymbol(ctx context.Context, symbol string) ([]models.PredictionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errStoreClosed
	}
	out := make([]models.PredictionRecord, 0)
	for _, p := range s.preds {
		if p.Symbol == symbol {
			out = append(out, clonePrediction(p))
		}
	}
	return out, nil
}

func (s *MemoryLearningStore) ResolvePrediction(ctx context.Context, id int64, actual float64, correct bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, errStoreClosed
	}
	for i := range s.preds {
		if s.preds[i].ID != id {
			continue
		}
		if s.preds[i].Reconciled() {
			return false, nil
		}
		s.preds[i].ActualPrice = &actual
		s.preds[i].Correct = &correct
		return true, nil
	}
	return false, repository.ErrNotFound
}

func (s *MemoryLearningStore) GetStats(ctx context.Context, symbol string) (*models.AssetLearningStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errStoreClosed
	}
	st, ok := s.stats[symbol]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &st, nil
}

func (s *MemoryLearningStore) PutStats(ctx context.Context, stats models.AssetLearningStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errStoreClosed
	}
	s.stats[stats.Symbol] = stats
	return nil
}

func (s *MemoryLearningStore) AllStats(ctx context.Context) ([]models.AssetLearningStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errStoreClosed
	}
	out := make([]models.AssetLearningStats, 0, len(s.stats))
	for _, st := range s.stats {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (s *MemoryLearningStore) GetConfig(ctx context.Context) (*models.LearningConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errStoreClosed
	}
	if s.cfg == nil {
		return nil, repository.ErrNotFound
	}
	cfg := *s.cfg
	return &cfg, nil
}

func (s *MemoryLearningStore) PutConfig(ctx context.Context, cfg models.LearningConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errStoreClosed
	}
	s.cfg = &cfg
	return nil
}

func (s *MemoryLearningStore) DeletePredictionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, errStoreClosed
	}
	kept := s.preds[:0]
	var removed int64
	for _, p := range s.preds {
		if p.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, p)
	}
	s.preds = kept
	return removed, nil
}

// Destroy drops everything; the store is usable again after Init.
func (s *MemoryLearningStore) Destroy(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preds = nil
	s.stats = make(map[string]models.AssetLearningStats)
	s.cfg = nil
	s.nextID = 0
	return nil
}

func (s *MemoryLearningStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func clonePrediction(p models.PredictionRecord) models.PredictionRecord {
	if p.ActualPrice != nil {
		v := *p.ActualPrice
		p.ActualPrice = &v
	}
	if p.Correct != nil {
		v := *p.Correct
		p.Correct = &v
	}
	return p
}

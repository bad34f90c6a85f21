package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"looprec/backend/internal/models"
)

// RecordingStore keeps saved recordings.
type RecordingStore interface {
	Create(ctx context.Context, rec *models.Recording) error
	Get(ctx context.Context, id uint) (*models.Recording, error)
	List(ctx context.Context, page, pageSize int) ([]models.Recording, int64, error)
}

// Recordings is the active store; InitDatabase switches it to MySQL.
var Recordings RecordingStore = NewMemoryRecordingStore()

type GormRecordingStore struct {
	db *gorm.DB
}

func NewGormRecordingStore(db *gorm.DB) *GormRecordingStore {
	return &GormRecordingStore{db: db}
}

func (s *GormRecordingStore) Create(ctx context.Context, rec *models.Recording) error {
	return s.db.WithContext(ctx).Create(rec).Error
}

func (s *GormRecordingStore) Get(ctx context.Context, id uint) (*models.Recording, error) {
	var rec models.Recording
	if err := s.db.WithContext(ctx).Where("status = ?", 1).First(&rec, id).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *GormRecordingStore) List(ctx context.Context, page, pageSize int) ([]models.Recording, int64, error) {
	var total int64
	query := s.db.WithContext(ctx).Model(&models.Recording{}).Where("status = ?", 1)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var recs []models.Recording
	err := query.Order("created_at DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&recs).Error
	return recs, total, err
}

// MemoryRecordingStore serves when no database is configured.
type MemoryRecordingStore struct {
	mu     sync.RWMutex
	nextID uint
	recs   map[uint]models.Recording
}

func NewMemoryRecordingStore() *MemoryRecordingStore {
	return &MemoryRecordingStore{recs: make(map[uint]models.Recording)}
}

func (s *MemoryRecordingStore) Create(ctx context.Context, rec *models.Recording) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	now := time.Now()
	rec.ID = s.nextID
	rec.CreatedAt, rec.UpdatedAt = now, now
	s.recs[rec.ID] = *rec
	return nil
}

func (s *MemoryRecordingStore) Get(ctx context.Context, id uint) (*models.Recording, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.recs[id]
	if !ok || rec.Status != 1 {
		return nil, gorm.ErrRecordNotFound
	}
	return &rec, nil
}

// List returns newest first.
func (s *MemoryRecordingStore) List(ctx context.Context, page, pageSize int) ([]models.Recording, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	all := make([]models.Recording, 0, len(s.recs))
	for _, r := range s.recs {
		if r.Status == 1 {
			all = append(all, r)
		}
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := int64(len(all))
	start := (page - 1) * pageSize
	if start >= len(all) {
		return []models.Recording{}, total, nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

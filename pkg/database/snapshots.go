package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"looprec/backend/internal/actionlog"
	"looprec/backend/internal/models"
)

// ActionStore keeps the latest snapshot of each capture session in MySQL.
type ActionStore struct {
	db *gorm.DB
}

var _ actionlog.Store = (*ActionStore)(nil)

func NewActionStore(db *gorm.DB) *ActionStore {
	return &ActionStore{db: db}
}

func (s *ActionStore) Put(ctx context.Context, key string, rec actionlog.Record) error {
	data, err := actionlog.EncodeActions(rec.Actions)
	if err != nil {
		return err
	}
	row := models.SessionSnapshot{
		Key:       key,
		BaseURL:   rec.BaseURL,
		Recording: rec.Recording,
		Actions:   string(data),
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"base_url", "recording", "actions", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to store snapshot %s: %w", key, err)
	}
	return nil
}

func (s *ActionStore) Get(ctx context.Context, key string) (actionlog.Record, error) {
	var row models.SessionSnapshot
	err := s.db.WithContext(ctx).Where("`key` = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return actionlog.Record{}, actionlog.ErrNotFound
	}
	if err != nil {
		return actionlog.Record{}, err
	}
	rec, err := actionlog.Decode([]byte(row.Actions))
	if err != nil {
		return actionlog.Record{}, err
	}
	rec.BaseURL = row.BaseURL
	rec.Recording = row.Recording
	return rec, nil
}

package models

import (
	"time"

	"gorm.io/gorm"

	"looprec/backend/internal/actionlog"
)

type BaseModel struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// Device is a viewport and user agent preset for recording browsers.
type Device struct {
	BaseModel
	Name      string `json:"name" gorm:"size:100;not null"`
	Width     int    `json:"width" gorm:"not null"`
	Height    int    `json:"height" gorm:"not null"`
	UserAgent string `json:"user_agent" gorm:"size:500"`
	IsDefault bool   `json:"is_default" gorm:"default:false"`
	Status    int    `json:"status" gorm:"default:1"`
}

// Recording is a saved capture session.
type Recording struct {
	BaseModel
	Name        string `json:"name" gorm:"size:200;not null"`
	Description string `json:"description" gorm:"size:1000"`
	SessionID   string `json:"session_id" gorm:"size:64;index"`
	BaseURL     string `json:"base_url" gorm:"size:500"`
	Actions     string `json:"-" gorm:"type:longtext"` // JSON action log
	ActionCount int    `json:"action_count"`
	LoopCount   int    `json:"loop_count"`
	Status      int    `json:"status" gorm:"default:1"` // 1:active, 0:archived
}

// SessionSnapshot is the latest persisted state of a capture session's log.
type SessionSnapshot struct {
	BaseModel
	Key       string `json:"key" gorm:"size:64;uniqueIndex;not null"`
	BaseURL   string `json:"base_url" gorm:"size:500"`
	Recording bool   `json:"is_recording"`
	Actions   string `json:"-" gorm:"type:longtext"`
}

// NewRecording builds a Recording row from a session record.
func NewRecording(name, description, sessionID string, rec actionlog.Record) (*Recording, error) {
	data, err := actionlog.EncodeActions(rec.Actions)
	if err != nil {
		return nil, err
	}
	loops := 0
	for _, a := range rec.Actions {
		if a.Kind == actionlog.KindTableLoopStart {
			loops++
		}
	}
	return &Recording{
		Name:        name,
		Description: description,
		SessionID:   sessionID,
		BaseURL:     rec.BaseURL,
		Actions:     string(data),
		ActionCount: len(rec.Actions),
		LoopCount:   loops,
		Status:      1,
	}, nil
}

// GetRecord decodes the stored action log.
func (r *Recording) GetRecord() (actionlog.Record, error) {
	if r.Actions == "" {
		return actionlog.Record{BaseURL: r.BaseURL, Actions: []actionlog.Action{}}, nil
	}
	rec, err := actionlog.Decode([]byte(r.Actions))
	if err != nil {
		return actionlog.Record{}, err
	}
	rec.BaseURL = r.BaseURL
	return rec, nil
}

// DefaultDevices are the presets seeded into a fresh database and used when
// no database is configured. IDs follow seeding order.
func DefaultDevices() []Device {
	return []Device{
		{
			BaseModel: BaseModel{ID: 1},
			Name:      "Desktop 1920x1080",
			Width:     1920,
			Height:    1080,
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			IsDefault: true,
			Status:    1,
		},
		{
			BaseModel: BaseModel{ID: 2},
			Name:      "Laptop 1366x768",
			Width:     1366,
			Height:    768,
			IsDefault: false,
			Status:    1,
		},
		{
			BaseModel: BaseModel{ID: 3},
			Name:      "iPad Pro",
			Width:     1024,
			Height:    1366,
			UserAgent: "Mozilla/5.0 (iPad; CPU OS 14_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0 Mobile/15E148 Safari/604.1",
			IsDefault: false,
			Status:    1,
		},
	}
}

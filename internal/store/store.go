// Package store archives created sessions in Postgres so past sessions can
// be listed after the live registry evicts them. The engine never depends on
// it; the registry calls through the Archiver interface and tolerates every
// failure here.
package store

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/planningpoker/backend/internal/session"
)

// Record is the durable row for one created session.
type Record struct {
	ID          uint   `gorm:"primaryKey"`
	Code        string `gorm:"uniqueIndex;size:12"`
	Name        string `gorm:"size:64"`
	Description string `gorm:"size:1024"`
	Estimates   string `gorm:"size:256"`
	Author      string `gorm:"size:64;index"`
	CreatedAt   time.Time
}

func (Record) TableName() string { return "sessions" }

type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

// Open connects and migrates the sessions table.
func Open(dsn string, log *zap.Logger) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("opening archive database: %w", err)
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("migrating archive schema: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

// SaveSession records a freshly created session.
func (s *Store) SaveSession(v session.View) error {
	rec := Record{
		Code:        v.Code,
		Name:        v.Name,
		Description: v.Description,
		Estimates:   v.Deck.Spec(),
		Author:      v.Author,
		CreatedAt:   v.CreatedAt,
	}
	if err := s.db.Create(&rec).Error; err != nil {
		return fmt.Errorf("saving session %s: %w", v.Code, err)
	}
	return nil
}

// DeleteSession drops the archive row for an explicitly deleted session.
// Idle-swept sessions keep their rows; only deliberate deletion erases them.
func (s *Store) DeleteSession(code string) error {
	if err := s.db.Where("code = ?", code).Delete(&Record{}).Error; err != nil {
		return fmt.Errorf("deleting session %s: %w", code, err)
	}
	return nil
}

// ListRecent returns up to limit sessions, newest first.
func (s *Store) ListRecent(limit int) ([]Record, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var recs []Record
	if err := s.db.Order("created_at DESC").Limit(limit).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	return recs, nil
}

// ListByAuthor returns the sessions a given author created, newest first.
func (s *Store) ListByAuthor(author string, limit int) ([]Record, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var recs []Record
	err := s.db.Where("author = ?", author).Order("created_at DESC").Limit(limit).Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("listing sessions for %s: %w", author, err)
	}
	return recs, nil
}

package localstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Record names for the independent fallback namespaces. Each namespace is a
// single JSON document overwritten as a whole; there is no partial update at
// this layer.
const (
	recordSession  = "session"
	recordComments = "comments"
	recordLikes    = "likes"
)

// Record is one persisted fallback document.
type Record struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	PayloadJSON      string `gorm:"column:payload_json;type:text;not null"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Record) TableName() string {
	return "fallback_records"
}

// Store persists the session record and the social fallback namespaces in an
// embedded SQLite database. Reads tolerate absent or corrupt payloads by
// yielding safe defaults; only writes can fail.
type Store struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

// StoreConfig describes the dependencies for a Store.
type StoreConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Open establishes the SQLite connection, migrates the schema and returns the
// fallback store.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("localstore: database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("fallback store initialized", zap.String("path", path))
	}

	return NewStore(StoreConfig{Database: db, Logger: logger})
}

// NewStore wraps an existing database handle.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("localstore: database handle is required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: cfg.Database, clock: clock, logger: logger}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetRecord returns the raw payload for the named record. The second return
// is false when the record is absent or unreadable.
func (s *Store) GetRecord(name string) ([]byte, bool) {
	var record Record
	err := s.db.Where("name = ?", name).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false
	}
	if err != nil {
		s.logger.Debug("fallback record read failed", zap.String("record", name), zap.Error(err))
		return nil, false
	}
	return []byte(record.PayloadJSON), true
}

// SetRecord overwrites the named record with the provided payload.
func (s *Store) SetRecord(name string, payload []byte) error {
	record := Record{
		Name:             name,
		PayloadJSON:      string(payload),
		UpdatedAtSeconds: s.clock().UTC().Unix(),
	}
	return s.db.Save(&record).Error
}

// DeleteRecord removes the named record. Deleting an absent record is a no-op.
func (s *Store) DeleteRecord(name string) error {
	return s.db.Where("name = ?", name).Delete(&Record{}).Error
}

// loadNamespace decodes a whole JSON namespace into out. It reports whether
// the decode fully succeeded; callers fall back to their empty default when
// it did not, so a corrupt record never surfaces partial content.
func (s *Store) loadNamespace(name string, out any) bool {
	payload, ok := s.GetRecord(name)
	if !ok {
		return false
	}
	if err := json.Unmarshal(payload, out); err != nil {
		s.logger.Debug("fallback record corrupt, treating as empty",
			zap.String("record", name), zap.Error(err))
		return false
	}
	return true
}

func (s *Store) saveNamespace(name string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("localstore: encode %s: %w", name, err)
	}
	return s.SetRecord(name, payload)
}

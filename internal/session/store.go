package session

import (
	"encoding/json"
	"errors"

	"go.uber.org/zap"
)

const recordName = "session"

var errMissingPersistence = errors.New("session: persistence is required")

// Persistence is the record-level storage the store writes through. The
// fallback store satisfies it.
type Persistence interface {
	GetRecord(name string) ([]byte, bool)
	SetRecord(name string, payload []byte) error
	DeleteRecord(name string) error
}

// StoreConfig describes the dependencies for a Store.
type StoreConfig struct {
	Records Persistence
	Logger  *zap.Logger
}

// Store owns the persisted session record.
type Store struct {
	records Persistence
	logger  *zap.Logger
}

// NewStore constructs the session store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Records == nil {
		return nil, errMissingPersistence
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{records: cfg.Records, logger: logger}, nil
}

// Read returns the persisted session. Absent records, unparseable content and
// records missing the access token or user id all yield (Session{}, false);
// Read never fails.
func (s *Store) Read() (Session, bool) {
	payload, ok := s.records.GetRecord(recordName)
	if !ok {
		return Session{}, false
	}

	var parsed Session
	if err := json.Unmarshal(payload, &parsed); err != nil {
		s.logger.Debug("session record unreadable", zap.Error(err))
		return Session{}, false
	}
	if !parsed.Valid() {
		return Session{}, false
	}
	return parsed, true
}

// Write replaces the persisted session record.
func (s *Store) Write(sess Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.records.SetRecord(recordName, payload)
}

// Clear removes the persisted session record. Idempotent.
func (s *Store) Clear() error {
	return s.records.DeleteRecord(recordName)
}

// CurrentUser derives the projection used across the social features. The
// second return is false without a valid session.
func (s *Store) CurrentUser() (CurrentUser, bool) {
	sess, ok := s.Read()
	if !ok {
		return CurrentUser{}, false
	}
	return CurrentUser{
		ID:    sess.User.ID,
		Email: sess.User.Email,
		Name:  sess.User.DisplayName(),
	}, true
}

// AccessToken returns the current bearer token, or "" when logged out.
func (s *Store) AccessToken() string {
	sess, ok := s.Read()
	if !ok {
		return ""
	}
	return sess.AccessToken
}

package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/contextgate/contextgate/types"
)

// sessionRecord is the database row: the session serialized as JSON plus
// the columns the sweep queries on.
type sessionRecord struct {
	Key       string    `gorm:"primaryKey;column:key"`
	Data      []byte    `gorm:"column:data"`
	UpdatedAt time.Time `gorm:"column:updated_at;index"`
}

func (sessionRecord) TableName() string { return "sessions" }

// SQLiteStore persists sessions in a local SQLite database, useful for
// single-node deployments that need durability without Redis.
type SQLiteStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, storeUnavailable("sqlite open failed", err)
	}
	if err := db.AutoMigrate(&sessionRecord{}); err != nil {
		return nil, storeUnavailable("sqlite migration failed", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (*Session, error) {
	var rec sessionRecord
	err := s.db.WithContext(ctx).First(&rec, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeUnavailable("sqlite get failed", err)
	}

	var sess Session
	if err := json.Unmarshal(rec.Data, &sess); err != nil {
		return nil, storeUnavailable("corrupt session record", err)
	}
	return &sess, nil
}

func (s *SQLiteStore) Set(ctx context.Context, sess *Session, _ time.Duration) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return types.NewError(types.ErrInternalError, "session encode failed").WithCause(err)
	}
	rec := sessionRecord{Key: sess.Key(), Data: raw, UpdatedAt: sess.UpdatedAt}
	if err := s.db.WithContext(ctx).Save(&rec).Error; err != nil {
		return storeUnavailable("sqlite set failed", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Delete(&sessionRecord{}, "key = ?", key).Error; err != nil {
		return storeUnavailable("sqlite delete failed", err)
	}
	return nil
}

func (s *SQLiteStore) SweepExpired(ctx context.Context, ttl time.Duration) ([]string, error) {
	cutoff := s.now().Add(-ttl)

	var keys []string
	err := s.db.WithContext(ctx).
		Model(&sessionRecord{}).
		Where("updated_at < ?", cutoff).
		Pluck("key", &keys).Error
	if err != nil {
		return nil, storeUnavailable("sqlite sweep query failed", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	err = s.db.WithContext(ctx).
		Where("updated_at < ?", cutoff).
		Delete(&sessionRecord{}).Error
	if err != nil {
		return nil, storeUnavailable("sqlite sweep delete failed", err)
	}
	return keys, nil
}

func (s *SQLiteStore) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

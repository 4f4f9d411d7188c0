package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/legit-games/oidc-core/models"
)

// PersistedGrantRecord the persisted_grants table row
type PersistedGrantRecord struct {
	Key          string     `gorm:"column:key;primaryKey;size:200"`
	Type         string     `gorm:"column:grant_type;size:50;index"`
	SubjectID    string     `gorm:"column:subject_id;size:200;index:idx_persisted_grants_sub_client"`
	SessionID    string     `gorm:"column:session_id;size:100;index"`
	ClientID     string     `gorm:"column:client_id;size:200;index:idx_persisted_grants_sub_client"`
	Description  string     `gorm:"column:description;size:200"`
	CreationTime time.Time  `gorm:"column:creation_time"`
	Expiration   *time.Time `gorm:"column:expiration;index"`
	ConsumedTime *time.Time `gorm:"column:consumed_time"`
	Data         string     `gorm:"column:data"`
}

// TableName gorm table name
func (PersistedGrantRecord) TableName() string { return "persisted_grants" }

// NewDBGrantStore create a Postgres-backed persisted grant store.
func NewDBGrantStore(db *gorm.DB) *DBGrantStore { return &DBGrantStore{DB: db} }

// OpenDBGrantStore opens a Postgres connection and returns the store.
func OpenDBGrantStore(dsn string) (*DBGrantStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return NewDBGrantStore(db), nil
}

// DBGrantStore gorm persisted grant store
type DBGrantStore struct{ DB *gorm.DB }

// Store upserts the grant by key.
func (s *DBGrantStore) Store(ctx context.Context, grant *models.PersistedGrant) error {
	rec := PersistedGrantRecord{
		Key:          grant.Key,
		Type:         grant.Type,
		SubjectID:    grant.SubjectID,
		SessionID:    grant.SessionID,
		ClientID:     grant.ClientID,
		Description:  grant.Description,
		CreationTime: grant.CreationTime,
		Expiration:   grant.Expiration,
		ConsumedTime: grant.ConsumedTime,
		Data:         grant.Data,
	}
	return s.DB.WithContext(ctx).Save(&rec).Error
}

// Get returns the grant or (nil, nil). Expired rows are treated as absent;
// a background job prunes them.
func (s *DBGrantStore) Get(ctx context.Context, key string) (*models.PersistedGrant, error) {
	var rec PersistedGrantRecord
	err := s.DB.WithContext(ctx).Where("key = ?", key).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if rec.Expiration != nil && rec.Expiration.Before(time.Now()) {
		return nil, nil
	}
	return recordToGrant(&rec), nil
}

// GetAll returns all grants matching the filter.
func (s *DBGrantStore) GetAll(ctx context.Context, filter models.PersistedGrantFilter) ([]*models.PersistedGrant, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	var recs []PersistedGrantRecord
	if err := s.filtered(ctx, filter).Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]*models.PersistedGrant, 0, len(recs))
	for i := range recs {
		out = append(out, recordToGrant(&recs[i]))
	}
	return out, nil
}

// Remove deletes the grant by key.
func (s *DBGrantStore) Remove(ctx context.Context, key string) error {
	return s.DB.WithContext(ctx).Where("key = ?", key).Delete(&PersistedGrantRecord{}).Error
}

// RemoveAll deletes all grants matching the filter.
func (s *DBGrantStore) RemoveAll(ctx context.Context, filter models.PersistedGrantFilter) error {
	if err := filter.Validate(); err != nil {
		return err
	}
	return s.filtered(ctx, filter).Delete(&PersistedGrantRecord{}).Error
}

// RemoveExpired prunes all rows whose expiration has passed.
func (s *DBGrantStore) RemoveExpired(ctx context.Context) error {
	return s.DB.WithContext(ctx).
		Where("expiration IS NOT NULL AND expiration < ?", time.Now()).
		Delete(&PersistedGrantRecord{}).Error
}

func (s *DBGrantStore) filtered(ctx context.Context, filter models.PersistedGrantFilter) *gorm.DB {
	q := s.DB.WithContext(ctx).Model(&PersistedGrantRecord{})
	if filter.SubjectID != "" {
		q = q.Where("subject_id = ?", filter.SubjectID)
	}
	if filter.SessionID != "" {
		q = q.Where("session_id = ?", filter.SessionID)
	}
	if filter.ClientID != "" {
		q = q.Where("client_id = ?", filter.ClientID)
	}
	if filter.Type != "" {
		q = q.Where("grant_type = ?", filter.Type)
	}
	return q
}

func recordToGrant(rec *PersistedGrantRecord) *models.PersistedGrant {
	return &models.PersistedGrant{
		Key:          rec.Key,
		Type:         rec.Type,
		SubjectID:    rec.SubjectID,
		SessionID:    rec.SessionID,
		ClientID:     rec.ClientID,
		Description:  rec.Description,
		CreationTime: rec.CreationTime,
		Expiration:   rec.Expiration,
		ConsumedTime: rec.ConsumedTime,
		Data:         rec.Data,
	}
}

// ClientRecord the oauth_clients table row; configuration is stored as a
// single JSON document.
type ClientRecord struct {
	ID      string `gorm:"column:id;primaryKey;size:200"`
	Enabled bool   `gorm:"column:enabled"`
	Data    string `gorm:"column:data;type:jsonb"`
}

// TableName gorm table name
func (ClientRecord) TableName() string { return "oauth_clients" }

// NewDBClientStore create a Postgres-backed client store.
func NewDBClientStore(db *gorm.DB) *DBClientStore { return &DBClientStore{DB: db} }

// DBClientStore gorm client store
type DBClientStore struct{ DB *gorm.DB }

// Upsert creates or updates a client row.
func (s *DBClientStore) Upsert(ctx context.Context, c *models.Client) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	rec := ClientRecord{ID: c.ClientID, Enabled: c.Enabled, Data: string(data)}
	return s.DB.WithContext(ctx).Save(&rec).Error
}

// FindClientByID returns the client or (nil, nil).
func (s *DBClientStore) FindClientByID(ctx context.Context, id string) (*models.Client, error) {
	var rec ClientRecord
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var c models.Client
	if err := json.Unmarshal([]byte(rec.Data), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Remove deletes a client row.
func (s *DBClientStore) Remove(ctx context.Context, id string) error {
	return s.DB.WithContext(ctx).Where("id = ?", id).Delete(&ClientRecord{}).Error
}

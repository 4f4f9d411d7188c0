package store

import (
	"context"
	"crypto/rand"
	"math/big"

	"github.com/legit-games/oidc-core/models"
)

// DeviceFlowStore persistence of device authorizations, addressable both by
// the device code handle and the short user code.
type DeviceFlowStore struct {
	byDeviceCode *GrantStore[models.DeviceCode]
	byUserCode   *GrantStore[models.DeviceCode]
}

// NewDeviceFlowStore create a device flow store
func NewDeviceFlowStore(grants PersistedGrantStore) *DeviceFlowStore {
	return &DeviceFlowStore{
		byDeviceCode: NewGrantStore[models.DeviceCode](GrantTypeDeviceCode, grants),
		byUserCode:   NewGrantStore[models.DeviceCode](GrantTypeUserCode, grants),
	}
}

func deviceMetadata(code *models.DeviceCode) GrantMetadata {
	meta := GrantMetadata{
		ClientID:     code.ClientID,
		Description:  code.Description,
		CreationTime: code.CreationTime,
		Lifetime:     code.Lifetime,
	}
	if code.Subject != nil {
		meta.SubjectID = code.Subject.SubjectID
		meta.SessionID = code.Subject.SessionID
	}
	return meta
}

// StoreDeviceAuthorization stores the record and returns the device code
// handle. The record's UserCode must already be set.
func (s *DeviceFlowStore) StoreDeviceAuthorization(ctx context.Context, code *models.DeviceCode) (string, error) {
	handle, err := s.byDeviceCode.CreateItem(ctx, code, deviceMetadata(code))
	if err != nil {
		return "", err
	}
	if err := s.byUserCode.StoreItem(ctx, code.UserCode, code, deviceMetadata(code)); err != nil {
		return "", err
	}
	return handle, nil
}

// FindByDeviceCode returns the record for the device code handle, or (nil, nil).
func (s *DeviceFlowStore) FindByDeviceCode(ctx context.Context, deviceCode string) (*models.DeviceCode, error) {
	return s.byDeviceCode.GetItem(ctx, deviceCode)
}

// FindByUserCode returns the record for the user code, or (nil, nil).
func (s *DeviceFlowStore) FindByUserCode(ctx context.Context, userCode string) (*models.DeviceCode, error) {
	return s.byUserCode.GetItem(ctx, userCode)
}

// UpdateByUserCode replaces the record addressed by its user code and keeps
// the device code view in sync. deviceCode is the original handle.
func (s *DeviceFlowStore) UpdateByUserCode(ctx context.Context, deviceCode string, code *models.DeviceCode) error {
	if err := s.byUserCode.StoreItem(ctx, code.UserCode, code, deviceMetadata(code)); err != nil {
		return err
	}
	return s.byDeviceCode.StoreItem(ctx, deviceCode, code, deviceMetadata(code))
}

// RemoveByDeviceCode deletes both views of the record.
func (s *DeviceFlowStore) RemoveByDeviceCode(ctx context.Context, deviceCode string) error {
	record, err := s.byDeviceCode.GetItem(ctx, deviceCode)
	if err != nil {
		return err
	}
	if record != nil && record.UserCode != "" {
		if err := s.byUserCode.RemoveItem(ctx, record.UserCode); err != nil {
			return err
		}
	}
	return s.byDeviceCode.RemoveItem(ctx, deviceCode)
}

const userCodeAlphabet = "0123456789"

// GenerateUserCode returns a numeric user code of the given length.
func GenerateUserCode(length int) (string, error) {
	if length <= 0 {
		length = 8
	}
	out := make([]byte, length)
	max := big.NewInt(int64(len(userCodeAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = userCodeAlphabet[n.Int64()]
	}
	return string(out), nil
}

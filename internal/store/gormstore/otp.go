package gormstore

import (
	"context"
	"time"

	"github.com/MarkoPoloResearchLab/internboard/internal/accounts"
	"gorm.io/gorm"
)

// OTPStore keeps one-time passwords in the users table. A user holds at most one
// outstanding code; saving a new one replaces the previous code.
type OTPStore struct {
	db    *gorm.DB
	nowFn func() time.Time
}

// NewOTPStore returns an OTPStore backed by gorm.DB.
func NewOTPStore(db *gorm.DB, now func() time.Time) *OTPStore {
	if now == nil {
		now = time.Now
	}
	return &OTPStore{db: db, nowFn: now}
}

// Save stores code for email until ttl elapses.
func (store *OTPStore) Save(ctx context.Context, email string, purpose accounts.OTPPurpose, code string, ttl time.Duration) error {
	expiresAt := store.nowFn().UTC().Add(ttl)
	result := store.db.WithContext(ctx).
		Model(&User{}).
		Where("email = ?", email).
		Updates(map[string]interface{}{
			"otp":            code,
			"otp_purpose":    purpose.String(),
			"otp_expires_at": expiresAt,
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectOTP, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectOTP, errorCodeUpdate, accounts.ErrUserNotFound)
	}
	return nil
}

// Consume clears a matching, unexpired code in a single conditional update.
func (store *OTPStore) Consume(ctx context.Context, email string, purpose accounts.OTPPurpose, code string) error {
	if code == "" {
		return accounts.ErrInvalidOTP
	}
	result := store.db.WithContext(ctx).
		Model(&User{}).
		Where("email = ? AND otp = ? AND otp_purpose = ? AND otp_expires_at > ?", email, code, purpose.String(), store.nowFn().UTC()).
		Updates(map[string]interface{}{
			"otp":            nil,
			"otp_purpose":    nil,
			"otp_expires_at": nil,
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectOTP, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return accounts.ErrInvalidOTP
	}
	return nil
}

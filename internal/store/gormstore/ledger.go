package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarkoPoloResearchLab/internboard/pkg/credits"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerStore implements credits.Store over the users and credit_events tables.
type LedgerStore struct {
	db *gorm.DB
}

// NewLedgerStore returns a LedgerStore backed by gorm.DB.
func NewLedgerStore(db *gorm.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// WithTx executes fn within a transaction.
func (store *LedgerStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore credits.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &LedgerStore{db: transaction})
	})
}

// LockAccount reads the account row with SELECT ... FOR UPDATE. SQLite ignores the
// locking clause and relies on its single writer instead.
func (store *LedgerStore) LockAccount(ctx context.Context, accountID credits.AccountID) (credits.Account, error) {
	if !isRowID(accountID.String()) {
		return credits.Account{}, wrapStoreError(errorSubjectCredits, errorCodeLock, credits.ErrAccountNotFound)
	}
	var model User
	err := store.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", accountID.String()).
		Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return credits.Account{}, wrapStoreError(errorSubjectCredits, errorCodeLock, credits.ErrAccountNotFound)
	}
	if err != nil {
		return credits.Account{}, wrapStoreError(errorSubjectCredits, errorCodeLock, err)
	}
	return mapAccount(model)
}

// ResetCredits writes the refilled balance and refill timestamp together.
func (store *LedgerStore) ResetCredits(ctx context.Context, accountID credits.AccountID, balance int64, refilledAt time.Time) error {
	if balance < 0 {
		return fmt.Errorf("%w: %d", credits.ErrInvalidAmount, balance)
	}
	result := store.db.WithContext(ctx).
		Model(&User{}).
		Where("user_id = ?", accountID.String()).
		Updates(map[string]interface{}{
			"credits":            balance,
			"last_credit_refill": refilledAt.UTC(),
		})
	if result.Error != nil {
		return wrapStoreError(errorSubjectCredits, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectCredits, errorCodeUpdate, credits.ErrAccountNotFound)
	}
	return nil
}

// DebitCredits subtracts amount only while the balance covers it.
func (store *LedgerStore) DebitCredits(ctx context.Context, accountID credits.AccountID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: %d", credits.ErrInvalidAmount, amount)
	}
	result := store.db.WithContext(ctx).
		Model(&User{}).
		Where("user_id = ? AND credits >= ?", accountID.String(), amount).
		Update("credits", gorm.Expr("credits - ?", amount))
	if result.Error != nil {
		return 0, wrapStoreError(errorSubjectCredits, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		balance, err := store.balance(ctx, accountID)
		if err != nil {
			return 0, err
		}
		return balance, credits.ErrInsufficientCredits
	}
	return store.balance(ctx, accountID)
}

// AddCredits adds amount to the balance.
func (store *LedgerStore) AddCredits(ctx context.Context, accountID credits.AccountID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: %d", credits.ErrInvalidAmount, amount)
	}
	result := store.db.WithContext(ctx).
		Model(&User{}).
		Where("user_id = ?", accountID.String()).
		Update("credits", gorm.Expr("credits + ?", amount))
	if result.Error != nil {
		return 0, wrapStoreError(errorSubjectCredits, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, wrapStoreError(errorSubjectCredits, errorCodeUpdate, credits.ErrAccountNotFound)
	}
	return store.balance(ctx, accountID)
}

// InsertEvent appends a credit event.
func (store *LedgerStore) InsertEvent(ctx context.Context, event credits.Event) error {
	model := CreditEvent{
		UserID:       event.AccountID.String(),
		Type:         event.Type.String(),
		Amount:       event.Amount,
		BalanceAfter: event.BalanceAfter,
		Reference:    event.Reference,
		CreatedAt:    timeOrNow(event.CreatedAt),
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return wrapStoreError(errorSubjectEvent, errorCodeInsert, err)
	}
	return nil
}

// ListEvents returns the newest events first.
func (store *LedgerStore) ListEvents(ctx context.Context, accountID credits.AccountID, limit int) ([]credits.Event, error) {
	var rows []CreditEvent
	err := store.db.WithContext(ctx).
		Where("user_id = ?", accountID.String()).
		Order("created_at DESC").
		Order("event_id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectEvent, errorCodeList, err)
	}
	events := make([]credits.Event, 0, len(rows))
	for _, row := range rows {
		event, err := mapCreditEvent(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectEvent, errorCodeInvalid, err)
		}
		events = append(events, event)
	}
	return events, nil
}

func (store *LedgerStore) balance(ctx context.Context, accountID credits.AccountID) (int64, error) {
	var model User
	err := store.db.WithContext(ctx).Select("credits").Where("user_id = ?", accountID.String()).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, wrapStoreError(errorSubjectCredits, errorCodeGet, credits.ErrAccountNotFound)
	}
	if err != nil {
		return 0, wrapStoreError(errorSubjectCredits, errorCodeGet, err)
	}
	return model.Credits, nil
}

package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarkoPoloResearchLab/internboard/pkg/credits"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgCheckViolationCode    = "23514"
	constraintNonNegative   = "chk_users_credits_non_negative"
	errorOperationStore     = "store"
	errorSubjectCredits     = "credits"
	errorSubjectEvent       = "credit_event"
	errorSubjectTransaction = "transaction"
	errorCodeBegin          = "begin"
	errorCodeCommit         = "commit"
	errorCodeLock           = "lock"
	errorCodeGet            = "get"
	errorCodeUpdate         = "update"
	errorCodeInsert         = "insert"
	errorCodeList           = "list"
	errorCodeInvalid        = "invalid"

	sqlLockAccount = `
		select user_id::text, role, is_premium, credits, last_credit_refill
		from users
		where user_id = $1
		for update
	`

	sqlSelectBalance = `select credits from users where user_id = $1`

	sqlResetCredits = `
		update users set credits = $2, last_credit_refill = $3, updated_at = now()
		where user_id = $1
	`

	sqlDebitCredits = `
		update users set credits = credits - $2, updated_at = now()
		where user_id = $1 and credits >= $2
		returning credits
	`

	sqlAddCredits = `
		update users set credits = credits + $2, updated_at = now()
		where user_id = $1
		returning credits
	`

	sqlInsertEvent = `
		insert into credit_events(user_id, type, amount, balance_after, reference, created_at)
		values ($1, $2, $3, $4, $5, $6)
	`

	sqlListEvents = `
		select user_id::text, type, amount, balance_after, reference, created_at
		from credit_events
		where user_id = $1
		order by created_at desc, event_id desc
		limit $2
	`
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row
}

// Store implements credits.Store with a pgx pool over the users and credit_events tables.
// Outside WithTx every statement autocommits.
type Store struct {
	pool *pgxpool.Pool
	db   querier
	inTx bool
}

// New returns a Store backed by a pgx pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, db: pool}
}

// Open connects a pool to a postgres DSN and verifies it answers.
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgx ping: %w", err)
	}
	return pool, nil
}

// WithTx runs fn inside one transaction. Nested calls reuse the open transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore credits.Store) error) error {
	if store.inTx {
		return fn(ctx, store)
	}
	tx, err := store.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeBegin, err)
	}
	if err := fn(ctx, &Store{pool: store.pool, db: tx, inTx: true}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeCommit, err)
	}
	return nil
}

func (store *Store) LockAccount(ctx context.Context, accountID credits.AccountID) (credits.Account, error) {
	if !isRowID(accountID) {
		return credits.Account{}, wrapStoreError(errorSubjectCredits, errorCodeLock, credits.ErrAccountNotFound)
	}
	var (
		userIDValue string
		roleValue   string
		account     credits.Account
	)
	err := store.db.QueryRow(ctx, sqlLockAccount, accountID.String()).Scan(
		&userIDValue,
		&roleValue,
		&account.IsPremium,
		&account.Credits,
		&account.LastCreditRefill,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return credits.Account{}, wrapStoreError(errorSubjectCredits, errorCodeLock, credits.ErrAccountNotFound)
	}
	if err != nil {
		return credits.Account{}, wrapStoreError(errorSubjectCredits, errorCodeLock, err)
	}
	account.ID, err = credits.NewAccountID(userIDValue)
	if err != nil {
		return credits.Account{}, wrapStoreError(errorSubjectCredits, errorCodeInvalid, err)
	}
	account.Role, err = credits.ParseRole(roleValue)
	if err != nil {
		return credits.Account{}, wrapStoreError(errorSubjectCredits, errorCodeInvalid, err)
	}
	account.LastCreditRefill = account.LastCreditRefill.UTC()
	return account, nil
}

func (store *Store) ResetCredits(ctx context.Context, accountID credits.AccountID, balance int64, refilledAt time.Time) error {
	if balance < 0 {
		return fmt.Errorf("%w: %d", credits.ErrInvalidAmount, balance)
	}
	tag, err := store.db.Exec(ctx, sqlResetCredits, accountID.String(), balance, refilledAt.UTC())
	if err != nil {
		return wrapStoreError(errorSubjectCredits, errorCodeUpdate, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectCredits, errorCodeUpdate, credits.ErrAccountNotFound)
	}
	return nil
}

// DebitCredits subtracts amount only while the balance covers it.
func (store *Store) DebitCredits(ctx context.Context, accountID credits.AccountID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: %d", credits.ErrInvalidAmount, amount)
	}
	var balance int64
	err := store.db.QueryRow(ctx, sqlDebitCredits, accountID.String(), amount).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) || isNegativeBalance(err) {
		current, balanceErr := store.balance(ctx, accountID)
		if balanceErr != nil {
			return 0, balanceErr
		}
		return current, credits.ErrInsufficientCredits
	}
	if err != nil {
		return 0, wrapStoreError(errorSubjectCredits, errorCodeUpdate, err)
	}
	return balance, nil
}

func (store *Store) AddCredits(ctx context.Context, accountID credits.AccountID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: %d", credits.ErrInvalidAmount, amount)
	}
	var balance int64
	err := store.db.QueryRow(ctx, sqlAddCredits, accountID.String(), amount).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, wrapStoreError(errorSubjectCredits, errorCodeUpdate, credits.ErrAccountNotFound)
	}
	if err != nil {
		return 0, wrapStoreError(errorSubjectCredits, errorCodeUpdate, err)
	}
	return balance, nil
}

func (store *Store) InsertEvent(ctx context.Context, event credits.Event) error {
	createdAt := event.CreatedAt.UTC()
	if event.CreatedAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := store.db.Exec(ctx, sqlInsertEvent,
		event.AccountID.String(),
		event.Type.String(),
		event.Amount,
		event.BalanceAfter,
		event.Reference,
		createdAt,
	)
	if err != nil {
		return wrapStoreError(errorSubjectEvent, errorCodeInsert, err)
	}
	return nil
}

// ListEvents returns the newest events first.
func (store *Store) ListEvents(ctx context.Context, accountID credits.AccountID, limit int) ([]credits.Event, error) {
	if !isRowID(accountID) {
		return []credits.Event{}, nil
	}
	rows, err := store.db.Query(ctx, sqlListEvents, accountID.String(), limit)
	if err != nil {
		return nil, wrapStoreError(errorSubjectEvent, errorCodeList, err)
	}
	defer rows.Close()
	events, err := scanEvents(rows)
	if err != nil {
		return nil, wrapStoreError(errorSubjectEvent, errorCodeInvalid, err)
	}
	return events, nil
}

func (store *Store) balance(ctx context.Context, accountID credits.AccountID) (int64, error) {
	var balance int64
	err := store.db.QueryRow(ctx, sqlSelectBalance, accountID.String()).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, wrapStoreError(errorSubjectCredits, errorCodeGet, credits.ErrAccountNotFound)
	}
	if err != nil {
		return 0, wrapStoreError(errorSubjectCredits, errorCodeGet, err)
	}
	return balance, nil
}

func scanEvents(rows pgx.Rows) ([]credits.Event, error) {
	events := make([]credits.Event, 0, 16)
	for rows.Next() {
		var (
			accountIDValue string
			typeValue      string
			event          credits.Event
		)
		if err := rows.Scan(
			&accountIDValue,
			&typeValue,
			&event.Amount,
			&event.BalanceAfter,
			&event.Reference,
			&event.CreatedAt,
		); err != nil {
			return nil, err
		}
		accountID, err := credits.NewAccountID(accountIDValue)
		if err != nil {
			return nil, err
		}
		eventType, err := credits.ParseEventType(typeValue)
		if err != nil {
			return nil, err
		}
		event.AccountID = accountID
		event.Type = eventType
		event.CreatedAt = event.CreatedAt.UTC()
		events = append(events, event)
	}
	return events, rows.Err()
}

func isRowID(accountID credits.AccountID) bool {
	_, err := uuid.Parse(accountID.String())
	return err == nil
}

func wrapStoreError(subject string, code string, err error) error {
	return credits.WrapError(errorOperationStore, subject, code, err)
}

func isNegativeBalance(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgCheckViolationCode && pgErr.ConstraintName == constraintNonNegative
	}
	return false
}

package pgstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/internboard/internal/accounts"
	"github.com/MarkoPoloResearchLab/internboard/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/internboard/pkg/credits"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testDatabaseEnv = "INTERNBOARD_TEST_DATABASE_URL"

func TestIsNegativeBalance(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name   string
		err    error
		expect bool
	}{
		{name: "check constraint", err: &pgconn.PgError{Code: pgCheckViolationCode, ConstraintName: constraintNonNegative}, expect: true},
		{name: "wrapped", err: fmt.Errorf("exec: %w", &pgconn.PgError{Code: pgCheckViolationCode, ConstraintName: constraintNonNegative}), expect: true},
		{name: "other constraint", err: &pgconn.PgError{Code: pgCheckViolationCode, ConstraintName: "chk_other"}, expect: false},
		{name: "unique violation", err: &pgconn.PgError{Code: "23505"}, expect: false},
		{name: "plain", err: errors.New("boom"), expect: false},
		{name: "nil", err: nil, expect: false},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			if got := isNegativeBalance(testCase.err); got != testCase.expect {
				test.Fatalf("expected %v, got %v", testCase.expect, got)
			}
		})
	}
}

func TestLockAccountRejectsNonRowIDs(test *testing.T) {
	test.Parallel()
	accountID, err := credits.NewAccountID("not-a-uuid")
	if err != nil {
		test.Fatalf("account id: %v", err)
	}
	store := &Store{}
	if _, err := store.LockAccount(context.Background(), accountID); !errors.Is(err, credits.ErrAccountNotFound) {
		test.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	events, err := store.ListEvents(context.Background(), accountID, 10)
	if err != nil || len(events) != 0 {
		test.Fatalf("expected no events, got %v %v", events, err)
	}
}

func TestStoreChargesAgainstPostgres(test *testing.T) {
	dsn := os.Getenv(testDatabaseEnv)
	if dsn == "" {
		test.Skipf("%s not set", testDatabaseEnv)
	}
	ctx := context.Background()
	accountID := mustSeedStudent(test, dsn, 5)

	pool, err := Open(ctx, dsn)
	if err != nil {
		test.Fatalf("open pool: %v", err)
	}
	test.Cleanup(pool.Close)
	store := New(pool)
	now := time.Now().UTC()
	service, err := credits.NewService(store, func() time.Time { return now })
	if err != nil {
		test.Fatalf("service: %v", err)
	}

	var (
		waitGroup sync.WaitGroup
		mutex     sync.Mutex
		accepted  int
	)
	for attempt := 0; attempt < 8; attempt++ {
		waitGroup.Add(1)
		go func(attempt int) {
			defer waitGroup.Done()
			err := store.WithTx(ctx, func(ctx context.Context, txStore credits.Store) error {
				return service.ChargeApplication(ctx, txStore, accountID, fmt.Sprintf("application:%d", attempt))
			})
			if err == nil {
				mutex.Lock()
				accepted++
				mutex.Unlock()
				return
			}
			if !errors.Is(err, credits.ErrInsufficientCredits) {
				test.Errorf("unexpected error: %v", err)
			}
		}(attempt)
	}
	waitGroup.Wait()
	if accepted != 5 {
		test.Fatalf("expected 5 accepted charges, got %d", accepted)
	}

	account, err := service.TopUp(ctx, accountID)
	if err != nil {
		test.Fatalf("top up: %v", err)
	}
	if account.Credits != credits.DefaultPolicy().TopUpCredits {
		test.Fatalf("unexpected balance %d", account.Credits)
	}
	events, err := service.History(ctx, accountID, 3)
	if err != nil {
		test.Fatalf("history: %v", err)
	}
	if len(events) != 3 || events[0].Type != credits.EventTopUp {
		test.Fatalf("unexpected history %+v", events)
	}
}

func mustSeedStudent(test *testing.T, dsn string, balance int64) credits.AccountID {
	test.Helper()
	database, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		test.Fatalf("open gorm: %v", err)
	}
	if err := gormstore.Migrate(database); err != nil {
		test.Fatalf("migrate: %v", err)
	}
	sqlDB, err := database.DB()
	if err != nil {
		test.Fatalf("sql db: %v", err)
	}
	test.Cleanup(func() { _ = sqlDB.Close() })

	email := fmt.Sprintf("pgstore-%d@example.com", time.Now().UnixNano())
	user, err := gormstore.New(database).CreateUser(context.Background(), accounts.NewUser{
		Email:            email,
		HashedPassword:   "hash",
		Role:             credits.RoleStudent,
		Credits:          balance,
		LastCreditRefill: time.Now().UTC(),
	})
	if err != nil {
		test.Fatalf("create user: %v", err)
	}
	test.Cleanup(func() {
		_ = gormstore.New(database).DeleteUser(context.Background(), user.ID)
	})
	return user.ID
}

package credits

import (
	"context"
	"fmt"
	"time"
)

// Service applies the credit policy over a Store.
type Service struct {
	store  Store
	nowFn  func() time.Time
	policy Policy
	logger OperationLogger
}

// NewService wires a Service.
func NewService(store Store, now func() time.Time, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, nowFn: now, policy: DefaultPolicy()}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	if err := service.policy.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidServiceConfig, err)
	}
	return service, nil
}

// Policy returns the active credit policy.
func (service *Service) Policy() Policy {
	return service.policy
}

// Refresh loads the account and applies a due refill. It runs on every authenticated request.
func (service *Service) Refresh(ctx context.Context, accountID AccountID) (Account, error) {
	var (
		account  Account
		refilled bool
	)
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		locked, err := transactionStore.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		account, refilled, err = service.refill(ctx, transactionStore, locked)
		return err
	})
	if operationError != nil {
		service.logOperation(ctx, OperationLog{
			Operation: operationRefill,
			AccountID: accountID,
			Error:     operationError,
		})
		return Account{}, operationError
	}
	if refilled {
		service.logOperation(ctx, OperationLog{
			Operation: operationRefill,
			AccountID: accountID,
			Amount:    service.policy.RefillCredits,
			Balance:   account.Credits,
		})
	}
	return account, nil
}

// ChargeApplication debits the application cost from a student inside the caller's transaction.
// Premium students pass without a debit.
func (service *Service) ChargeApplication(ctx context.Context, transactionStore Store, accountID AccountID, reference string) error {
	return service.charge(ctx, transactionStore, chargeRequest{
		operation: operationApplyDebit,
		eventType: EventApplyDebit,
		cost:      service.policy.ApplicationCost,
		accountID: accountID,
		reference: reference,
	})
}

// ChargeHire debits the hire cost from the applicant being hired inside the caller's transaction.
// The employer performing the hire is never charged.
func (service *Service) ChargeHire(ctx context.Context, transactionStore Store, applicantID AccountID, reference string) error {
	err := service.charge(ctx, transactionStore, chargeRequest{
		operation: operationHireDebit,
		eventType: EventHireDebit,
		cost:      service.policy.HireCost,
		accountID: applicantID,
		reference: reference,
	})
	if err != nil {
		return fmt.Errorf("applicant %s: %w", applicantID.String(), err)
	}
	return nil
}

// TopUp adds the top-up amount to a student's balance after evaluating a due refill.
func (service *Service) TopUp(ctx context.Context, accountID AccountID) (Account, error) {
	var (
		account Account
		exempt  bool
	)
	operationError := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		locked, err := transactionStore.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if locked.Role != RoleStudent {
			return fmt.Errorf("%w: top-up is limited to students", ErrNotAuthorized)
		}
		if locked.IsPremium {
			account = locked
			exempt = true
			return nil
		}
		refreshed, _, err := service.refill(ctx, transactionStore, locked)
		if err != nil {
			return err
		}
		balance, err := transactionStore.AddCredits(ctx, accountID, service.policy.TopUpCredits)
		if err != nil {
			return err
		}
		refreshed.Credits = balance
		account = refreshed
		return transactionStore.InsertEvent(ctx, Event{
			AccountID:    accountID,
			Type:         EventTopUp,
			Amount:       service.policy.TopUpCredits,
			BalanceAfter: balance,
			CreatedAt:    service.nowFn(),
		})
	})
	entry := OperationLog{
		Operation: operationTopUp,
		AccountID: accountID,
		Amount:    service.policy.TopUpCredits,
		Balance:   account.Credits,
		Error:     operationError,
	}
	if exempt {
		entry.Amount = 0
		entry.Status = operationStatusExempt
	}
	service.logOperation(ctx, entry)
	if operationError != nil {
		return Account{}, operationError
	}
	return account, nil
}

// History lists an account's credit events newest first.
func (service *Service) History(ctx context.Context, accountID AccountID, limit int) ([]Event, error) {
	if accountID.IsZero() {
		return nil, ErrInvalidAccountID
	}
	switch {
	case limit == 0:
		limit = defaultHistoryLimit
	case limit < 0:
		return nil, fmt.Errorf("%w: %d", ErrInvalidListLimit, limit)
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}
	return service.store.ListEvents(ctx, accountID, limit)
}

type chargeRequest struct {
	operation string
	eventType EventType
	cost      int64
	accountID AccountID
	reference string
}

func (service *Service) charge(ctx context.Context, transactionStore Store, request chargeRequest) error {
	if transactionStore == nil {
		transactionStore = service.store
	}
	locked, err := transactionStore.LockAccount(ctx, request.accountID)
	if err != nil {
		service.logOperation(ctx, OperationLog{
			Operation: request.operation,
			AccountID: request.accountID,
			Reference: request.reference,
			Error:     err,
		})
		return err
	}
	if !locked.Gated() {
		service.logOperation(ctx, OperationLog{
			Operation: request.operation,
			AccountID: request.accountID,
			Balance:   locked.Credits,
			Reference: request.reference,
			Status:    operationStatusExempt,
		})
		return nil
	}
	balance, chargeError := service.debit(ctx, transactionStore, locked, request)
	service.logOperation(ctx, OperationLog{
		Operation: request.operation,
		AccountID: request.accountID,
		Amount:    request.cost,
		Balance:   balance,
		Reference: request.reference,
		Error:     chargeError,
	})
	return chargeError
}

func (service *Service) debit(ctx context.Context, transactionStore Store, locked Account, request chargeRequest) (int64, error) {
	account, _, err := service.refill(ctx, transactionStore, locked)
	if err != nil {
		return locked.Credits, err
	}
	if account.Credits < request.cost {
		return account.Credits, ErrInsufficientCredits
	}
	balance, err := transactionStore.DebitCredits(ctx, request.accountID, request.cost)
	if err != nil {
		return account.Credits, err
	}
	event := Event{
		AccountID:    request.accountID,
		Type:         request.eventType,
		Amount:       -request.cost,
		BalanceAfter: balance,
		Reference:    request.reference,
		CreatedAt:    service.nowFn(),
	}
	if err := transactionStore.InsertEvent(ctx, event); err != nil {
		return account.Credits, err
	}
	return balance, nil
}

// refill persists a due reset and its history event. The caller must hold the account lock.
func (service *Service) refill(ctx context.Context, transactionStore Store, account Account) (Account, bool, error) {
	refreshed, due := EvaluateRefill(account, service.nowFn(), service.policy)
	if !due {
		return account, false, nil
	}
	if err := transactionStore.ResetCredits(ctx, refreshed.ID, refreshed.Credits, refreshed.LastCreditRefill); err != nil {
		return account, false, err
	}
	event := Event{
		AccountID:    refreshed.ID,
		Type:         EventRefill,
		Amount:       refreshed.Credits - account.Credits,
		BalanceAfter: refreshed.Credits,
		CreatedAt:    refreshed.LastCreditRefill,
	}
	if err := transactionStore.InsertEvent(ctx, event); err != nil {
		return account, false, err
	}
	return refreshed, true, nil
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}

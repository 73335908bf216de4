package credits

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// AccountID identifies a user account.
type AccountID struct {
	value string
}

// NewAccountID validates and normalizes an account id.
func NewAccountID(raw string) (AccountID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return AccountID{}, fmt.Errorf("%w: empty value", ErrInvalidAccountID)
	}
	return AccountID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id AccountID) String() string {
	return id.value
}

// IsZero reports whether the id was never initialized.
func (id AccountID) IsZero() bool {
	return id.value == ""
}

// Role is the closed set of account kinds.
type Role string

const (
	RoleStudent  Role = "student"
	RoleEmployer Role = "employer"
	RoleAdmin    Role = "admin"
)

// ParseRole converts a stored or requested role into a Role.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleStudent:
		return RoleStudent, nil
	case RoleEmployer:
		return RoleEmployer, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, raw)
	}
}

// String returns the persisted role name.
func (role Role) String() string {
	return string(role)
}

// Account is the slice of a user record the credit gate reads and writes.
type Account struct {
	ID               AccountID
	Role             Role
	IsPremium        bool
	Credits          int64
	LastCreditRefill time.Time
}

// Gated reports whether the credit ledger applies to the account.
// Employers, admins and premium students are never charged.
func (account Account) Gated() bool {
	switch account.Role {
	case RoleStudent:
		return !account.IsPremium
	case RoleEmployer, RoleAdmin:
		return false
	default:
		return false
	}
}

// EventType enumerates credit event kinds.
type EventType string

const (
	EventRefill     EventType = "refill"
	EventApplyDebit EventType = "apply_debit"
	EventHireDebit  EventType = "hire_debit"
	EventTopUp      EventType = "top_up"
)

// ParseEventType converts a stored event type.
func ParseEventType(raw string) (EventType, error) {
	switch EventType(strings.TrimSpace(raw)) {
	case EventRefill:
		return EventRefill, nil
	case EventApplyDebit:
		return EventApplyDebit, nil
	case EventHireDebit:
		return EventHireDebit, nil
	case EventTopUp:
		return EventTopUp, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidEventType, raw)
	}
}

// String returns the persisted event type.
func (eventType EventType) String() string {
	return string(eventType)
}

// Event is one immutable line of an account's credit history.
// Amount is the signed change applied to the balance.
type Event struct {
	AccountID    AccountID
	Type         EventType
	Amount       int64
	BalanceAfter int64
	Reference    string
	CreatedAt    time.Time
}

// Policy holds the flat credit rules.
type Policy struct {
	StartingCredits int64
	RefillCredits   int64
	RefillInterval  time.Duration
	ApplicationCost int64
	HireCost        int64
	TopUpCredits    int64
}

// DefaultPolicy returns five credits every thirty days, one per application or hire, two per top-up.
func DefaultPolicy() Policy {
	return Policy{
		StartingCredits: defaultStartingCredits,
		RefillCredits:   defaultRefillCredits,
		RefillInterval:  defaultRefillInterval,
		ApplicationCost: defaultApplicationCost,
		HireCost:        defaultHireCost,
		TopUpCredits:    defaultTopUpCredits,
	}
}

// Validate rejects policies that could drive a balance negative or never refill.
func (policy Policy) Validate() error {
	if policy.StartingCredits < 0 {
		return fmt.Errorf("%w: starting credits must not be negative", ErrInvalidPolicy)
	}
	if policy.RefillCredits < 0 {
		return fmt.Errorf("%w: refill credits must not be negative", ErrInvalidPolicy)
	}
	if policy.RefillInterval <= 0 {
		return fmt.Errorf("%w: refill interval must be positive", ErrInvalidPolicy)
	}
	if policy.ApplicationCost <= 0 {
		return fmt.Errorf("%w: application cost must be positive", ErrInvalidPolicy)
	}
	if policy.HireCost <= 0 {
		return fmt.Errorf("%w: hire cost must be positive", ErrInvalidPolicy)
	}
	if policy.TopUpCredits <= 0 {
		return fmt.Errorf("%w: top-up credits must be positive", ErrInvalidPolicy)
	}
	return nil
}

// EvaluateRefill applies the monthly reset rule. The balance is replaced, not increased,
// once the refill interval has elapsed since the last refill.
func EvaluateRefill(account Account, now time.Time, policy Policy) (Account, bool) {
	if !account.Gated() {
		return account, false
	}
	if now.Sub(account.LastCreditRefill) < policy.RefillInterval {
		return account, false
	}
	account.Credits = policy.RefillCredits
	account.LastCreditRefill = now
	return account, true
}

// Store is the persistence contract used by Service.
// LockAccount must hold the account row until the surrounding transaction ends, and
// DebitCredits must refuse (ErrInsufficientCredits) any debit that would go below zero.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	LockAccount(ctx context.Context, accountID AccountID) (Account, error)
	ResetCredits(ctx context.Context, accountID AccountID, credits int64, refilledAt time.Time) error
	DebitCredits(ctx context.Context, accountID AccountID, amount int64) (int64, error)
	AddCredits(ctx context.Context, accountID AccountID, amount int64) (int64, error)
	InsertEvent(ctx context.Context, event Event) error
	ListEvents(ctx context.Context, accountID AccountID, limit int) ([]Event, error)
}

package accounts

import (
	"context"
	"time"

	"github.com/MarkoPoloResearchLab/internboard/pkg/credits"
)

// OTPPurpose separates verification codes from password reset codes.
type OTPPurpose string

const (
	OTPPurposeVerify OTPPurpose = "verify"
	OTPPurposeReset  OTPPurpose = "reset"
)

// String returns the stored purpose.
func (purpose OTPPurpose) String() string {
	return string(purpose)
}

// Registration is a self-service sign-up request.
type Registration struct {
	Role              credits.Role
	Email             string
	Password          string
	FirstName         string
	LastName          string
	PhoneNumber       string
	Address           string
	Bio               string
	ProfilePictureURL string
}

// UserRecord is the credential view of a user.
type UserRecord struct {
	ID             credits.AccountID
	Email          string
	HashedPassword string
	Role           credits.Role
	FirstName      string
	LastName       string
	IsVerified     bool
	IsPremium      bool
	Credits        int64
}

// NewUser is everything needed to insert a user and its role profile.
type NewUser struct {
	Email             string
	HashedPassword    string
	Role              credits.Role
	FirstName         string
	LastName          string
	PhoneNumber       string
	Address           string
	Bio               string
	ProfilePictureURL string
	IsVerified        bool
	Credits           int64
	LastCreditRefill  time.Time
	CompanyName       string
}

// Session is a signed session token.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// Store is the persistence contract used by Service.
type Store interface {
	FindUserByEmail(ctx context.Context, email string) (UserRecord, error)
	CreateUser(ctx context.Context, user NewUser) (UserRecord, error)
	UpdateUnverifiedUser(ctx context.Context, userID credits.AccountID, user NewUser) (UserRecord, error)
	MarkVerified(ctx context.Context, userID credits.AccountID) error
	UpdatePassword(ctx context.Context, userID credits.AccountID, hashedPassword string) error
}

// OTPStore keeps one-time passwords. Consume must succeed at most once per saved code.
type OTPStore interface {
	Save(ctx context.Context, email string, purpose OTPPurpose, code string, ttl time.Duration) error
	Consume(ctx context.Context, email string, purpose OTPPurpose, code string) error
}

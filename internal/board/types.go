package board

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/internboard/pkg/credits"
)

const (
	defaultPageLimit = 100
	maxPageLimit     = 100
)

// ApplicationStatus is the closed set of application states.
type ApplicationStatus string

const (
	StatusPending  ApplicationStatus = "pending"
	StatusReviewed ApplicationStatus = "reviewed"
	StatusAccepted ApplicationStatus = "accepted"
	StatusRejected ApplicationStatus = "rejected"
	StatusHired    ApplicationStatus = "hired"
)

// ParseApplicationStatus compares case-insensitively and rejects unknown values.
func ParseApplicationStatus(raw string) (ApplicationStatus, error) {
	switch ApplicationStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusPending:
		return StatusPending, nil
	case StatusReviewed:
		return StatusReviewed, nil
	case StatusAccepted:
		return StatusAccepted, nil
	case StatusRejected:
		return StatusRejected, nil
	case StatusHired:
		return StatusHired, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
}

// String returns the persisted status.
func (status ApplicationStatus) String() string {
	return string(status)
}

// Page is a validated offset window.
type Page struct {
	Skip  int
	Limit int
}

// NewPage validates skip and limit. A zero limit selects the default.
func NewPage(skip int, limit int) (Page, error) {
	if skip < 0 {
		return Page{}, fmt.Errorf("%w: skip must not be negative", ErrInvalidPage)
	}
	if limit == 0 {
		limit = defaultPageLimit
	}
	if limit < 1 || limit > maxPageLimit {
		return Page{}, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidPage, maxPageLimit)
	}
	return Page{Skip: skip, Limit: limit}, nil
}

// DefaultPage returns the first page with the default limit.
func DefaultPage() Page {
	return Page{Limit: defaultPageLimit}
}

// User is a board member as seen by the board and admin surfaces.
type User struct {
	ID                credits.AccountID
	Email             string
	Role              credits.Role
	FirstName         string
	LastName          string
	PhoneNumber       string
	Address           string
	Bio               string
	ProfilePictureURL string
	IsVerified        bool
	IsPremium         bool
	Credits           int64
	LastCreditRefill  time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// UserUpdate carries admin edits. Nil fields are left unchanged.
type UserUpdate struct {
	FirstName         *string
	LastName          *string
	PhoneNumber       *string
	Address           *string
	Bio               *string
	ProfilePictureURL *string
	Role              *credits.Role
	IsPremium         *bool
}

// UserFilter narrows the admin user listing.
type UserFilter struct {
	Role *credits.Role
	Page Page
}

// StudentProfile holds the student-specific details plus the owning user.
type StudentProfile struct {
	User         User
	Education    string
	Skills       string
	Experience   string
	ResumeURL    string
	PortfolioURL string
	Resume       []byte
}

// StudentProfileUpdate carries profile edits. Nil fields are left unchanged.
type StudentProfileUpdate struct {
	Education    *string
	Skills       *string
	Experience   *string
	ResumeURL    *string
	PortfolioURL *string
}

// EmployerProfile holds company details for an employer.
type EmployerProfile struct {
	UserID             credits.AccountID
	CompanyName        string
	CompanyDescription string
	Website            string
	Industry           string
	CompanyLogoURL     string
}

// Internship is a posting owned by an employer.
type Internship struct {
	ID           string
	EmployerID   credits.AccountID
	Title        string
	Description  string
	Requirements string
	Location     string
	Stipend      string
	Duration     string
	Deadline     *time.Time
	IsActive     bool
	PostedAt     time.Time
}

// InternshipInput is the employer-editable part of an Internship.
type InternshipInput struct {
	Title        string
	Description  string
	Requirements string
	Location     string
	Stipend      string
	Duration     string
	Deadline     *time.Time
	IsActive     bool
}

// InternshipFilter narrows internship listings.
type InternshipFilter struct {
	EmployerID credits.AccountID
	Query      string
	ActiveOnly bool
	Page       Page
}

// Application is a student's application to an internship.
type Application struct {
	ID           string
	InternshipID string
	StudentID    credits.AccountID
	Status       ApplicationStatus
	CoverLetter  string
	AppliedAt    time.Time
	UpdatedAt    time.Time
}

// ApplicationFilter narrows application listings. Zero fields are ignored.
type ApplicationFilter struct {
	InternshipID string
	StudentID    credits.AccountID
	EmployerID   credits.AccountID
	Status       ApplicationStatus
	Page         Page
}

// CreditGate charges the credit ledger inside a board transaction.
type CreditGate interface {
	ChargeApplication(ctx context.Context, transactionStore credits.Store, accountID credits.AccountID, reference string) error
	ChargeHire(ctx context.Context, transactionStore credits.Store, applicantID credits.AccountID, reference string) error
}

// Store is the persistence contract used by Service.
// Ledger returns the credit store bound to the same transaction.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	Ledger() credits.Store

	GetUser(ctx context.Context, userID credits.AccountID) (User, error)
	ListUsers(ctx context.Context, filter UserFilter) ([]User, error)
	UpdateUser(ctx context.Context, userID credits.AccountID, update UserUpdate) (User, error)
	DeleteUser(ctx context.Context, userID credits.AccountID) error

	GetStudentProfile(ctx context.Context, userID credits.AccountID) (StudentProfile, error)
	UpdateStudentProfile(ctx context.Context, userID credits.AccountID, update StudentProfileUpdate) (StudentProfile, error)
	SaveResume(ctx context.Context, userID credits.AccountID, resume []byte) error
	GetEmployerProfile(ctx context.Context, userID credits.AccountID) (EmployerProfile, error)
	UpdateEmployerProfile(ctx context.Context, profile EmployerProfile) (EmployerProfile, error)

	CreateInternship(ctx context.Context, internship Internship) (Internship, error)
	GetInternship(ctx context.Context, internshipID string) (Internship, error)
	ListInternships(ctx context.Context, filter InternshipFilter) ([]Internship, error)
	UpdateInternship(ctx context.Context, internship Internship) (Internship, error)
	DeleteInternship(ctx context.Context, internshipID string) error

	CreateApplication(ctx context.Context, application Application) (Application, error)
	GetApplication(ctx context.Context, applicationID string) (Application, error)
	FindApplication(ctx context.Context, internshipID string, studentID credits.AccountID) (Application, error)
	ListApplications(ctx context.Context, filter ApplicationFilter) ([]Application, error)
	UpdateApplicationStatus(ctx context.Context, applicationID string, status ApplicationStatus) (Application, error)
	// MarkApplicationHired moves the application into hired and reports whether it was
	// not hired before. Concurrent callers observe exactly one true.
	MarkApplicationHired(ctx context.Context, applicationID string) (bool, error)
}

package gormstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User represents the users table. The credit columns back the credit ledger.
type User struct {
	UserID            string     `gorm:"type:uuid;primaryKey"`
	Email             string     `gorm:"not null;uniqueIndex:uniq_users_email"`
	HashedPassword    string     `gorm:"not null"`
	Role              string     `gorm:"not null;index"`
	FirstName         string     `gorm:"not null;default:''"`
	LastName          string     `gorm:"not null;default:''"`
	PhoneNumber       string     `gorm:"not null;default:''"`
	Address           string     `gorm:"not null;default:''"`
	Bio               string     `gorm:"type:text;not null;default:''"`
	ProfilePictureURL string     `gorm:"not null;default:''"`
	IsVerified        bool       `gorm:"not null;default:false"`
	IsPremium         bool       `gorm:"not null;default:false"`
	Credits           int64      `gorm:"not null;default:0;check:chk_users_credits_non_negative,credits >= 0"`
	LastCreditRefill  time.Time  `gorm:"not null"`
	OTP               *string    `gorm:"column:otp"`
	OTPPurpose        *string    `gorm:"column:otp_purpose"`
	OTPExpiresAt      *time.Time `gorm:"column:otp_expires_at"`
	CreatedAt         time.Time  `gorm:"not null"`
	UpdatedAt         time.Time  `gorm:"not null"`
}

func (User) TableName() string { return "users" }

func (user *User) BeforeCreate(tx *gorm.DB) error {
	if user.UserID == "" {
		user.UserID = uuid.NewString()
	}
	return nil
}

// StudentProfile mirrors the student_profiles table.
type StudentProfile struct {
	ProfileID    string         `gorm:"type:uuid;primaryKey"`
	UserID       string         `gorm:"type:uuid;not null;uniqueIndex:uniq_student_profiles_user"`
	Education    string         `gorm:"type:text;not null;default:''"`
	Skills       string         `gorm:"type:text;not null;default:''"`
	Experience   string         `gorm:"type:text;not null;default:''"`
	ResumeURL    string         `gorm:"not null;default:''"`
	PortfolioURL string         `gorm:"not null;default:''"`
	Resume       datatypes.JSON `gorm:""`
}

func (StudentProfile) TableName() string { return "student_profiles" }

func (profile *StudentProfile) BeforeCreate(tx *gorm.DB) error {
	if profile.ProfileID == "" {
		profile.ProfileID = uuid.NewString()
	}
	return nil
}

// EmployerProfile mirrors the employer_profiles table.
type EmployerProfile struct {
	ProfileID          string `gorm:"type:uuid;primaryKey"`
	UserID             string `gorm:"type:uuid;not null;uniqueIndex:uniq_employer_profiles_user"`
	CompanyName        string `gorm:"not null"`
	CompanyDescription string `gorm:"type:text;not null;default:''"`
	Website            string `gorm:"not null;default:''"`
	Industry           string `gorm:"not null;default:''"`
	CompanyLogoURL     string `gorm:"not null;default:''"`
}

func (EmployerProfile) TableName() string { return "employer_profiles" }

func (profile *EmployerProfile) BeforeCreate(tx *gorm.DB) error {
	if profile.ProfileID == "" {
		profile.ProfileID = uuid.NewString()
	}
	return nil
}

// Internship mirrors the internships table.
type Internship struct {
	InternshipID string     `gorm:"type:uuid;primaryKey"`
	EmployerID   string     `gorm:"type:uuid;not null;index:idx_internships_employer"`
	Title        string     `gorm:"not null"`
	Description  string     `gorm:"type:text;not null"`
	Requirements string     `gorm:"type:text;not null;default:''"`
	Location     string     `gorm:"not null;default:''"`
	Stipend      string     `gorm:"not null;default:''"`
	Duration     string     `gorm:"not null;default:''"`
	DeadlineAt   *time.Time `gorm:""`
	IsActive     bool       `gorm:"not null;default:true"`
	PostedAt     time.Time  `gorm:"not null;index:idx_internships_posted"`
}

func (Internship) TableName() string { return "internships" }

func (internship *Internship) BeforeCreate(tx *gorm.DB) error {
	if internship.InternshipID == "" {
		internship.InternshipID = uuid.NewString()
	}
	return nil
}

// Application mirrors the applications table. A student applies to an internship once.
type Application struct {
	ApplicationID string    `gorm:"type:uuid;primaryKey"`
	InternshipID  string    `gorm:"type:uuid;not null;uniqueIndex:uniq_applications_internship_student,priority:1"`
	StudentID     string    `gorm:"type:uuid;not null;uniqueIndex:uniq_applications_internship_student,priority:2;index:idx_applications_student"`
	Status        string    `gorm:"not null;default:'pending'"`
	CoverLetter   string    `gorm:"type:text;not null;default:''"`
	AppliedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

func (Application) TableName() string { return "applications" }

func (application *Application) BeforeCreate(tx *gorm.DB) error {
	if application.ApplicationID == "" {
		application.ApplicationID = uuid.NewString()
	}
	return nil
}

// CreditEvent mirrors the append-only credit_events table.
type CreditEvent struct {
	EventID      uint64    `gorm:"primaryKey;autoIncrement"`
	UserID       string    `gorm:"type:uuid;not null;index:idx_credit_events_user_created,priority:1"`
	Type         string    `gorm:"not null"`
	Amount       int64     `gorm:"not null"`
	BalanceAfter int64     `gorm:"not null"`
	Reference    string    `gorm:"not null;default:''"`
	CreatedAt    time.Time `gorm:"not null;index:idx_credit_events_user_created,priority:2"`
}

func (CreditEvent) TableName() string { return "credit_events" }

// Models lists every table for AutoMigrate.
func Models() []interface{} {
	return []interface{}{
		&User{},
		&StudentProfile{},
		&EmployerProfile{},
		&Internship{},
		&Application{},
		&CreditEvent{},
	}
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

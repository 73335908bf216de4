package httpapi

import (
	"encoding/json"
	"time"

	"github.com/MarkoPoloResearchLab/internboard/internal/accounts"
	"github.com/MarkoPoloResearchLab/internboard/internal/board"
	"github.com/MarkoPoloResearchLab/internboard/pkg/credits"
)

type registerRequest struct {
	Email             string `json:"email" binding:"required,email"`
	Password          string `json:"password" binding:"required,min=8"`
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	PhoneNumber       string `json:"phone_number"`
	Address           string `json:"address"`
	Bio               string `json:"bio"`
	ProfilePictureURL string `json:"profile_picture_url"`
}

type verifyEmailRequest struct {
	Email string `json:"email" binding:"required,email"`
	OTP   string `json:"otp" binding:"required,len=6,numeric"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetPasswordRequest struct {
	Email       string `json:"email" binding:"required,email"`
	OTP         string `json:"otp" binding:"required,len=6,numeric"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

type pageQuery struct {
	Skip  int `form:"skip" binding:"min=0"`
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

type internshipQuery struct {
	pageQuery
	Query      string `form:"q"`
	ActiveOnly *bool  `form:"active"`
}

type userQuery struct {
	pageQuery
	Role string `form:"role" binding:"omitempty,role"`
}

type historyQuery struct {
	Limit int `form:"limit" binding:"min=0"`
}

type internshipRequest struct {
	Title        string     `json:"title" binding:"required"`
	Description  string     `json:"description" binding:"required"`
	Requirements string     `json:"requirements"`
	Location     string     `json:"location"`
	Stipend      string     `json:"stipend"`
	Duration     string     `json:"duration"`
	Deadline     *time.Time `json:"deadline"`
	IsActive     *bool      `json:"is_active"`
}

func (request internshipRequest) input() board.InternshipInput {
	isActive := true
	if request.IsActive != nil {
		isActive = *request.IsActive
	}
	return board.InternshipInput{
		Title:        request.Title,
		Description:  request.Description,
		Requirements: request.Requirements,
		Location:     request.Location,
		Stipend:      request.Stipend,
		Duration:     request.Duration,
		Deadline:     request.Deadline,
		IsActive:     isActive,
	}
}

type applyRequest struct {
	CoverLetter string `json:"cover_letter"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required,appstatus"`
}

type studentProfileRequest struct {
	Education    *string `json:"education"`
	Skills       *string `json:"skills"`
	Experience   *string `json:"experience"`
	ResumeURL    *string `json:"resume_url" binding:"omitempty,url"`
	PortfolioURL *string `json:"portfolio_url" binding:"omitempty,url"`
}

type employerProfileRequest struct {
	CompanyName        string `json:"company_name" binding:"required"`
	CompanyDescription string `json:"company_description"`
	Website            string `json:"website" binding:"omitempty,url"`
	Industry           string `json:"industry"`
	CompanyLogoURL     string `json:"company_logo_url" binding:"omitempty,url"`
}

type userUpdateRequest struct {
	FirstName         *string `json:"first_name"`
	LastName          *string `json:"last_name"`
	PhoneNumber       *string `json:"phone_number"`
	Address           *string `json:"address"`
	Bio               *string `json:"bio"`
	ProfilePictureURL *string `json:"profile_picture_url"`
	Role              *string `json:"role" binding:"omitempty,role"`
	IsPremium         *bool   `json:"is_premium"`
}

func (request userUpdateRequest) update() (board.UserUpdate, error) {
	update := board.UserUpdate{
		FirstName:         request.FirstName,
		LastName:          request.LastName,
		PhoneNumber:       request.PhoneNumber,
		Address:           request.Address,
		Bio:               request.Bio,
		ProfilePictureURL: request.ProfilePictureURL,
		IsPremium:         request.IsPremium,
	}
	if request.Role != nil {
		role, err := credits.ParseRole(*request.Role)
		if err != nil {
			return board.UserUpdate{}, err
		}
		update.Role = &role
	}
	return update, nil
}

type userPayload struct {
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	Role              string    `json:"role"`
	FirstName         string    `json:"first_name"`
	LastName          string    `json:"last_name"`
	PhoneNumber       string    `json:"phone_number"`
	Address           string    `json:"address"`
	Bio               string    `json:"bio"`
	ProfilePictureURL string    `json:"profile_picture_url"`
	IsVerified        bool      `json:"is_verified"`
	IsPremium         bool      `json:"is_premium"`
	Credits           int64     `json:"credits"`
	LastCreditRefill  time.Time `json:"last_credit_refill"`
	CreatedAt         time.Time `json:"created_at"`
}

func newUserPayload(user board.User) userPayload {
	return userPayload{
		ID:                user.ID.String(),
		Email:             user.Email,
		Role:              user.Role.String(),
		FirstName:         user.FirstName,
		LastName:          user.LastName,
		PhoneNumber:       user.PhoneNumber,
		Address:           user.Address,
		Bio:               user.Bio,
		ProfilePictureURL: user.ProfilePictureURL,
		IsVerified:        user.IsVerified,
		IsPremium:         user.IsPremium,
		Credits:           user.Credits,
		LastCreditRefill:  user.LastCreditRefill,
		CreatedAt:         user.CreatedAt,
	}
}

func newUserPayloads(users []board.User) []userPayload {
	payloads := make([]userPayload, 0, len(users))
	for _, user := range users {
		payloads = append(payloads, newUserPayload(user))
	}
	return payloads
}

type sessionPayload struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

func newSessionPayload(user accounts.UserRecord, session accounts.Session) sessionPayload {
	return sessionPayload{
		UserID:    user.ID.String(),
		Email:     user.Email,
		Role:      user.Role.String(),
		ExpiresAt: session.ExpiresAt,
	}
}

type creditsPayload struct {
	Credits          int64     `json:"credits"`
	IsPremium        bool      `json:"is_premium"`
	Gated            bool      `json:"gated"`
	LastCreditRefill time.Time `json:"last_credit_refill"`
	NextRefillAt     time.Time `json:"next_refill_at"`
}

func newCreditsPayload(account credits.Account, policy credits.Policy) creditsPayload {
	return creditsPayload{
		Credits:          account.Credits,
		IsPremium:        account.IsPremium,
		Gated:            account.Gated(),
		LastCreditRefill: account.LastCreditRefill,
		NextRefillAt:     account.LastCreditRefill.Add(policy.RefillInterval),
	}
}

type eventPayload struct {
	Type         string    `json:"type"`
	Amount       int64     `json:"amount"`
	BalanceAfter int64     `json:"balance_after"`
	Reference    string    `json:"reference"`
	CreatedAt    time.Time `json:"created_at"`
}

func newEventPayloads(events []credits.Event) []eventPayload {
	payloads := make([]eventPayload, 0, len(events))
	for _, event := range events {
		payloads = append(payloads, eventPayload{
			Type:         event.Type.String(),
			Amount:       event.Amount,
			BalanceAfter: event.BalanceAfter,
			Reference:    event.Reference,
			CreatedAt:    event.CreatedAt,
		})
	}
	return payloads
}

type internshipPayload struct {
	ID           string     `json:"id"`
	EmployerID   string     `json:"employer_id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Requirements string     `json:"requirements"`
	Location     string     `json:"location"`
	Stipend      string     `json:"stipend"`
	Duration     string     `json:"duration"`
	Deadline     *time.Time `json:"deadline,omitempty"`
	IsActive     bool       `json:"is_active"`
	PostedAt     time.Time  `json:"posted_at"`
}

func newInternshipPayload(internship board.Internship) internshipPayload {
	return internshipPayload{
		ID:           internship.ID,
		EmployerID:   internship.EmployerID.String(),
		Title:        internship.Title,
		Description:  internship.Description,
		Requirements: internship.Requirements,
		Location:     internship.Location,
		Stipend:      internship.Stipend,
		Duration:     internship.Duration,
		Deadline:     internship.Deadline,
		IsActive:     internship.IsActive,
		PostedAt:     internship.PostedAt,
	}
}

func newInternshipPayloads(internships []board.Internship) []internshipPayload {
	payloads := make([]internshipPayload, 0, len(internships))
	for _, internship := range internships {
		payloads = append(payloads, newInternshipPayload(internship))
	}
	return payloads
}

type applicationPayload struct {
	ID           string    `json:"id"`
	InternshipID string    `json:"internship_id"`
	StudentID    string    `json:"student_id"`
	Status       string    `json:"status"`
	CoverLetter  string    `json:"cover_letter"`
	AppliedAt    time.Time `json:"applied_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func newApplicationPayload(application board.Application) applicationPayload {
	return applicationPayload{
		ID:           application.ID,
		InternshipID: application.InternshipID,
		StudentID:    application.StudentID.String(),
		Status:       application.Status.String(),
		CoverLetter:  application.CoverLetter,
		AppliedAt:    application.AppliedAt,
		UpdatedAt:    application.UpdatedAt,
	}
}

func newApplicationPayloads(applications []board.Application) []applicationPayload {
	payloads := make([]applicationPayload, 0, len(applications))
	for _, application := range applications {
		payloads = append(payloads, newApplicationPayload(application))
	}
	return payloads
}

type studentProfilePayload struct {
	ID           string          `json:"id"`
	Email        string          `json:"email"`
	FirstName    string          `json:"first_name"`
	LastName     string          `json:"last_name"`
	PhoneNumber  string          `json:"phone_number"`
	Education    string          `json:"education"`
	Skills       string          `json:"skills"`
	Experience   string          `json:"experience"`
	ResumeURL    string          `json:"resume_url"`
	PortfolioURL string          `json:"portfolio_url"`
	Resume       json.RawMessage `json:"resume,omitempty"`
}

func newStudentProfilePayload(profile board.StudentProfile) studentProfilePayload {
	payload := studentProfilePayload{
		ID:           profile.User.ID.String(),
		Email:        profile.User.Email,
		FirstName:    profile.User.FirstName,
		LastName:     profile.User.LastName,
		PhoneNumber:  profile.User.PhoneNumber,
		Education:    profile.Education,
		Skills:       profile.Skills,
		Experience:   profile.Experience,
		ResumeURL:    profile.ResumeURL,
		PortfolioURL: profile.PortfolioURL,
	}
	if len(profile.Resume) > 0 {
		payload.Resume = json.RawMessage(profile.Resume)
	}
	return payload
}

type employerProfilePayload struct {
	UserID             string `json:"user_id"`
	CompanyName        string `json:"company_name"`
	CompanyDescription string `json:"company_description"`
	Website            string `json:"website"`
	Industry           string `json:"industry"`
	CompanyLogoURL     string `json:"company_logo_url"`
}

func newEmployerProfilePayload(profile board.EmployerProfile) employerProfilePayload {
	return employerProfilePayload{
		UserID:             profile.UserID.String(),
		CompanyName:        profile.CompanyName,
		CompanyDescription: profile.CompanyDescription,
		Website:            profile.Website,
		Industry:           profile.Industry,
		CompanyLogoURL:     profile.CompanyLogoURL,
	}
}

package board

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/internboard/pkg/credits"
)

// Service contains the job-board workflows over a Store.
type Service struct {
	store Store
	gate  CreditGate
	nowFn func() time.Time
}

// NewService wires a Service.
func NewService(store Store, gate CreditGate, now func() time.Time) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if gate == nil {
		return nil, fmt.Errorf("%w: credit gate dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	return &Service{store: store, gate: gate, nowFn: now}, nil
}

// Me returns the caller's own user record.
func (service *Service) Me(ctx context.Context, actor credits.Account) (User, error) {
	return service.store.GetUser(ctx, actor.ID)
}

// CreateInternship posts a new internship owned by the calling employer.
func (service *Service) CreateInternship(ctx context.Context, actor credits.Account, input InternshipInput) (Internship, error) {
	if err := requireRole(actor, credits.RoleEmployer); err != nil {
		return Internship{}, err
	}
	if err := validateInternshipInput(input); err != nil {
		return Internship{}, err
	}
	internship := applyInternshipInput(Internship{EmployerID: actor.ID, PostedAt: service.nowFn()}, input)
	return service.store.CreateInternship(ctx, internship)
}

// ListInternships is the public search over title, description and location.
func (service *Service) ListInternships(ctx context.Context, query string, activeOnly bool, page Page) ([]Internship, error) {
	return service.store.ListInternships(ctx, InternshipFilter{
		Query:      strings.TrimSpace(query),
		ActiveOnly: activeOnly,
		Page:       page,
	})
}

// GetInternship returns one internship.
func (service *Service) GetInternship(ctx context.Context, internshipID string) (Internship, error) {
	return service.store.GetInternship(ctx, internshipID)
}

// EmployerInternships lists the calling employer's postings.
func (service *Service) EmployerInternships(ctx context.Context, actor credits.Account, page Page) ([]Internship, error) {
	if err := requireRole(actor, credits.RoleEmployer); err != nil {
		return nil, err
	}
	return service.store.ListInternships(ctx, InternshipFilter{EmployerID: actor.ID, Page: page})
}

// UpdateInternship replaces the editable fields of an internship the caller owns.
func (service *Service) UpdateInternship(ctx context.Context, actor credits.Account, internshipID string, input InternshipInput) (Internship, error) {
	if err := requireRole(actor, credits.RoleEmployer); err != nil {
		return Internship{}, err
	}
	if err := validateInternshipInput(input); err != nil {
		return Internship{}, err
	}
	var updated Internship
	err := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		internship, err := ownedInternship(ctx, txStore, actor, internshipID)
		if err != nil {
			return err
		}
		updated, err = txStore.UpdateInternship(ctx, applyInternshipInput(internship, input))
		return err
	})
	return updated, err
}

// DeleteInternship removes an internship the caller owns together with its applications.
func (service *Service) DeleteInternship(ctx context.Context, actor credits.Account, internshipID string) error {
	if err := requireRole(actor, credits.RoleEmployer); err != nil {
		return err
	}
	return service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		if _, err := ownedInternship(ctx, txStore, actor, internshipID); err != nil {
			return err
		}
		return txStore.DeleteInternship(ctx, internshipID)
	})
}

// Apply submits a student's application. Non-premium students pay the application cost.
func (service *Service) Apply(ctx context.Context, actor credits.Account, internshipID string, coverLetter string) (Application, error) {
	if err := requireRole(actor, credits.RoleStudent); err != nil {
		return Application{}, err
	}
	var created Application
	err := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		if _, err := txStore.GetInternship(ctx, internshipID); err != nil {
			return err
		}
		_, err := txStore.FindApplication(ctx, internshipID, actor.ID)
		switch {
		case err == nil:
			return ErrDuplicateApplication
		case !errors.Is(err, ErrNotFound):
			return err
		}
		if err := service.gate.ChargeApplication(ctx, txStore.Ledger(), actor.ID, internshipID); err != nil {
			return err
		}
		now := service.nowFn()
		created, err = txStore.CreateApplication(ctx, Application{
			InternshipID: internshipID,
			StudentID:    actor.ID,
			Status:       StatusPending,
			CoverLetter:  strings.TrimSpace(coverLetter),
			AppliedAt:    now,
			UpdatedAt:    now,
		})
		return err
	})
	if err != nil {
		return Application{}, err
	}
	return created, nil
}

// StudentApplications lists the calling student's applications.
func (service *Service) StudentApplications(ctx context.Context, actor credits.Account, page Page) ([]Application, error) {
	if err := requireRole(actor, credits.RoleStudent); err != nil {
		return nil, err
	}
	return service.store.ListApplications(ctx, ApplicationFilter{StudentID: actor.ID, Page: page})
}

// Applicants lists applications to an internship the calling employer owns.
func (service *Service) Applicants(ctx context.Context, actor credits.Account, internshipID string, page Page) ([]Application, error) {
	if err := requireRole(actor, credits.RoleEmployer); err != nil {
		return nil, err
	}
	if _, err := ownedInternship(ctx, service.store, actor, internshipID); err != nil {
		return nil, err
	}
	return service.store.ListApplications(ctx, ApplicationFilter{InternshipID: internshipID, Page: page})
}

// UpdateApplicationStatus moves an application to a new status. Moving into hired
// charges the applicant; the status is left unchanged when the applicant cannot pay.
func (service *Service) UpdateApplicationStatus(ctx context.Context, actor credits.Account, applicationID string, rawStatus string) (Application, error) {
	if err := requireRole(actor, credits.RoleEmployer); err != nil {
		return Application{}, err
	}
	status, err := ParseApplicationStatus(rawStatus)
	if err != nil {
		return Application{}, err
	}
	var updated Application
	err = service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		application, err := txStore.GetApplication(ctx, applicationID)
		if err != nil {
			return err
		}
		internship, err := txStore.GetInternship(ctx, application.InternshipID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if err != nil || internship.EmployerID != actor.ID {
			return fmt.Errorf("%w: application %s belongs to another employer", credits.ErrNotAuthorized, applicationID)
		}
		if status != StatusHired {
			updated, err = txStore.UpdateApplicationStatus(ctx, applicationID, status)
			return err
		}
		// The status write decides who pays; a failed charge rolls it back.
		becameHired, err := txStore.MarkApplicationHired(ctx, applicationID)
		if err != nil {
			return err
		}
		if becameHired {
			if err := service.gate.ChargeHire(ctx, txStore.Ledger(), application.StudentID, application.ID); err != nil {
				return err
			}
		}
		updated, err = txStore.GetApplication(ctx, applicationID)
		return err
	})
	if err != nil {
		return Application{}, err
	}
	return updated, nil
}

// HiredInterns lists hired applications across the calling employer's internships.
func (service *Service) HiredInterns(ctx context.Context, actor credits.Account, page Page) ([]Application, error) {
	if err := requireRole(actor, credits.RoleEmployer); err != nil {
		return nil, err
	}
	return service.store.ListApplications(ctx, ApplicationFilter{EmployerID: actor.ID, Status: StatusHired, Page: page})
}

// StudentProfile returns the calling student's profile.
func (service *Service) StudentProfile(ctx context.Context, actor credits.Account) (StudentProfile, error) {
	if err := requireRole(actor, credits.RoleStudent); err != nil {
		return StudentProfile{}, err
	}
	return service.store.GetStudentProfile(ctx, actor.ID)
}

// UpdateStudentProfile applies profile edits for the calling student.
func (service *Service) UpdateStudentProfile(ctx context.Context, actor credits.Account, update StudentProfileUpdate) (StudentProfile, error) {
	if err := requireRole(actor, credits.RoleStudent); err != nil {
		return StudentProfile{}, err
	}
	return service.store.UpdateStudentProfile(ctx, actor.ID, update)
}

// SaveResume stores the latest structured résumé submitted by a student.
func (service *Service) SaveResume(ctx context.Context, actor credits.Account, resume []byte) error {
	if err := requireRole(actor, credits.RoleStudent); err != nil {
		return err
	}
	if len(resume) == 0 {
		return fmt.Errorf("%w: empty resume", ErrInvalidInput)
	}
	return service.store.SaveResume(ctx, actor.ID, resume)
}

// ApplicantProfile lets an employer read a student's profile.
func (service *Service) ApplicantProfile(ctx context.Context, actor credits.Account, studentID credits.AccountID) (StudentProfile, error) {
	if err := requireRole(actor, credits.RoleEmployer); err != nil {
		return StudentProfile{}, err
	}
	user, err := service.store.GetUser(ctx, studentID)
	if err != nil {
		return StudentProfile{}, err
	}
	if user.Role != credits.RoleStudent {
		return StudentProfile{}, ErrProfileNotFound
	}
	return service.store.GetStudentProfile(ctx, studentID)
}

// EmployerProfile returns the calling employer's company profile.
func (service *Service) EmployerProfile(ctx context.Context, actor credits.Account) (EmployerProfile, error) {
	if err := requireRole(actor, credits.RoleEmployer); err != nil {
		return EmployerProfile{}, err
	}
	return service.store.GetEmployerProfile(ctx, actor.ID)
}

// UpdateEmployerProfile replaces the calling employer's company profile.
func (service *Service) UpdateEmployerProfile(ctx context.Context, actor credits.Account, profile EmployerProfile) (EmployerProfile, error) {
	if err := requireRole(actor, credits.RoleEmployer); err != nil {
		return EmployerProfile{}, err
	}
	profile.CompanyName = strings.TrimSpace(profile.CompanyName)
	if profile.CompanyName == "" {
		return EmployerProfile{}, fmt.Errorf("%w: company name is required", ErrInvalidInput)
	}
	profile.UserID = actor.ID
	return service.store.UpdateEmployerProfile(ctx, profile)
}

// ListUsers is the admin user listing.
func (service *Service) ListUsers(ctx context.Context, actor credits.Account, filter UserFilter) ([]User, error) {
	if err := requireRole(actor, credits.RoleAdmin); err != nil {
		return nil, err
	}
	return service.store.ListUsers(ctx, filter)
}

// GetUser is the admin user lookup.
func (service *Service) GetUser(ctx context.Context, actor credits.Account, userID credits.AccountID) (User, error) {
	if err := requireRole(actor, credits.RoleAdmin); err != nil {
		return User{}, err
	}
	return service.store.GetUser(ctx, userID)
}

// UpdateUser applies admin edits, including role and premium changes.
func (service *Service) UpdateUser(ctx context.Context, actor credits.Account, userID credits.AccountID, update UserUpdate) (User, error) {
	if err := requireRole(actor, credits.RoleAdmin); err != nil {
		return User{}, err
	}
	return service.store.UpdateUser(ctx, userID, update)
}

// DeleteUser removes a user and everything the user owns.
func (service *Service) DeleteUser(ctx context.Context, actor credits.Account, userID credits.AccountID) error {
	if err := requireRole(actor, credits.RoleAdmin); err != nil {
		return err
	}
	return service.store.DeleteUser(ctx, userID)
}

// AdminInternships lists every internship regardless of owner or state.
func (service *Service) AdminInternships(ctx context.Context, actor credits.Account, page Page) ([]Internship, error) {
	if err := requireRole(actor, credits.RoleAdmin); err != nil {
		return nil, err
	}
	return service.store.ListInternships(ctx, InternshipFilter{Page: page})
}

// AdminDeleteInternship removes any internship.
func (service *Service) AdminDeleteInternship(ctx context.Context, actor credits.Account, internshipID string) error {
	if err := requireRole(actor, credits.RoleAdmin); err != nil {
		return err
	}
	return service.store.DeleteInternship(ctx, internshipID)
}

func requireRole(actor credits.Account, role credits.Role) error {
	if actor.ID.IsZero() || actor.Role != role {
		return fmt.Errorf("%w: %s role required", credits.ErrNotAuthorized, role)
	}
	return nil
}

func ownedInternship(ctx context.Context, store Store, actor credits.Account, internshipID string) (Internship, error) {
	internship, err := store.GetInternship(ctx, internshipID)
	if err != nil {
		return Internship{}, err
	}
	if internship.EmployerID != actor.ID {
		return Internship{}, fmt.Errorf("%w: internship %s belongs to another employer", credits.ErrNotAuthorized, internshipID)
	}
	return internship, nil
}

func validateInternshipInput(input InternshipInput) error {
	if strings.TrimSpace(input.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if strings.TrimSpace(input.Description) == "" {
		return fmt.Errorf("%w: description is required", ErrInvalidInput)
	}
	return nil
}

func applyInternshipInput(internship Internship, input InternshipInput) Internship {
	internship.Title = strings.TrimSpace(input.Title)
	internship.Description = strings.TrimSpace(input.Description)
	internship.Requirements = input.Requirements
	internship.Location = input.Location
	internship.Stipend = input.Stipend
	internship.Duration = input.Duration
	internship.Deadline = input.Deadline
	internship.IsActive = input.IsActive
	return internship
}

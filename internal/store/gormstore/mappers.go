package gormstore

import (
	"time"

	"github.com/MarkoPoloResearchLab/internboard/internal/accounts"
	"github.com/MarkoPoloResearchLab/internboard/internal/board"
	"github.com/MarkoPoloResearchLab/internboard/pkg/credits"
)

func mapUserRecord(model User) (accounts.UserRecord, error) {
	userID, role, err := parseUserIdentity(model)
	if err != nil {
		return accounts.UserRecord{}, err
	}
	return accounts.UserRecord{
		ID:             userID,
		Email:          model.Email,
		HashedPassword: model.HashedPassword,
		Role:           role,
		FirstName:      model.FirstName,
		LastName:       model.LastName,
		IsVerified:     model.IsVerified,
		IsPremium:      model.IsPremium,
		Credits:        model.Credits,
	}, nil
}

func mapUser(model User) (board.User, error) {
	userID, role, err := parseUserIdentity(model)
	if err != nil {
		return board.User{}, err
	}
	return board.User{
		ID:                userID,
		Email:             model.Email,
		Role:              role,
		FirstName:         model.FirstName,
		LastName:          model.LastName,
		PhoneNumber:       model.PhoneNumber,
		Address:           model.Address,
		Bio:               model.Bio,
		ProfilePictureURL: model.ProfilePictureURL,
		IsVerified:        model.IsVerified,
		IsPremium:         model.IsPremium,
		Credits:           model.Credits,
		LastCreditRefill:  model.LastCreditRefill.UTC(),
		CreatedAt:         model.CreatedAt.UTC(),
		UpdatedAt:         model.UpdatedAt.UTC(),
	}, nil
}

func mapAccount(model User) (credits.Account, error) {
	userID, role, err := parseUserIdentity(model)
	if err != nil {
		return credits.Account{}, err
	}
	return credits.Account{
		ID:               userID,
		Role:             role,
		IsPremium:        model.IsPremium,
		Credits:          model.Credits,
		LastCreditRefill: model.LastCreditRefill.UTC(),
	}, nil
}

func parseUserIdentity(model User) (credits.AccountID, credits.Role, error) {
	userID, err := credits.NewAccountID(model.UserID)
	if err != nil {
		return credits.AccountID{}, "", wrapStoreError(errorSubjectUser, errorCodeInvalid, err)
	}
	role, err := credits.ParseRole(model.Role)
	if err != nil {
		return credits.AccountID{}, "", wrapStoreError(errorSubjectUser, errorCodeInvalid, err)
	}
	return userID, role, nil
}

func mapEmployerProfile(model EmployerProfile) (board.EmployerProfile, error) {
	userID, err := credits.NewAccountID(model.UserID)
	if err != nil {
		return board.EmployerProfile{}, wrapStoreError(errorSubjectProfile, errorCodeInvalid, err)
	}
	return board.EmployerProfile{
		UserID:             userID,
		CompanyName:        model.CompanyName,
		CompanyDescription: model.CompanyDescription,
		Website:            model.Website,
		Industry:           model.Industry,
		CompanyLogoURL:     model.CompanyLogoURL,
	}, nil
}

func internshipModel(internship board.Internship) Internship {
	return Internship{
		InternshipID: internship.ID,
		EmployerID:   internship.EmployerID.String(),
		Title:        internship.Title,
		Description:  internship.Description,
		Requirements: internship.Requirements,
		Location:     internship.Location,
		Stipend:      internship.Stipend,
		Duration:     internship.Duration,
		DeadlineAt:   utcPointer(internship.Deadline),
		IsActive:     internship.IsActive,
		PostedAt:     internship.PostedAt.UTC(),
	}
}

func mapInternship(model Internship) (board.Internship, error) {
	employerID, err := credits.NewAccountID(model.EmployerID)
	if err != nil {
		return board.Internship{}, wrapStoreError(errorSubjectPosting, errorCodeInvalid, err)
	}
	return board.Internship{
		ID:           model.InternshipID,
		EmployerID:   employerID,
		Title:        model.Title,
		Description:  model.Description,
		Requirements: model.Requirements,
		Location:     model.Location,
		Stipend:      model.Stipend,
		Duration:     model.Duration,
		Deadline:     utcPointer(model.DeadlineAt),
		IsActive:     model.IsActive,
		PostedAt:     model.PostedAt.UTC(),
	}, nil
}

func mapApplication(model Application) (board.Application, error) {
	studentID, err := credits.NewAccountID(model.StudentID)
	if err != nil {
		return board.Application{}, wrapStoreError(errorSubjectApply, errorCodeInvalid, err)
	}
	status, err := board.ParseApplicationStatus(model.Status)
	if err != nil {
		return board.Application{}, wrapStoreError(errorSubjectApply, errorCodeInvalid, err)
	}
	return board.Application{
		ID:           model.ApplicationID,
		InternshipID: model.InternshipID,
		StudentID:    studentID,
		Status:       status,
		CoverLetter:  model.CoverLetter,
		AppliedAt:    model.AppliedAt.UTC(),
		UpdatedAt:    model.UpdatedAt.UTC(),
	}, nil
}

func mapCreditEvent(model CreditEvent) (credits.Event, error) {
	accountID, err := credits.NewAccountID(model.UserID)
	if err != nil {
		return credits.Event{}, err
	}
	eventType, err := credits.ParseEventType(model.Type)
	if err != nil {
		return credits.Event{}, err
	}
	return credits.Event{
		AccountID:    accountID,
		Type:         eventType,
		Amount:       model.Amount,
		BalanceAfter: model.BalanceAfter,
		Reference:    model.Reference,
		CreatedAt:    model.CreatedAt.UTC(),
	}, nil
}

func timeOrNow(value time.Time) time.Time {
	if value.IsZero() {
		return time.Now().UTC()
	}
	return value.UTC()
}

package gormstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/internboard/internal/accounts"
	"github.com/MarkoPoloResearchLab/internboard/internal/board"
	"github.com/MarkoPoloResearchLab/internboard/pkg/credits"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	pgUniqueViolationCode = "23505"
	sqliteConstraintCode  = 19
	errorOperationStore   = "store"
	errorSubjectUser      = "user"
	errorSubjectProfile   = "profile"
	errorSubjectPosting   = "internship"
	errorSubjectApply     = "application"
	errorSubjectCredits   = "credits"
	errorSubjectEvent     = "event"
	errorSubjectOTP       = "otp"
	errorCodeCreate       = "create"
	errorCodeDelete       = "delete"
	errorCodeGet          = "get"
	errorCodeInsert       = "insert"
	errorCodeInvalid      = "invalid"
	errorCodeList         = "list"
	errorCodeLock         = "lock"
	errorCodeUpdate       = "update"
)

// Store implements board.Store and accounts.Store using GORM.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WithTx executes fn within a transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore board.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
}

// Ledger returns a credit store sharing this store's connection or transaction.
func (store *Store) Ledger() credits.Store {
	return &LedgerStore{db: store.db}
}

// FindUserByEmail looks up credentials by normalized email.
func (store *Store) FindUserByEmail(ctx context.Context, email string) (accounts.UserRecord, error) {
	var model User
	err := store.db.WithContext(ctx).Where("email = ?", email).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return accounts.UserRecord{}, accounts.ErrUserNotFound
	}
	if err != nil {
		return accounts.UserRecord{}, wrapStoreError(errorSubjectUser, errorCodeGet, err)
	}
	return mapUserRecord(model)
}

// CreateUser inserts the user and the profile matching its role in one transaction.
func (store *Store) CreateUser(ctx context.Context, user accounts.NewUser) (accounts.UserRecord, error) {
	model := User{
		Email:             user.Email,
		HashedPassword:    user.HashedPassword,
		Role:              user.Role.String(),
		FirstName:         user.FirstName,
		LastName:          user.LastName,
		PhoneNumber:       user.PhoneNumber,
		Address:           user.Address,
		Bio:               user.Bio,
		ProfilePictureURL: user.ProfilePictureURL,
		IsVerified:        user.IsVerified,
		Credits:           user.Credits,
		LastCreditRefill:  user.LastCreditRefill.UTC(),
	}
	err := store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		if err := transaction.Create(&model).Error; err != nil {
			return err
		}
		switch user.Role {
		case credits.RoleStudent:
			return transaction.Create(&StudentProfile{UserID: model.UserID}).Error
		case credits.RoleEmployer:
			return transaction.Create(&EmployerProfile{UserID: model.UserID, CompanyName: user.CompanyName}).Error
		default:
			return nil
		}
	})
	if isUniqueViolation(err) {
		return accounts.UserRecord{}, accounts.ErrEmailTaken
	}
	if err != nil {
		return accounts.UserRecord{}, wrapStoreError(errorSubjectUser, errorCodeCreate, err)
	}
	return mapUserRecord(model)
}

// UpdateUnverifiedUser replaces the pending sign-up details of an unverified user.
// A verified account or a different role leaves the row untouched and reports ErrEmailTaken.
func (store *Store) UpdateUnverifiedUser(ctx context.Context, userID credits.AccountID, user accounts.NewUser) (accounts.UserRecord, error) {
	result := store.db.WithContext(ctx).
		Model(&User{}).
		Where("user_id = ? AND is_verified = ? AND role = ?", userID.String(), false, user.Role.String()).
		Updates(map[string]interface{}{
			"hashed_password":     user.HashedPassword,
			"first_name":          user.FirstName,
			"last_name":           user.LastName,
			"phone_number":        user.PhoneNumber,
			"address":             user.Address,
			"bio":                 user.Bio,
			"profile_picture_url": user.ProfilePictureURL,
		})
	if result.Error != nil {
		return accounts.UserRecord{}, wrapStoreError(errorSubjectUser, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return accounts.UserRecord{}, accounts.ErrEmailTaken
	}
	return store.FindUserByEmail(ctx, user.Email)
}

// MarkVerified flags the user as verified.
func (store *Store) MarkVerified(ctx context.Context, userID credits.AccountID) error {
	return store.updateUserColumns(ctx, userID, map[string]interface{}{"is_verified": true})
}

// UpdatePassword replaces the password hash.
func (store *Store) UpdatePassword(ctx context.Context, userID credits.AccountID, hashedPassword string) error {
	return store.updateUserColumns(ctx, userID, map[string]interface{}{"hashed_password": hashedPassword})
}

// GetUser loads a user by id.
func (store *Store) GetUser(ctx context.Context, userID credits.AccountID) (board.User, error) {
	model, err := store.getUserModel(ctx, userID)
	if err != nil {
		return board.User{}, err
	}
	return mapUser(model)
}

// ListUsers lists users ordered by creation, optionally filtered by role.
func (store *Store) ListUsers(ctx context.Context, filter board.UserFilter) ([]board.User, error) {
	query := store.db.WithContext(ctx).Model(&User{})
	if filter.Role != nil {
		query = query.Where("role = ?", filter.Role.String())
	}
	var rows []User
	if err := paginate(query, filter.Page).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, wrapStoreError(errorSubjectUser, errorCodeList, err)
	}
	users := make([]board.User, 0, len(rows))
	for _, row := range rows {
		user, err := mapUser(row)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

// UpdateUser applies the non-nil fields of update.
func (store *Store) UpdateUser(ctx context.Context, userID credits.AccountID, update board.UserUpdate) (board.User, error) {
	columns := map[string]interface{}{}
	setIfPresent(columns, "first_name", update.FirstName)
	setIfPresent(columns, "last_name", update.LastName)
	setIfPresent(columns, "phone_number", update.PhoneNumber)
	setIfPresent(columns, "address", update.Address)
	setIfPresent(columns, "bio", update.Bio)
	setIfPresent(columns, "profile_picture_url", update.ProfilePictureURL)
	if update.Role != nil {
		columns["role"] = update.Role.String()
	}
	if update.IsPremium != nil {
		columns["is_premium"] = *update.IsPremium
	}
	if len(columns) > 0 {
		if err := store.updateUserColumns(ctx, userID, columns); err != nil {
			return board.User{}, err
		}
	}
	return store.GetUser(ctx, userID)
}

// DeleteUser removes a user with its profiles, postings, applications and credit history.
func (store *Store) DeleteUser(ctx context.Context, userID credits.AccountID) error {
	if !isRowID(userID.String()) {
		return board.ErrUserNotFound
	}
	err := store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		ownedPostings := transaction.Model(&Internship{}).Select("internship_id").Where("employer_id = ?", userID.String())
		if err := transaction.Where("student_id = ? OR internship_id IN (?)", userID.String(), ownedPostings).Delete(&Application{}).Error; err != nil {
			return err
		}
		if err := transaction.Where("employer_id = ?", userID.String()).Delete(&Internship{}).Error; err != nil {
			return err
		}
		for _, model := range []interface{}{&StudentProfile{}, &EmployerProfile{}, &CreditEvent{}} {
			if err := transaction.Where("user_id = ?", userID.String()).Delete(model).Error; err != nil {
				return err
			}
		}
		result := transaction.Where("user_id = ?", userID.String()).Delete(&User{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return board.ErrUserNotFound
		}
		return nil
	})
	if errors.Is(err, board.ErrUserNotFound) {
		return err
	}
	if err != nil {
		return wrapStoreError(errorSubjectUser, errorCodeDelete, err)
	}
	return nil
}

// GetStudentProfile loads a student's profile joined with the user record.
func (store *Store) GetStudentProfile(ctx context.Context, userID credits.AccountID) (board.StudentProfile, error) {
	user, err := store.GetUser(ctx, userID)
	if err != nil {
		return board.StudentProfile{}, err
	}
	var model StudentProfile
	err = store.db.WithContext(ctx).Where("user_id = ?", userID.String()).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return board.StudentProfile{}, board.ErrProfileNotFound
	}
	if err != nil {
		return board.StudentProfile{}, wrapStoreError(errorSubjectProfile, errorCodeGet, err)
	}
	return board.StudentProfile{
		User:         user,
		Education:    model.Education,
		Skills:       model.Skills,
		Experience:   model.Experience,
		ResumeURL:    model.ResumeURL,
		PortfolioURL: model.PortfolioURL,
		Resume:       []byte(model.Resume),
	}, nil
}

// UpdateStudentProfile applies the non-nil fields, creating the profile row when missing.
func (store *Store) UpdateStudentProfile(ctx context.Context, userID credits.AccountID, update board.StudentProfileUpdate) (board.StudentProfile, error) {
	columns := map[string]interface{}{}
	setIfPresent(columns, "education", update.Education)
	setIfPresent(columns, "skills", update.Skills)
	setIfPresent(columns, "experience", update.Experience)
	setIfPresent(columns, "resume_url", update.ResumeURL)
	setIfPresent(columns, "portfolio_url", update.PortfolioURL)
	if err := store.updateStudentColumns(ctx, userID, columns); err != nil {
		return board.StudentProfile{}, err
	}
	return store.GetStudentProfile(ctx, userID)
}

// SaveResume stores the latest structured résumé on the student profile.
func (store *Store) SaveResume(ctx context.Context, userID credits.AccountID, resume []byte) error {
	return store.updateStudentColumns(ctx, userID, map[string]interface{}{"resume": datatypes.JSON(resume)})
}

// GetEmployerProfile loads an employer's company profile.
func (store *Store) GetEmployerProfile(ctx context.Context, userID credits.AccountID) (board.EmployerProfile, error) {
	var model EmployerProfile
	err := store.db.WithContext(ctx).Where("user_id = ?", userID.String()).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return board.EmployerProfile{}, board.ErrProfileNotFound
	}
	if err != nil {
		return board.EmployerProfile{}, wrapStoreError(errorSubjectProfile, errorCodeGet, err)
	}
	return mapEmployerProfile(model)
}

// UpdateEmployerProfile replaces the company profile, creating it when missing.
func (store *Store) UpdateEmployerProfile(ctx context.Context, profile board.EmployerProfile) (board.EmployerProfile, error) {
	model := EmployerProfile{UserID: profile.UserID.String()}
	err := store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		if err := transaction.Where("user_id = ?", model.UserID).FirstOrCreate(&model, EmployerProfile{UserID: model.UserID, CompanyName: profile.CompanyName}).Error; err != nil {
			return err
		}
		return transaction.Model(&model).Updates(map[string]interface{}{
			"company_name":        profile.CompanyName,
			"company_description": profile.CompanyDescription,
			"website":             profile.Website,
			"industry":            profile.Industry,
			"company_logo_url":    profile.CompanyLogoURL,
		}).Error
	})
	if err != nil {
		return board.EmployerProfile{}, wrapStoreError(errorSubjectProfile, errorCodeUpdate, err)
	}
	return store.GetEmployerProfile(ctx, profile.UserID)
}

// CreateInternship inserts a posting.
func (store *Store) CreateInternship(ctx context.Context, internship board.Internship) (board.Internship, error) {
	model := internshipModel(internship)
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return board.Internship{}, wrapStoreError(errorSubjectPosting, errorCodeCreate, err)
	}
	return mapInternship(model)
}

// GetInternship loads a posting.
func (store *Store) GetInternship(ctx context.Context, internshipID string) (board.Internship, error) {
	if !isRowID(internshipID) {
		return board.Internship{}, board.ErrInternshipNotFound
	}
	var model Internship
	err := store.db.WithContext(ctx).Where("internship_id = ?", internshipID).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return board.Internship{}, board.ErrInternshipNotFound
	}
	if err != nil {
		return board.Internship{}, wrapStoreError(errorSubjectPosting, errorCodeGet, err)
	}
	return mapInternship(model)
}

// ListInternships searches title, description and location case-insensitively, newest first.
func (store *Store) ListInternships(ctx context.Context, filter board.InternshipFilter) ([]board.Internship, error) {
	query := store.db.WithContext(ctx).Model(&Internship{})
	if !filter.EmployerID.IsZero() {
		query = query.Where("employer_id = ?", filter.EmployerID.String())
	}
	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	if filter.Query != "" {
		pattern := "%" + escapeLike(strings.ToLower(filter.Query)) + "%"
		query = query.Where(
			"LOWER(title) LIKE ? ESCAPE '\\' OR LOWER(description) LIKE ? ESCAPE '\\' OR LOWER(location) LIKE ? ESCAPE '\\'",
			pattern, pattern, pattern,
		)
	}
	var rows []Internship
	if err := paginate(query, filter.Page).Order("posted_at DESC").Find(&rows).Error; err != nil {
		return nil, wrapStoreError(errorSubjectPosting, errorCodeList, err)
	}
	internships := make([]board.Internship, 0, len(rows))
	for _, row := range rows {
		internship, err := mapInternship(row)
		if err != nil {
			return nil, err
		}
		internships = append(internships, internship)
	}
	return internships, nil
}

// UpdateInternship saves the editable fields.
func (store *Store) UpdateInternship(ctx context.Context, internship board.Internship) (board.Internship, error) {
	result := store.db.WithContext(ctx).
		Model(&Internship{}).
		Where("internship_id = ?", internship.ID).
		Updates(map[string]interface{}{
			"title":        internship.Title,
			"description":  internship.Description,
			"requirements": internship.Requirements,
			"location":     internship.Location,
			"stipend":      internship.Stipend,
			"duration":     internship.Duration,
			"deadline_at":  utcPointer(internship.Deadline),
			"is_active":    internship.IsActive,
		})
	if result.Error != nil {
		return board.Internship{}, wrapStoreError(errorSubjectPosting, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return board.Internship{}, board.ErrInternshipNotFound
	}
	return store.GetInternship(ctx, internship.ID)
}

// DeleteInternship removes a posting and its applications.
func (store *Store) DeleteInternship(ctx context.Context, internshipID string) error {
	if !isRowID(internshipID) {
		return board.ErrInternshipNotFound
	}
	err := store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		if err := transaction.Where("internship_id = ?", internshipID).Delete(&Application{}).Error; err != nil {
			return err
		}
		result := transaction.Where("internship_id = ?", internshipID).Delete(&Internship{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return board.ErrInternshipNotFound
		}
		return nil
	})
	if errors.Is(err, board.ErrInternshipNotFound) {
		return err
	}
	if err != nil {
		return wrapStoreError(errorSubjectPosting, errorCodeDelete, err)
	}
	return nil
}

// CreateApplication inserts an application. The unique index rejects a second application
// by the same student, which rolls back any debit made in the same transaction.
func (store *Store) CreateApplication(ctx context.Context, application board.Application) (board.Application, error) {
	model := Application{
		InternshipID: application.InternshipID,
		StudentID:    application.StudentID.String(),
		Status:       application.Status.String(),
		CoverLetter:  application.CoverLetter,
		AppliedAt:    application.AppliedAt.UTC(),
		UpdatedAt:    application.UpdatedAt.UTC(),
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err) {
		return board.Application{}, board.ErrDuplicateApplication
	}
	if err != nil {
		return board.Application{}, wrapStoreError(errorSubjectApply, errorCodeCreate, err)
	}
	return mapApplication(model)
}

// GetApplication loads an application.
func (store *Store) GetApplication(ctx context.Context, applicationID string) (board.Application, error) {
	if !isRowID(applicationID) {
		return board.Application{}, board.ErrApplicationNotFound
	}
	return store.takeApplication(ctx, "application_id = ?", applicationID)
}

// FindApplication loads a student's application to an internship.
func (store *Store) FindApplication(ctx context.Context, internshipID string, studentID credits.AccountID) (board.Application, error) {
	if !isRowID(internshipID) || !isRowID(studentID.String()) {
		return board.Application{}, board.ErrApplicationNotFound
	}
	return store.takeApplication(ctx, "internship_id = ? AND student_id = ?", internshipID, studentID.String())
}

// ListApplications lists applications newest first.
func (store *Store) ListApplications(ctx context.Context, filter board.ApplicationFilter) ([]board.Application, error) {
	query := store.db.WithContext(ctx).Model(&Application{})
	if filter.InternshipID != "" {
		query = query.Where("applications.internship_id = ?", filter.InternshipID)
	}
	if !filter.StudentID.IsZero() {
		query = query.Where("applications.student_id = ?", filter.StudentID.String())
	}
	if !filter.EmployerID.IsZero() {
		query = query.
			Joins("JOIN internships ON internships.internship_id = applications.internship_id").
			Where("internships.employer_id = ?", filter.EmployerID.String())
	}
	if filter.Status != "" {
		query = query.Where("applications.status = ?", filter.Status.String())
	}
	var rows []Application
	err := paginate(query, filter.Page).
		Select("applications.*").
		Order("applications.applied_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectApply, errorCodeList, err)
	}
	applications := make([]board.Application, 0, len(rows))
	for _, row := range rows {
		application, err := mapApplication(row)
		if err != nil {
			return nil, err
		}
		applications = append(applications, application)
	}
	return applications, nil
}

// UpdateApplicationStatus writes the new status.
func (store *Store) UpdateApplicationStatus(ctx context.Context, applicationID string, status board.ApplicationStatus) (board.Application, error) {
	result := store.db.WithContext(ctx).
		Model(&Application{}).
		Where("application_id = ?", applicationID).
		Update("status", status.String())
	if result.Error != nil {
		return board.Application{}, wrapStoreError(errorSubjectApply, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return board.Application{}, board.ErrApplicationNotFound
	}
	return store.GetApplication(ctx, applicationID)
}

// MarkApplicationHired sets status hired only when it is not hired yet.
func (store *Store) MarkApplicationHired(ctx context.Context, applicationID string) (bool, error) {
	if !isRowID(applicationID) {
		return false, board.ErrApplicationNotFound
	}
	result := store.db.WithContext(ctx).
		Model(&Application{}).
		Where("application_id = ? AND status <> ?", applicationID, board.StatusHired.String()).
		Update("status", board.StatusHired.String())
	if result.Error != nil {
		return false, wrapStoreError(errorSubjectApply, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 1 {
		return true, nil
	}
	if _, err := store.GetApplication(ctx, applicationID); err != nil {
		return false, err
	}
	return false, nil
}

func (store *Store) takeApplication(ctx context.Context, condition string, args ...interface{}) (board.Application, error) {
	var model Application
	err := store.db.WithContext(ctx).Where(condition, args...).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return board.Application{}, board.ErrApplicationNotFound
	}
	if err != nil {
		return board.Application{}, wrapStoreError(errorSubjectApply, errorCodeGet, err)
	}
	return mapApplication(model)
}

func (store *Store) getUserModel(ctx context.Context, userID credits.AccountID) (User, error) {
	if !isRowID(userID.String()) {
		return User{}, board.ErrUserNotFound
	}
	var model User
	err := store.db.WithContext(ctx).Where("user_id = ?", userID.String()).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, board.ErrUserNotFound
	}
	if err != nil {
		return User{}, wrapStoreError(errorSubjectUser, errorCodeGet, err)
	}
	return model, nil
}

func (store *Store) updateUserColumns(ctx context.Context, userID credits.AccountID, columns map[string]interface{}) error {
	if !isRowID(userID.String()) {
		return board.ErrUserNotFound
	}
	result := store.db.WithContext(ctx).Model(&User{}).Where("user_id = ?", userID.String()).Updates(columns)
	if result.Error != nil {
		return wrapStoreError(errorSubjectUser, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return board.ErrUserNotFound
	}
	return nil
}

func (store *Store) updateStudentColumns(ctx context.Context, userID credits.AccountID, columns map[string]interface{}) error {
	if _, err := store.getUserModel(ctx, userID); err != nil {
		return err
	}
	err := store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		var model StudentProfile
		if err := transaction.Where("user_id = ?", userID.String()).FirstOrCreate(&model, StudentProfile{UserID: userID.String()}).Error; err != nil {
			return err
		}
		if len(columns) == 0 {
			return nil
		}
		return transaction.Model(&model).Updates(columns).Error
	})
	if err != nil {
		return wrapStoreError(errorSubjectProfile, errorCodeUpdate, err)
	}
	return nil
}

// isRowID rejects ids Postgres would refuse to compare against a uuid column.
func isRowID(raw string) bool {
	_, err := uuid.Parse(raw)
	return err == nil
}

func paginate(query *gorm.DB, page board.Page) *gorm.DB {
	if page.Limit == 0 {
		page = board.DefaultPage()
	}
	return query.Offset(page.Skip).Limit(page.Limit)
}

func setIfPresent(columns map[string]interface{}, column string, value *string) {
	if value != nil {
		columns[column] = *value
	}
}

func escapeLike(raw string) string {
	replacer := strings.NewReplacer("\\", "\\\\", "%", "\\%", "_", "\\_")
	return replacer.Replace(raw)
}

func utcPointer(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	utc := value.UTC()
	return &utc
}

func wrapStoreError(subject string, code string, err error) error {
	return credits.WrapError(errorOperationStore, subject, code, err)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}

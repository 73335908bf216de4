package board_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/internboard/internal/accounts"
	"github.com/MarkoPoloResearchLab/internboard/internal/board"
	"github.com/MarkoPoloResearchLab/internboard/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/internboard/pkg/credits"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var boardNow = time.Date(2026, time.March, 2, 9, 30, 0, 0, time.UTC)

type boardFixture struct {
	store    *gormstore.Store
	ledger   *gormstore.LedgerStore
	credits  *credits.Service
	service  *board.Service
	student  credits.Account
	employer credits.Account
	admin    credits.Account
}

func TestApplyDebitsOneCredit(test *testing.T) {
	test.Parallel()
	fixture := newBoardFixture(test)
	internship := fixture.mustPost(test, "Backend intern")

	application, err := fixture.service.Apply(context.Background(), fixture.student, internship.ID, "  hello  ")
	if err != nil {
		test.Fatalf("apply: %v", err)
	}
	if application.Status != board.StatusPending || application.CoverLetter != "hello" {
		test.Fatalf("unexpected application %+v", application)
	}
	if balance := fixture.balance(test, fixture.student.ID); balance != 4 {
		test.Fatalf("expected 4 credits, got %d", balance)
	}
	events := fixture.history(test, fixture.student.ID)
	if len(events) != 1 || events[0].Type != credits.EventApplyDebit || events[0].Amount != -1 || events[0].Reference != internship.ID {
		test.Fatalf("unexpected events %+v", events)
	}
}

func TestApplyFailureLeavesNoTrace(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name        string
		prepare     func(test *testing.T, fixture *boardFixture) (credits.Account, string)
		expectedErr error
		balance     int64
	}{
		{
			name: "duplicate application",
			prepare: func(test *testing.T, fixture *boardFixture) (credits.Account, string) {
				internship := fixture.mustPost(test, "Backend intern")
				if _, err := fixture.service.Apply(context.Background(), fixture.student, internship.ID, ""); err != nil {
					test.Fatalf("first apply: %v", err)
				}
				return fixture.student, internship.ID
			},
			expectedErr: board.ErrDuplicateApplication,
			balance:     4,
		},
		{
			name: "empty balance",
			prepare: func(test *testing.T, fixture *boardFixture) (credits.Account, string) {
				fixture.setCredits(test, fixture.student.ID, 0)
				return fixture.student, fixture.mustPost(test, "Backend intern").ID
			},
			expectedErr: credits.ErrInsufficientCredits,
			balance:     0,
		},
		{
			name: "missing internship",
			prepare: func(test *testing.T, fixture *boardFixture) (credits.Account, string) {
				return fixture.student, "9a0d7c51-1111-4000-8000-000000000000"
			},
			expectedErr: board.ErrInternshipNotFound,
			balance:     5,
		},
		{
			name: "employer cannot apply",
			prepare: func(test *testing.T, fixture *boardFixture) (credits.Account, string) {
				return fixture.employer, fixture.mustPost(test, "Backend intern").ID
			},
			expectedErr: credits.ErrNotAuthorized,
			balance:     5,
		},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			fixture := newBoardFixture(test)
			actor, internshipID := testCase.prepare(test, fixture)
			eventsBefore := len(fixture.history(test, fixture.student.ID))

			_, err := fixture.service.Apply(context.Background(), actor, internshipID, "")
			if !errors.Is(err, testCase.expectedErr) {
				test.Fatalf("expected %v, got %v", testCase.expectedErr, err)
			}
			if balance := fixture.balance(test, fixture.student.ID); balance != testCase.balance {
				test.Fatalf("expected %d credits, got %d", testCase.balance, balance)
			}
			if eventsAfter := len(fixture.history(test, fixture.student.ID)); eventsAfter != eventsBefore {
				test.Fatalf("expected no new events, had %d now %d", eventsBefore, eventsAfter)
			}
		})
	}
}

func TestPremiumStudentAppliesForFree(test *testing.T) {
	test.Parallel()
	fixture := newBoardFixture(test)
	premium := true
	if _, err := fixture.service.UpdateUser(context.Background(), fixture.admin, fixture.student.ID, board.UserUpdate{IsPremium: &premium}); err != nil {
		test.Fatalf("grant premium: %v", err)
	}
	fixture.setCredits(test, fixture.student.ID, 0)
	fixture.student.IsPremium = true

	if _, err := fixture.service.Apply(context.Background(), fixture.student, fixture.mustPost(test, "Backend intern").ID, ""); err != nil {
		test.Fatalf("premium apply: %v", err)
	}
	if balance := fixture.balance(test, fixture.student.ID); balance != 0 {
		test.Fatalf("premium balance changed to %d", balance)
	}
	if events := fixture.history(test, fixture.student.ID); len(events) != 0 {
		test.Fatalf("premium apply recorded events %+v", events)
	}
}

func TestConcurrentApplicationsRespectBalance(test *testing.T) {
	test.Parallel()
	fixture := newBoardFixture(test)
	fixture.setCredits(test, fixture.student.ID, 3)
	internshipIDs := make([]string, 0, 8)
	for index := 0; index < 8; index++ {
		internshipIDs = append(internshipIDs, fixture.mustPost(test, "Intern").ID)
	}

	var (
		waitGroup sync.WaitGroup
		mutex     sync.Mutex
		accepted  int
	)
	for _, internshipID := range internshipIDs {
		internshipID := internshipID
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			_, err := fixture.service.Apply(context.Background(), fixture.student, internshipID, "")
			if err != nil && !errors.Is(err, credits.ErrInsufficientCredits) {
				test.Errorf("unexpected error: %v", err)
				return
			}
			if err == nil {
				mutex.Lock()
				accepted++
				mutex.Unlock()
			}
		}()
	}
	waitGroup.Wait()

	if accepted != 3 {
		test.Fatalf("expected 3 accepted applications, got %d", accepted)
	}
	if balance := fixture.balance(test, fixture.student.ID); balance != 0 {
		test.Fatalf("expected empty balance, got %d", balance)
	}
}

func TestHireChargesApplicant(test *testing.T) {
	test.Parallel()
	fixture := newBoardFixture(test)
	application := fixture.mustApply(test, fixture.mustPost(test, "Backend intern").ID)

	hired, err := fixture.service.UpdateApplicationStatus(context.Background(), fixture.employer, application.ID, "HIRED")
	if err != nil {
		test.Fatalf("hire: %v", err)
	}
	if hired.Status != board.StatusHired {
		test.Fatalf("expected hired, got %s", hired.Status)
	}
	if balance := fixture.balance(test, fixture.student.ID); balance != 3 {
		test.Fatalf("expected 3 credits after apply and hire, got %d", balance)
	}
	if balance := fixture.balance(test, fixture.employer.ID); balance != 5 {
		test.Fatalf("employer balance changed to %d", balance)
	}

	if _, err := fixture.service.UpdateApplicationStatus(context.Background(), fixture.employer, application.ID, "hired"); err != nil {
		test.Fatalf("repeat hire: %v", err)
	}
	if balance := fixture.balance(test, fixture.student.ID); balance != 3 {
		test.Fatalf("repeat hire charged again, balance %d", balance)
	}
	interns, err := fixture.service.HiredInterns(context.Background(), fixture.employer, board.DefaultPage())
	if err != nil {
		test.Fatalf("hired interns: %v", err)
	}
	if len(interns) != 1 || interns[0].ID != application.ID {
		test.Fatalf("unexpected hired interns %+v", interns)
	}
}

func TestHireAfterStaleReadChargesOnce(test *testing.T) {
	test.Parallel()
	fixture := newBoardFixture(test)
	application := fixture.mustApply(test, fixture.mustPost(test, "Backend intern").ID)

	if _, err := fixture.service.UpdateApplicationStatus(context.Background(), fixture.employer, application.ID, "hired"); err != nil {
		test.Fatalf("hire: %v", err)
	}
	// A request that read the application before the first hire committed still sees pending.
	staleService, err := board.NewService(staleApplicationStore{Store: fixture.store, snapshot: application}, fixture.credits, func() time.Time { return boardNow })
	if err != nil {
		test.Fatalf("board service: %v", err)
	}
	if _, err := staleService.UpdateApplicationStatus(context.Background(), fixture.employer, application.ID, "hired"); err != nil {
		test.Fatalf("second hire: %v", err)
	}

	if balance := fixture.balance(test, fixture.student.ID); balance != 3 {
		test.Fatalf("expected 3 credits after one apply and one hire, got %d", balance)
	}
	if hires := countEvents(fixture.history(test, fixture.student.ID), credits.EventHireDebit); hires != 1 {
		test.Fatalf("expected one hire_debit event, got %d", hires)
	}
}

func TestConcurrentHiresChargeOnce(test *testing.T) {
	test.Parallel()
	fixture := newBoardFixture(test)
	application := fixture.mustApply(test, fixture.mustPost(test, "Backend intern").ID)

	var waitGroup sync.WaitGroup
	for attempt := 0; attempt < 6; attempt++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			if _, err := fixture.service.UpdateApplicationStatus(context.Background(), fixture.employer, application.ID, "hired"); err != nil {
				test.Errorf("hire: %v", err)
			}
		}()
	}
	waitGroup.Wait()

	if balance := fixture.balance(test, fixture.student.ID); balance != 3 {
		test.Fatalf("expected 3 credits, got %d", balance)
	}
	if hires := countEvents(fixture.history(test, fixture.student.ID), credits.EventHireDebit); hires != 1 {
		test.Fatalf("expected one hire_debit event, got %d", hires)
	}
}

func TestHireDeniedKeepsStatus(test *testing.T) {
	test.Parallel()
	fixture := newBoardFixture(test)
	application := fixture.mustApply(test, fixture.mustPost(test, "Backend intern").ID)
	fixture.setCredits(test, fixture.student.ID, 0)

	_, err := fixture.service.UpdateApplicationStatus(context.Background(), fixture.employer, application.ID, "hired")
	if !errors.Is(err, credits.ErrInsufficientCredits) {
		test.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
	if !strings.Contains(err.Error(), "applicant") {
		test.Fatalf("expected applicant in message, got %q", err.Error())
	}
	applications, err := fixture.service.StudentApplications(context.Background(), fixture.student, board.DefaultPage())
	if err != nil {
		test.Fatalf("student applications: %v", err)
	}
	if len(applications) != 1 || applications[0].Status != board.StatusPending {
		test.Fatalf("status changed after denied hire: %+v", applications)
	}
}

func TestNonHireTransitionsAreFree(test *testing.T) {
	test.Parallel()
	fixture := newBoardFixture(test)
	application := fixture.mustApply(test, fixture.mustPost(test, "Backend intern").ID)
	for _, status := range []string{"reviewed", "accepted", "rejected", "pending"} {
		updated, err := fixture.service.UpdateApplicationStatus(context.Background(), fixture.employer, application.ID, status)
		if err != nil {
			test.Fatalf("status %s: %v", status, err)
		}
		if updated.Status.String() != status {
			test.Fatalf("expected %s, got %s", status, updated.Status)
		}
	}
	if balance := fixture.balance(test, fixture.student.ID); balance != 4 {
		test.Fatalf("expected 4 credits, got %d", balance)
	}
	if _, err := fixture.service.UpdateApplicationStatus(context.Background(), fixture.employer, application.ID, "shortlisted"); !errors.Is(err, board.ErrInvalidStatus) {
		test.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestOtherEmployerCannotManagePosting(test *testing.T) {
	test.Parallel()
	fixture := newBoardFixture(test)
	internship := fixture.mustPost(test, "Backend intern")
	application := fixture.mustApply(test, internship.ID)
	rival := fixture.mustAccount(test, "rival@example.com", credits.RoleEmployer)
	ctx := context.Background()

	if _, err := fixture.service.UpdateApplicationStatus(ctx, rival, application.ID, "hired"); !errors.Is(err, credits.ErrNotAuthorized) {
		test.Fatalf("expected ErrNotAuthorized on status, got %v", err)
	}
	if _, err := fixture.service.Applicants(ctx, rival, internship.ID, board.DefaultPage()); !errors.Is(err, credits.ErrNotAuthorized) {
		test.Fatalf("expected ErrNotAuthorized on applicants, got %v", err)
	}
	if err := fixture.service.DeleteInternship(ctx, rival, internship.ID); !errors.Is(err, credits.ErrNotAuthorized) {
		test.Fatalf("expected ErrNotAuthorized on delete, got %v", err)
	}
	if balance := fixture.balance(test, fixture.student.ID); balance != 4 {
		test.Fatalf("rival hire charged the applicant, balance %d", balance)
	}
}

func TestInternshipLifecycle(test *testing.T) {
	test.Parallel()
	fixture := newBoardFixture(test)
	ctx := context.Background()
	if _, err := fixture.service.CreateInternship(ctx, fixture.employer, board.InternshipInput{Title: " ", Description: "x"}); !errors.Is(err, board.ErrInvalidInput) {
		test.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := fixture.service.CreateInternship(ctx, fixture.student, board.InternshipInput{Title: "x", Description: "x"}); !errors.Is(err, credits.ErrNotAuthorized) {
		test.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
	internship := fixture.mustPost(test, "Data intern")

	updated, err := fixture.service.UpdateInternship(ctx, fixture.employer, internship.ID, board.InternshipInput{Title: "Data engineering intern", Description: "Pipelines", Location: "Remote"})
	if err != nil {
		test.Fatalf("update: %v", err)
	}
	if updated.Title != "Data engineering intern" || updated.IsActive {
		test.Fatalf("unexpected update %+v", updated)
	}
	active, err := fixture.service.ListInternships(ctx, "remote", true, board.DefaultPage())
	if err != nil {
		test.Fatalf("list active: %v", err)
	}
	if len(active) != 0 {
		test.Fatalf("inactive posting listed as active")
	}
	all, err := fixture.service.ListInternships(ctx, "REMOTE", false, board.DefaultPage())
	if err != nil {
		test.Fatalf("list all: %v", err)
	}
	if len(all) != 1 {
		test.Fatalf("expected one match, got %d", len(all))
	}
	if err := fixture.service.DeleteInternship(ctx, fixture.employer, internship.ID); err != nil {
		test.Fatalf("delete: %v", err)
	}
	if _, err := fixture.service.GetInternship(ctx, internship.ID); !errors.Is(err, board.ErrNotFound) {
		test.Fatalf("expected not found, got %v", err)
	}
}

func TestProfiles(test *testing.T) {
	test.Parallel()
	fixture := newBoardFixture(test)
	ctx := context.Background()
	education := "BSc Computer Science"
	if _, err := fixture.service.UpdateStudentProfile(ctx, fixture.student, board.StudentProfileUpdate{Education: &education}); err != nil {
		test.Fatalf("update student profile: %v", err)
	}
	profile, err := fixture.service.ApplicantProfile(ctx, fixture.employer, fixture.student.ID)
	if err != nil {
		test.Fatalf("applicant profile: %v", err)
	}
	if profile.Education != education {
		test.Fatalf("unexpected education %q", profile.Education)
	}
	if _, err := fixture.service.ApplicantProfile(ctx, fixture.employer, fixture.employer.ID); !errors.Is(err, board.ErrProfileNotFound) {
		test.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
	if _, err := fixture.service.UpdateEmployerProfile(ctx, fixture.employer, board.EmployerProfile{CompanyName: " "}); !errors.Is(err, board.ErrInvalidInput) {
		test.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	company, err := fixture.service.UpdateEmployerProfile(ctx, fixture.employer, board.EmployerProfile{CompanyName: "Initech", Industry: "Software"})
	if err != nil {
		test.Fatalf("update employer profile: %v", err)
	}
	if company.CompanyName != "Initech" || company.Industry != "Software" {
		test.Fatalf("unexpected company %+v", company)
	}
	if err := fixture.service.SaveResume(ctx, fixture.student, nil); !errors.Is(err, board.ErrInvalidInput) {
		test.Fatalf("expected ErrInvalidInput for empty resume, got %v", err)
	}
}

func TestAdminOperationsRequireAdmin(test *testing.T) {
	test.Parallel()
	fixture := newBoardFixture(test)
	ctx := context.Background()
	if _, err := fixture.service.ListUsers(ctx, fixture.employer, board.UserFilter{Page: board.DefaultPage()}); !errors.Is(err, credits.ErrNotAuthorized) {
		test.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
	role := credits.RoleStudent
	users, err := fixture.service.ListUsers(ctx, fixture.admin, board.UserFilter{Role: &role, Page: board.DefaultPage()})
	if err != nil {
		test.Fatalf("list users: %v", err)
	}
	if len(users) != 1 || users[0].ID != fixture.student.ID {
		test.Fatalf("unexpected users %+v", users)
	}
	internship := fixture.mustPost(test, "Backend intern")
	if err := fixture.service.AdminDeleteInternship(ctx, fixture.admin, internship.ID); err != nil {
		test.Fatalf("admin delete internship: %v", err)
	}
	if err := fixture.service.DeleteUser(ctx, fixture.admin, fixture.student.ID); err != nil {
		test.Fatalf("delete user: %v", err)
	}
	if _, err := fixture.service.GetUser(ctx, fixture.admin, fixture.student.ID); !errors.Is(err, board.ErrUserNotFound) {
		test.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestNewPage(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name      string
		skip      int
		limit     int
		expected  board.Page
		expectErr bool
	}{
		{name: "default limit", skip: 0, limit: 0, expected: board.Page{Limit: 100}},
		{name: "explicit", skip: 20, limit: 10, expected: board.Page{Skip: 20, Limit: 10}},
		{name: "negative skip", skip: -1, limit: 10, expectErr: true},
		{name: "limit above max", skip: 0, limit: 101, expectErr: true},
		{name: "negative limit", skip: 0, limit: -5, expectErr: true},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			page, err := board.NewPage(testCase.skip, testCase.limit)
			if testCase.expectErr {
				if !errors.Is(err, board.ErrInvalidPage) {
					test.Fatalf("expected ErrInvalidPage, got %v", err)
				}
				return
			}
			if err != nil {
				test.Fatalf("unexpected error: %v", err)
			}
			if page != testCase.expected {
				test.Fatalf("expected %+v, got %+v", testCase.expected, page)
			}
		})
	}
}

func newBoardFixture(test *testing.T) *boardFixture {
	test.Helper()
	database, err := gorm.Open(sqlite.Open(test.TempDir()+"/board.db"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		test.Fatalf("sqlite open failed: %v", err)
	}
	sqlDB, err := database.DB()
	if err != nil {
		test.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	test.Cleanup(func() { _ = sqlDB.Close() })
	if err := gormstore.Migrate(database); err != nil {
		test.Fatalf("automigrate failed: %v", err)
	}
	clock := func() time.Time { return boardNow }
	ledger := gormstore.NewLedgerStore(database)
	creditService, err := credits.NewService(ledger, clock)
	if err != nil {
		test.Fatalf("credits service: %v", err)
	}
	store := gormstore.New(database)
	service, err := board.NewService(store, creditService, clock)
	if err != nil {
		test.Fatalf("board service: %v", err)
	}
	fixture := &boardFixture{store: store, ledger: ledger, credits: creditService, service: service}
	fixture.student = fixture.mustAccount(test, "student@example.com", credits.RoleStudent)
	fixture.employer = fixture.mustAccount(test, "employer@example.com", credits.RoleEmployer)
	fixture.admin = fixture.mustAccount(test, "admin@example.com", credits.RoleAdmin)
	return fixture
}

func (fixture *boardFixture) mustAccount(test *testing.T, email string, role credits.Role) credits.Account {
	test.Helper()
	user, err := fixture.store.CreateUser(context.Background(), accounts.NewUser{
		Email:            email,
		HashedPassword:   "hash",
		Role:             role,
		IsVerified:       true,
		Credits:          5,
		LastCreditRefill: boardNow,
		CompanyName:      "Acme",
	})
	if err != nil {
		test.Fatalf("create user: %v", err)
	}
	return credits.Account{ID: user.ID, Role: user.Role, Credits: user.Credits, LastCreditRefill: boardNow}
}

func (fixture *boardFixture) mustPost(test *testing.T, title string) board.Internship {
	test.Helper()
	internship, err := fixture.service.CreateInternship(context.Background(), fixture.employer, board.InternshipInput{
		Title:       title,
		Description: "Join the platform team",
		Location:    "Remote",
		IsActive:    true,
	})
	if err != nil {
		test.Fatalf("create internship: %v", err)
	}
	return internship
}

func (fixture *boardFixture) mustApply(test *testing.T, internshipID string) board.Application {
	test.Helper()
	application, err := fixture.service.Apply(context.Background(), fixture.student, internshipID, "")
	if err != nil {
		test.Fatalf("apply: %v", err)
	}
	return application
}

func (fixture *boardFixture) setCredits(test *testing.T, accountID credits.AccountID, balance int64) {
	test.Helper()
	if err := fixture.ledger.ResetCredits(context.Background(), accountID, balance, boardNow); err != nil {
		test.Fatalf("reset credits: %v", err)
	}
}

func (fixture *boardFixture) balance(test *testing.T, accountID credits.AccountID) int64 {
	test.Helper()
	account, err := fixture.ledger.LockAccount(context.Background(), accountID)
	if err != nil {
		test.Fatalf("lock account: %v", err)
	}
	return account.Credits
}

func (fixture *boardFixture) history(test *testing.T, accountID credits.AccountID) []credits.Event {
	test.Helper()
	events, err := fixture.credits.History(context.Background(), accountID, 0)
	if err != nil {
		test.Fatalf("history: %v", err)
	}
	return events
}

// staleApplicationStore serves a fixed application snapshot, as a reader racing a commit would.
type staleApplicationStore struct {
	board.Store
	snapshot board.Application
}

func (store staleApplicationStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore board.Store) error) error {
	return store.Store.WithTx(ctx, func(ctx context.Context, txStore board.Store) error {
		return fn(ctx, staleApplicationStore{Store: txStore, snapshot: store.snapshot})
	})
}

func (store staleApplicationStore) GetApplication(ctx context.Context, applicationID string) (board.Application, error) {
	if applicationID == store.snapshot.ID {
		return store.snapshot, nil
	}
	return store.Store.GetApplication(ctx, applicationID)
}

func countEvents(events []credits.Event, eventType credits.EventType) int {
	count := 0
	for _, event := range events {
		if event.Type == eventType {
			count++
		}
	}
	return count
}

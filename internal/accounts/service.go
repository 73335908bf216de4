package accounts

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/internboard/internal/notify"
	"github.com/MarkoPoloResearchLab/internboard/pkg/credits"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength  = 8
	defaultOTPTTL      = 10 * time.Minute
	otpDigits          = 6
	defaultCompanyName = "New Company"
)

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// WithNotifier sets where verification and reset codes are sent.
func WithNotifier(notifier notify.Notifier) ServiceOption {
	return func(service *Service) {
		service.notifier = notifier
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithStartingCredits sets the balance new accounts open with.
func WithStartingCredits(startingCredits int64) ServiceOption {
	return func(service *Service) {
		service.startingCredits = startingCredits
	}
}

// WithOTPTTL overrides how long a one-time password stays valid.
func WithOTPTTL(ttl time.Duration) ServiceOption {
	return func(service *Service) {
		service.otpTTL = ttl
	}
}

// WithPasswordCost overrides the bcrypt cost.
func WithPasswordCost(cost int) ServiceOption {
	return func(service *Service) {
		service.passwordCost = cost
	}
}

// WithCodeGenerator replaces the random one-time password source.
func WithCodeGenerator(generate func() (string, error)) ServiceOption {
	return func(service *Service) {
		service.generateCode = generate
	}
}

// Service handles registration, verification, login and password recovery.
type Service struct {
	store           Store
	otps            OTPStore
	tokens          *TokenIssuer
	nowFn           func() time.Time
	notifier        notify.Notifier
	logger          *zap.Logger
	validate        *validator.Validate
	startingCredits int64
	otpTTL          time.Duration
	passwordCost    int
	generateCode    func() (string, error)
}

// NewService wires a Service.
func NewService(store Store, otps OTPStore, tokens *TokenIssuer, now func() time.Time, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if otps == nil {
		return nil, fmt.Errorf("%w: otp store dependency is nil", ErrInvalidServiceConfig)
	}
	if tokens == nil {
		return nil, fmt.Errorf("%w: token issuer dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{
		store:           store,
		otps:            otps,
		tokens:          tokens,
		nowFn:           now,
		validate:        validator.New(),
		startingCredits: credits.DefaultPolicy().StartingCredits,
		otpTTL:          defaultOTPTTL,
		passwordCost:    bcrypt.DefaultCost,
		generateCode:    randomCode,
	}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	if service.logger == nil {
		service.logger = zap.NewNop()
	}
	if service.notifier == nil {
		service.notifier = notify.NewLogNotifier(service.logger)
	}
	if service.startingCredits < 0 {
		return nil, fmt.Errorf("%w: starting credits must not be negative", ErrInvalidServiceConfig)
	}
	if service.otpTTL <= 0 {
		return nil, fmt.Errorf("%w: otp ttl must be positive", ErrInvalidServiceConfig)
	}
	return service, nil
}

// Register creates a student or employer account and sends a verification code.
// Registering again with an unverified email and the same role replaces the pending details.
func (service *Service) Register(ctx context.Context, registration Registration) (UserRecord, error) {
	switch registration.Role {
	case credits.RoleStudent, credits.RoleEmployer:
	default:
		return UserRecord{}, fmt.Errorf("%w: %s", ErrRegistrationForbidden, registration.Role)
	}
	email, err := service.normalizeEmail(registration.Email)
	if err != nil {
		return UserRecord{}, err
	}
	hashedPassword, err := service.hashPassword(registration.Password)
	if err != nil {
		return UserRecord{}, err
	}
	newUser := NewUser{
		Email:             email,
		HashedPassword:    hashedPassword,
		Role:              registration.Role,
		FirstName:         strings.TrimSpace(registration.FirstName),
		LastName:          strings.TrimSpace(registration.LastName),
		PhoneNumber:       strings.TrimSpace(registration.PhoneNumber),
		Address:           strings.TrimSpace(registration.Address),
		Bio:               registration.Bio,
		ProfilePictureURL: strings.TrimSpace(registration.ProfilePictureURL),
		Credits:           service.startingCredits,
		LastCreditRefill:  service.nowFn(),
	}
	if registration.Role == credits.RoleEmployer {
		newUser.CompanyName = defaultCompanyFor(newUser.FirstName, newUser.LastName)
	}

	var user UserRecord
	existing, err := service.store.FindUserByEmail(ctx, email)
	switch {
	case err == nil && existing.IsVerified:
		return UserRecord{}, ErrEmailTaken
	case err == nil && existing.Role != registration.Role:
		return UserRecord{}, fmt.Errorf("%w: pending registration is for a %s account", ErrEmailTaken, existing.Role)
	case err == nil:
		user, err = service.store.UpdateUnverifiedUser(ctx, existing.ID, newUser)
	case errors.Is(err, ErrUserNotFound):
		user, err = service.store.CreateUser(ctx, newUser)
	}
	if err != nil {
		return UserRecord{}, err
	}
	if err := service.sendCode(ctx, email, OTPPurposeVerify); err != nil {
		return UserRecord{}, err
	}
	service.logger.Info("account registered", zap.String("user_id", user.ID.String()), zap.String("role", user.Role.String()))
	return user, nil
}

// VerifyEmail consumes a verification code and marks the account verified.
func (service *Service) VerifyEmail(ctx context.Context, rawEmail string, code string) error {
	email, err := service.normalizeEmail(rawEmail)
	if err != nil {
		return err
	}
	user, err := service.store.FindUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return ErrInvalidOTP
	}
	if err != nil {
		return err
	}
	if err := service.otps.Consume(ctx, email, OTPPurposeVerify, strings.TrimSpace(code)); err != nil {
		return err
	}
	return service.store.MarkVerified(ctx, user.ID)
}

// Login checks credentials and issues a session. Unverified accounts cannot log in.
func (service *Service) Login(ctx context.Context, rawEmail string, password string) (UserRecord, Session, error) {
	email, err := service.normalizeEmail(rawEmail)
	if err != nil {
		return UserRecord{}, Session{}, ErrInvalidCredentials
	}
	user, err := service.store.FindUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return UserRecord{}, Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return UserRecord{}, Session{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)) != nil {
		return UserRecord{}, Session{}, ErrInvalidCredentials
	}
	if !user.IsVerified {
		return UserRecord{}, Session{}, ErrAccountNotVerified
	}
	session, err := service.tokens.Issue(user)
	if err != nil {
		return UserRecord{}, Session{}, err
	}
	return user, session, nil
}

// ForgotPassword sends a reset code. Unknown emails are accepted silently.
func (service *Service) ForgotPassword(ctx context.Context, rawEmail string) error {
	email, err := service.normalizeEmail(rawEmail)
	if err != nil {
		return err
	}
	if _, err := service.store.FindUserByEmail(ctx, email); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil
		}
		return err
	}
	return service.sendCode(ctx, email, OTPPurposeReset)
}

// ResetPassword consumes a reset code and replaces the password.
func (service *Service) ResetPassword(ctx context.Context, rawEmail string, code string, newPassword string) error {
	email, err := service.normalizeEmail(rawEmail)
	if err != nil {
		return err
	}
	hashedPassword, err := service.hashPassword(newPassword)
	if err != nil {
		return err
	}
	user, err := service.store.FindUserByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return ErrInvalidOTP
	}
	if err != nil {
		return err
	}
	if err := service.otps.Consume(ctx, email, OTPPurposeReset, strings.TrimSpace(code)); err != nil {
		return err
	}
	return service.store.UpdatePassword(ctx, user.ID, hashedPassword)
}

// CreateAdmin provisions a verified administrator. Admins never self-register.
func (service *Service) CreateAdmin(ctx context.Context, rawEmail string, password string) (UserRecord, error) {
	email, err := service.normalizeEmail(rawEmail)
	if err != nil {
		return UserRecord{}, err
	}
	hashedPassword, err := service.hashPassword(password)
	if err != nil {
		return UserRecord{}, err
	}
	if _, err := service.store.FindUserByEmail(ctx, email); err == nil {
		return UserRecord{}, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return UserRecord{}, err
	}
	return service.store.CreateUser(ctx, NewUser{
		Email:            email,
		HashedPassword:   hashedPassword,
		Role:             credits.RoleAdmin,
		IsVerified:       true,
		LastCreditRefill: service.nowFn(),
	})
}

// SessionTTL returns the lifetime of issued sessions.
func (service *Service) SessionTTL() time.Duration {
	return service.tokens.TTL()
}

func (service *Service) sendCode(ctx context.Context, email string, purpose OTPPurpose) error {
	code, err := service.generateCode()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}
	if err := service.otps.Save(ctx, email, purpose, code, service.otpTTL); err != nil {
		return err
	}
	message := notify.RegistrationMessage(email, code)
	if purpose == OTPPurposeReset {
		message = notify.PasswordResetMessage(email, code)
	}
	if err := service.notifier.Send(ctx, message); err != nil {
		service.logger.Warn("otp notification failed", zap.String("purpose", purpose.String()), zap.Error(err))
	}
	return nil
}

func (service *Service) normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if err := service.validate.Var(email, "required,email"); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, raw)
	}
	return email, nil
}

func (service *Service) hashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", fmt.Errorf("%w: at least %d characters required", ErrWeakPassword, minPasswordLength)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), service.passwordCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

func defaultCompanyFor(firstName string, lastName string) string {
	if firstName == "" || lastName == "" {
		return defaultCompanyName
	}
	return firstName + " " + lastName + "'s Company"
}

func randomCode() (string, error) {
	limit := big.NewInt(1)
	for digit := 0; digit < otpDigits; digit++ {
		limit.Mul(limit, big.NewInt(10))
	}
	value, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, value.Int64()), nil
}

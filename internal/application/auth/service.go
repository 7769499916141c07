package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/go-auth-api/internal/domain"
	snsinfra "github.com/go-auth-api/internal/infrastructure/sns"
	"github.com/go-auth-api/internal/pkg/id"
	"github.com/go-auth-api/internal/pkg/password"
	"github.com/go-auth-api/internal/pkg/secret"
)

// Account lifecycle timing rules.
const (
	verificationCodeTTL = 15 * time.Minute
	resendCooldown      = time.Minute
	resetTokenTTL       = time.Hour
	resetCooldown       = 2 * time.Minute
	maxResetAttempts    = 5

	// notifyTimeout bounds every notification-sender call; the sender is the
	// only unbounded-latency collaborator.
	notifyTimeout = 10 * time.Second
)

// VerificationStatus is the read-only verification view of an account.
type VerificationStatus struct {
	IsVerified bool   `json:"is_verified"`
	Email      string `json:"email"`
	FirstName  string `json:"first_name"`
}

// Service is the account lifecycle engine: registration, email verification,
// login and the password reset/change flows.
type Service interface {
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.SafeAccount, error)
	VerifyEmail(ctx context.Context, email, code string) (*domain.SafeAccount, error)
	ResendVerificationCode(ctx context.Context, email string) (expiresInMinutes int, err error)
	Login(ctx context.Context, email, plainPassword string) (token string, account *domain.SafeAccount, err error)
	CheckAuth(ctx context.Context, accountID string) (*domain.SafeAccount, error)
	Logout(ctx context.Context) error
	ForgotPassword(ctx context.Context, email string) error
	ValidateResetToken(ctx context.Context, rawToken string) (email string, err error)
	ResetPassword(ctx context.Context, rawToken, newPassword string) error
	ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) error
	CheckVerificationStatus(ctx context.Context, email string) (*VerificationStatus, error)
}

type accountStore interface {
	Put(ctx context.Context, a *domain.Account) error
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetByEmailAndCode(ctx context.Context, email, code string) (*domain.Account, error)
	GetByID(ctx context.Context, accountID string) (*domain.Account, error)
	GetByResetFingerprint(ctx context.Context, fingerprint string) (*domain.Account, error)
	MarkVerified(ctx context.Context, email string, verifiedAt time.Time) error
	RotateVerificationCode(ctx context.Context, email, code string, expiresAt, requestedAt, cutoff time.Time) error
	IssueResetToken(ctx context.Context, email, fingerprint string, expiresAt, requestedAt, cutoff time.Time, maxAttempts int) error
	ClearResetToken(ctx context.Context, email string) error
	CompleteReset(ctx context.Context, email, passwordHash string) error
	SetPassword(ctx context.Context, email, passwordHash string) error
}

type notificationSender interface {
	Send(ctx context.Context, to string, kind domain.NotificationKind, data domain.NotificationPayload) error
}

type tokenIssuer interface {
	Sign(accountID, email string) (string, error)
}

type eventPublisher interface {
	PublishAccountEvent(ctx context.Context, event, accountID string) error
}

type service struct {
	repo   accountStore
	sender notificationSender
	tokens tokenIssuer
	events eventPublisher // optional
	now    func() time.Time
}

type ServiceDeps struct {
	Repo   accountStore
	Sender notificationSender
	Tokens tokenIssuer
	Events eventPublisher
}

func NewService(deps ServiceDeps) Service {
	return &service{
		repo:   deps.Repo,
		sender: deps.Sender,
		tokens: deps.Tokens,
		events: deps.Events,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.SafeAccount, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := validateRegister(req); err != nil {
		return nil, err
	}
	dob, err := time.Parse("2006-01-02", req.DateOfBirth)
	if err != nil {
		return nil, domain.NewValidationError("date_of_birth", "must be in YYYY-MM-DD format")
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}
	code, err := secret.NewVerificationCode()
	if err != nil {
		return nil, err
	}

	now := s.now()
	expiresAt := now.Add(verificationCodeTTL)
	a := &domain.Account{
		Email:                     req.Email,
		AccountID:                 id.New(),
		FirstName:                 req.FirstName,
		LastName:                  req.LastName,
		DateOfBirth:               dob,
		PasswordHash:              hash,
		VerificationCode:          &code,
		VerificationCodeExpiresAt: &expiresAt,
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}
	if err := s.repo.Put(ctx, a); err != nil {
		return nil, err
	}

	// Delivery failure must not undo the registration; the user can ask for a
	// resend.
	if err := s.notify(ctx, a.Email, domain.NotifyVerificationCode, domain.NotificationPayload{
		FirstName: a.FirstName, Code: code,
	}); err != nil {
		slog.Warn("verification email not delivered", "email", a.Email, "err", err)
	}

	slog.Info("account registered", "account_id", a.AccountID)
	return a.Safe(), nil
}

func (s *service) VerifyEmail(ctx context.Context, email, code string) (*domain.SafeAccount, error) {
	email = strings.TrimSpace(email)
	if err := validateVerifyEmail(email, code); err != nil {
		return nil, err
	}

	a, err := s.repo.GetByEmailAndCode(ctx, email, code)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("invalid verification code or email: %w", domain.ErrInvalidCode)
		}
		return nil, err
	}
	if a.VerificationCodeExpiresAt == nil || !a.VerificationCodeExpiresAt.After(s.now()) {
		return nil, fmt.Errorf("verification code has expired, request a new one: %w", domain.ErrCodeExpired)
	}

	verifiedAt := s.now()
	if err := s.repo.MarkVerified(ctx, a.Email, verifiedAt); err != nil {
		return nil, err
	}
	a.IsVerified = true
	a.VerifiedAt = &verifiedAt
	a.VerificationCode = nil
	a.VerificationCodeExpiresAt = nil

	if err := s.notify(ctx, a.Email, domain.NotifyWelcome, domain.NotificationPayload{FirstName: a.FirstName}); err != nil {
		slog.Warn("welcome email not delivered", "email", a.Email, "err", err)
	}
	s.publish(ctx, snsinfra.EventVerified, a.AccountID)

	slog.Info("email verified", "account_id", a.AccountID)
	return a.Safe(), nil
}

func (s *service) ResendVerificationCode(ctx context.Context, email string) (int, error) {
	email = strings.TrimSpace(email)
	if err := validateEmail(email); err != nil {
		return 0, err
	}

	a, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return 0, err
	}
	if a.IsVerified {
		return 0, fmt.Errorf("email is already verified: %w", domain.ErrAlreadyVerified)
	}

	now := s.now()
	if a.LastVerificationRequestAt != nil {
		if wait := resendCooldown - now.Sub(*a.LastVerificationRequestAt); wait > 0 {
			return 0, &domain.RateLimitError{WaitSeconds: ceilSeconds(wait)}
		}
	}

	code, err := secret.NewVerificationCode()
	if err != nil {
		return 0, err
	}
	err = s.repo.RotateVerificationCode(ctx, a.Email, code, now.Add(verificationCodeTTL), now, now.Add(-resendCooldown))
	if err != nil {
		if isRateLimited(err) {
			// Lost a race with a concurrent resend; report the remaining wait.
			return 0, s.remainingWait(ctx, a.Email, resendCooldown, func(b *domain.Account) *time.Time {
				return b.LastVerificationRequestAt
			})
		}
		return 0, err
	}

	if err := s.notify(ctx, a.Email, domain.NotifyVerificationCode, domain.NotificationPayload{
		FirstName: a.FirstName, Code: code,
	}); err != nil {
		slog.Warn("verification email not delivered", "email", a.Email, "err", err)
	}
	return int(verificationCodeTTL.Minutes()), nil
}

func (s *service) Login(ctx context.Context, email, plainPassword string) (string, *domain.SafeAccount, error) {
	email = strings.TrimSpace(email)
	if err := validateLogin(email, plainPassword); err != nil {
		return "", nil, err
	}

	// Unknown email and wrong password must be indistinguishable.
	a, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return "", nil, domain.ErrInvalidCredentials
		}
		return "", nil, err
	}
	if !password.Verify(plainPassword, a.PasswordHash) {
		return "", nil, domain.ErrInvalidCredentials
	}
	if !a.IsVerified {
		return "", nil, fmt.Errorf("verify your email before logging in: %w", domain.ErrNotVerified)
	}

	token, err := s.tokens.Sign(a.AccountID, a.Email)
	if err != nil {
		return "", nil, err
	}
	slog.Info("login", "account_id", a.AccountID)
	return token, a.Safe(), nil
}

func (s *service) CheckAuth(ctx context.Context, accountID string) (*domain.SafeAccount, error) {
	if accountID == "" {
		return nil, domain.ErrUnauthenticated
	}
	// Re-fetch: the account may have been removed or altered since the token
	// was issued.
	a, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("account no longer exists: %w", domain.ErrUnauthenticated)
		}
		return nil, err
	}
	return a.Safe(), nil
}

// Logout is a stateless ack: bearer tokens are self-verifying and not tracked
// server-side, so there is nothing to invalidate here.
func (s *service) Logout(ctx context.Context) error { return nil }

func (s *service) ForgotPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if err := validateEmail(email); err != nil {
		return err
	}

	a, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			// Generic ack; never reveal whether the account exists.
			slog.Info("password reset requested for unknown email")
			return nil
		}
		return err
	}
	if !a.IsVerified {
		return fmt.Errorf("verify your email before resetting the password: %w", domain.ErrNotVerified)
	}

	now := s.now()
	if a.LastResetRequestAt != nil {
		if wait := resetCooldown - now.Sub(*a.LastResetRequestAt); wait > 0 {
			return &domain.RateLimitError{WaitSeconds: ceilSeconds(wait)}
		}
	}
	if a.ResetAttempts >= maxResetAttempts {
		return fmt.Errorf("too many password reset attempts: %w", domain.ErrTooManyAttempts)
	}

	raw, fingerprint, err := secret.NewResetToken()
	if err != nil {
		return err
	}
	err = s.repo.IssueResetToken(ctx, a.Email, fingerprint, now.Add(resetTokenTTL), now, now.Add(-resetCooldown), maxResetAttempts)
	if err != nil {
		if isRateLimited(err) {
			// The conditional write is the authoritative gate; classify the
			// refusal from a fresh read.
			b, rerr := s.repo.GetByEmail(ctx, a.Email)
			if rerr == nil && b.ResetAttempts >= maxResetAttempts {
				return fmt.Errorf("too many password reset attempts: %w", domain.ErrTooManyAttempts)
			}
			return s.remainingWait(ctx, a.Email, resetCooldown, func(b *domain.Account) *time.Time {
				return b.LastResetRequestAt
			})
		}
		return err
	}

	// A reset token must never be left outstanding without a delivered
	// notification: roll it back when delivery fails.
	if err := s.notify(ctx, a.Email, domain.NotifyPasswordReset, domain.NotificationPayload{
		FirstName: a.FirstName, ResetToken: raw,
	}); err != nil {
		slog.Error("password reset email not delivered, rolling back token", "email", a.Email, "err", err)
		if cerr := s.repo.ClearResetToken(ctx, a.Email); cerr != nil {
			slog.Error("reset token rollback failed", "email", a.Email, "err", cerr)
		}
		return fmt.Errorf("could not send the password reset email: %w", domain.ErrDelivery)
	}

	s.publish(ctx, snsinfra.EventResetRequested, a.AccountID)
	slog.Info("password reset token issued", "account_id", a.AccountID)
	return nil
}

func (s *service) ValidateResetToken(ctx context.Context, rawToken string) (string, error) {
	if rawToken == "" {
		return "", domain.NewValidationError("token", "is required")
	}
	a, err := s.lookupResetToken(ctx, rawToken)
	if err != nil {
		return "", err
	}
	return a.Email, nil
}

func (s *service) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	if err := validateResetPassword(rawToken, newPassword); err != nil {
		return err
	}
	a, err := s.lookupResetToken(ctx, rawToken)
	if err != nil {
		return err
	}

	hash, err := password.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.repo.CompleteReset(ctx, a.Email, hash); err != nil {
		return err
	}

	if err := s.notify(ctx, a.Email, domain.NotifyPasswordChanged, domain.NotificationPayload{FirstName: a.FirstName}); err != nil {
		slog.Warn("password changed email not delivered", "email", a.Email, "err", err)
	}
	s.publish(ctx, snsinfra.EventPasswordChanged, a.AccountID)

	slog.Info("password reset completed", "account_id", a.AccountID)
	return nil
}

func (s *service) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) error {
	if accountID == "" {
		return domain.ErrUnauthenticated
	}
	if err := validateChangePassword(currentPassword, newPassword); err != nil {
		return err
	}

	a, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	if !password.Verify(currentPassword, a.PasswordHash) {
		return fmt.Errorf("current password is incorrect: %w", domain.ErrInvalidCredentials)
	}
	// Compare the new plaintext against the stored hash. Hashing the new
	// password and comparing hashes would never match thanks to the salt.
	if password.Verify(newPassword, a.PasswordHash) {
		return fmt.Errorf("new password cannot be the same as the current one: %w", domain.ErrNoOp)
	}

	hash, err := password.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.repo.SetPassword(ctx, a.Email, hash); err != nil {
		return err
	}

	if err := s.notify(ctx, a.Email, domain.NotifyPasswordChanged, domain.NotificationPayload{FirstName: a.FirstName}); err != nil {
		slog.Warn("password changed email not delivered", "email", a.Email, "err", err)
	}
	s.publish(ctx, snsinfra.EventPasswordChanged, a.AccountID)

	slog.Info("password changed", "account_id", a.AccountID)
	return nil
}

func (s *service) CheckVerificationStatus(ctx context.Context, email string) (*VerificationStatus, error) {
	email = strings.TrimSpace(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	a, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return &VerificationStatus{IsVerified: a.IsVerified, Email: a.Email, FirstName: a.FirstName}, nil
}

// --- helpers ---

func (s *service) lookupResetToken(ctx context.Context, rawToken string) (*domain.Account, error) {
	a, err := s.repo.GetByResetFingerprint(ctx, secret.Fingerprint(rawToken))
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("reset token lookup: %w", domain.ErrTokenInvalidOrExpired)
		}
		return nil, err
	}
	if a.ResetExpiresAt == nil || !a.ResetExpiresAt.After(s.now()) {
		return nil, fmt.Errorf("reset token expired: %w", domain.ErrTokenInvalidOrExpired)
	}
	return a, nil
}

// notify bounds the sender call so a stuck SMTP server cannot hang an
// operation.
func (s *service) notify(ctx context.Context, to string, kind domain.NotificationKind, data domain.NotificationPayload) error {
	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	return s.sender.Send(ctx, to, kind, data)
}

func (s *service) publish(ctx context.Context, event, accountID string) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishAccountEvent(ctx, event, accountID); err != nil {
		slog.Warn("account event not published", "event", event, "account_id", accountID, "err", err)
	}
}

// remainingWait re-reads the record after a lost conditional-update race and
// reports the wait still left on the cooldown.
func (s *service) remainingWait(ctx context.Context, email string, cooldown time.Duration, stamp func(*domain.Account) *time.Time) error {
	wait := cooldown
	if b, err := s.repo.GetByEmail(ctx, email); err == nil {
		if at := stamp(b); at != nil {
			if left := cooldown - s.now().Sub(*at); left > 0 {
				wait = left
			}
		}
	}
	return &domain.RateLimitError{WaitSeconds: ceilSeconds(wait)}
}

func ceilSeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}

func isNotFound(err error) bool    { return errors.Is(err, domain.ErrNotFound) }
func isRateLimited(err error) bool { return errors.Is(err, domain.ErrRateLimited) }

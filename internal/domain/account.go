package domain

import "time"

// Account is the sole persisted entity. The table is keyed by email; account_id
// and reset_fingerprint are reachable through GSIs.
type Account struct {
	Email        string    `json:"email" dynamodbav:"email"`
	AccountID    string    `json:"id" dynamodbav:"account_id"`
	FirstName    string    `json:"first_name" dynamodbav:"first_name"`
	LastName     string    `json:"last_name" dynamodbav:"last_name"`
	DateOfBirth  time.Time `json:"date_of_birth" dynamodbav:"date_of_birth"`
	PasswordHash string    `json:"-" dynamodbav:"password_hash"`

	// The secret-related timestamps are stored as Unix seconds (unixtime) so
	// DynamoDB condition expressions can compare them numerically. Every
	// nullable field is omitempty: a nil pointer must leave the attribute
	// absent, not write a NULL. reset_fingerprint is a GSI hash key and the
	// attribute_not_exists conditions rely on absence.
	IsVerified                bool       `json:"is_verified" dynamodbav:"is_verified"`
	VerificationCode          *string    `json:"-" dynamodbav:"verification_code,omitempty"`
	VerificationCodeExpiresAt *time.Time `json:"-" dynamodbav:"verification_code_expires_at,omitempty,unixtime"`
	VerifiedAt                *time.Time `json:"verified_at,omitempty" dynamodbav:"verified_at,omitempty"`
	LastVerificationRequestAt *time.Time `json:"-" dynamodbav:"last_verification_request_at,omitempty,unixtime"`

	ResetFingerprint   *string    `json:"-" dynamodbav:"reset_fingerprint,omitempty"`
	ResetExpiresAt     *time.Time `json:"-" dynamodbav:"reset_expires_at,omitempty,unixtime"`
	ResetAttempts      int        `json:"-" dynamodbav:"reset_attempts"`
	LastResetRequestAt *time.Time `json:"-" dynamodbav:"last_reset_request_at,omitempty,unixtime"`

	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"updated" dynamodbav:"updated_at"`
}

// SafeAccount is the redacted projection returned to callers. It never carries
// the password hash, verification code or reset-token fields.
type SafeAccount struct {
	AccountID   string    `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Email       string    `json:"email"`
	IsVerified  bool      `json:"is_verified"`
	DateOfBirth time.Time `json:"date_of_birth"`
	CreatedAt   time.Time `json:"created"`
}

// Safe returns the redacted projection of the account.
func (a *Account) Safe() *SafeAccount {
	return &SafeAccount{
		AccountID:   a.AccountID,
		FirstName:   a.FirstName,
		LastName:    a.LastName,
		Email:       a.Email,
		IsVerified:  a.IsVerified,
		DateOfBirth: a.DateOfBirth,
		CreatedAt:   a.CreatedAt,
	}
}

// RegisterRequest is the payload for account registration.
type RegisterRequest struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DateOfBirth string `json:"date_of_birth"` // expected format: YYYY-MM-DD
}

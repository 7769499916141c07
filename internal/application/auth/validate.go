package auth

import (
	"github.com/go-auth-api/internal/domain"
	"github.com/go-auth-api/internal/pkg/validate"
)

// Minimum password length. Anything stronger is deliberately not enforced.
const minPasswordLen = 6

// Per-operation validation. Each function is pure: it inspects the input and
// returns a ValidationError with one entry per offending field, or nil.

func validateRegister(req domain.RegisterRequest) error {
	fields := map[string]string{}
	if req.FirstName == "" {
		fields["first_name"] = "is required"
	}
	if req.LastName == "" {
		fields["last_name"] = "is required"
	}
	if req.Email == "" {
		fields["email"] = "is required"
	} else if !validate.Email(req.Email) {
		fields["email"] = "must be a valid email address"
	}
	if req.Password == "" {
		fields["password"] = "is required"
	} else if len(req.Password) < minPasswordLen {
		fields["password"] = "must be at least 6 characters"
	}
	if req.DateOfBirth == "" {
		fields["date_of_birth"] = "is required"
	}
	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return domain.NewValidationError("email", "is required")
	}
	if !validate.Email(email) {
		return domain.NewValidationError("email", "must be a valid email address")
	}
	return nil
}

func validateVerifyEmail(email, code string) error {
	fields := map[string]string{}
	if email == "" {
		fields["email"] = "is required"
	} else if !validate.Email(email) {
		fields["email"] = "must be a valid email address"
	}
	if code == "" {
		fields["verification_code"] = "is required"
	}
	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

func validateLogin(email, plainPassword string) error {
	fields := map[string]string{}
	if email == "" {
		fields["email"] = "is required"
	}
	if plainPassword == "" {
		fields["password"] = "is required"
	}
	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

func validateResetPassword(rawToken, newPassword string) error {
	fields := map[string]string{}
	if rawToken == "" {
		fields["token"] = "is required"
	}
	if newPassword == "" {
		fields["password"] = "is required"
	} else if len(newPassword) < minPasswordLen {
		fields["password"] = "must be at least 6 characters"
	}
	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

func validateChangePassword(currentPassword, newPassword string) error {
	fields := map[string]string{}
	if currentPassword == "" {
		fields["current_password"] = "is required"
	}
	if newPassword == "" {
		fields["new_password"] = "is required"
	} else if len(newPassword) < minPasswordLen {
		fields["new_password"] = "must be at least 6 characters"
	}
	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

package validate

import "github.com/go-playground/validator/v10"

// v is the package-level singleton validator. It is initialised once at
// package load time. Any custom type registrations must be made during init()
// before the first use.
var v = validator.New()

// Email reports whether s is a syntactically valid, non-empty email address.
func Email(s string) bool {
	return v.Var(s, "required,email") == nil
}

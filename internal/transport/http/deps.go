package http

import (
	"github.com/go-auth-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-auth-api/internal/infrastructure/jwt"
	"github.com/go-auth-api/internal/infrastructure/smtp"
	snsinfra "github.com/go-auth-api/internal/infrastructure/sns"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	AccountRepo *dynamo.AccountRepo
	Mailer      smtp.Mailer
	JWTProvider *jwtinfra.Provider
	// Events is optional; nil disables account-event publishing.
	Events snsinfra.EventPublisher
}

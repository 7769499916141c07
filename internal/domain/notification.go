package domain

// NotificationKind names the message templates the notification collaborator
// can deliver. Content formatting belongs to the sender, not the core.
type NotificationKind string

const (
	NotifyVerificationCode NotificationKind = "verification_code"
	NotifyWelcome          NotificationKind = "welcome"
	NotifyPasswordReset    NotificationKind = "password_reset"
	NotifyPasswordChanged  NotificationKind = "password_changed"
)

// NotificationPayload carries the template data. Only the fields relevant to
// the kind are set. ResetToken is the raw token and is never persisted.
type NotificationPayload struct {
	FirstName  string
	Code       string
	ResetToken string
}

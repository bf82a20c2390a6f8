package service

// Error is a client-facing engine error. Code is stable and meant for
// programmatic branching.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

var (
	ErrInvalidEmail       = &Error{Code: "INVALID_EMAIL", Message: "Invalid email"}
	ErrPasswordTooShort   = &Error{Code: "PASSWORD_TOO_SHORT", Message: "Password too short"}
	ErrPasswordTooLong    = &Error{Code: "PASSWORD_TOO_LONG", Message: "Password too long"}
	ErrNameRequired       = &Error{Code: "NAME_REQUIRED", Message: "Name is required"}
	ErrEmailTaken         = &Error{Code: "EMAIL_TAKEN", Message: "User already exists"}
	ErrInvalidCredentials = &Error{Code: "INVALID_CREDENTIALS", Message: "Invalid email or password"}
	ErrEmailNotVerified   = &Error{Code: "EMAIL_NOT_VERIFIED", Message: "Email not verified"}
	ErrTokenInvalid       = &Error{Code: "TOKEN_INVALID", Message: "Invalid token"}
	ErrTokenExpired       = &Error{Code: "TOKEN_EXPIRED", Message: "Token expired"}
	ErrTokenUsed          = &Error{Code: "TOKEN_USED", Message: "Token already used"}
	ErrUnauthenticated    = &Error{Code: "UNAUTHENTICATED", Message: "Unauthenticated"}
	ErrInvalidCallbackURL = &Error{Code: "INVALID_CALLBACK_URL", Message: "Invalid callback URL"}
)

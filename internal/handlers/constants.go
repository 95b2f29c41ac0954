package handlers

const (
	ErrInvalidBody         = "Invalid request body"
	ErrInvalidIndex        = "Invalid guess index"
	ErrUnauthorized        = "Unauthorized"
	ErrSessionExpired      = "Session expired"
	ErrInvalidCSRF         = "Invalid CSRF token"
	ErrNoGuesses           = "Enter at least one guess before continuing"
	ErrNotFound            = "Not found"
	ErrInternalServerError = "Internal server error"

	// maxBodyBytes bounds event payloads; guesses are a handful of letters
	maxBodyBytes = 4 << 10
)

package auth

import "net/http"

// Failure codes. INVALID_API_KEY deliberately covers both unknown and
// revoked keys so responses cannot be used to enumerate issued keys.
const (
	CodeMissingAuth        = "MISSING_AUTH"
	CodeInvalidAuthFormat  = "INVALID_AUTH_FORMAT"
	CodeInvalidAPIKey      = "INVALID_API_KEY"
	CodeAccountSuspended   = "ACCOUNT_SUSPENDED"
	CodeConnectionInactive = "CONNECTION_INACTIVE"
	CodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	CodeDecryptionError    = "DECRYPTION_ERROR"
)

// Failure is a terminal authentication rejection, returned as data rather
// than as an error so the transport layer maps it uniformly.
type Failure struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Detail  map[string]any `json:"details,omitempty"`
}

func newFailure(code, message string) *Failure {
	return &Failure{Code: code, Message: message}
}

// HTTPStatus maps the failure to a transport status code.
func (f *Failure) HTTPStatus() int {
	if f == nil {
		return http.StatusOK
	}
	switch f.Code {
	case CodeMissingAuth, CodeInvalidAuthFormat, CodeInvalidAPIKey:
		return http.StatusUnauthorized
	case CodeAccountSuspended, CodeConnectionInactive:
		return http.StatusForbidden
	case CodeRateLimitExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

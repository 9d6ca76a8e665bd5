package types

import "time"

// Anthropic error type tags, the closed set a client can receive.
const (
	ErrorTypeInvalidRequest  = "invalid_request_error"
	ErrorTypeAuthentication  = "authentication_error"
	ErrorTypePermission      = "permission_error"
	ErrorTypeNotFound        = "not_found_error"
	ErrorTypeRequestTooLarge = "request_too_large"
	ErrorTypeRateLimit       = "rate_limit_error"
	ErrorTypeAPI             = "api_error"
	ErrorTypeOverloaded      = "overloaded_error"
)

// Error is the inner object of the Anthropic error envelope.
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

// ErrorResponse is the envelope {"type":"error","error":{...}} returned on
// failed requests and carried in the data of an SSE "error" event.
// RetryAfter is a local hint used for the Retry-After header; it is not part
// of the wire format.
type ErrorResponse struct {
	Type       string        `json:"type"`
	Err        Error         `json:"error"`
	RetryAfter time.Duration `json:"-"`
}

// NewErrorResponse builds an envelope with the given error type tag.
func NewErrorResponse(errType, message string) *ErrorResponse {
	return &ErrorResponse{
		Type: "error",
		Err:  Error{Type: errType, Message: message},
	}
}

func (e *ErrorResponse) Error() string {
	if e.Err.Message == "" {
		return e.Err.Type
	}
	return e.Err.Type + ": " + e.Err.Message
}

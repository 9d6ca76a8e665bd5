package anthropicadapter

import "github.com/florianilch/nimbridge/internal/anthropicadapter/types"

// NewInvalidRequestError builds the envelope for client-side mistakes such
// as undecodable bodies or missing required fields.
func NewInvalidRequestError(message string) *ErrorResponse {
	return types.NewErrorResponse(types.ErrorTypeInvalidRequest, message)
}

// NewRequestTooLargeError builds the envelope for bodies over the size
// limit.
func NewRequestTooLargeError(message string) *ErrorResponse {
	return types.NewErrorResponse(types.ErrorTypeRequestTooLarge, message)
}

// NewAPIError wraps an unexpected internal failure in the generic api_error
// envelope without leaking details to the client.
func NewAPIError(message string) *ErrorResponse {
	return types.NewErrorResponse(types.ErrorTypeAPI, message)
}

package nvidianim

import (
	"context"
	"errors"

	"github.com/sashabaranov/go-openai"

	"github.com/florianilch/nimbridge/internal/anthropicadapter/types"
)

// toErrorResponse maps any failure to a client error envelope. It is total:
// every error that can escape the adapter comes out as one of the closed set
// of error types.
func toErrorResponse(err error) *types.ErrorResponse {
	var er *types.ErrorResponse
	if errors.As(err, &er) {
		return er
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fromStatus(apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fromStatus(reqErr.HTTPStatusCode, reqErr.Error())
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return types.NewErrorResponse(types.ErrorTypeAPI, "upstream request timed out")
	}
	if errors.Is(err, context.Canceled) {
		return types.NewErrorResponse(types.ErrorTypeAPI, "request canceled")
	}
	return types.NewErrorResponse(types.ErrorTypeAPI, "upstream request failed: "+err.Error())
}

func fromStatus(status int, message string) *types.ErrorResponse {
	var errType string
	switch status {
	case 400, 422:
		errType = types.ErrorTypeInvalidRequest
	case 401:
		errType = types.ErrorTypeAuthentication
	case 403:
		errType = types.ErrorTypePermission
	case 404:
		errType = types.ErrorTypeNotFound
	case 413:
		errType = types.ErrorTypeRequestTooLarge
	case 429:
		errType = types.ErrorTypeRateLimit
	case 503, 529:
		errType = types.ErrorTypeOverloaded
	default:
		errType = types.ErrorTypeAPI
	}
	if message == "" {
		message = "upstream request failed"
	}
	return types.NewErrorResponse(errType, message)
}

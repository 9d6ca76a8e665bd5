package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/florianilch/nimbridge/internal/anthropicadapter/nvidianim"
	"github.com/florianilch/nimbridge/internal/anthropicadapter/types"
)

// CreateMessageHandler handles Anthropic Messages API requests.
type CreateMessageHandler struct {
	Adapter   *nvidianim.CreateMessageAdapter
	Transport http.RoundTripper
}

// Compile-time check to ensure CreateMessageHandler implements http.Handler
var _ http.Handler = (*CreateMessageHandler)(nil)

// ServeHTTP implements http.Handler interface for streaming or non-streaming requests.
func (h *CreateMessageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req types.CreateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			slog.WarnContext(ctx, "request exceeds size limit", "limit_bytes", maxBytesErr.Limit)
			writeJSONMessagesError(ctx, w, types.NewErrorResponse(
				types.ErrorTypeRequestTooLarge,
				http.StatusText(http.StatusRequestEntityTooLarge),
			))
			return
		}
		slog.ErrorContext(ctx, "failed to decode request", "error", err)
		writeJSONMessagesError(ctx, w, types.NewErrorResponse(
			types.ErrorTypeInvalidRequest,
			http.StatusText(http.StatusBadRequest),
		))
		return
	}

	if req.Streaming() {
		h.streamResponse(ctx, w, req)
	} else {
		h.writeResponse(ctx, w, req)
	}
}

// writeResponse handles non-streaming message requests.
func (h *CreateMessageHandler) writeResponse(
	ctx context.Context,
	w http.ResponseWriter,
	req types.CreateMessageRequest,
) {
	if ctx.Err() != nil {
		return
	}
	response, err := h.Adapter.ProcessRequest(ctx, req, h.Transport)
	if err != nil {
		slog.ErrorContext(ctx, "request failed", "error", err)

		var errResp *types.ErrorResponse
		if errors.As(err, &errResp) {
			writeJSONMessagesError(ctx, w, errResp)
			return
		}

		writeJSONMessagesError(ctx, w, types.NewErrorResponse(
			types.ErrorTypeAPI,
			http.StatusText(http.StatusInternalServerError),
		))
		return
	}

	writeJSON(ctx, w, response, http.StatusOK)
}

// streamResponse streams message events using SSE. Every event is named
// with its type; a clean stream ends with a [DONE] sentinel after
// message_stop. SDK clients dispatch on event names, so the nameless
// sentinel frame passes through them unnoticed.
func (h *CreateMessageHandler) streamResponse(
	ctx context.Context,
	w http.ResponseWriter,
	req types.CreateMessageRequest,
) {
	if ctx.Err() != nil {
		return
	}
	stream, err := h.Adapter.ProcessStreamingRequest(ctx, req, h.Transport)
	if err != nil {
		slog.ErrorContext(ctx, "streaming request failed", "error", err)

		var errResp *types.ErrorResponse
		if errors.As(err, &errResp) {
			writeJSONMessagesError(ctx, w, errResp)
			return
		}

		writeJSONMessagesError(ctx, w, types.NewErrorResponse(
			types.ErrorTypeAPI,
			http.StatusText(http.StatusInternalServerError),
		))
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		slog.ErrorContext(ctx, "SSE not supported", "error", err)
		writeJSONMessagesError(ctx, w, types.NewErrorResponse(
			types.ErrorTypeAPI,
			http.StatusText(http.StatusInternalServerError),
		))
		return
	}

	for event, err := range stream {
		// Check for client disconnect before processing the event
		if ctx.Err() != nil {
			slog.DebugContext(ctx, "client disconnected during stream")
			return
		}

		if err != nil {
			slog.ErrorContext(ctx, "stream error", "error", err)

			var errResp *types.ErrorResponse
			if errors.As(err, &errResp) {
				writeSSEError(ctx, sse, errResp)
				return
			}

			// Fallback: wrap unexpected errors for client visibility
			slog.ErrorContext(ctx, "unexpected error type, wrapping in fallback", "error", err)
			writeSSEError(ctx, sse, types.NewErrorResponse(types.ErrorTypeAPI, err.Error()))
			return
		}

		if writeErr := sse.WriteEvent(event.Type); writeErr != nil {
			slog.ErrorContext(ctx, "failed to write event type", "error", writeErr)
			return
		}
		if writeErr := sse.WriteData(event); writeErr != nil {
			slog.ErrorContext(ctx, "failed to write event data", "error", writeErr)
			return
		}
	}

	// The sentinel marks a complete stream; error events return above
	// without one.
	if err := sse.WriteRaw("[DONE]"); err != nil {
		slog.ErrorContext(ctx, "failed to write stream terminator", "error", err)
	}
}

// writeSSEError emits the error event that terminates a Messages stream.
func writeSSEError(ctx context.Context, sse *SSEWriter, errResp *types.ErrorResponse) {
	if err := sse.WriteEvent(types.EventTypeError); err != nil {
		slog.ErrorContext(ctx, "failed to write error event type", "error", err)
		return
	}
	if err := sse.WriteData(errResp); err != nil {
		slog.ErrorContext(ctx, "failed to write error event data", "error", err)
	}
}

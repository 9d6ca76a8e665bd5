// Package anthropicadapter defines the contract between the HTTP layer and
// backend-specific adapters serving the Anthropic Messages API.
package anthropicadapter

import (
	"context"
	"iter"
	"net/http"

	"github.com/florianilch/nimbridge/internal/anthropicadapter/types"
)

// Adapter translates between the Anthropic Messages protocol served to
// clients and one concrete backend API. Implementations should remain
// stateless with respect to individual requests; per-request state lives in
// the values they return.
type Adapter[TRequest, TResponse, TEvent any] interface {
	// ProcessRequest performs a buffered request against the backend using
	// the supplied transport and returns the synthesized response.
	ProcessRequest(ctx context.Context, clientReq TRequest, transport http.RoundTripper) (*TResponse, error)

	// ProcessStreamingRequest opens a streaming request against the backend
	// and returns the synthesized event sequence. An error returned directly
	// occurred before the stream opened and maps to a plain HTTP error; an
	// error yielded by the sequence occurred mid-stream.
	ProcessStreamingRequest(ctx context.Context, clientReq TRequest, transport http.RoundTripper) (iter.Seq2[*TEvent, error], error)
}

// Anthropic Messages wire types, aliased so handlers and adapters share one
// vocabulary without importing the types package everywhere.
type (
	CreateMessageRequest  = types.CreateMessageRequest
	CreateMessageResponse = types.CreateMessageResponse
	MessageStreamEvent    = types.MessageStreamEvent

	Error         = types.Error
	ErrorResponse = types.ErrorResponse
)

// CreateMessageAdapter is the Adapter instantiation for POST /v1/messages.
type CreateMessageAdapter = Adapter[CreateMessageRequest, CreateMessageResponse, MessageStreamEvent]

package nvidianim

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sashabaranov/go-openai"

	"github.com/florianilch/nimbridge/internal/anthropicadapter"
	"github.com/florianilch/nimbridge/internal/anthropicadapter/types"
	"github.com/florianilch/nimbridge/internal/ratelimit"
)

// DefaultBaseURL is the hosted NIM endpoint.
const DefaultBaseURL = "https://integrate.api.nvidia.com/v1"

// RetryConfig bounds the retry loop around backend calls.
type RetryConfig struct {
	// MaxAttempts is the total number of tries per request, first call
	// included. Zero means 3.
	MaxAttempts uint
	// InitialInterval is the first retry delay. Zero means 500ms.
	InitialInterval time.Duration
	// MaxInterval caps the retry delay. Zero means 10s.
	MaxInterval time.Duration
}

// CreateMessageAdapter translates Anthropic Messages API calls into
// OpenAI-compatible chat completions against an NVIDIA NIM backend.
type CreateMessageAdapter struct {
	// BaseURL of the OpenAI-compatible backend. Empty means DefaultBaseURL.
	BaseURL string
	// Aliases maps client-facing model IDs to backend model IDs.
	// Unlisted models pass through unchanged.
	Aliases map[string]string
	// Limiter paces outbound requests. Required.
	Limiter *ratelimit.Limiter
	Retry   RetryConfig
}

// Compile-time check to ensure CreateMessageAdapter implements the adapter contract
var _ anthropicadapter.CreateMessageAdapter = (*CreateMessageAdapter)(nil)

// ProcessRequest implements the buffered request flow: translate, call the
// backend under the rate limiter with bounded retries, translate back.
// Failures come back as *types.ErrorResponse.
func (a *CreateMessageAdapter) ProcessRequest(
	ctx context.Context,
	clientReq anthropicadapter.CreateMessageRequest,
	transport http.RoundTripper,
) (*anthropicadapter.CreateMessageResponse, error) {
	client, err := newClient(a.baseURL(), a.watchTransport(transport))
	if err != nil {
		return nil, err
	}
	backendReq, err := buildRequest(clientReq, a.Aliases, false)
	if err != nil {
		return nil, err
	}

	resp, err := callWithRetry(ctx, a, func() (openai.ChatCompletionResponse, error) {
		return client.CreateChatCompletion(ctx, backendReq)
	})
	if err != nil {
		return nil, toErrorResponse(err)
	}
	a.Limiter.ReportSuccess()

	return toResponse(ctx, resp, clientReq.Model), nil
}

// ProcessStreamingRequest implements the streaming request flow. The backend
// stream is established under the same retry policy as buffered requests; an
// error after the first event is yielded through the iterator instead.
func (a *CreateMessageAdapter) ProcessStreamingRequest(
	ctx context.Context,
	clientReq anthropicadapter.CreateMessageRequest,
	transport http.RoundTripper,
) (iter.Seq2[*anthropicadapter.MessageStreamEvent, error], error) {
	client, err := newClient(a.baseURL(), a.watchTransport(transport))
	if err != nil {
		return nil, err
	}
	backendReq, err := buildRequest(clientReq, a.Aliases, true)
	if err != nil {
		return nil, err
	}

	stream, err := callWithRetry(ctx, a, func() (*openai.ChatCompletionStream, error) {
		return client.CreateChatCompletionStream(ctx, backendReq)
	})
	if err != nil {
		return nil, toErrorResponse(err)
	}
	a.Limiter.ReportSuccess()

	events := func(yield func(*anthropicadapter.MessageStreamEvent, error) bool) {
		defer stream.Close()

		builder := newEventBuilder(clientReq.Model)
		for {
			if ctx.Err() != nil {
				return
			}
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				for _, event := range builder.finish(ctx) {
					if !yield(event, nil) {
						return
					}
				}
				return
			}
			if err != nil {
				yield(nil, toErrorResponse(err))
				return
			}
			for _, event := range builder.feed(ctx, chunk) {
				if !yield(event, nil) {
					return
				}
			}
		}
	}
	return events, nil
}

func (a *CreateMessageAdapter) baseURL() string {
	if a.BaseURL == "" {
		return DefaultBaseURL
	}
	return a.BaseURL
}

// watchTransport wraps the request transport so 429 responses feed their
// Retry-After into the limiter. The client library surfaces errors without
// response headers, so the cooldown signal is captured here.
func (a *CreateMessageAdapter) watchTransport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		return nil
	}
	return &rateLimitWatcher{base: base, limiter: a.Limiter}
}

func (a *CreateMessageAdapter) maxTries() uint {
	if a.Retry.MaxAttempts == 0 {
		return 3
	}
	return a.Retry.MaxAttempts
}

// callWithRetry runs one backend call under the rate limiter with bounded
// retries. Each attempt first acquires an admission, so retries after a 429
// wait out the cooldown the response triggered.
func callWithRetry[T any](ctx context.Context, a *CreateMessageAdapter, call func() (T, error)) (T, error) {
	bo := backoff.NewExponentialBackOff()
	if a.Retry.InitialInterval > 0 {
		bo.InitialInterval = a.Retry.InitialInterval
	}
	if a.Retry.MaxInterval > 0 {
		bo.MaxInterval = a.Retry.MaxInterval
	}

	op := func() (T, error) {
		var zero T
		if err := a.Limiter.Acquire(ctx); err != nil {
			var limited *ratelimit.Error
			if errors.As(err, &limited) {
				resp := types.NewErrorResponse(types.ErrorTypeRateLimit, "upstream rate limit active, try again later")
				resp.RetryAfter = limited.RetryAfter
				return zero, backoff.Permanent(resp)
			}
			return zero, backoff.Permanent(err)
		}
		result, err := call()
		if err != nil {
			return zero, classifyBackendError(ctx, err)
		}
		return result, nil
	}

	return backoff.Retry(ctx, op, backoff.WithBackOff(bo), backoff.WithMaxTries(a.maxTries()))
}

// classifyBackendError decides whether a failed attempt may be retried.
// Rate limiting and server-side failures are transient; everything the
// client caused is permanent.
func classifyBackendError(ctx context.Context, err error) error {
	if status, ok := backendStatus(err); ok {
		switch {
		case status == http.StatusTooManyRequests:
			slog.WarnContext(ctx, "backend rate limited", "status", status)
			return err
		case status >= 500:
			slog.WarnContext(ctx, "backend failure, retrying", "status", status)
			return err
		default:
			return backoff.Permanent(err)
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return backoff.Permanent(err)
	}
	// Transport-level failures are worth another attempt.
	return err
}

func backendStatus(err error) (int, bool) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode, true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode, true
	}
	return 0, false
}

// rateLimitWatcher reports 429 responses to the limiter before the client
// library consumes them.
type rateLimitWatcher struct {
	base    http.RoundTripper
	limiter *ratelimit.Limiter
}

func (t *rateLimitWatcher) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err == nil && resp.StatusCode == http.StatusTooManyRequests {
		t.limiter.ReportRateLimit(parseRetryAfter(resp.Header.Get("Retry-After")))
	}
	return resp, err
}

// parseRetryAfter reads the delay-seconds and HTTP-date forms. Zero means
// the limiter should use its own schedule.
func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

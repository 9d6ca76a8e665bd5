package nvidianim

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// newClient creates a backend client over the provided transport.
// The transport chain needs to handle authentication; the empty token here
// is overwritten by the Authorization header the transport injects.
func newClient(baseURL string, transport http.RoundTripper) (*openai.Client, error) {
	if transport == nil {
		return nil, fmt.Errorf("transport cannot be nil")
	}

	cfg := openai.DefaultConfig("")
	cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	cfg.HTTPClient = &http.Client{
		Transport: transport,
		// Client.Timeout = 0 allows long-running SSE streams (bounded by server WriteTimeout)
	}

	return openai.NewClientWithConfig(cfg), nil
}

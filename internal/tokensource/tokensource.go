package tokensource

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
)

// NewStatic reads the stored API key once and wraps it in a static
// oauth2.TokenSource. Backend keys never expire server-side, so there is no
// refresh path; rotating a key means restarting the proxy.
func NewStatic(ctx context.Context, store Store) (oauth2.TokenSource, error) {
	key, err := store.Read(ctx)
	if errors.Is(err, ErrNotFound) {
		return nil, errors.New("no API key configured, run `nimbridge auth login` first")
	}
	if err != nil {
		return nil, fmt.Errorf("load API key: %w", err)
	}
	return oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: key,
		TokenType:   "Bearer",
	}), nil
}

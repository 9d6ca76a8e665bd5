// Package tokensource provides the API-key plumbing between stored
// credentials and outbound HTTP authentication.
//
// The backend authenticates with long-lived static API keys rather than an
// OAuth flow, so the package is organized around two pieces:
//
//   - [Store]: durable key storage with interchangeable backends: the OS
//     credential manager, a mode-0600 file, or a process environment
//     variable (read-only, for containerized deployments).
//   - [NewStatic]: bridges a Store into an oauth2.TokenSource so the
//     proxy's outbound transport stays a stock oauth2.Transport.
//
// # Usage
//
//	store := tokensource.NewKeyringStore("nimbridge")
//	source, err := tokensource.NewStatic(ctx, store)
//	if err != nil {
//		// no key stored yet, point the user at `auth login`
//	}
//	client := &http.Client{Transport: &oauth2.Transport{Source: source}}
package tokensource

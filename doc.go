// Package adopt is the Go client for the Adopt-A-Farmer platform API.
//
// The heart of the module is session and authorization management:
//
//   - session: the persisted credential store (access token, refresh
//     token, cached user) with its validity rules.
//   - transport: an http.RoundTripper that attaches the bearer token to
//     every request and recovers from expiry with a single-flight refresh.
//   - guard: route authorization decisions from session state and
//     per-route role requirements.
//   - auth, farmers: typed wrappers over the REST endpoints.
//
// cmd/farmctl wires all of it into a CLI.
package adopt

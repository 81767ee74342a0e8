// Package transport implements the authenticated HTTP round tripper: it
// attaches the session's bearer token to every outgoing request, and on a
// 401 it runs the refresh protocol — at most one refresh in flight,
// concurrent failures queued and released in FIFO order, each failed
// request retried exactly once with the new credential.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	adopt "github.com/adopt-a-farmer/client-go"
	"github.com/adopt-a-farmer/client-go/domain"
	"github.com/adopt-a-farmer/client-go/log"
	"github.com/adopt-a-farmer/client-go/session"
)

// RefreshFunc exchanges a refresh token for a new token pair. It must not
// route through a Transport, or an expired refresh token would recurse
// into the interceptor; see auth.NewRefreshFunc.
type RefreshFunc func(ctx context.Context, refreshToken string) (domain.TokenPair, error)

type ctxKey int

const retriedKey ctxKey = iota

// markRetried flags a request context so the retried request can never
// trigger a second refresh.
func markRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, retriedKey, true)
}

func isRetried(ctx context.Context) bool {
	v, _ := ctx.Value(retriedKey).(bool)
	return v
}

// refreshOutcome is the shared result of one refresh attempt, delivered
// to every queued waiter.
type refreshOutcome struct {
	token string
	err   error
}

// Transport is an http.RoundTripper. Wrap it into an http.Client and
// every request through that client participates in the session protocol.
type Transport struct {
	base             http.RoundTripper
	store            *session.Store
	refresh          RefreshFunc
	onSessionExpired func()
	logger           log.Logger

	mu         sync.Mutex
	refreshing bool
	waiters    []chan refreshOutcome
}

// Option configures a Transport.
type Option func(*Transport)

// WithBase sets the underlying round tripper. Defaults to
// http.DefaultTransport.
func WithBase(rt http.RoundTripper) Option {
	return func(t *Transport) { t.base = rt }
}

// WithLogger sets the transport's logger.
func WithLogger(l log.Logger) Option {
	return func(t *Transport) { t.logger = l }
}

// WithOnSessionExpired registers the hook run when the session dies under
// us: refresh failed, or a 401 arrived with no refresh token to use. The
// browser app redirects to the login page here; farmctl prints a hint.
// Called exactly once per fatal failure, after the store is cleared.
func WithOnSessionExpired(fn func()) Option {
	return func(t *Transport) { t.onSessionExpired = fn }
}

// New creates a Transport bound to a session store and a refresh
// function.
func New(store *session.Store, refresh RefreshFunc, opts ...Option) *Transport {
	t := &Transport{
		base:    http.DefaultTransport,
		store:   store,
		refresh: refresh,
		logger:  log.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewHTTPClient wraps a Transport into a ready http.Client.
func NewHTTPClient(store *session.Store, refresh RefreshFunc, timeout time.Duration, opts ...Option) *http.Client {
	return &http.Client{
		Transport: New(store, refresh, opts...),
		Timeout:   timeout,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	out := req.Clone(ctx)
	if out.Header.Get("X-Request-ID") == "" {
		out.Header.Set("X-Request-ID", uuid.NewString())
	}

	hadToken := out.Header.Get("Authorization") != ""
	if !hadToken {
		if token := t.store.AccessToken(); token != "" {
			out.Header.Set("Authorization", "Bearer "+token)
			hadToken = true
		}
	}

	resp, err := t.base.RoundTrip(out)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return t.handleUnauthorized(req, out, resp, hadToken)
	case resp.StatusCode == http.StatusForbidden:
		t.logger.Warn(ctx, "access denied", map[string]interface{}{
			"method": req.Method,
			"url":    req.URL.String(),
		})
	case resp.StatusCode >= http.StatusInternalServerError:
		t.logger.Error(ctx, "server error", nil, map[string]interface{}{
			"method": req.Method,
			"url":    req.URL.String(),
			"status": resp.StatusCode,
		})
	}
	return resp, nil
}

// handleUnauthorized decides whether a 401 is recoverable. Three cases
// fall through untouched: the request never carried a token (an
// unauthenticated call that should fail as-is), the request is already a
// retry, and the request body cannot be replayed. A 401 with a token but
// no refresh token is fatal for the session.
func (t *Transport) handleUnauthorized(orig, sent *http.Request, resp *http.Response, hadToken bool) (*http.Response, error) {
	ctx := orig.Context()

	if !hadToken || isRetried(ctx) {
		return resp, nil
	}
	if orig.Body != nil && orig.GetBody == nil {
		t.logger.Warn(ctx, "401 on non-replayable request, skipping refresh", map[string]interface{}{
			"method": orig.Method,
			"url":    orig.URL.String(),
		})
		return resp, nil
	}

	if t.store.RefreshToken() == "" || t.refresh == nil {
		drain(resp)
		t.expireSession(ctx, fmt.Errorf("401 with no refresh token"))
		return nil, adopt.ErrSessionExpired
	}

	drain(resp)

	token, err := t.awaitRefresh(ctx)
	if err != nil {
		return nil, err
	}

	retry := sent.Clone(markRetried(ctx))
	if retry.GetBody != nil {
		body, bodyErr := retry.GetBody()
		if bodyErr != nil {
			return nil, fmt.Errorf("replay request body: %w", bodyErr)
		}
		retry.Body = body
	}
	retry.Header.Set("Authorization", "Bearer "+token)

	t.logger.Debug(ctx, "retrying request with refreshed token", map[string]interface{}{
		"method": orig.Method,
		"url":    orig.URL.String(),
	})
	return t.base.RoundTrip(retry)
}

// awaitRefresh joins the single-flight refresh. The first caller becomes
// the leader and performs the exchange; everyone arriving while it runs
// is queued and released, in enqueue order, with the leader's outcome.
func (t *Transport) awaitRefresh(ctx context.Context) (string, error) {
	t.mu.Lock()
	if t.refreshing {
		ch := make(chan refreshOutcome, 1)
		t.waiters = append(t.waiters, ch)
		t.mu.Unlock()

		select {
		case out := <-ch:
			return out.token, out.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	t.refreshing = true
	t.mu.Unlock()

	out := t.doRefresh(ctx)

	t.mu.Lock()
	t.refreshing = false
	waiters := t.waiters
	t.waiters = nil
	t.mu.Unlock()

	for _, ch := range waiters {
		ch <- out
	}
	return out.token, out.err
}

// doRefresh performs the actual token exchange and settles the store.
func (t *Transport) doRefresh(ctx context.Context) refreshOutcome {
	refreshToken := t.store.RefreshToken()

	pair, err := t.refresh(ctx, refreshToken)
	if err == nil {
		err = t.store.SetTokens(pair)
	}
	if err != nil {
		t.expireSession(ctx, err)
		return refreshOutcome{err: fmt.Errorf("%w: %v", adopt.ErrSessionExpired, err)}
	}

	t.logger.Info(ctx, "access token refreshed")
	return refreshOutcome{token: pair.AccessToken}
}

// expireSession clears the store and fires the expiry hook.
func (t *Transport) expireSession(ctx context.Context, cause error) {
	t.store.Clear()
	t.logger.Warn(ctx, "session expired", map[string]interface{}{"cause": cause.Error()})
	if t.onSessionExpired != nil {
		t.onSessionExpired()
	}
}

// drain consumes and closes a response body we are abandoning, so the
// underlying connection can be reused.
func drain(resp *http.Response) {
	if resp.Body != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}
}

var _ http.RoundTripper = (*Transport)(nil)

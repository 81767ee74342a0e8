// Package auth is the typed client for the backend's auth endpoints:
// login, registration, who-am-I, token refresh, profile update, and the
// password reset pair.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	adopt "github.com/adopt-a-farmer/client-go"
	"github.com/adopt-a-farmer/client-go/domain"
	"github.com/adopt-a-farmer/client-go/log"
)

// Service calls the auth endpoints. The authed client (typically wrapping
// a transport.Transport) carries the session; the bare client is used for
// the unauthenticated endpoints and for refresh, which must never recurse
// into the 401 interceptor.
type Service struct {
	baseURL  string
	authed   *http.Client
	bare     *http.Client
	validate *validator.Validate
	logger   log.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithAuthedClient sets the client used for authenticated endpoints
// (who-am-I, profile update).
func WithAuthedClient(c *http.Client) Option {
	return func(s *Service) { s.authed = c }
}

// WithBareClient sets the client used for unauthenticated endpoints and
// the refresh call.
func WithBareClient(c *http.Client) Option {
	return func(s *Service) { s.bare = c }
}

// WithLogger sets the service's logger.
func WithLogger(l log.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates an auth client for the API at baseURL.
func NewService(baseURL string, opts ...Option) *Service {
	s := &Service{
		baseURL:  strings.TrimRight(baseURL, "/"),
		bare:     &http.Client{Timeout: 30 * time.Second},
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   log.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.authed == nil {
		s.authed = s.bare
	}
	return s
}

// Login exchanges credentials for a session. A 403 carrying the
// requiresVerification flag comes back as an *adopt.APIError wrapping
// ErrEmailNotVerified, with the issued token and email on the error for
// the verification flow.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*Credentials, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid login request: %w", err)
	}
	var env envelope
	if err := s.do(ctx, s.bare, http.MethodPost, "/auth/login", req, &env); err != nil {
		return nil, err
	}
	return credentialsFrom(env)
}

// Register creates an account. On success the backend issues a session
// immediately, same shape as login.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Credentials, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid registration request: %w", err)
	}
	if !req.Role.IsValid() {
		return nil, fmt.Errorf("invalid registration request: unknown role %q", req.Role)
	}
	var env envelope
	if err := s.do(ctx, s.bare, http.MethodPost, "/auth/register", req, &env); err != nil {
		return nil, err
	}
	return credentialsFrom(env)
}

// Me fetches the profile for the current session via the authed client.
func (s *Service) Me(ctx context.Context) (*domain.User, error) {
	var env envelope
	if err := s.do(ctx, s.authed, http.MethodGet, "/auth/me", nil, &env); err != nil {
		return nil, err
	}
	if env.Data.User == nil {
		return nil, fmt.Errorf("who-am-I response missing user")
	}
	return env.Data.User, nil
}

// MeWithToken fetches the profile behind an explicit token, bypassing the
// session. This is the session.WhoAmIFunc used during startup, before the
// store is populated.
func (s *Service) MeWithToken(ctx context.Context, accessToken string) (*domain.User, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/auth/me", nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+accessToken)

	var env envelope
	if err := s.send(s.bare, httpReq, &env); err != nil {
		return nil, err
	}
	if env.Data.User == nil {
		return nil, fmt.Errorf("who-am-I response missing user")
	}
	return env.Data.User, nil
}

// Refresh exchanges a refresh token for a new pair. Always on the bare
// client; see the package comment. The signature matches
// transport.RefreshFunc.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	body := map[string]string{"refreshToken": refreshToken}
	var env envelope
	if err := s.do(ctx, s.bare, http.MethodPost, "/auth/refresh", body, &env); err != nil {
		return domain.TokenPair{}, err
	}
	if env.Data.Token == "" {
		return domain.TokenPair{}, fmt.Errorf("refresh response missing token")
	}
	return domain.TokenPair{
		AccessToken:  env.Data.Token,
		RefreshToken: env.Data.RefreshToken,
	}, nil
}

// UpdateProfile sends edited fields to PUT /auth/me and returns the
// canonical user the backend echoes back.
func (s *Service) UpdateProfile(ctx context.Context, update domain.UserUpdate) (*domain.User, error) {
	var env envelope
	if err := s.do(ctx, s.authed, http.MethodPut, "/auth/me", update, &env); err != nil {
		return nil, err
	}
	if env.Data.User == nil {
		return nil, fmt.Errorf("profile update response missing user")
	}
	return env.Data.User, nil
}

// ForgotPassword asks the backend to mail a reset link. The returned
// string is the backend's user-facing message.
func (s *Service) ForgotPassword(ctx context.Context, req ForgotPasswordRequest) (string, error) {
	if err := s.validate.Struct(req); err != nil {
		return "", fmt.Errorf("invalid forgot-password request: %w", err)
	}
	var env envelope
	if err := s.do(ctx, s.bare, http.MethodPost, "/auth/forgot-password", req, &env); err != nil {
		return "", err
	}
	return env.Message, nil
}

// ResetPassword completes the reset flow with the mailed token.
func (s *Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) (string, error) {
	if err := s.validate.Struct(req); err != nil {
		return "", fmt.Errorf("invalid reset-password request: %w", err)
	}
	var env envelope
	if err := s.do(ctx, s.bare, http.MethodPost, "/auth/reset-password", req, &env); err != nil {
		return "", err
	}
	return env.Message, nil
}

// do builds a JSON request, sends it on the given client, and decodes the
// envelope.
func (s *Service) do(ctx context.Context, client *http.Client, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	return s.send(client, httpReq, out)
}

// send executes the request and decodes either the success envelope or
// the error envelope.
func (s *Service) send(client *http.Client, req *http.Request, out interface{}) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &adopt.APIError{StatusCode: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		s.logger.Debug(req.Context(), "request failed", map[string]interface{}{
			"method": req.Method,
			"url":    req.URL.String(),
			"status": resp.StatusCode,
		})
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

// NewRefreshFunc returns a refresh function for baseURL on its own bare
// client, shaped for transport.New. Kept separate from any authed
// Service so the wiring cannot form a refresh-through-interceptor loop.
func NewRefreshFunc(baseURL string, opts ...Option) func(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	return NewService(baseURL, opts...).Refresh
}

// credentialsFrom validates the session shape of a login/register
// envelope.
func credentialsFrom(env envelope) (*Credentials, error) {
	if env.Data.Token == "" || env.Data.User == nil {
		return nil, fmt.Errorf("auth response missing token or user")
	}
	return &Credentials{
		Pair: domain.TokenPair{
			AccessToken:  env.Data.Token,
			RefreshToken: env.Data.RefreshToken,
		},
		User: env.Data.User,
	}, nil
}

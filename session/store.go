package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	adopt "github.com/adopt-a-farmer/client-go"
	"github.com/adopt-a-farmer/client-go/domain"
	"github.com/adopt-a-farmer/client-go/log"
	"github.com/adopt-a-farmer/client-go/storage"
)

// WhoAmIFunc fetches the profile behind an access token. Injected rather
// than imported so the store stays a leaf: the auth package depends on the
// transport, which depends on this store.
type WhoAmIFunc func(ctx context.Context, accessToken string) (*domain.User, error)

// Store owns the session lifecycle. All mutation goes through it so the
// invariant holds that the access token and the user are set and cleared
// together.
type Store struct {
	mu          sync.RWMutex
	storage     storage.Storage
	logger      log.Logger
	whoAmI      WhoAmIFunc
	state       State
	initialized bool

	subMu   sync.Mutex
	subs    map[int]func(State)
	nextSub int
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store's logger.
func WithLogger(l log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithWhoAmI sets the profile fetcher Initialize uses to validate a
// persisted token. Without it, a persisted session is restored from the
// cached user instead of the network.
func WithWhoAmI(fn WhoAmIFunc) Option {
	return func(s *Store) { s.whoAmI = fn }
}

// NewStore creates a session store over the given storage. The store
// starts in the loading state; call Initialize before consulting it.
func NewStore(st storage.Storage, opts ...Option) *Store {
	s := &Store{
		storage: st,
		logger:  log.Nop(),
		subs:    make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize restores a persisted session. A missing or malformed token
// clears everything without touching the network. A present token is
// validated against the who-am-I endpoint; any failure there, network or
// otherwise, also ends in a fully cleared session. Only the first call
// does work; later calls return immediately.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return nil
	}
	s.initialized = true

	token, _ := s.storage.Get(storage.KeyToken)
	if !IsValidToken(token) {
		s.clearLocked()
		s.state.Initialized = true
		st := s.state
		s.mu.Unlock()
		s.logger.Debug(ctx, "no persisted session, starting unauthenticated")
		s.notify(st)
		return nil
	}
	refresh, _ := s.storage.Get(storage.KeyRefreshToken)
	s.mu.Unlock()

	user, err := s.fetchUser(ctx, token)
	s.mu.Lock()
	if ctx.Err() != nil {
		// Caller went away mid-fetch. Drop the stale result and let a
		// later Initialize try again; the persisted session stays intact.
		s.initialized = false
		s.mu.Unlock()
		return ctx.Err()
	}
	if err != nil {
		s.clearLocked()
		s.state.Initialized = true
		st := s.state
		s.mu.Unlock()
		s.logger.Warn(ctx, "persisted session rejected, cleared", map[string]interface{}{"reason": err.Error()})
		s.notify(st)
		return nil
	}

	s.state = State{
		AccessToken:  token,
		RefreshToken: refresh,
		User:         user,
		Initialized:  true,
	}
	s.persistUserLocked(user)
	st := s.state
	s.mu.Unlock()

	s.logger.Info(ctx, "session restored", map[string]interface{}{
		"user_id": user.ID,
		"role":    string(user.Role),
	})
	s.notify(st)
	return nil
}

// fetchUser resolves the user for a token: via who-am-I when configured,
// otherwise from the persisted copy.
func (s *Store) fetchUser(ctx context.Context, token string) (*domain.User, error) {
	if s.whoAmI != nil {
		return s.whoAmI(ctx, token)
	}
	raw, ok := s.storage.Get(storage.KeyUser)
	if !ok {
		return nil, fmt.Errorf("no cached user")
	}
	var user domain.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, fmt.Errorf("decode cached user: %w", err)
	}
	return &user, nil
}

// SetSession establishes a session after login, signup, or a token
// refresh. The access token must pass the validity check; a caller must
// never persist a bad credential. An empty refreshToken leaves the
// existing one in place, since some login responses omit it.
func (s *Store) SetSession(user *domain.User, accessToken, refreshToken string) error {
	if !IsValidToken(accessToken) {
		return fmt.Errorf("%w: refusing to persist %q", adopt.ErrInvalidToken, accessToken)
	}
	if user == nil {
		return fmt.Errorf("%w: session requires a user", adopt.ErrInvalidToken)
	}

	s.mu.Lock()
	s.state.AccessToken = accessToken
	s.state.User = user
	s.state.Initialized = true
	s.initialized = true
	if refreshToken != "" {
		s.state.RefreshToken = refreshToken
	}

	_ = s.storage.Set(storage.KeyToken, accessToken)
	if refreshToken != "" {
		_ = s.storage.Set(storage.KeyRefreshToken, refreshToken)
	}
	s.persistUserLocked(user)
	st := s.state
	s.mu.Unlock()

	s.notify(st)
	return nil
}

// SetTokens replaces the token pair after a refresh, leaving the cached
// user untouched. Refresh and profile updates touch disjoint fields, so
// the two can never race each other into a torn state.
func (s *Store) SetTokens(pair domain.TokenPair) error {
	if !IsValidToken(pair.AccessToken) {
		return fmt.Errorf("%w: refresh produced %q", adopt.ErrInvalidToken, pair.AccessToken)
	}

	s.mu.Lock()
	s.state.AccessToken = pair.AccessToken
	_ = s.storage.Set(storage.KeyToken, pair.AccessToken)
	if pair.RefreshToken != "" {
		s.state.RefreshToken = pair.RefreshToken
		_ = s.storage.Set(storage.KeyRefreshToken, pair.RefreshToken)
	}
	st := s.state
	s.mu.Unlock()

	s.notify(st)
	return nil
}

// UpdateUser merges edited profile fields into the cached user. Tokens
// are untouched. No-op when unauthenticated.
func (s *Store) UpdateUser(update domain.UserUpdate) {
	s.mu.Lock()
	if s.state.User == nil {
		s.mu.Unlock()
		return
	}
	merged := update.Apply(*s.state.User)
	s.state.User = &merged
	s.persistUserLocked(&merged)
	st := s.state
	s.mu.Unlock()

	s.notify(st)
}

// ReplaceUser swaps the cached user for the given one, e.g. after the
// backend returns the canonical profile from a PUT /auth/me.
func (s *Store) ReplaceUser(user *domain.User) {
	if user == nil {
		return
	}
	s.mu.Lock()
	if s.state.User == nil {
		s.mu.Unlock()
		return
	}
	s.state.User = user
	s.persistUserLocked(user)
	st := s.state
	s.mu.Unlock()

	s.notify(st)
}

// Clear removes the persisted keys and resets the session to empty.
// Idempotent; safe to call on an already-empty store.
func (s *Store) Clear() {
	s.mu.Lock()
	s.clearLocked()
	s.state.Initialized = true
	s.initialized = true
	st := s.state
	s.mu.Unlock()

	s.notify(st)
}

// clearLocked resets state and storage. Caller holds s.mu.
func (s *Store) clearLocked() {
	s.state = State{}
	_ = s.storage.Delete(storage.KeyToken)
	_ = s.storage.Delete(storage.KeyRefreshToken)
	_ = s.storage.Delete(storage.KeyUser)
}

// persistUserLocked writes the cached user to storage. Caller holds s.mu.
func (s *Store) persistUserLocked(user *domain.User) {
	raw, err := json.Marshal(user)
	if err != nil {
		return
	}
	_ = s.storage.Set(storage.KeyUser, string(raw))
}

// State returns a snapshot of the current session.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// AccessToken returns the current access token, or "" when none is valid.
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !IsValidToken(s.state.AccessToken) {
		return ""
	}
	return s.state.AccessToken
}

// RefreshToken returns the current refresh token, or "".
func (s *Store) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.RefreshToken
}

// OnChange registers fn to run after every state mutation, with the new
// snapshot. The returned function unsubscribes.
func (s *Store) OnChange(fn func(State)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// notify fans a snapshot out to subscribers, outside the state lock so a
// subscriber may read the store.
func (s *Store) notify(st State) {
	s.subMu.Lock()
	fns := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}

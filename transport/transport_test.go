package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	adopt "github.com/adopt-a-farmer/client-go"
	"github.com/adopt-a-farmer/client-go/domain"
	"github.com/adopt-a-farmer/client-go/session"
	"github.com/adopt-a-farmer/client-go/storage"
)

func newAuthedStore(t *testing.T, access, refresh string) *session.Store {
	t.Helper()
	store := session.NewStore(storage.NewMemory())
	require.NoError(t, store.SetSession(&domain.User{ID: "u1", Role: domain.RoleAdopter}, access, refresh))
	return store
}

func staticRefresh(pair domain.TokenPair, err error, calls *int32) RefreshFunc {
	return func(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
		atomic.AddInt32(calls, 1)
		return pair, err
	}
}

func TestRoundTrip_AttachesBearerAndRequestID(t *testing.T) {
	var gotAuth, gotReqID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotReqID = r.Header.Get("X-Request-ID")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := newAuthedStore(t, "access-1", "refresh-1")
	client := &http.Client{Transport: New(store, nil)}

	resp, err := client.Get(srv.URL + "/farmers")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "Bearer access-1", gotAuth)
	assert.NotEmpty(t, gotReqID)
}

func TestRoundTrip_NoTokenNoHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := session.NewStore(storage.NewMemory())
	client := &http.Client{Transport: New(store, nil)}

	resp, err := client.Get(srv.URL + "/public")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Empty(t, gotAuth)
}

func TestRoundTrip_401WithoutTokenFailsImmediately(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	var refreshCalls int32
	store := session.NewStore(storage.NewMemory()) // unauthenticated
	client := &http.Client{Transport: New(store, staticRefresh(domain.TokenPair{}, nil, &refreshCalls))}

	resp, err := client.Get(srv.URL + "/private")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits), "no retry for unauthenticated request")
	assert.EqualValues(t, 0, atomic.LoadInt32(&refreshCalls), "no refresh for unauthenticated request")
}

func TestRoundTrip_RefreshAndRetryOnce(t *testing.T) {
	var mu sync.Mutex
	var seenTokens []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		mu.Lock()
		seenTokens = append(seenTokens, token)
		mu.Unlock()
		if token != "access-2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var refreshCalls int32
	store := newAuthedStore(t, "access-1", "refresh-1")
	refresh := staticRefresh(domain.TokenPair{AccessToken: "access-2", RefreshToken: "refresh-2"}, nil, &refreshCalls)
	client := &http.Client{Transport: New(store, refresh)}

	resp, err := client.Get(srv.URL + "/private")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, refreshCalls)
	assert.Equal(t, []string{"access-1", "access-2"}, seenTokens)

	// The store holds the rotated pair.
	st := store.State()
	assert.Equal(t, "access-2", st.AccessToken)
	assert.Equal(t, "refresh-2", st.RefreshToken)
	assert.True(t, st.IsAuthenticated(), "user survives a token refresh")
}

func TestRoundTrip_SingleFlightRefresh(t *testing.T) {
	const n = 8

	// Phase 1 tokens 401 until the refresh has happened; access-2 always
	// succeeds. A slow refresh widens the window in which all n requests
	// pile up behind the single flight.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ") != "access-2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var refreshCalls int32
	refresh := func(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
		atomic.AddInt32(&refreshCalls, 1)
		time.Sleep(100 * time.Millisecond)
		return domain.TokenPair{AccessToken: "access-2", RefreshToken: "refresh-2"}, nil
	}

	store := newAuthedStore(t, "access-1", "refresh-1")
	client := &http.Client{Transport: New(store, refresh)}

	var wg sync.WaitGroup
	statuses := make([]int, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := client.Get(srv.URL + fmt.Sprintf("/private/%d", i))
			if err != nil {
				errs[i] = err
				return
			}
			defer resp.Body.Close()
			statuses[i] = resp.StatusCode
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i], "request %d", i)
		assert.Equal(t, http.StatusOK, statuses[i], "request %d", i)
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&refreshCalls), "exactly one refresh for %d concurrent 401s", n)
}

func TestRoundTrip_RefreshFailureClearsSessionOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	var refreshCalls, expiredCalls int32
	refresh := staticRefresh(domain.TokenPair{}, errors.New("refresh token expired"), &refreshCalls)

	store := newAuthedStore(t, "access-1", "refresh-1")
	tr := New(store, refresh, WithOnSessionExpired(func() {
		atomic.AddInt32(&expiredCalls, 1)
	}))
	client := &http.Client{Transport: tr}

	_, err := client.Get(srv.URL + "/private")
	require.Error(t, err)
	assert.ErrorIs(t, err, adopt.ErrSessionExpired)

	st := store.State()
	assert.Empty(t, st.AccessToken)
	assert.Empty(t, st.RefreshToken)
	assert.Nil(t, st.User)
	assert.EqualValues(t, 1, atomic.LoadInt32(&expiredCalls), "expiry hook fires exactly once")
}

func TestRoundTrip_RefreshFailureRejectsAllQueued(t *testing.T) {
	const n = 5

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	var refreshCalls, expiredCalls int32
	refresh := func(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
		atomic.AddInt32(&refreshCalls, 1)
		time.Sleep(100 * time.Millisecond)
		return domain.TokenPair{}, errors.New("refresh token revoked")
	}

	store := newAuthedStore(t, "access-1", "refresh-1")
	tr := New(store, refresh, WithOnSessionExpired(func() {
		atomic.AddInt32(&expiredCalls, 1)
	}))
	client := &http.Client{Transport: tr}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := client.Get(srv.URL + "/private")
			if resp != nil {
				resp.Body.Close()
			}
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.Error(t, errs[i], "request %d", i)
		assert.ErrorIs(t, errs[i], adopt.ErrSessionExpired, "request %d", i)
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&refreshCalls))
	assert.EqualValues(t, 1, atomic.LoadInt32(&expiredCalls))
}

func TestRoundTrip_401WithNoRefreshTokenExpiresSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	var expiredCalls int32
	store := newAuthedStore(t, "access-1", "") // no refresh token
	tr := New(store, nil, WithOnSessionExpired(func() {
		atomic.AddInt32(&expiredCalls, 1)
	}))
	client := &http.Client{Transport: tr}

	_, err := client.Get(srv.URL + "/private")
	require.Error(t, err)
	assert.ErrorIs(t, err, adopt.ErrSessionExpired)
	assert.False(t, store.State().IsAuthenticated())
	assert.EqualValues(t, 1, atomic.LoadInt32(&expiredCalls))
}

func TestRoundTrip_403And5xxPassThrough(t *testing.T) {
	for _, status := range []int{http.StatusForbidden, http.StatusInternalServerError, http.StatusBadGateway} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		var refreshCalls int32
		store := newAuthedStore(t, "access-1", "refresh-1")
		client := &http.Client{Transport: New(store, staticRefresh(domain.TokenPair{}, nil, &refreshCalls))}

		resp, err := client.Get(srv.URL + "/private")
		require.NoError(t, err)
		resp.Body.Close()
		srv.Close()

		assert.Equal(t, status, resp.StatusCode)
		assert.EqualValues(t, 0, atomic.LoadInt32(&refreshCalls), "status %d must not trigger refresh", status)
		assert.True(t, store.State().IsAuthenticated(), "status %d must not change session state", status)
	}
}

func TestRoundTrip_RetriedPostReplaysBody(t *testing.T) {
	var mu sync.Mutex
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 64)
		n, _ := r.Body.Read(buf)
		mu.Lock()
		bodies = append(bodies, string(buf[:n]))
		mu.Unlock()
		if strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ") != "access-2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	var refreshCalls int32
	store := newAuthedStore(t, "access-1", "refresh-1")
	refresh := staticRefresh(domain.TokenPair{AccessToken: "access-2"}, nil, &refreshCalls)
	client := &http.Client{Transport: New(store, refresh)}

	resp, err := client.Post(srv.URL+"/adoptions", "application/json", strings.NewReader(`{"farmerId":"f1"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, []string{`{"farmerId":"f1"}`, `{"farmerId":"f1"}`}, bodies)
}

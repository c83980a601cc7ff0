package oauth

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenServer(t *testing.T, fetches *int32, expiresIn int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))

		auth := r.Header.Get("Authorization")
		require.True(t, strings.HasPrefix(auth, "Basic "))
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
		require.NoError(t, err)
		require.Equal(t, "id:secret", string(decoded))

		n := atomic.AddInt32(fetches, 1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"token-%d","token_type":"bearer","expires_in":%d,"scope":"read"}`, n, expiresIn)
	}))
}

func TestTokenManager_CachesToken(t *testing.T) {
	var fetches int32
	server := newTokenServer(t, &fetches, 3600)
	defer server.Close()

	mgr := NewTokenManager(resty.New(), server.URL, "id", "secret", "read", "test-agent")

	first, err := mgr.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-1", first)

	second, err := mgr.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-1", second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fetches), "cached token must not trigger a second fetch")
}

func TestTokenManager_RefreshesAfterExpiry(t *testing.T) {
	var fetches int32
	server := newTokenServer(t, &fetches, 3600)
	defer server.Close()

	mgr := NewTokenManager(resty.New(), server.URL, "id", "secret", "", "")

	current := time.Now()
	mgr.now = func() time.Time { return current }

	first, err := mgr.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-1", first)

	// Just inside the usable lifetime: 3600s minus the 300s margin.
	current = current.Add(3600*time.Second - 300*time.Second - time.Second)
	cached, err := mgr.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-1", cached)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fetches))

	// Past the margin boundary: exactly one new fetch.
	current = current.Add(2 * time.Second)
	refreshed, err := mgr.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-2", refreshed)
	assert.Equal(t, int32(2), atomic.LoadInt32(&fetches))
}

func TestTokenManager_AuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	defer server.Close()

	mgr := NewTokenManager(resty.New(), server.URL, "id", "wrong", "", "")

	_, err := mgr.Token(context.Background())
	require.Error(t, err)
	var authErr *AuthError
	assert.ErrorAs(t, err, &authErr)
	assert.Contains(t, authErr.Message, "401")
}

func TestTokenManager_Invalidate(t *testing.T) {
	var fetches int32
	server := newTokenServer(t, &fetches, 3600)
	defer server.Close()

	mgr := NewTokenManager(resty.New(), server.URL, "id", "secret", "", "")

	_, err := mgr.Token(context.Background())
	require.NoError(t, err)

	mgr.Invalidate()

	token, err := mgr.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token-2", token)
}

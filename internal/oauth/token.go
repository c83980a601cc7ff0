// Package oauth implements the OAuth2 client-credentials token lifecycle
// used by platforms that issue expiring bearer tokens.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// expiryMargin is subtracted from the advertised token lifetime to cover
// clock skew and in-flight use of a token fetched near its expiry.
const expiryMargin = 5 * time.Minute

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope"`
}

// TokenManager caches a client-credentials bearer token and refreshes it on
// expiry. Two callers that both observe an expired token may both refresh;
// that duplicate fetch is accepted because the grant is idempotent and
// side-effect-free on the resource server.
type TokenManager struct {
	client       *resty.Client
	tokenURL     string
	clientID     string
	clientSecret string
	scope        string
	userAgent    string

	mu        sync.RWMutex
	token     string
	expiresAt time.Time

	now func() time.Time
}

// NewTokenManager builds a manager for the given token endpoint. scope may
// be empty.
func NewTokenManager(client *resty.Client, tokenURL, clientID, clientSecret, scope, userAgent string) *TokenManager {
	return &TokenManager{
		client:       client,
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		scope:        scope,
		userAgent:    userAgent,
		now:          time.Now,
	}
}

// Token returns a valid bearer token, fetching a fresh one when the cached
// token is absent or expired. The read path is optimistic: a live token is
// returned without touching the write lock.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	m.mu.RLock()
	if m.token != "" && m.now().Before(m.expiresAt) {
		token := m.token
		m.mu.RUnlock()
		return token, nil
	}
	m.mu.RUnlock()

	return m.refresh(ctx)
}

func (m *TokenManager) refresh(ctx context.Context) (string, error) {
	logrus.Infof("requesting new OAuth2 token from %s", m.tokenURL)

	form := map[string]string{"grant_type": "client_credentials"}
	if m.scope != "" {
		form["scope"] = m.scope
	}

	req := m.client.R().
		SetContext(ctx).
		SetBasicAuth(m.clientID, m.clientSecret).
		SetFormData(form)
	if m.userAgent != "" {
		req.SetHeader("User-Agent", m.userAgent)
	}

	resp, err := req.Post(m.tokenURL)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return "", &AuthError{
			Message: fmt.Sprintf("token endpoint returned status %d: %s", resp.StatusCode(), string(resp.Body())),
		}
	}

	var tr tokenResponse
	if err := json.Unmarshal(resp.Body(), &tr); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}

	expiresAt := m.now().Add(time.Duration(tr.ExpiresIn)*time.Second - expiryMargin)

	m.mu.Lock()
	m.token = tr.AccessToken
	m.expiresAt = expiresAt
	m.mu.Unlock()

	logrus.Debugf("obtained OAuth2 token, valid until %s", expiresAt.Format(time.RFC3339))
	return tr.AccessToken, nil
}

// Invalidate drops the cached token so the next Token call refreshes.
func (m *TokenManager) Invalidate() {
	m.mu.Lock()
	m.token = ""
	m.expiresAt = time.Time{}
	m.mu.Unlock()
}

// AuthError reports a non-success response from the token endpoint.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return "authentication failed: " + e.Message
}

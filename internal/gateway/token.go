package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// refreshSkew refreshes tokens slightly before expiry so an in-flight
// call never carries a token that dies mid-request.
const refreshSkew = 60 * time.Second

// TokenSource manages the OAuth access-token lifecycle for the
// delegated instant-payment processor. It refreshes transparently via
// the stored refresh token and is safe for concurrent use.
type TokenSource struct {
	clientID     string
	clientSecret string
	tokenURL     string
	http         *http.Client

	mu           sync.Mutex
	refreshToken string
	accessToken  string
	expiresAt    time.Time

	now func() time.Time
}

func NewTokenSource(clientID, clientSecret, refreshToken, tokenURL string, timeout time.Duration) *TokenSource {
	return &TokenSource{
		clientID:     clientID,
		clientSecret: clientSecret,
		refreshToken: refreshToken,
		tokenURL:     tokenURL,
		http:         &http.Client{Timeout: timeout},
		now:          time.Now,
	}
}

// Token returns a valid access token, refreshing it first if it is
// expired or about to expire.
func (t *TokenSource) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.accessToken != "" && t.now().Add(refreshSkew).Before(t.expiresAt) {
		return t.accessToken, nil
	}
	if err := t.refresh(ctx); err != nil {
		return "", err
	}
	return t.accessToken, nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

func (t *TokenSource) refresh(ctx context.Context) error {
	if t.refreshToken == "" {
		return fmt.Errorf("%w: no refresh token stored", ErrAuthExpired)
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {t.refreshToken},
		"client_id":     {t.clientID},
		"client_secret": {t.clientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.http.Do(req)
	if err != nil {
		return fmt.Errorf("token refresh: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		// The authorization grant itself is dead. Surface this
		// distinctly so the vendor can be prompted to re-authorize.
		return fmt.Errorf("%w: token endpoint returned %d", ErrAuthExpired, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("token refresh: endpoint returned %d", resp.StatusCode)
	}

	var out tokenResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return fmt.Errorf("token refresh: decode response: %w", err)
	}
	if out.AccessToken == "" {
		return fmt.Errorf("%w: empty access token", ErrAuthExpired)
	}

	t.accessToken = out.AccessToken
	t.expiresAt = t.now().Add(time.Duration(out.ExpiresIn) * time.Second)
	if out.RefreshToken != "" {
		t.refreshToken = out.RefreshToken
	}
	return nil
}

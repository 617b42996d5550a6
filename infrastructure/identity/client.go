// Package identity implements the AuthProvider port against a
// Firebase-style identity toolkit REST API. The provider session, its
// token cache, and the identity-changed observer fan-out live here; the
// rest of the application only sees the port.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vinayh/lifecal-web/application/ports"
	apperrors "github.com/vinayh/lifecal-web/pkg/errors"
)

// tokenLeeway is subtracted from the token expiry when deciding whether
// a cached token is still usable.
const tokenLeeway = 30 * time.Second

// oauthProvider describes one supported federated provider.
type oauthProvider struct {
	id    string
	scope string
}

var oauthProviders = map[string]oauthProvider{
	"github": {id: "github.com", scope: "read:user"},
	"google": {id: "google.com", scope: "https://www.googleapis.com/auth/userinfo.profile"},
}

// Config holds client configuration.
type Config struct {
	APIKey   string
	BaseURL  string
	TokenURL string
}

// authSession is the provider-issued session being cached.
type authSession struct {
	uid          string
	email        string
	idToken      string
	refreshToken string
	expiresAt    time.Time
}

// Client talks to the identity provider and fans identity transitions
// out to registered observers.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger

	// limiter throttles token refresh calls so effect-driven consumers
	// cannot hammer the token endpoint.
	limiter *rate.Limiter

	mu        sync.Mutex
	session   *authSession
	observers map[int]func(*ports.Identity)
	nextObs   int
}

var _ ports.AuthProvider = (*Client)(nil)

// NewClient creates an identity client.
func NewClient(cfg Config, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger,
		limiter:    rate.NewLimiter(rate.Every(time.Second), 5),
		observers:  make(map[int]func(*ports.Identity)),
	}
}

// tokenResponse is the provider's account endpoint response shape.
type tokenResponse struct {
	IDToken      string `json:"idToken"`
	Email        string `json:"email"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	LocalID      string `json:"localId"`
}

// providerError is the provider's error envelope.
type providerError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SignInWithPassword authenticates with email and password. An unknown
// email falls through to account creation, matching the product's
// sign-in-or-sign-up flow.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*ports.Identity, error) {
	body := map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}
	resp, err := c.post(ctx, "/v1/accounts:signInWithPassword", body)
	if err != nil && errorCode(err) == "EMAIL_NOT_FOUND" {
		c.logger.Info("unknown email, creating account", zap.String("email", email))
		resp, err = c.post(ctx, "/v1/accounts:signUp", body)
	}
	if err != nil {
		return nil, err
	}
	return c.adopt(resp)
}

// SignInWithOAuth authenticates via a federated provider using an
// assertion (the provider's token) obtained out of band.
func (c *Client) SignInWithOAuth(ctx context.Context, provider string, assertion string) (*ports.Identity, error) {
	p, ok := oauthProviders[provider]
	if !ok {
		return nil, apperrors.NewValidationError("invalid auth method specified")
	}
	body := map[string]interface{}{
		"postBody":          fmt.Sprintf("access_token=%s&providerId=%s&scope=%s", assertion, p.id, p.scope),
		"requestUri":        "http://localhost",
		"returnSecureToken": true,
	}
	resp, err := c.post(ctx, "/v1/accounts:signInWithIdp", body)
	if err != nil {
		return nil, err
	}
	return c.adopt(resp)
}

// SignOut discards the provider session. The session is cleared before
// observers are told, so nobody can observe a token for a dead session.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	c.notify(nil)
	return nil
}

// Token returns a bearer token for the current identity, refreshing via
// the secure-token endpoint when forced or expired.
func (c *Client) Token(ctx context.Context, forceRefresh bool) (string, error) {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		return "", apperrors.NewAuthError("no provider session", nil)
	}
	if !forceRefresh && time.Until(sess.expiresAt) > tokenLeeway {
		return sess.idToken, nil
	}
	return c.refresh(ctx, sess)
}

// OnIdentityChanged registers an observer. The observer is invoked
// immediately with the current identity so late subscribers converge.
func (c *Client) OnIdentityChanged(fn func(*ports.Identity)) func() {
	c.mu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	current := c.identityLocked()
	c.mu.Unlock()

	fn(current)
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.observers, id)
	}
}

// refresh exchanges the refresh token for a new ID token.
func (c *Client) refresh(ctx context.Context, sess *authSession) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", apperrors.NewAuthError("token refresh throttled", err)
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {sess.refreshToken},
	}
	endpoint := fmt.Sprintf("%s/v1/token?key=%s", c.cfg.TokenURL, url.QueryEscape(c.cfg.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", apperrors.NewInternalError("building token request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", apperrors.NewAuthError("token refresh failed", err)
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		return "", providerFailure(res.Body)
	}

	var parsed struct {
		IDToken      string `json:"id_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    string `json:"expires_in"`
		UserID       string `json:"user_id"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return "", apperrors.NewAuthError("decoding token response", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil || c.session.uid != sess.uid {
		// Signed out or switched accounts while refreshing.
		return "", apperrors.NewAuthError("no provider session", nil)
	}
	c.session.idToken = parsed.IDToken
	if parsed.RefreshToken != "" {
		c.session.refreshToken = parsed.RefreshToken
	}
	c.session.expiresAt = expiryOf(parsed.IDToken, parsed.ExpiresIn)
	return c.session.idToken, nil
}

// adopt installs a freshly issued session and notifies observers.
func (c *Client) adopt(resp *tokenResponse) (*ports.Identity, error) {
	uid := resp.LocalID
	if uid == "" {
		// Fall back to the subject claim of the ID token.
		uid = subjectOf(resp.IDToken)
	}
	if uid == "" {
		return nil, apperrors.NewAuthError("provider response carries no uid", nil)
	}

	sess := &authSession{
		uid:          uid,
		email:        resp.Email,
		idToken:      resp.IDToken,
		refreshToken: resp.RefreshToken,
		expiresAt:    expiryOf(resp.IDToken, resp.ExpiresIn),
	}
	c.mu.Lock()
	c.session = sess
	id := c.identityLocked()
	c.mu.Unlock()

	c.logger.Info("signed in", zap.String("uid", uid))
	c.notify(id)
	return id, nil
}

func (c *Client) identityLocked() *ports.Identity {
	if c.session == nil {
		return nil
	}
	return &ports.Identity{UID: c.session.uid, Email: c.session.email}
}

// notify fans an identity transition out to observers. Must be called
// without holding mu: observers re-enter the client for tokens.
func (c *Client) notify(id *ports.Identity) {
	c.mu.Lock()
	fns := make([]func(*ports.Identity), 0, len(c.observers))
	for _, fn := range c.observers {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(id)
	}
}

// post sends one JSON request to an accounts endpoint.
func (c *Client) post(ctx context.Context, path string, body map[string]interface{}) (*tokenResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, apperrors.NewInternalError("encoding provider request").WithCause(err)
	}
	endpoint := fmt.Sprintf("%s%s?key=%s", c.cfg.BaseURL, path, url.QueryEscape(c.cfg.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, apperrors.NewInternalError("building provider request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewAuthError("identity provider unreachable", err)
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		return nil, providerFailure(res.Body)
	}

	var parsed tokenResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, apperrors.NewAuthError("decoding provider response", err)
	}
	return &parsed, nil
}

// providerFailure converts a non-2xx provider response to a typed error
// carrying the provider's error code.
func providerFailure(body io.Reader) error {
	raw, _ := io.ReadAll(io.LimitReader(body, 4096))
	var envelope providerError
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
		return apperrors.NewAuthError("identity provider rejected request", nil).
			WithCode(envelope.Error.Message)
	}
	return apperrors.NewAuthError("identity provider error: "+strings.TrimSpace(string(raw)), nil)
}

// errorCode extracts the provider error code from a typed error.
func errorCode(err error) string {
	if appErr := apperrors.GetAppError(err); appErr != nil {
		return appErr.Code
	}
	return ""
}

// expiryOf derives token expiry from the JWT exp claim, falling back to
// the provider's expiresIn seconds. The token is not verified here; the
// store verifies it server side.
func expiryOf(idToken, expiresIn string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	if secs, err := strconv.Atoi(expiresIn); err == nil && secs > 0 {
		return time.Now().Add(time.Duration(secs) * time.Second)
	}
	return time.Now().Add(time.Hour)
}

// subjectOf reads the subject claim of an unverified JWT.
func subjectOf(idToken string) string {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return ""
	}
	sub, _ := claims.GetSubject()
	return sub
}

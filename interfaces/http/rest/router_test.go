package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vinayh/lifecal-web/application/ports"
	"github.com/vinayh/lifecal-web/application/services"
	"github.com/vinayh/lifecal-web/domain/profile"
	"github.com/vinayh/lifecal-web/infrastructure/config"
)

type stubProvider struct {
	identity *ports.Identity
	observer func(*ports.Identity)
}

func (s *stubProvider) SignInWithPassword(ctx context.Context, email, password string) (*ports.Identity, error) {
	s.observer(s.identity)
	return s.identity, nil
}

func (s *stubProvider) SignInWithOAuth(ctx context.Context, provider, assertion string) (*ports.Identity, error) {
	s.observer(s.identity)
	return s.identity, nil
}

func (s *stubProvider) SignOut(ctx context.Context) error {
	s.observer(nil)
	return nil
}

func (s *stubProvider) Token(ctx context.Context, force bool) (string, error) {
	return "tok", nil
}

func (s *stubProvider) OnIdentityChanged(fn func(*ports.Identity)) func() {
	s.observer = fn
	fn(nil)
	return func() {}
}

type stubStore struct {
	payload *profile.Payload
}

func (s *stubStore) GetUser(ctx context.Context, uid, token string) (*profile.Payload, error) {
	return s.payload, nil
}

func (s *stubStore) UpdateUserProfile(ctx context.Context, uid, token string, form profile.FormData) error {
	return nil
}

func (s *stubStore) AddUpdateEntry(ctx context.Context, uid, token string, entry profile.Entry) ([]profile.Entry, error) {
	return []profile.Entry{entry}, nil
}

func ptr[T any](v T) *T { return &v }

func newTestServer(t *testing.T, store *stubStore) (*httptest.Server, *stubProvider) {
	t.Helper()
	provider := &stubProvider{identity: &ports.Identity{UID: "u1", Email: "amy@example.com"}}
	sessions := services.NewSessionManager(provider, store, 0, zap.NewNop(), nil)
	t.Cleanup(sessions.Close)

	cfg := &config.Config{Environment: "development", ProfileTTLSeconds: 120}
	router := NewRouter(sessions, nil, cfg, zap.NewNop())
	srv := httptest.NewServer(router.Setup())
	t.Cleanup(srv.Close)
	return srv, provider
}

func completeStore() *stubStore {
	return &stubStore{payload: &profile.Payload{
		UID:      "u1",
		Name:     ptr("Amy"),
		Birth:    ptr("1990-01-01"),
		ExpYears: ptr(80),
		Email:    ptr("amy@example.com"),
	}}
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decode(t *testing.T, res *http.Response) apiEnvelope {
	t.Helper()
	defer res.Body.Close()
	var env apiEnvelope
	require.NoError(t, json.NewDecoder(res.Body).Decode(&env))
	return env
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, completeStore())

	res, err := http.Get(srv.URL + "/health")

	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestLoginThenSessionAndCalendar(t *testing.T) {
	srv, _ := newTestServer(t, completeStore())

	body := bytes.NewBufferString(`{"method":"emailPassword","email":"amy@example.com","password":"secret"}`)
	res, err := http.Post(srv.URL+"/api/v1/session/login", "application/json", body)
	require.NoError(t, err)
	env := decode(t, res)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.True(t, env.Success)

	var view struct {
		State string `json:"state"`
		UID   string `json:"uid"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, "ProfileComplete", view.State)
	assert.Equal(t, "u1", view.UID)

	res, err = http.Get(srv.URL + "/api/v1/calendar")
	require.NoError(t, err)
	env = decode(t, res)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var weeks []struct {
		Start string `json:"start"`
		Past  bool   `json:"past"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &weeks))
	assert.NotEmpty(t, weeks)
}

func TestLoginRejectsMalformedBody(t *testing.T) {
	srv, _ := newTestServer(t, completeStore())

	res, err := http.Post(srv.URL+"/api/v1/session/login", "application/json",
		bytes.NewBufferString("{not json"))

	require.NoError(t, err)
	env := decode(t, res)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_BODY", env.Error.Code)
}

func TestLoginRejectsInvalidCredentials(t *testing.T) {
	srv, _ := newTestServer(t, completeStore())

	res, err := http.Post(srv.URL+"/api/v1/session/login", "application/json",
		bytes.NewBufferString(`{"method":"emailPassword","email":"nope","password":"x"}`))

	require.NoError(t, err)
	env := decode(t, res)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION", env.Error.Code)
}

func TestRouteEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, completeStore())

	res, err := http.Get(srv.URL + "/api/v1/route?path=/calendar")

	require.NoError(t, err)
	env := decode(t, res)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var decision struct {
		Outcome string `json:"outcome"`
		Target  string `json:"target"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &decision))
	// No session yet, so the calendar is gated behind login.
	assert.Equal(t, "redirect", decision.Outcome)
	assert.Equal(t, "/login", decision.Target)
}

func TestCalendarRequiresCompleteProfile(t *testing.T) {
	srv, _ := newTestServer(t, completeStore())

	res, err := http.Get(srv.URL + "/api/v1/calendar")

	require.NoError(t, err)
	env := decode(t, res)
	assert.Equal(t, http.StatusConflict, res.StatusCode)
	require.NotNil(t, env.Error)
	assert.Equal(t, "PROFILE_NOT_READY", env.Error.Code)
}

func TestEntryUpsertRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t, completeStore())

	body := bytes.NewBufferString(`{"method":"emailPassword","email":"amy@example.com","password":"secret"}`)
	res, err := http.Post(srv.URL+"/api/v1/session/login", "application/json", body)
	require.NoError(t, err)
	res.Body.Close()

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/v1/entries/1990-01-08",
		bytes.NewBufferString(`{"note":"First smile","tags":["milestone"]}`))
	require.NoError(t, err)
	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	env := decode(t, res)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var view struct {
		Entries []profile.Entry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &view))
	require.Len(t, view.Entries, 1)
	assert.Equal(t, "First smile", view.Entries[0].Note)
}

func TestLogout(t *testing.T) {
	srv, _ := newTestServer(t, completeStore())

	body := bytes.NewBufferString(`{"method":"emailPassword","email":"amy@example.com","password":"secret"}`)
	res, err := http.Post(srv.URL+"/api/v1/session/login", "application/json", body)
	require.NoError(t, err)
	res.Body.Close()

	res, err = http.Post(srv.URL+"/api/v1/session/logout", "application/json", nil)
	require.NoError(t, err)
	env := decode(t, res)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var view struct {
		State string `json:"state"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, "NoSession", view.State)
}

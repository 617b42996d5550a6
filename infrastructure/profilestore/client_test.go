package profilestore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vinayh/lifecal-web/domain/profile"
	apperrors "github.com/vinayh/lifecal-web/pkg/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, srv.Client(), zap.NewNop())
}

func TestGetUser(t *testing.T) {
	var gotQuery map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/getUser", r.URL.Path)
		gotQuery = map[string]string{
			"uid":     r.URL.Query().Get("uid"),
			"idToken": r.URL.Query().Get("idToken"),
		}
		w.Write([]byte(`{
			"uid": "u1",
			"name": "Amy",
			"birth": "1990-01-01",
			"expYears": 80,
			"email": "amy@example.com",
			"entries": [{"start": "1990-01-08", "note": "First smile", "tags": ["milestone"]}],
			"tags": [{"id": "t1", "name": "milestone", "color": "#ff0000"}]
		}`))
	})

	payload, err := client.GetUser(context.Background(), "u1", "tok")

	require.NoError(t, err)
	assert.Equal(t, map[string]string{"uid": "u1", "idToken": "tok"}, gotQuery)
	require.NotNil(t, payload)
	assert.Equal(t, "u1", payload.UID)
	require.NotNil(t, payload.Name)
	assert.Equal(t, "Amy", *payload.Name)
	require.Len(t, payload.Entries, 1)
	assert.Equal(t, []string{"milestone"}, payload.Entries[0].Tags)
	require.Len(t, payload.Tags, 1)
	assert.Equal(t, "#ff0000", payload.Tags[0].Color)
}

func TestGetUser_NoDocument(t *testing.T) {
	for name, body := range map[string]string{
		"null body":  "null",
		"empty body": "",
	} {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			})

			payload, err := client.GetUser(context.Background(), "u1", "tok")

			require.NoError(t, err)
			assert.Nil(t, payload)
		})
	}
}

func TestGetUser_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})

	_, err := client.GetUser(context.Background(), "u1", "tok")

	require.Error(t, err)
	assert.True(t, apperrors.IsNetwork(err))
	assert.Contains(t, err.Error(), "server error, response: unauthorized")
}

func TestGetUser_MalformedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{not json"))
	})

	_, err := client.GetUser(context.Background(), "u1", "tok")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "error parsing user")
}

func TestUpdateUserProfile(t *testing.T) {
	var gotQuery map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/updateUserProfile", r.URL.Path)
		q := r.URL.Query()
		gotQuery = map[string]string{
			"uid": q.Get("uid"), "name": q.Get("name"), "birth": q.Get("birth"),
			"expYears": q.Get("expYears"), "email": q.Get("email"),
		}
		w.Write([]byte("ok"))
	})

	err := client.UpdateUserProfile(context.Background(), "u1", "tok", profile.FormData{
		Name: "Amy", Birth: "1990-01-01", ExpYears: 80, Email: "amy@example.com",
	})

	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"uid": "u1", "name": "Amy", "birth": "1990-01-01",
		"expYears": "80", "email": "amy@example.com",
	}, gotQuery)
}

func TestAddUpdateEntry(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/addUpdateEntry", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "1990-01-08", q.Get("start"))
		assert.Equal(t, "First smile", q.Get("note"))
		assert.Equal(t, "milestone,family", q.Get("tags"))
		w.Write([]byte(`{"entries": [{"start": "1990-01-08", "note": "First smile", "tags": ["milestone", "family"]}]}`))
	})

	entries, err := client.AddUpdateEntry(context.Background(), "u1", "tok", profile.Entry{
		Start: "1990-01-08", Note: "First smile", Tags: []string{"milestone", "family"},
	})

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "First smile", entries[0].Note)
}

// Five consecutive failures open the breaker; subsequent calls are
// refused without reaching the server.
func TestCircuitBreakerOpens(t *testing.T) {
	requests := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	for i := 0; i < 5; i++ {
		_, err := client.GetUser(context.Background(), "u1", "tok")
		require.Error(t, err)
	}
	require.Equal(t, 5, requests)

	_, err := client.GetUser(context.Background(), "u1", "tok")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "temporarily unavailable")
	assert.Equal(t, 5, requests)
}

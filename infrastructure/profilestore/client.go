// Package profilestore implements the ProfileStore port against the
// backend's query-parameter HTTP API. Calls run through a circuit
// breaker so a struggling backend sheds load instead of queueing it.
package profilestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/vinayh/lifecal-web/application/ports"
	"github.com/vinayh/lifecal-web/domain/profile"
	apperrors "github.com/vinayh/lifecal-web/pkg/errors"
)

// Client is the profile store HTTP client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

var _ ports.ProfileStore = (*Client)(nil)

// NewClient creates a profile store client.
func NewClient(baseURL string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "profile-store",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		breaker:    breaker,
		logger:     logger,
	}
}

// GetUser fetches the profile document with its entries and tags. A nil
// payload with nil error means the store holds no document for the uid.
func (c *Client) GetUser(ctx context.Context, uid, idToken string) (*profile.Payload, error) {
	params := url.Values{"uid": {uid}, "idToken": {idToken}}
	body, err := c.get(ctx, "/getUser", params)
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}

	var payload profile.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, apperrors.NewNetworkError("error parsing user: "+err.Error(), err)
	}
	return &payload, nil
}

// UpdateUserProfile writes the profile fields.
func (c *Client) UpdateUserProfile(ctx context.Context, uid, idToken string, form profile.FormData) error {
	params := url.Values{
		"uid":      {uid},
		"idToken":  {idToken},
		"name":     {form.Name},
		"birth":    {form.Birth},
		"expYears": {strconv.Itoa(form.ExpYears)},
		"email":    {form.Email},
	}
	_, err := c.get(ctx, "/updateUserProfile", params)
	return err
}

// AddUpdateEntry upserts one week's entry and returns the updated
// entries collection.
func (c *Client) AddUpdateEntry(ctx context.Context, uid, idToken string, entry profile.Entry) ([]profile.Entry, error) {
	params := url.Values{
		"uid":     {uid},
		"idToken": {idToken},
		"start":   {entry.Start},
		"note":    {entry.Note},
		"tags":    {strings.Join(entry.Tags, ",")},
	}
	body, err := c.get(ctx, "/addUpdateEntry", params)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Entries []profile.Entry `json:"entries"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, apperrors.NewNetworkError("error parsing entries: "+err.Error(), err)
	}
	return parsed.Entries, nil
}

// get performs one request through the circuit breaker and returns the
// response body. Non-2xx responses surface the server's error text.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	endpoint := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, apperrors.NewInternalError("building store request").WithCause(err)
		}

		res, err := c.httpClient.Do(req)
		if err != nil {
			return nil, apperrors.NewNetworkError("profile store unreachable", err)
		}
		defer res.Body.Close()

		body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
		if err != nil {
			return nil, apperrors.NewNetworkError("reading store response", err)
		}
		if res.StatusCode/100 != 2 {
			return nil, apperrors.NewNetworkError(
				"server error, response: "+strings.TrimSpace(string(body)), nil)
		}
		return body, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, apperrors.NewNetworkError("profile store temporarily unavailable", err)
		}
		return nil, err
	}
	return result.([]byte), nil
}

package modeladapter_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/germanamz/huddle/pkg/modeladapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 5*time.Second, modeladapter.ParseRetryAfter("5"))
	assert.Equal(t, time.Duration(0), modeladapter.ParseRetryAfter(""))
	assert.Equal(t, time.Duration(0), modeladapter.ParseRetryAfter("garbage"))

	past := time.Now().Add(-time.Hour).UTC().Format(http.TimeFormat)
	assert.Equal(t, time.Duration(0), modeladapter.ParseRetryAfter(past))
}

func TestNewRequest_Auth(t *testing.T) {
	a := &modeladapter.ModelAdapter{BaseURL: "http://localhost:8080/v1/", Auth: modeladapter.Auth{Key: "secret"}}

	req, err := a.NewRequest(context.Background(), http.MethodPost, "/chat/completions", nil)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/v1/chat/completions", req.URL.String())
	assert.Equal(t, "Bearer secret", req.Header.Get("Authorization"))
}

func TestNewRequest_PlaceholderKeyNotSent(t *testing.T) {
	a := &modeladapter.ModelAdapter{BaseURL: "http://localhost", Auth: modeladapter.Auth{Key: "NULL"}}

	req, err := a.NewRequest(context.Background(), http.MethodGet, "/", nil)
	require.NoError(t, err)
	assert.Empty(t, req.Header.Get("Authorization"))
}

func TestNewRequest_CustomHeader(t *testing.T) {
	a := &modeladapter.ModelAdapter{
		BaseURL: "http://localhost",
		Auth:    modeladapter.Auth{Key: "k", Header: "x-api-key"},
		Headers: map[string]string{"X-Extra": "1"},
	}

	req, err := a.NewRequest(context.Background(), http.MethodGet, "/", nil)
	require.NoError(t, err)
	assert.Equal(t, "k", req.Header.Get("x-api-key"))
	assert.Equal(t, "1", req.Header.Get("X-Extra"))
}

func TestModel_Placeholder(t *testing.T) {
	assert.Empty(t, (&modeladapter.ModelAdapter{Name: "NULL"}).Model())
	assert.Equal(t, "gpt-4", (&modeladapter.ModelAdapter{Name: "gpt-4"}).Model())
}

func TestPostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			_, _ = w.Write([]byte(`{"value":42}`))
		case "/limited":
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte("slow down"))
		default:
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream"))
		}
	}))
	t.Cleanup(srv.Close)

	a := &modeladapter.ModelAdapter{BaseURL: srv.URL}

	var out struct {
		Value int `json:"value"`
	}
	require.NoError(t, a.PostJSON(context.Background(), "/ok", map[string]string{}, &out))
	assert.Equal(t, 42, out.Value)

	err := a.PostJSON(context.Background(), "/limited", nil, nil)
	var rle *modeladapter.RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, 2*time.Second, rle.RetryAfter)
	assert.True(t, modeladapter.IsRetryable(err))

	err = a.PostJSON(context.Background(), "/broken", nil, nil)
	var se *modeladapter.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
	assert.True(t, modeladapter.IsRetryable(err))
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, modeladapter.IsRetryable(context.Canceled))
	assert.False(t, modeladapter.IsRetryable(&modeladapter.StatusError{StatusCode: 400}))
	assert.True(t, modeladapter.IsRetryable(errors.New("connection refused")))
}

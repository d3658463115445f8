package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"card-sync/core/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_GetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "card-sync/1.0", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"name":"Cloud"}`))
	}))
	defer srv.Close()

	var out struct{ Name string }
	c := New("catalog", time.Second)
	require.NoError(t, c.GetJSON(context.Background(), srv.URL, &out))
	assert.Equal(t, "Cloud", out.Name)
}

func TestClient_PostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		_, _ = w.Write([]byte(`{"echo":"` + in["q"] + `"}`))
	}))
	defer srv.Close()

	var out map[string]string
	require.NoError(t, New("official", 0).PostJSON(context.Background(), srv.URL, map[string]string{"q": "x"}, &out))
	assert.Equal(t, "x", out["echo"])
}

func TestClient_StatusErrors(t *testing.T) {
	tests := []struct {
		status int
		class  retry.Class
	}{
		{http.StatusTooManyRequests, retry.ResourceExhausted},
		{http.StatusBadGateway, retry.Transient},
		{http.StatusNotFound, retry.NonRetryable},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			err := New("catalog", time.Second).GetJSON(context.Background(), srv.URL, nil)
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.HTTPStatus())
			assert.Equal(t, tt.class, retry.Classify(err))
		})
	}
}

func TestClient_DecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	var out map[string]any
	err := New("catalog", time.Second).GetJSON(context.Background(), srv.URL, &out)
	require.Error(t, err)
	assert.Equal(t, retry.NonRetryable, retry.Classify(err))
}

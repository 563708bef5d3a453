package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotify(t *testing.T) {
	got := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Text string `json:"text"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		got <- body.Text
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	n := New(srv.URL)
	require.NoError(t, n.Notify(context.Background(), "🚨 Hazard Update (IN)"))
	assert.Equal(t, "🚨 Hazard Update (IN)", <-got)
	assert.Equal(t, "slack", n.Name())
}

func TestNotify_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_token", http.StatusForbidden)
	}))
	defer srv.Close()

	assert.Error(t, New(srv.URL).Notify(context.Background(), "x"))
	assert.ErrorContains(t, New("").Notify(context.Background(), "x"), "not configured")
}

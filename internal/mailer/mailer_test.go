package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientConfigured(t *testing.T) {
	assert.False(t, New("", "x@y.z").Configured())
	assert.False(t, New("key", "").Configured())
	assert.True(t, New("key", "x@y.z").Configured())
}

func TestClientSend(t *testing.T) {
	var got sendRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New("rs_test_key", "Kah-Digital <notifications@kah-digital.io>").WithEndpoint(srv.URL)

	err := c.Send(context.Background(), Email{
		To:      []string{"jean@example.com"},
		Bcc:     []string{"admin@kah-digital.com"},
		ReplyTo: "hello@kah-digital.com",
		Subject: "Votre devis",
		Text:    "Bonjour",
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer rs_test_key", auth)
	assert.Equal(t, "Kah-Digital <notifications@kah-digital.io>", got.From)
	assert.Equal(t, []string{"jean@example.com"}, got.To)
	assert.Equal(t, []string{"admin@kah-digital.com"}, got.Bcc)
	assert.Equal(t, "hello@kah-digital.com", got.ReplyTo)
}

func TestClientSendAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"invalid from"}`, http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := New("rs_test_key", "x@y.z").WithEndpoint(srv.URL)
	err := c.Send(context.Background(), Email{To: []string{"a@b.c"}, Subject: "s", Text: "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 422")
}

func TestClientSendUnconfigured(t *testing.T) {
	err := New("", "").Send(context.Background(), Email{})
	assert.Error(t, err)
}

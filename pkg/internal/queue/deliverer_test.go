package queue_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/openballot/ballotbox/pkg/internal/models"
	"github.com/openballot/ballotbox/pkg/internal/queue"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPDelivererPostsPayload(t *testing.T) {
	var received models.SyncPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, jsoniter.Unmarshal(body, &received))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	viper.Set("sync.endpoint", server.URL)
	defer viper.Set("sync.endpoint", nil)

	payload := newPayload(7)
	require.NoError(t, queue.NewHTTPDeliverer().Deliver(context.Background(), payload))
	assert.Equal(t, payload.VoteID, received.VoteID)
	assert.Equal(t, payload.QuestionIdentifier, received.QuestionIdentifier)
}

func TestHTTPDelivererRejectsNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	viper.Set("sync.endpoint", server.URL)
	defer viper.Set("sync.endpoint", nil)

	err := queue.NewHTTPDeliverer().Deliver(context.Background(), newPayload(8))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/naturalcheck/internal/models"
)

func TestProbeConnectionSuccess(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, models.Message{Role: models.RoleSystem, Content: "You are a helpful assistant."}, req.Messages[0])
		assert.Equal(t, models.Message{Role: models.RoleUser, Content: "This is a test. OK?"}, req.Messages[1])
		w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"OK"}}]}`))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	before := cfg
	result := ProbeConnection(context.Background(), NewHTTPClient(), cfg)

	assert.True(t, result.OK)
	assert.Empty(t, result.Detail)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, before, cfg)
}

func TestProbeConnectionHTTPFailureIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"No auth credentials found"}}`))
	}))
	defer server.Close()

	result := ProbeConnection(context.Background(), NewHTTPClient(), testConfig(server.URL))

	assert.False(t, result.OK)
	assert.Contains(t, result.Detail, "401")
	assert.Contains(t, result.Detail, "No auth credentials found")
	assert.Contains(t, result.Detail, "API key")
	assert.Equal(t, int32(1), calls.Load())
}

func TestProbeConnectionTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := server.URL
	server.Close()

	result := ProbeConnection(context.Background(), NewHTTPClient(), testConfig(endpoint))
	assert.False(t, result.OK)
	assert.NotEmpty(t, result.Detail)
}

func TestProbeConnectionEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	result := ProbeConnection(context.Background(), NewHTTPClient(), testConfig(server.URL))
	assert.False(t, result.OK)
	assert.Contains(t, result.Detail, "no message content")
}

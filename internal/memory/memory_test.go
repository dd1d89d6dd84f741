package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/naturalcheck/internal/models"
)

func newTestStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, ttl), mr
}

func sampleFailure() *models.Failure {
	return &models.Failure{
		Kind:     models.FailureExhaustedRetries,
		LastKind: models.FailureInvalidJSON,
		Detail:   "invalid character 'S' looking for beginning of value",
		Attempts: 2,
		Conversation: models.Conversation{
			models.SystemMessage("You are a language checker."),
			models.UserMessage("check this"),
			models.AssistantMessage("Sure! Here you go"),
			models.UserMessage("Your response is not valid."),
		},
	}
}

func sampleConfig() models.AnalysisConfig {
	return models.AnalysisConfig{
		Endpoint:    "https://openrouter.ai/api/v1",
		APIKey:      "sk-or-secret",
		Model:       "deepseek/deepseek-chat-v3-0324:free",
		Temperature: 0.7,
		Language:    "Japanese",
		MaxAttempts: 1,
	}
}

func TestRedisStoreRoundTripWithTTL(t *testing.T) {
	store, mr := newTestStore(t, time.Hour)
	ctx := context.Background()

	in := &Transcript{ID: "abc", Model: "m", FailureKind: models.FailureNetwork, Attempts: 1,
		Messages: models.Conversation{models.UserMessage("hi")}}
	require.NoError(t, store.SaveTranscript(ctx, in))

	assert.Equal(t, time.Hour, mr.TTL("transcript:abc"))

	exists, err := store.TranscriptExists(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, exists)

	out, err := store.LoadTranscript(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, in.Messages, out.Messages)
	assert.Equal(t, models.FailureNetwork, out.FailureKind)

	mr.FastForward(2 * time.Hour)
	_, err = store.LoadTranscript(ctx, "abc")
	assert.ErrorIs(t, err, ErrTranscriptNotFound)
}

func TestRedisStoreDelete(t *testing.T) {
	store, _ := newTestStore(t, 0)
	ctx := context.Background()

	require.NoError(t, store.SaveTranscript(ctx, &Transcript{ID: "gone"}))
	require.NoError(t, store.DeleteTranscript(ctx, "gone"))

	exists, err := store.TranscriptExists(ctx, "gone")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRedisStoreRequiresID(t *testing.T) {
	store, _ := newTestStore(t, 0)
	assert.Error(t, store.SaveTranscript(context.Background(), &Transcript{}))
}

func TestManagerRecordAndRender(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)
	logger, _ := test.NewNullLogger()
	m := NewManager(store, logger)
	m.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	ctx := context.Background()

	id, err := m.RecordFailure(ctx, sampleConfig(), sampleFailure())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	text, err := m.Render(ctx, id)
	require.NoError(t, err)

	expected := "Report: " + id + "\n" +
		"Created: 2026-01-02T03:04:05Z\n" +
		"Endpoint: https://openrouter.ai/api/v1\n" +
		"Model: deepseek/deepseek-chat-v3-0324:free\n" +
		"Language: Japanese\n" +
		"Failure: EXHAUSTED_RETRIES (last: INVALID_JSON) after 2 attempt(s)\n" +
		"Detail: invalid character 'S' looking for beginning of value\n" +
		"\n" +
		"System: You are a language checker.\n" +
		"User: check this\n" +
		"Assistant: Sure! Here you go\n" +
		"User: Your response is not valid.\n"
	assert.Equal(t, expected, text)
	assert.NotContains(t, text, "sk-or-secret")
}

func TestManagerRecordCopiesConversation(t *testing.T) {
	store, _ := newTestStore(t, 0)
	m := NewManager(store, nil)
	ctx := context.Background()

	failure := sampleFailure()
	id, err := m.RecordFailure(ctx, sampleConfig(), failure)
	require.NoError(t, err)
	failure.Conversation[1].Content = "mutated"

	tr, err := m.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "check this", tr.Messages[1].Content)
}

func TestManagerUnknownAndInvalidIDs(t *testing.T) {
	store, _ := newTestStore(t, 0)
	m := NewManager(store, nil)
	ctx := context.Background()

	_, err := m.Render(ctx, "not-a-uuid")
	assert.True(t, errors.Is(err, ErrTranscriptNotFound))

	_, err = m.Render(ctx, "6f1c2a52-8a8e-4f7e-9d4b-0c1d2e3f4a5b")
	assert.ErrorIs(t, err, ErrTranscriptNotFound)
}

func TestManagerDiscard(t *testing.T) {
	store, _ := newTestStore(t, 0)
	m := NewManager(store, nil)
	ctx := context.Background()

	id, err := m.RecordFailure(ctx, sampleConfig(), sampleFailure())
	require.NoError(t, err)
	require.NoError(t, m.Discard(ctx, id))

	_, err = m.Load(ctx, id)
	assert.ErrorIs(t, err, ErrTranscriptNotFound)

	assert.ErrorIs(t, m.Discard(ctx, id), ErrTranscriptNotFound)
}

func TestManagerDiscardExpired(t *testing.T) {
	store, mr := newTestStore(t, time.Minute)
	m := NewManager(store, nil)
	ctx := context.Background()

	id, err := m.RecordFailure(ctx, sampleConfig(), sampleFailure())
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, m.Discard(ctx, id), ErrTranscriptNotFound)
}

func TestFormatTranscriptEmptyConversation(t *testing.T) {
	text, err := FormatTranscript(context.Background(), &Transcript{
		ID: "x", FailureKind: models.FailureNetwork, LastKind: models.FailureTransport, Attempts: 1,
	})
	require.NoError(t, err)
	assert.Contains(t, text, "Failure: NETWORK_ERROR (last: TRANSPORT_ERROR) after 1 attempt(s)")
	assert.Contains(t, text, "No conversation recorded.")
}

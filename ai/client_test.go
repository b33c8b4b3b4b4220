package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completionBody(text string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": text}},
		},
	})
	return string(b)
}

func newTestClient(t *testing.T, srv *httptest.Server, waits *[]time.Duration) *Client {
	t.Helper()
	return NewClient(Config{
		BaseURL:     srv.URL,
		APIKey:      "test-key",
		Model:       "gpt-3.5-turbo",
		MaxTokens:   300,
		Temperature: 0.3,
	}, WithSleep(func(ctx context.Context, d time.Duration) error {
		if waits != nil {
			*waits = append(*waits, d)
		}
		return nil
	}))
}

func TestCompleteSendsChatRequest(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(completionBody("hello [GOAL: 10] [TITLE: Hi]")))
	}))
	defer srv.Close()

	text, err := newTestClient(t, srv, nil).Complete(context.Background(), DefaultSystemPrompt, "analyze")
	require.NoError(t, err)
	assert.Equal(t, "hello [GOAL: 10] [TITLE: Hi]", text)

	assert.Equal(t, "gpt-3.5-turbo", got.Model)
	assert.Equal(t, 300, got.MaxTokens)
	assert.InDelta(t, 0.3, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, Message{Role: "system", Content: DefaultSystemPrompt}, got.Messages[0])
	assert.Equal(t, Message{Role: "user", Content: "analyze"}, got.Messages[1])
}

func TestCompleteRetriesRateLimitWithLinearBackoff(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(completionBody("ok")))
	}))
	defer srv.Close()

	var waits []time.Duration
	text, err := newTestClient(t, srv, &waits).Complete(context.Background(), DefaultSystemPrompt, "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, waits)
}

func TestCompleteGivesUpAfterThreeRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	var waits []time.Duration
	_, err := newTestClient(t, srv, &waits).Complete(context.Background(), DefaultSystemPrompt, "p")
	require.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 6 * time.Second}, waits)
}

func TestCompleteDoesNotRetryOtherFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, nil).Complete(context.Background(), DefaultSystemPrompt, "p")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Contains(t, se.Body, "bad key")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCompleteMissingAPIKey(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:1"})
	_, err := c.Complete(context.Background(), DefaultSystemPrompt, "p")
	require.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestCompleteEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, nil).Complete(context.Background(), DefaultSystemPrompt, "p")
	require.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestCompleteStopsWhenContextCancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "k"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Complete(ctx, DefaultSystemPrompt, "p")
	require.Error(t, err)
}

func TestLinearBackoff(t *testing.T) {
	assert.Equal(t, 2*time.Second, LinearBackoff(1))
	assert.Equal(t, 6*time.Second, LinearBackoff(3))
}

func TestBudgetCoversRetries(t *testing.T) {
	c := NewClient(Config{APIKey: "k", Timeout: 10 * time.Second})
	assert.Equal(t, 4*10*time.Second+(2+4+6)*time.Second, c.Budget())

	c = NewClient(Config{APIKey: "k", Timeout: time.Second}, WithMaxRetries(0))
	assert.Equal(t, time.Second, c.Budget())
}

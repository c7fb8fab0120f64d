package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/geofs-atc/internal/ai"
	"github.com/yegors/geofs-atc/pkg/logger"
)

func TestChatCompletionSendsConversation(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Foo, taxi to runway 22R via B."}}]}`))
	}))
	defer srv.Close()

	c := NewClient("sk-test", logger.NewNop(), srv.URL+"/", 0)
	reply, err := c.ChatCompletion(context.Background(), []ai.ChatMessage{
		{Role: ai.RoleSystem, Content: "intro"},
		{Role: ai.RoleUser, Content: "request taxi"},
	}, ai.ChatConfig{Model: "gpt-4o-mini", Temperature: 0.7})

	require.NoError(t, err)
	assert.Equal(t, "Foo, taxi to runway 22R via B.", reply)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, ai.RoleSystem, got.Messages[0].Role)
}

func TestChatCompletionRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"roger"}}]}`))
	}))
	defer srv.Close()

	c := NewClient("k", logger.NewNop(), srv.URL, 1)
	reply, err := c.ChatCompletion(context.Background(), nil, ai.ChatConfig{})
	require.NoError(t, err)
	assert.Equal(t, "roger", reply)
	assert.EqualValues(t, 2, calls.Load())
}

func TestChatCompletionDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient("k", logger.NewNop(), srv.URL, 3)
	_, err := c.ChatCompletion(context.Background(), nil, ai.ChatConfig{})

	var statusErr *ai.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.EqualValues(t, 1, calls.Load())
}

func TestChatCompletionEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewClient("k", logger.NewNop(), srv.URL, 0)
	_, err := c.ChatCompletion(context.Background(), nil, ai.ChatConfig{})
	assert.ErrorIs(t, err, ai.ErrEmptyResponse)
}

package gemini_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/assetpilot/asset-tracker-api/gemini"
)

func newTestClient(serverURL string) *gemini.Client {
	return gemini.NewClient(gemini.Config{
		APIKey:  "test-key",
		BaseURL: serverURL,
		Model:   "gemini-test",
	})
}

func newTestGenerator(serverURL string) *gemini.Generator {
	return gemini.NewGeneratorWithPolicy(newTestClient(serverURL), gemini.MaxAttempts, 0)
}

func completionBody(text, finishReason string) string {
	return fmt.Sprintf(`{"candidates":[{"content":{"role":"model","parts":[{"text":%q}]},"finishReason":%q}]}`, text, finishReason)
}

func TestGenerateSucceedsFirstAttempt(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "gemini-test:generateContent")
		fmt.Fprint(w, completionBody("A sturdy crosscut saw.", "STOP"))
	}))
	defer server.Close()

	res, err := newTestGenerator(server.URL).Generate(context.Background(), "Describe my saw")

	assert.NoError(t, err)
	assert.Equal(t, "A sturdy crosscut saw.", res.Text)
	assert.False(t, res.Partial)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, gemini.MaxAttempts, res.MaxAttempts)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGenerateRetriesTransientFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":{"code":500,"message":"backend error","status":"INTERNAL"}}`)
			return
		}
		fmt.Fprint(w, completionBody("Third time lucky.", "STOP"))
	}))
	defer server.Close()

	res, err := newTestGenerator(server.URL).Generate(context.Background(), "hello")

	assert.NoError(t, err)
	assert.Equal(t, "Third time lucky.", res.Text)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGenerateExhaustsOnEmptyCompletions(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, `{"candidates":[]}`)
	}))
	defer server.Close()

	res, err := newTestGenerator(server.URL).Generate(context.Background(), "hello")

	assert.ErrorIs(t, err, gemini.ErrEmptyCompletion)
	assert.Equal(t, gemini.MaxAttempts, res.Attempts)
	assert.Equal(t, int32(gemini.MaxAttempts), atomic.LoadInt32(&calls))
}

func TestGenerateStopsImmediatelyOnSafetyBlock(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, `{"promptFeedback":{"blockReason":"SAFETY"}}`)
	}))
	defer server.Close()

	res, err := newTestGenerator(server.URL).Generate(context.Background(), "hello")

	var blocked *gemini.BlockedError
	if assert.ErrorAs(t, err, &blocked) {
		assert.Equal(t, "SAFETY", blocked.Reason)
	}
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGenerateStopsOnDisallowedFinishReason(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, completionBody("partial content", "RECITATION"))
	}))
	defer server.Close()

	_, err := newTestGenerator(server.URL).Generate(context.Background(), "hello")

	var finish *gemini.FinishError
	if assert.ErrorAs(t, err, &finish) {
		assert.Equal(t, "RECITATION", finish.Reason)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGenerateMaxTokensYieldsPartialResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, completionBody("Truncated but usable", "MAX_TOKENS"))
	}))
	defer server.Close()

	res, err := newTestGenerator(server.URL).Generate(context.Background(), "hello")

	assert.NoError(t, err)
	assert.True(t, res.Partial)
	assert.Equal(t, "Truncated but usable", res.Text)
	assert.Equal(t, 1, res.Attempts)
}

func TestGenerateBlankPromptSkipsNetwork(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	g := newTestGenerator(server.URL)
	for _, prompt := range []string{"", "   ", "\n\t"} {
		res, err := g.Generate(context.Background(), prompt)
		assert.ErrorIs(t, err, gemini.ErrBlankPrompt)
		assert.Equal(t, 0, res.Attempts)
	}
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

type blockingClient struct {
	started chan struct{}
	release chan struct{}
}

func (c *blockingClient) GenerateContent(ctx context.Context, prompt string) (*gemini.GenerateResponse, error) {
	close(c.started)
	<-c.release
	return &gemini.GenerateResponse{
		Candidates: []gemini.Candidate{{
			Content:      gemini.Content{Parts: []gemini.Part{{Text: "done"}}},
			FinishReason: "STOP",
		}},
	}, nil
}

func TestGenerateRejectsConcurrentCalls(t *testing.T) {
	client := &blockingClient{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	g := gemini.NewGeneratorWithPolicy(client, 1, 0)

	done := make(chan error, 1)
	go func() {
		_, err := g.Generate(context.Background(), "first")
		done <- err
	}()

	<-client.started
	_, err := g.Generate(context.Background(), "second")
	assert.ErrorIs(t, err, gemini.ErrBusy)

	close(client.release)
	assert.NoError(t, <-done)
}

func TestGenerateHonorsContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := gemini.NewGeneratorWithPolicy(newTestClient(server.URL), gemini.MaxAttempts, time.Hour)
	_, err := g.Generate(ctx, "hello")

	assert.ErrorIs(t, err, context.Canceled)
}

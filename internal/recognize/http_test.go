package recognize

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	return img
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*HTTPClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewHTTPClient(Config{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   ModelFlash,
	})
	require.NoError(t, err)
	return client, srv
}

func completionBody(text string) string {
	resp := map[string]any{
		"id": "cmpl-1",
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": text}, "finish_reason": "stop"},
		},
		"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

func TestNewHTTPClient_RequiresAPIKey(t *testing.T) {
	_, err := NewHTTPClient(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestNewHTTPClient_RegionEndpoints(t *testing.T) {
	client, err := NewHTTPClient(Config{APIKey: "k", Region: RegionSingapore})
	require.NoError(t, err)
	assert.Contains(t, client.baseURL, "dashscope-intl")

	_, err = NewHTTPClient(Config{APIKey: "k", Region: "mars"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown region")
}

func TestHTTPClient_Recognize_Success(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody("  Hello, page.  ")))
	})

	res, err := client.Recognize(context.Background(), testImage(32, 32), Request{
		Prompt: "read this",
		Model:  ModelFlash,
	})
	require.NoError(t, err)

	assert.Equal(t, "Hello, page.", res.Text)
	assert.Equal(t, "qwen3-vl-flash", res.Model)
	assert.Equal(t, 15, res.Usage.TotalTokens)

	assert.Equal(t, "Bearer test-key", gotAuth)
	require.Len(t, gotReq.Messages, 1)
	require.Len(t, gotReq.Messages[0].Content, 2)
	assert.Equal(t, "read this", gotReq.Messages[0].Content[0].Text)
	assert.Contains(t, gotReq.Messages[0].Content[1].ImageURL.URL, "data:image/png;base64,")
	assert.Equal(t, "qwen3-vl-flash", gotReq.Model)
}

func TestHTTPClient_Recognize_UsesDefaultModel(t *testing.T) {
	var gotReq chatRequest
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_, _ = w.Write([]byte(completionBody("ok")))
	})

	_, err := client.Recognize(context.Background(), testImage(8, 8), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "qwen3-vl-flash", gotReq.Model)
}

func TestHTTPClient_Recognize_ClassifiesStatuses(t *testing.T) {
	cases := []struct {
		status int
		kind   ErrorKind
	}{
		{http.StatusUnauthorized, KindPermanentAuth},
		{http.StatusTooManyRequests, KindTransientRateLimited},
		{http.StatusServiceUnavailable, KindTransientServer},
		{http.StatusBadRequest, KindPermanentInvalidInput},
	}

	for _, tc := range cases {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "upstream says no", tc.status)
		})

		_, err := client.Recognize(context.Background(), testImage(8, 8), Request{Prompt: "p"})
		require.Error(t, err)

		var rerr *Error
		require.ErrorAs(t, err, &rerr, "status %d", tc.status)
		assert.Equal(t, tc.kind, rerr.Kind)
		assert.Equal(t, tc.status, rerr.Status)
		assert.Contains(t, rerr.Msg, "upstream says no")
	}
}

func TestHTTPClient_Recognize_NoInternalRetry(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "flaky", http.StatusInternalServerError)
	})

	_, err := client.Recognize(context.Background(), testImage(8, 8), Request{Prompt: "p"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "a single call must issue exactly one request")
}

func TestHTTPClient_Recognize_EmptyChoices(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"cmpl-2","choices":[]}`))
	})

	_, err := client.Recognize(context.Background(), testImage(8, 8), Request{Prompt: "p"})
	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, KindPermanentOther, rerr.Kind)
	assert.Contains(t, rerr.Msg, "no choices")
}

func TestHTTPClient_Recognize_MalformedBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices": [`))
	})

	_, err := client.Recognize(context.Background(), testImage(8, 8), Request{Prompt: "p"})
	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, KindPermanentOther, rerr.Kind)
}

func TestHTTPClient_Recognize_CallTimeout(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	start := time.Now()
	_, err := client.Recognize(context.Background(), testImage(8, 8), Request{
		Prompt:  "p",
		Timeout: 50 * time.Millisecond,
	})
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)

	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, KindTransientTimeout, rerr.Kind)
}

func TestHTTPClient_Recognize_CallerCancellation(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	_, err := client.Recognize(ctx, testImage(8, 8), Request{Prompt: "p"})
	require.Error(t, err)

	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, KindCancelled, rerr.Kind)
}

func TestHTTPClient_Recognize_NilImage(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(completionBody("ok")))
	})

	_, err := client.Recognize(context.Background(), nil, Request{Prompt: "p"})
	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, KindPermanentInvalidInput, rerr.Kind)
}

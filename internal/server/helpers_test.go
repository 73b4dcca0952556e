package server

import (
	"bytes"
	"context"
	"image"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lindenau-systems/folio/internal/pipeline"
	"github.com/lindenau-systems/folio/internal/recognize"
	"github.com/stretchr/testify/require"
)

// stubClient returns a fixed result for every page.
type stubClient struct {
	text  string
	err   error
	calls atomic.Int32
}

func (c *stubClient) Recognize(ctx context.Context, img image.Image, req recognize.Request) (*recognize.Result, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	text := c.text
	if text == "" {
		text = "stub text"
	}
	return &recognize.Result{
		Text:  text,
		Model: recognize.ResolveModel(req.Model),
		Usage: recognize.Usage{PromptTokens: 2, CompletionTokens: 1, TotalTokens: 3},
	}, nil
}

func newTestServer(t *testing.T, client recognize.Client) *Server {
	t.Helper()
	opts := pipeline.DefaultOptions()
	opts.Concurrency = 2
	opts.BaseDelay = time.Millisecond
	opts.MaxDelay = 4 * time.Millisecond
	srv, err := NewServer(Config{
		Client:      client,
		Pipeline:    opts,
		CORSOrigin:  "*",
		MaxUploadMB: 10,
		TimeoutSec:  30,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return srv
}

// multipartUpload builds a multipart body with a document file and extra
// form fields.
func multipartUpload(t *testing.T, path string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("document", filepath.Base(path))
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)

	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())

	return &buf, writer.FormDataContentType()
}

// multipartFields builds a multipart body with only form fields.
func multipartFields(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}

// doRecognize posts a multipart upload through the full route setup.
func doRecognize(t *testing.T, srv *Server, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	req := httptest.NewRequest(http.MethodPost, "/v1/recognize", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

package recognize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds a single recognition call when the request does
	// not specify one.
	DefaultTimeout = 60 * time.Second

	// maxErrorBody caps how much of an error response is read back for the
	// error message.
	maxErrorBody = 4 << 10
)

// Config configures an HTTPClient.
type Config struct {
	// APIKey authenticates against the service. Required.
	APIKey string

	// BaseURL is the OpenAI-compatible endpoint root. Takes precedence over
	// Region when set.
	BaseURL string

	// Region selects a well-known endpoint when BaseURL is empty. Defaults
	// to RegionBeijing.
	Region string

	// Model is the default model alias used when a request has none.
	Model string

	// MaxImageSide bounds uploaded image dimensions. Zero means
	// DefaultMaxImageSide; negative disables downscaling.
	MaxImageSide int

	// HTTPClient allows injecting a transport. Per-call timeouts come from
	// the request context, so the injected client should not set its own.
	HTTPClient *http.Client

	// Classifier overrides the default error classification table.
	Classifier *Classifier
}

// HTTPClient calls an OpenAI-compatible chat-completions endpoint with one
// image and one prompt per request. It holds no per-call state beyond the
// shared transport, so a single instance is safe for concurrent use.
type HTTPClient struct {
	apiKey     string
	baseURL    string
	model      string
	maxSide    int
	httpc      *http.Client
	classifier Classifier
}

// NewHTTPClient validates cfg and builds a client.
func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("recognition API key is not set")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		region := cfg.Region
		if region == "" {
			region = RegionBeijing
		}
		url, err := EndpointFor(region)
		if err != nil {
			return nil, err
		}
		baseURL = url
	}

	maxSide := cfg.MaxImageSide
	switch {
	case maxSide == 0:
		maxSide = DefaultMaxImageSide
	case maxSide < 0:
		maxSide = 0
	}

	httpc := cfg.HTTPClient
	if httpc == nil {
		httpc = &http.Client{}
	}

	classifier := DefaultClassifier()
	if cfg.Classifier != nil {
		classifier = *cfg.Classifier
	}

	return &HTTPClient{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      cfg.Model,
		maxSide:    maxSide,
		httpc:      httpc,
		classifier: classifier,
	}, nil
}

// Wire types for the chat-completions call.
type chatMessage struct {
	Role    string            `json:"role"`
	Content []chatContentPart `json:"content"`
}

type chatContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

// Recognize sends one image with one prompt and returns the trimmed model
// output. Failures are always classified; this method never retries.
func (c *HTTPClient) Recognize(ctx context.Context, img image.Image, req Request) (*Result, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	resolved := ResolveModel(model)
	if resolved == "" {
		return nil, &Error{Kind: KindPermanentInvalidInput, Msg: "no model configured"}
	}

	dataURL, err := encodeDataURL(img, c.maxSide)
	if err != nil {
		return nil, &Error{Kind: KindPermanentInvalidInput, Err: err}
	}

	body, err := json.Marshal(chatRequest{
		Model: resolved,
		Messages: []chatMessage{{
			Role: "user",
			Content: []chatContentPart{
				{Type: "text", Text: req.Prompt},
				{Type: "image_url", ImageURL: &chatImageURL{URL: dataURL}},
			},
		}},
	})
	if err != nil {
		return nil, &Error{Kind: KindPermanentInvalidInput, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: KindPermanentOther, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return nil, c.classifier.ClassifyTransport(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, c.classifier.ClassifyStatus(resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &Error{Kind: KindPermanentOther, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if len(parsed.Choices) == 0 {
		return nil, &Error{Kind: KindPermanentOther, Msg: "response contained no choices"}
	}

	return &Result{
		Text:  strings.TrimSpace(parsed.Choices[0].Message.Content),
		Model: resolved,
		Usage: parsed.Usage,
	}, nil
}

// Package recognize talks to a remote vision-language service that turns
// page images into text. It performs exactly one call per invocation and
// classifies every failure; retry decisions belong to the caller.
package recognize

import (
	"context"
	"image"
	"time"
)

// Request carries the per-call parameters for one recognition attempt.
type Request struct {
	// Prompt is the instruction sent alongside the image. Usually produced
	// by PromptFor.
	Prompt string

	// Model is a model alias or a literal model identifier.
	Model string

	// Timeout bounds this single call. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Result is the payload of a successful recognition call.
type Result struct {
	// Text is the model output with surrounding whitespace trimmed.
	Text string

	// Model is the resolved model identifier the service ran.
	Model string

	// Usage reports token accounting when the service provides it.
	Usage Usage
}

// Usage is the token accounting block of a completion response.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Client performs a single remote recognition call. Implementations must
// not retry internally and must return classified (*Error) failures.
type Client interface {
	Recognize(ctx context.Context, img image.Image, req Request) (*Result, error)
}

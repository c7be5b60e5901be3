// Package imagegen is the client side of the hosted multimodal model that
// edits canvas snapshots.
//
// It decouples the edit proxy from the model SDK: handlers depend on the
// Generator interface, the process builds one Gemini-backed Generator at
// startup and injects it.
//
// Usage:
//
//	gen := imagegen.New(ctx, imagegen.Config{
//	    APIKey: os.Getenv("GEMINI_API_KEY"),
//	    Model:  "gemini-2.0-flash-exp-image-generation",
//	    DisableSafetyFilters: true,
//	})
//	reply, err := gen.Generate(ctx, &imagegen.Request{Prompt: "add clouds", Image: img})
package imagegen

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Generator sends one prompt (and optional image) to a model and returns
// the parts of its reply.
type Generator interface {
	// Generate performs a single round trip. No retries.
	Generate(ctx context.Context, req *Request) (*Reply, error)

	// Model returns the configured model name.
	Model() string
}

// Image is inline binary image data.
type Image struct {
	MIMEType string
	Data     []byte
}

// Request is a single-turn prompt. The text part is sent before the image.
type Request struct {
	Prompt string
	Image  *Image
}

// Part is one unit of a model reply: either inline image data or text.
type Part struct {
	Text  string
	Image *Image
}

// IsImage reports whether the part carries inline image data.
func (p Part) IsImage() bool { return p.Image != nil }

// Reply holds the parts of the first candidate, in order.
type Reply struct {
	Parts        []Part
	ModelVersion string
}

// Mode selects how the request is framed for the model.
type Mode string

const (
	// ModeGenerate sends a single generateContent call.
	ModeGenerate Mode = "generate"
	// ModeChat opens a fresh chat session with no history and sends one message.
	ModeChat Mode = "chat"
)

// Config configures the model client.
type Config struct {
	// APIKey is passed through as-is. An empty key is not rejected here;
	// the failure surfaces on the first Generate call as ErrNoAPIKey. The
	// environment is never consulted for a substitute key.
	APIKey string `json:"-" yaml:"-"`

	// Model is the model name. Default: "gemini-2.0-flash-exp-image-generation".
	Model string `json:"model" yaml:"model"`

	// Mode is "generate" (default) or "chat".
	Mode Mode `json:"mode" yaml:"mode"`

	// Sampling parameters; nil leaves the model default.
	Temperature *float32 `json:"temperature,omitempty" yaml:"temperature"`
	TopP        *float32 `json:"top_p,omitempty" yaml:"top_p"`
	TopK        *float32 `json:"top_k,omitempty" yaml:"top_k"`

	// DisableSafetyFilters sets every harm category to BLOCK_NONE.
	// This is an operator policy decision and is logged at startup.
	DisableSafetyFilters bool `json:"disable_safety_filters" yaml:"disable_safety_filters"`

	// Timeout bounds each model call. Zero keeps the transport default.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// BaseURL overrides the API endpoint (tests, regional proxies).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url"`

	// Logger for debug/error messages. Defaults to slog.Default().
	Logger *slog.Logger `json:"-" yaml:"-"`
}

// DefaultModel is the image-capable model used when Config.Model is empty.
const DefaultModel = "gemini-2.0-flash-exp-image-generation"

func (c *Config) defaults() {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Mode == "" {
		c.Mode = ModeGenerate
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Validate rejects unknown modes.
func (c *Config) Validate() error {
	switch c.Mode {
	case "", ModeGenerate, ModeChat:
		return nil
	default:
		return fmt.Errorf("imagegen: unsupported mode %q (use generate or chat)", c.Mode)
	}
}

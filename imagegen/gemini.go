package imagegen

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

// ErrNoAPIKey is returned by Generate when the configured key is empty.
var ErrNoAPIKey = errors.New("imagegen: empty API key")

// geminiGenerator implements Generator on the Gemini API.
type geminiGenerator struct {
	client  *genai.Client
	initErr error
	cfg     Config
	gc      *genai.GenerateContentConfig
}

// New builds the Gemini-backed Generator. Client construction errors are
// kept and returned by every Generate call rather than failing process
// startup. An empty key yields ErrNoAPIKey; the SDK's fallback to
// GOOGLE_API_KEY/GEMINI_API_KEY from the environment is not used.
func New(ctx context.Context, cfg Config) Generator {
	cfg.defaults()
	g := &geminiGenerator{cfg: cfg, gc: contentConfig(cfg)}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	if cfg.APIKey == "" {
		g.initErr = ErrNoAPIKey
	} else {
		g.client, g.initErr = genai.NewClient(ctx, cc)
	}
	if g.initErr != nil {
		cfg.Logger.Warn("imagegen: client not ready, edits will fail", "model", cfg.Model, "error", g.initErr)
	}
	if cfg.DisableSafetyFilters {
		cfg.Logger.Warn("imagegen: safety filters disabled for all harm categories", "model", cfg.Model)
	}
	return g
}

func (g *geminiGenerator) Model() string { return g.cfg.Model }

func (g *geminiGenerator) Generate(ctx context.Context, req *Request) (*Reply, error) {
	if g.initErr != nil {
		return nil, fmt.Errorf("imagegen: client: %w", g.initErr)
	}
	parts := requestParts(req)

	var (
		resp *genai.GenerateContentResponse
		err  error
	)
	switch g.cfg.Mode {
	case ModeChat:
		var chat *genai.Chat
		chat, err = g.client.Chats.Create(ctx, g.cfg.Model, g.gc, nil)
		if err != nil {
			return nil, fmt.Errorf("imagegen: create chat: %w", err)
		}
		msg := make([]genai.Part, len(parts))
		for i, p := range parts {
			msg[i] = *p
		}
		resp, err = chat.SendMessage(ctx, msg...)
	default:
		contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
		resp, err = g.client.Models.GenerateContent(ctx, g.cfg.Model, contents, g.gc)
	}
	if err != nil {
		return nil, fmt.Errorf("imagegen: %s: %w", g.cfg.Model, err)
	}

	reply := convertReply(resp)
	g.cfg.Logger.Debug("imagegen: reply", "model", g.cfg.Model, "parts", len(reply.Parts))
	return reply, nil
}

// requestParts orders the prompt text before the optional image.
func requestParts(req *Request) []*genai.Part {
	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	if req.Image != nil {
		parts = append(parts, genai.NewPartFromBytes(req.Image.Data, req.Image.MIMEType))
	}
	return parts
}

// harmCategories lists every category the API lets callers tune.
var harmCategories = []genai.HarmCategory{
	genai.HarmCategoryHateSpeech,
	genai.HarmCategorySexuallyExplicit,
	genai.HarmCategoryDangerousContent,
	genai.HarmCategoryHarassment,
	genai.HarmCategoryCivicIntegrity,
}

func contentConfig(cfg Config) *genai.GenerateContentConfig {
	gc := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
		Temperature:        cfg.Temperature,
		TopP:               cfg.TopP,
		TopK:               cfg.TopK,
	}
	if cfg.DisableSafetyFilters {
		for _, c := range harmCategories {
			gc.SafetySettings = append(gc.SafetySettings, &genai.SafetySetting{
				Category:  c,
				Threshold: genai.HarmBlockThresholdBlockNone,
			})
		}
	}
	return gc
}

// convertReply keeps the first candidate's parts in order. Thought parts
// and parts carrying neither text nor data are dropped.
func convertReply(resp *genai.GenerateContentResponse) *Reply {
	reply := &Reply{}
	if resp == nil {
		return reply
	}
	reply.ModelVersion = resp.ModelVersion
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return reply
	}
	for _, p := range resp.Candidates[0].Content.Parts {
		if p == nil || p.Thought {
			continue
		}
		switch {
		case p.InlineData != nil:
			reply.Parts = append(reply.Parts, Part{Image: &Image{
				MIMEType: p.InlineData.MIMEType,
				Data:     p.InlineData.Data,
			}})
		case p.Text != "":
			reply.Parts = append(reply.Parts, Part{Text: p.Text})
		}
	}
	return reply
}

package analysis

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

// Endpoint is a generative model able to look at an image. The answer is
// raw text with no schema guarantee.
type Endpoint interface {
	Analyze(ctx context.Context, image []byte, lang Language, instruction string, schema json.RawMessage) (string, error)
}

// OpenAIConfig configures an OpenAIEndpoint.
type OpenAIConfig struct {
	APIKey string
	// BaseURL points at any OpenAI-compatible gateway. Empty means OpenAI.
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
}

// OpenAIEndpoint calls a vision chat completion with a JSON schema response
// format.
type OpenAIEndpoint struct {
	client *openai.Client
	cfg    OpenAIConfig
	log    *slog.Logger
}

// NewOpenAIEndpoint returns an endpoint for cfg. It fails without an API key.
func NewOpenAIEndpoint(cfg OpenAIConfig, log *slog.Logger) (*OpenAIEndpoint, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("analysis: missing API key")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 8192
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.4
	}
	if log == nil {
		log = slog.Default()
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &OpenAIEndpoint{client: openai.NewClientWithConfig(oc), cfg: cfg, log: log}, nil
}

// Analyze sends the image inline as a data URL.
func (e *OpenAIEndpoint) Analyze(ctx context.Context, image []byte, lang Language, instruction string, schema json.RawMessage) (string, error) {
	dataURL := "data:" + http.DetectContentType(image) + ";base64," + base64.StdEncoding.EncodeToString(image)

	req := openai.ChatCompletionRequest{
		Model:               e.cfg.Model,
		MaxCompletionTokens: e.cfg.MaxTokens,
		Temperature:         e.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: instruction},
			{Role: openai.ChatMessageRoleUser, MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL, Detail: openai.ImageURLDetailAuto}},
				{Type: openai.ChatMessagePartTypeText, Text: UserPrompt},
			}},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "makeup_analysis",
				Schema: schema,
			},
		},
	}

	e.log.Debug("analysis: calling endpoint", "model", e.cfg.Model, "lang", lang, "image_bytes", len(image))
	resp, err := e.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("analysis: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("analysis: endpoint returned no choices")
	}
	e.log.Debug("analysis: endpoint answered", "finish_reason", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}

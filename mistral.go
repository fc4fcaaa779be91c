package ouicomply

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gabriel-vasile/mimetype"
	openai "github.com/sashabaranov/go-openai"
)

// Defaults for the Mistral remote service.
const (
	DefaultBaseURL = "https://api.mistral.ai/v1"
	DefaultModel   = "mistral-large-latest"
)

// MistralClient talks to Mistral's OpenAI-compatible API. It implements
// both Uploader (document endpoint) and Invoker (chat completion with
// forced function calling). Retrying is the caller's concern.
type MistralClient struct {
	api     *openai.Client
	baseURL string
	model   string
	log     *slog.Logger
}

// MistralOption configures a MistralClient.
type MistralOption func(*MistralClient)

// WithBaseURL overrides the API endpoint, e.g. for a proxy or a mock.
func WithBaseURL(u string) MistralOption {
	return func(c *MistralClient) { c.baseURL = u }
}

// WithMistralModel overrides the default chat model.
func WithMistralModel(model string) MistralOption {
	return func(c *MistralClient) { c.model = model }
}

// WithMistralLogger lets the caller supply their own logger.
func WithMistralLogger(log *slog.Logger) MistralOption {
	return func(c *MistralClient) { c.log = log }
}

// NewMistralClient builds a client for the hosted Mistral API.
func NewMistralClient(apiKey string, opts ...MistralOption) *MistralClient {
	c := &MistralClient{
		baseURL: DefaultBaseURL,
		model:   DefaultModel,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = c.baseURL
	c.api = openai.NewClientWithConfig(cfg)
	return c
}

// Model returns the chat model this client targets by default.
func (c *MistralClient) Model() string { return c.model }

// Upload pushes raw document bytes to the document endpoint and returns
// the remote file id.
func (c *MistralClient) Upload(ctx context.Context, data []byte, mediaType string) (string, error) {
	name := "document" + extensionFor(mediaType)
	c.log.Debug("uploading file", "name", name, "size", len(data), "media_type", mediaType)

	file, err := c.api.CreateFileBytes(ctx, openai.FileBytesRequest{
		Name:    name,
		Bytes:   data,
		Purpose: openai.PurposeType("ocr"),
	})
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	c.log.Debug("file uploaded", "file_id", file.ID)
	return file.ID, nil
}

// Complete performs one chat completion with the call's function declared
// as the only tool and tool choice forced, and returns the raw
// function-call arguments string.
func (c *MistralClient) Complete(ctx context.Context, call ChatCall) ([]byte, error) {
	model := call.Model
	if model == "" {
		model = c.model
	}

	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: call.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: call.UserPrompt},
		},
		Tools: []openai.Tool{{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        call.Function.Name,
				Description: call.Function.Description,
				Parameters:  call.Function.Parameters,
			},
		}},
		ToolChoice:  "required",
		Temperature: call.Temperature,
		MaxTokens:   call.MaxTokens,
	}

	c.log.Debug("chat completion request", "model", model, "function", call.Function.Name, "prompt_length", len(call.UserPrompt))

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion: no choices in response")
	}

	toolCalls := resp.Choices[0].Message.ToolCalls
	if len(toolCalls) == 0 {
		return nil, fmt.Errorf("chat completion: no tool call in response")
	}

	args := toolCalls[0].Function.Arguments
	c.log.Debug("chat completion response", "arguments_length", len(args))
	return []byte(args), nil
}

func extensionFor(mediaType string) string {
	if mediaType == "" {
		return ".bin"
	}
	if mt := mimetype.Lookup(mediaType); mt != nil && mt.Extension() != "" {
		return mt.Extension()
	}
	return ".bin"
}

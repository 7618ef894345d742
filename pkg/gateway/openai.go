package gateway

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAI answers through the OpenAI chat completions API, or any API
// compatible with it.
type OpenAI struct {
	name   string
	model  string
	client *openai.Client
}

// NewOpenAI creates an OpenAI gateway. An empty baseURL uses the public API.
// A non-empty model pins this provider to that model.
func NewOpenAI(name, apiKey, baseURL, model string) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if name == "" {
		name = "openai"
	}
	return &OpenAI{
		name:   name,
		model:  model,
		client: openai.NewClientWithConfig(cfg),
	}
}

func (o *OpenAI) Name() string { return o.name }

func (o *OpenAI) Ask(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	model := o.model
	if model == "" {
		model = req.Model
	}

	var messages []openai.ChatCompletionMessage
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Question,
	})

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	})
	if err != nil {
		return Response{}, newError(ctx, o.name, statusOf(err), err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return Response{}, &Error{Provider: o.name, Err: ErrEmptyAnswer}
	}

	if resp.Model != "" {
		model = resp.Model
	}
	return Response{
		Answer:   strings.TrimSpace(resp.Choices[0].Message.Content),
		Provider: o.name,
		Model:    model,
		Latency:  time.Since(start),
	}, nil
}

// statusOf extracts the HTTP status from a go-openai error.
func statusOf(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

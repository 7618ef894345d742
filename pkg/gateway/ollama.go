package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/akande-ai/akande/pkg/models"
)

// Ollama answers through a local Ollama server's /api/chat endpoint.
type Ollama struct {
	name   string
	model  string
	client *resty.Client
}

// NewOllama creates an Ollama gateway for the server at baseURL.
func NewOllama(name, baseURL, model string) *Ollama {
	if name == "" {
		name = "ollama"
	}
	rc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Content-Type", "application/json")
	return &Ollama{name: name, model: model, client: rc}
}

func (o *Ollama) Name() string { return o.name }

func (o *Ollama) Ask(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	model := o.model
	if model == "" {
		model = req.Model
	}

	var messages []models.ChatMessage
	if req.SystemPrompt != "" {
		messages = append(messages, models.ChatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, models.ChatMessage{Role: "user", Content: req.Question})

	var out models.OllamaChatResponse
	var failure struct {
		Error string `json:"error"`
	}
	resp, err := o.client.R().
		SetContext(ctx).
		SetBody(models.OllamaChatRequest{Model: model, Messages: messages}).
		SetResult(&out).
		SetError(&failure).
		Post("/api/chat")
	if err != nil {
		return Response{}, newError(ctx, o.name, 0, err)
	}
	if resp.IsError() {
		msg := failure.Error
		if msg == "" {
			msg = strings.TrimSpace(resp.String())
		}
		return Response{}, newError(ctx, o.name, resp.StatusCode(), errors.New(msg))
	}
	if out.Error != "" {
		return Response{}, &Error{Provider: o.name, Status: resp.StatusCode(), Err: fmt.Errorf("ollama: %s", out.Error)}
	}

	answer := strings.TrimSpace(out.Message.Content)
	if answer == "" {
		return Response{}, &Error{Provider: o.name, Err: ErrEmptyAnswer}
	}
	if out.Model != "" {
		model = out.Model
	}
	return Response{
		Answer:   answer,
		Provider: o.name,
		Model:    model,
		Latency:  time.Since(start),
	}, nil
}

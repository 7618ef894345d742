package speech

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// OpenAI synthesizes and transcribes through the OpenAI audio API.
type OpenAI struct {
	client          *openai.Client
	ttsModel        string
	voice           string
	transcribeModel string
}

// NewOpenAI creates an OpenAI speech client. An empty baseURL uses the
// public API.
func NewOpenAI(apiKey, baseURL, ttsModel, voice, transcribeModel string) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &OpenAI{
		client:          openai.NewClientWithConfig(cfg),
		ttsModel:        ttsModel,
		voice:           voice,
		transcribeModel: transcribeModel,
	}
}

func (o *OpenAI) Format() string { return string(openai.SpeechResponseFormatMp3) }

func (o *OpenAI) Synthesize(ctx context.Context, text string, w io.Writer) error {
	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(o.ttsModel),
		Input:          text,
		Voice:          openai.SpeechVoice(o.voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return fmt.Errorf("synthesize speech: %w", err)
	}
	defer resp.Close()

	if _, err := io.Copy(w, resp); err != nil {
		return fmt.Errorf("read speech: %w", err)
	}
	return nil
}

func (o *OpenAI) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.transcribeModel,
		FilePath: filename,
		Reader:   audio,
	})
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrNoSpeech
	}
	return text, nil
}

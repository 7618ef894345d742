package main

import (
	"fmt"

	"github.com/akande-ai/akande/pkg/assistant"
	"github.com/akande-ai/akande/pkg/config"
	"github.com/akande-ai/akande/pkg/export"
	"github.com/akande-ai/akande/pkg/speech"
)

// openAIAccess returns the key and base URL speech calls use: those of the
// first openai provider, falling back to OPENAI_API_KEY.
func openAIAccess(cfg *config.Config) (key, baseURL string) {
	for _, p := range cfg.Providers {
		if p.Type == "openai" {
			key, baseURL = p.APIKey, p.URL
			break
		}
	}
	if key == "" {
		key = cfg.OpenAIKey
	}
	return key, baseURL
}

func newOpenAISpeech(cfg *config.Config) *speech.OpenAI {
	key, baseURL := openAIAccess(cfg)
	return speech.NewOpenAI(key, baseURL, cfg.Speech.Model, cfg.Speech.Voice, cfg.Speech.TranscribeModel)
}

func newSynthesizer(cfg *config.Config) (speech.Synthesizer, error) {
	switch cfg.Speech.Engine {
	case "", "openai":
		return newOpenAISpeech(cfg), nil
	case "piper":
		p, err := speech.NewPiper(cfg.Speech.PiperBinary, cfg.Speech.PiperModel)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown speech engine %q", cfg.Speech.Engine)
	}
}

// presenters builds the configured answer outputs in the order the answer
// is delivered: spoken first, then the PDF and CSV files. The speaker is
// also returned so the session can speak its own phrases.
func (a *app) presenters(speak bool) ([]assistant.Presenter, *speech.Speaker, error) {
	var (
		out     []assistant.Presenter
		speaker *speech.Speaker
	)
	if speak && a.cfg.Speech.Enabled {
		synth, err := newSynthesizer(a.cfg)
		if err != nil {
			return nil, nil, err
		}
		speaker = &speech.Speaker{
			Synth:  synth,
			Dir:    a.cfg.Export.Dir,
			Player: a.cfg.Speech.Player,
			Logger: a.logger,
		}
		out = append(out, speaker)
	}
	if a.cfg.Export.PDF {
		out = append(out, &export.PDF{Dir: a.cfg.Export.Dir, Logger: a.logger})
	}
	if a.cfg.Export.CSV {
		out = append(out, &export.CSV{Dir: a.cfg.Export.Dir, Logger: a.logger})
	}
	return out, speaker, nil
}

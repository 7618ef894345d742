// Package speech speaks answers and turns spoken questions into text.
package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/akande-ai/akande/pkg/export"
)

var (
	// ErrNoSpeech is returned when a recording contains nothing to transcribe.
	ErrNoSpeech = errors.New("speech: no speech detected")
	// ErrVoiceUnavailable is returned by NewRecorder in builds without the
	// voice tag.
	ErrVoiceUnavailable = errors.New("speech: voice input not compiled in (build with -tags voice)")
)

// Synthesizer renders text to an audio file.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, w io.Writer) error
	// Format is the file extension of the produced audio.
	Format() string
}

// Transcriber turns recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
}

// Recorder captures mono float32 samples from a microphone.
type Recorder interface {
	Record(ctx context.Context, d time.Duration) ([]float32, error)
	Close() error
}

// Speaker speaks answers: it writes the audio to a dated file and plays it
// with Player when one is configured.
type Speaker struct {
	Synth  Synthesizer
	Dir    string
	Player string
	Logger *log.Logger
	Now    func() time.Time
}

// Present speaks the answer.
func (s *Speaker) Present(ctx context.Context, _, answer string) error {
	_, err := s.Say(ctx, answer)
	return err
}

// Say speaks text and returns the audio file path.
func (s *Speaker) Say(ctx context.Context, text string) (string, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	path, err := export.DatedPath(s.Dir, now(), s.Synth.Format())
	if err != nil {
		return "", err
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create audio file: %w", err)
	}
	if err := s.Synth.Synthesize(ctx, text, f); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("write audio file: %w", err)
	}

	logger := s.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Debug("speech synthesized", "path", path)

	if s.Player != "" {
		if err := play(ctx, s.Player, path); err != nil {
			return path, err
		}
	}
	return path, nil
}

func play(ctx context.Context, player, path string) error {
	fields := strings.Fields(player)
	if len(fields) == 0 {
		return nil
	}
	args := append(fields[1:], path)
	cmd := exec.CommandContext(ctx, fields[0], args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("play audio: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

package speech

import (
	"bytes"
	"context"
	"fmt"
	"time"
)

// silenceThreshold is the peak amplitude below which a recording is treated
// as empty.
const silenceThreshold = 0.01

// Listener records a spoken question and transcribes it.
type Listener struct {
	Recorder    Recorder
	Transcriber Transcriber
	SampleRate  int
	Duration    time.Duration
}

// Listen records for the configured duration and returns the transcript.
// It returns ErrNoSpeech for silent recordings without calling the
// transcriber.
func (l *Listener) Listen(ctx context.Context) (string, error) {
	samples, err := l.Recorder.Record(ctx, l.Duration)
	if err != nil {
		return "", fmt.Errorf("record: %w", err)
	}
	if len(samples) == 0 || silent(samples, silenceThreshold) {
		return "", ErrNoSpeech
	}

	var buf bytes.Buffer
	if err := EncodeWAV(&buf, samples, l.SampleRate); err != nil {
		return "", fmt.Errorf("encode wav: %w", err)
	}
	return l.Transcriber.Transcribe(ctx, &buf, "question.wav")
}

//go:build voice

package speech

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
)

const framesPerBuffer = 512

// PortAudio records from the default input device.
type PortAudio struct {
	mu         sync.Mutex
	sampleRate int
	closed     bool
}

// NewRecorder initializes PortAudio for recording at sampleRate.
func NewRecorder(sampleRate int) (Recorder, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &PortAudio{sampleRate: sampleRate}, nil
}

func (p *PortAudio) Record(ctx context.Context, d time.Duration) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, fmt.Errorf("recorder closed")
	}

	buffer := make([]float32, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(p.sampleRate), len(buffer), buffer)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, fmt.Errorf("failed to start audio stream: %w", err)
	}
	defer func() { _ = stream.Stop() }()

	total := int(d.Seconds() * float64(p.sampleRate))
	samples := make([]float32, 0, total)
	for len(samples) < total {
		if err := ctx.Err(); err != nil {
			return samples, err
		}
		if err := stream.Read(); err != nil {
			return samples, fmt.Errorf("read audio: %w", err)
		}
		samples = append(samples, buffer...)
	}
	return samples, nil
}

func (p *PortAudio) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return portaudio.Terminate()
}

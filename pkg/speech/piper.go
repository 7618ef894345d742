package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Piper synthesizes speech with a local piper binary.
type Piper struct {
	binary string
	model  string
}

// NewPiper checks that the model exists. The binary is resolved on PATH when
// it is not a path.
func NewPiper(binary, model string) (*Piper, error) {
	if binary == "" {
		binary = "piper"
	}
	if model == "" {
		return nil, fmt.Errorf("piper: model path is required")
	}
	if _, err := os.Stat(model); err != nil {
		return nil, fmt.Errorf("piper: model not found: %w", err)
	}
	return &Piper{binary: binary, model: model}, nil
}

func (p *Piper) Format() string { return "wav" }

func (p *Piper) Synthesize(ctx context.Context, text string, w io.Writer) error {
	tmp, err := os.MkdirTemp("", "akande-piper-")
	if err != nil {
		return fmt.Errorf("piper: %w", err)
	}
	defer os.RemoveAll(tmp)
	out := filepath.Join(tmp, "speech.wav")

	cmd := exec.CommandContext(ctx, p.binary, "--model", p.model, "--output_file", out)
	cmd.Stdin = strings.NewReader(text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("piper failed: %w, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}

	f, err := os.Open(out)
	if err != nil {
		return fmt.Errorf("piper: read output: %w", err)
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

package speech

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestEncodeWAV(t *testing.T) {
	var buf bytes.Buffer
	samples := []float32{0, 0.5, -0.5, 2, -2}
	if err := EncodeWAV(&buf, samples, 16000); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()
	if len(data) != 44+len(samples)*2 {
		t.Fatalf("expected %d bytes, got %d", 44+len(samples)*2, len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" || string(data[36:40]) != "data" {
		t.Errorf("bad header: %q", data[:44])
	}
	if rate := binary.LittleEndian.Uint32(data[24:28]); rate != 16000 {
		t.Errorf("expected sample rate 16000, got %d", rate)
	}
	last := int16(binary.LittleEndian.Uint16(data[len(data)-2:]))
	if last != -32767 {
		t.Errorf("expected clipped sample -32767, got %d", last)
	}
}

type fakeRecorder struct {
	samples []float32
	err     error
}

func (f *fakeRecorder) Record(context.Context, time.Duration) ([]float32, error) {
	return f.samples, f.err
}

func (f *fakeRecorder) Close() error { return nil }

type fakeTranscriber struct {
	text  string
	calls int
	got   []byte
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audio io.Reader, _ string) (string, error) {
	f.calls++
	f.got, _ = io.ReadAll(audio)
	return f.text, nil
}

func TestListener(t *testing.T) {
	tr := &fakeTranscriber{text: "what is the capital of france"}
	l := &Listener{
		Recorder:    &fakeRecorder{samples: []float32{0.2, -0.3, 0.1}},
		Transcriber: tr,
		SampleRate:  16000,
		Duration:    time.Second,
	}
	text, err := l.Listen(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if text != "what is the capital of france" {
		t.Errorf("unexpected transcript %q", text)
	}
	if !bytes.HasPrefix(tr.got, []byte("RIFF")) {
		t.Error("transcriber should receive WAV audio")
	}
}

func TestListenerSilence(t *testing.T) {
	tr := &fakeTranscriber{text: "ignored"}
	l := &Listener{
		Recorder:    &fakeRecorder{samples: make([]float32, 100)},
		Transcriber: tr,
		SampleRate:  16000,
	}
	if _, err := l.Listen(context.Background()); !errors.Is(err, ErrNoSpeech) {
		t.Errorf("expected ErrNoSpeech, got %v", err)
	}
	if tr.calls != 0 {
		t.Error("silent recordings must not be transcribed")
	}
}

func TestListenerRecordError(t *testing.T) {
	boom := errors.New("no device")
	l := &Listener{Recorder: &fakeRecorder{err: boom}, Transcriber: &fakeTranscriber{}}
	if _, err := l.Listen(context.Background()); !errors.Is(err, boom) {
		t.Errorf("expected wrapped recorder error, got %v", err)
	}
}

func TestOpenAISpeech(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/audio/speech":
			w.Header().Set("Content-Type", "audio/mpeg")
			_, _ = io.WriteString(w, "ID3-fake-mp3")
		case "/v1/audio/transcriptions":
			if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
				t.Errorf("expected multipart upload, got %s", r.Header.Get("Content-Type"))
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"text":"  How tall is Everest?  "}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	o := NewOpenAI("sk-test", srv.URL+"/v1", "tts-1", "alloy", "whisper-1")

	var audio bytes.Buffer
	if err := o.Synthesize(context.Background(), "Paris.", &audio); err != nil {
		t.Fatal(err)
	}
	if audio.String() != "ID3-fake-mp3" {
		t.Errorf("unexpected audio %q", audio.String())
	}

	text, err := o.Transcribe(context.Background(), bytes.NewReader([]byte("RIFF")), "question.wav")
	if err != nil {
		t.Fatal(err)
	}
	if text != "How tall is Everest?" {
		t.Errorf("unexpected transcript %q", text)
	}
}

type fakeSynth struct{ text string }

func (f *fakeSynth) Format() string { return "wav" }

func (f *fakeSynth) Synthesize(_ context.Context, text string, w io.Writer) error {
	f.text = text
	_, err := io.WriteString(w, "RIFF"+text)
	return err
}

func TestSpeakerWritesDatedFile(t *testing.T) {
	dir := t.TempDir()
	synth := &fakeSynth{}
	s := &Speaker{
		Synth:  synth,
		Dir:    dir,
		Logger: log.New(io.Discard),
		Now:    func() time.Time { return time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC) },
	}
	if err := s.Present(context.Background(), "question", "Paris."); err != nil {
		t.Fatal(err)
	}
	if synth.text != "Paris." {
		t.Errorf("expected answer to be spoken, got %q", synth.text)
	}
	data, err := os.ReadFile(filepath.Join(dir, "2024-03-09", "2024-03-09-14-05-Akande.wav"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "RIFFParis." {
		t.Errorf("unexpected file content %q", data)
	}
}

func TestPiperRequiresModel(t *testing.T) {
	if _, err := NewPiper("piper", ""); err == nil {
		t.Error("expected error without model")
	}
	if _, err := NewPiper("piper", filepath.Join(t.TempDir(), "missing.onnx")); err == nil {
		t.Error("expected error for missing model")
	}
}

func TestPiperSynthesize(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "piper")
	// Writes stdin to the path following --output_file.
	body := "#!/bin/sh\nwhile [ $# -gt 0 ]; do if [ \"$1\" = --output_file ]; then out=$2; fi; shift; done\ncat > \"$out\"\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	model := filepath.Join(dir, "voice.onnx")
	if err := os.WriteFile(model, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := NewPiper(script, model)
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	if err := p.Synthesize(context.Background(), "hello there", &out); err != nil {
		t.Fatal(err)
	}
	if out.String() != "hello there" {
		t.Errorf("unexpected piper output %q", out.String())
	}
}

package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

var fixedNow = time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC)

func TestDatedPath(t *testing.T) {
	dir := t.TempDir()
	path, err := DatedPath(dir, fixedNow, "pdf")
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(dir, "2024-03-09", "2024-03-09-14-05-Akande.pdf")
	if path != want {
		t.Errorf("expected %s, got %s", want, path)
	}
	if info, err := os.Stat(filepath.Dir(path)); err != nil || !info.IsDir() {
		t.Errorf("day directory not created: %v", err)
	}
}

func TestLayout(t *testing.T) {
	answer := "Overview\nParis is the capital.\n1. Visit the Louvre\n- 2 already dashed\nConclusion: enjoy"
	blocks := layout(answer)
	want := []block{
		{heading, "Overview"},
		{paragraph, "Paris is the capital."},
		{listItem, "- 1. Visit the Louvre"},
		{listItem, "- 2 already dashed"},
		{heading, "Conclusion: enjoy"},
	}
	if len(blocks) != len(want) {
		t.Fatalf("expected %d blocks, got %d: %+v", len(want), len(blocks), blocks)
	}
	for i := range want {
		if blocks[i] != want[i] {
			t.Errorf("block %d = %+v, want %+v", i, blocks[i], want[i])
		}
	}
}

func TestPDFPresenter(t *testing.T) {
	dir := t.TempDir()
	p := &PDF{Dir: dir, Now: func() time.Time { return fixedNow }, Logger: log.New(io.Discard)}
	if err := p.Present(context.Background(), "what is the capital of france?", "Overview\nParis.\n1. Eiffel Tower"); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "2024-03-09", "2024-03-09-14-05-Akande.pdf"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Errorf("output is not a PDF: %q", data[:min(len(data), 16)])
	}
}

func TestCSVPresenter(t *testing.T) {
	dir := t.TempDir()
	c := &CSV{Dir: dir, Now: func() time.Time { return fixedNow }, Logger: log.New(io.Discard)}
	if err := c.Present(context.Background(), "What, exactly?", "Line one\n\"quoted\""); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(filepath.Join(dir, "2024-03-09", "2024-03-09-14-05-Akande.csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "Question" || rows[0][1] != "Response" {
		t.Errorf("unexpected header: %v", rows[0])
	}
	if rows[1][0] != "What, exactly?" || rows[1][1] != "Line one\n\"quoted\"" {
		t.Errorf("unexpected row: %q", rows[1])
	}
}

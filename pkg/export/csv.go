package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// CSV writes each answer as a two-column Question,Response file.
type CSV struct {
	Dir    string
	Logger *log.Logger
	Now    func() time.Time
}

func (c *CSV) Present(_ context.Context, question, answer string) error {
	path, err := DatedPath(c.Dir, now(c.Now), "csv")
	if err != nil {
		return err
	}
	if err := WriteCSV(path, question, answer); err != nil {
		return err
	}
	logger(c.Logger).Info("CSV generated", "path", path)
	return nil
}

// WriteCSV writes a header row and one question/answer row to path.
func WriteCSV(path, question, answer string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}

	w := csv.NewWriter(f)
	_ = w.Write([]string{"Question", "Response"})
	_ = w.Write([]string{question, answer})
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("write csv: %w", err)
	}
	return f.Close()
}

func now(fn func() time.Time) time.Time {
	if fn == nil {
		return time.Now()
	}
	return fn()
}

func logger(l *log.Logger) *log.Logger {
	if l == nil {
		return log.Default()
	}
	return l
}

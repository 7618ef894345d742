package export

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-pdf/fpdf"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// PDF renders each answer as a one-page briefing.
type PDF struct {
	Dir    string
	Logger *log.Logger
	Now    func() time.Time
}

func (p *PDF) Present(_ context.Context, question, answer string) error {
	path, err := DatedPath(p.Dir, now(p.Now), "pdf")
	if err != nil {
		return err
	}
	if err := WritePDF(path, question, answer); err != nil {
		return err
	}
	logger(p.Logger).Info("PDF generated", "path", path)
	return nil
}

type blockKind int

const (
	paragraph blockKind = iota
	heading
	listItem
)

type block struct {
	kind blockKind
	text string
}

var (
	sectionHeadings = []string{"Overview", "Solution", "Conclusion", "Recommendations"}
	numbered        = regexp.MustCompile(`^-?\d`)
)

// layout splits an answer into briefing blocks: section headings, list items
// (lines starting with a digit, dash-prefixed) and paragraphs.
func layout(answer string) []block {
	var blocks []block
	for _, line := range strings.Split(answer, "\n") {
		switch {
		case hasAnyPrefix(line, sectionHeadings):
			blocks = append(blocks, block{heading, line})
		case numbered.MatchString(line):
			if !strings.HasPrefix(line, "-") {
				line = "- " + line
			}
			blocks = append(blocks, block{listItem, line})
		default:
			blocks = append(blocks, block{paragraph, line})
		}
	}
	return blocks
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// WritePDF renders question and answer to path.
func WritePDF(path, question, answer string) error {
	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetTitle(question, true)
	pdf.SetCreator("akande", false)
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 14)
	pdf.MultiCell(0, 7, tr(cases.Title(language.BritishEnglish).String(question)), "", "L", false)
	pdf.Ln(3)

	for _, b := range layout(answer) {
		switch b.kind {
		case heading:
			pdf.SetFont("Helvetica", "B", 12)
			pdf.MultiCell(0, 6, tr(b.text), "", "L", false)
		case listItem:
			pdf.SetFont("Helvetica", "", 12)
			pdf.SetX(pdf.GetX() + 4)
			pdf.MultiCell(0, 6, tr(b.text), "", "L", false)
		default:
			pdf.SetFont("Helvetica", "", 12)
			pdf.MultiCell(0, 6, tr(b.text), "", "L", false)
		}
		pdf.Ln(2)
	}

	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// Package render turns plain text into downloadable PDF and DOCX files.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-pdf/fpdf"
)

// PDF layout in points on a Letter page.
const (
	pageHeight   = 792.0
	marginLeft   = 40.0
	firstLineY   = 42.0 // 750pt from the bottom edge
	marginBottom = 40.0
	fontSize     = 10.0
	leading      = 12.0
	maxLineChars = 100
)

// PDF writes text as a Letter-size document, one input line per output
// line truncated to 100 characters, paginating when a page fills.
func PDF(w io.Writer, text string) error {
	doc := fpdf.New("P", "pt", "Letter", "")
	doc.SetAutoPageBreak(false, 0)
	doc.SetFont("Helvetica", "", fontSize)
	tr := doc.UnicodeTranslatorFromDescriptor("")

	doc.AddPage()
	y := firstLineY
	for _, line := range Lines(text) {
		if y > pageHeight-marginBottom {
			doc.AddPage()
			y = firstLineY
		}
		if line != "" {
			doc.Text(marginLeft, y, tr(line))
		}
		y += leading
	}

	if err := doc.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

// LinesPerPage is how many lines fit between the first baseline and the
// bottom margin.
func LinesPerPage() int {
	usable := pageHeight - marginBottom - firstLineY
	return int(usable/leading) + 1
}

// Lines splits text on newlines and truncates each line to the PDF width.
func Lines(text string) []string {
	raw := strings.Split(text, "\n")
	out := make([]string, len(raw))
	for i, line := range raw {
		line = strings.TrimSuffix(line, "\r")
		out[i] = truncate(line, maxLineChars)
	}
	return out
}

func truncate(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

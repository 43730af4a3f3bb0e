// Package extract pulls plain text out of uploaded résumés.
package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/mesh-intelligence/cvalchemist/pkg/types"
)

// ErrCorruptDocument is returned when a file cannot be parsed as its kind.
var ErrCorruptDocument = errors.New("corrupt document")

// docxBody is the main part of a WordprocessingML package.
const docxBody = "word/document.xml"

const wordNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// Text extracts the text of the document at path.
func Text(path string, kind types.DocumentKind) (string, error) {
	switch kind {
	case types.DocumentPDF:
		return PDF(path)
	case types.DocumentDOCX:
		return DOCX(path)
	default:
		return "", types.ErrUnsupportedDocument
	}
}

// PDF returns the plain text of every page.
func PDF(path string) (text string, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: pdf: %v", ErrCorruptDocument, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: pdf: %v", ErrCorruptDocument, err)
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: pdf: %v", ErrCorruptDocument, err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}

// DOCX returns the text of every paragraph, one per line.
func DOCX(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("%w: docx: %v", ErrCorruptDocument, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != docxBody {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("%w: docx: %v", ErrCorruptDocument, err)
		}
		defer rc.Close()
		return paragraphs(rc)
	}
	return "", fmt.Errorf("%w: docx: missing %s", ErrCorruptDocument, docxBody)
}

// paragraphs walks document.xml and joins the body-level <w:p> elements
// with newlines. Paragraphs in tables and text boxes are skipped, and only
// WordprocessingML elements contribute text.
func paragraphs(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		lines []string
		cur   strings.Builder
		stack []xml.Name
		// para is the stack depth of the open body paragraph, 0 when none.
		para int
		// nested counts paragraphs and text boxes open inside it.
		nested int
		inRun  bool
		inText bool
	)
	parentIs := func(local string) bool {
		if len(stack) == 0 {
			return false
		}
		top := stack[len(stack)-1]
		return top.Space == wordNS && top.Local == local
	}
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: docx: %v", ErrCorruptDocument, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			w := t.Name.Space == wordNS
			switch {
			case para == 0:
				if w && t.Name.Local == "p" && parentIs("body") {
					para = len(stack) + 1
					cur.Reset()
				}
			case !w:
			case t.Name.Local == "p" || t.Name.Local == "txbxContent":
				nested++
			case nested > 0:
			case t.Name.Local == "r":
				inRun = true
			case t.Name.Local == "t" && inRun:
				inText = true
			case t.Name.Local == "tab" && inRun:
				cur.WriteByte('\t')
			case (t.Name.Local == "br" || t.Name.Local == "cr") && inRun:
				cur.WriteByte('\n')
			}
			stack = append(stack, t.Name)

		case xml.EndElement:
			depth := len(stack)
			stack = stack[:depth-1]
			if para == 0 || t.Name.Space != wordNS {
				continue
			}
			switch {
			case depth == para:
				lines = append(lines, cur.String())
				para, inRun, inText = 0, false, false
			case t.Name.Local == "p" || t.Name.Local == "txbxContent":
				nested--
			case nested > 0:
			case t.Name.Local == "t":
				inText = false
			case t.Name.Local == "r":
				inRun = false
			}

		case xml.CharData:
			if para != 0 && nested == 0 && inText {
				cur.Write(t)
			}
		}
	}
	return strings.Join(lines, "\n"), nil
}

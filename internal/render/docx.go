package render

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

const relsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

const documentHead = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r>`

const documentTail = `</w:r></w:p><w:sectPr><w:pgSz w:w="12240" w:h="15840"/><w:pgMar w:top="1440" w:right="1440" w:bottom="1440" w:left="1440" w:header="720" w:footer="720" w:gutter="0"/></w:sectPr></w:body></w:document>`

// DOCX writes text as a single paragraph. Newlines become line breaks and
// tabs become tab stops.
func DOCX(w io.Writer, text string) error {
	zw := zip.NewWriter(w)

	parts := []struct {
		name string
		body func(io.Writer) error
	}{
		{"[Content_Types].xml", literal(contentTypesXML)},
		{"_rels/.rels", literal(relsXML)},
		{"word/document.xml", func(pw io.Writer) error { return writeDocument(pw, text) }},
	}
	for _, p := range parts {
		pw, err := zw.Create(p.name)
		if err != nil {
			return fmt.Errorf("render docx %s: %w", p.name, err)
		}
		if err := p.body(pw); err != nil {
			return fmt.Errorf("render docx %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("render docx: %w", err)
	}
	return nil
}

func literal(s string) func(io.Writer) error {
	return func(w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	}
}

func writeDocument(w io.Writer, text string) error {
	var b strings.Builder
	b.WriteString(documentHead)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			b.WriteString("<w:br/>")
		}
		for j, seg := range strings.Split(line, "\t") {
			if j > 0 {
				b.WriteString("<w:tab/>")
			}
			if seg == "" {
				continue
			}
			b.WriteString(`<w:t xml:space="preserve">`)
			if err := xml.EscapeText(&b, []byte(seg)); err != nil {
				return err
			}
			b.WriteString("</w:t>")
		}
	}
	b.WriteString(documentTail)
	_, err := io.WriteString(w, b.String())
	return err
}

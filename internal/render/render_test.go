package render

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLines(t *testing.T) {
	long := strings.Repeat("a", 150)
	got := Lines("first\r\nsecond\n\n" + long + "\nünïcödé")
	require.Len(t, got, 5)
	assert.Equal(t, "first", got[0])
	assert.Equal(t, "second", got[1])
	assert.Equal(t, "", got[2])
	assert.Len(t, got[3], maxLineChars)
	assert.Equal(t, "ünïcödé", got[4])

	assert.Equal(t, strings.Repeat("é", 100), Lines(strings.Repeat("é", 120))[0])
}

func pageCount(t *testing.T, doc []byte) int {
	t.Helper()
	r, err := pdf.NewReader(bytes.NewReader(doc), int64(len(doc)))
	require.NoError(t, err)
	return r.NumPage()
}

func TestPDF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PDF(&buf, "Jane Doe\nSenior Engineer"))

	out := buf.Bytes()
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.Equal(t, 1, pageCount(t, out))
}

func TestPDF_Paginates(t *testing.T) {
	perPage := LinesPerPage()
	assert.Equal(t, 60, perPage)

	tests := []struct {
		lines int
		pages int
	}{
		{lines: 1, pages: 1},
		{lines: perPage, pages: 1},
		{lines: perPage + 1, pages: 2},
		{lines: 3*perPage + 5, pages: 4},
	}
	for _, tt := range tests {
		text := strings.TrimSuffix(strings.Repeat("line\n", tt.lines), "\n")
		var buf bytes.Buffer
		require.NoError(t, PDF(&buf, text))
		assert.Equal(t, tt.pages, pageCount(t, buf.Bytes()), "%d lines", tt.lines)
	}
}

func TestPDF_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PDF(&buf, ""))
	assert.Equal(t, 1, pageCount(t, buf.Bytes()))
}

func readPart(t *testing.T, doc []byte, name string) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(doc), int64(len(doc)))
	require.NoError(t, err)
	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			require.NoError(t, err)
			defer rc.Close()
			data, err := io.ReadAll(rc)
			require.NoError(t, err)
			return string(data)
		}
	}
	t.Fatalf("part %s missing", name)
	return ""
}

func TestDOCX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, DOCX(&buf, "Jane <Doe> & Co\nSkills:\tGo"))

	doc := buf.Bytes()
	assert.Contains(t, readPart(t, doc, "[Content_Types].xml"), "wordprocessingml.document.main+xml")
	assert.Contains(t, readPart(t, doc, "_rels/.rels"), `Target="word/document.xml"`)

	body := readPart(t, doc, "word/document.xml")
	assert.Equal(t, 1, strings.Count(body, "<w:p>"), "one paragraph")
	assert.Contains(t, body, "Jane &lt;Doe&gt; &amp; Co")
	assert.Contains(t, body, "<w:br/>")
	assert.Contains(t, body, "<w:tab/>")
}

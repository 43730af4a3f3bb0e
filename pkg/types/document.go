package types

import (
	"errors"
	"path/filepath"
	"strings"
)

// DocumentKind identifies an uploaded résumé format by extension.
type DocumentKind string

// Supported document kinds.
const (
	DocumentPDF  DocumentKind = ".pdf"
	DocumentDOCX DocumentKind = ".docx"
)

// ErrUnsupportedDocument is returned for any extension other than .pdf or .docx.
var ErrUnsupportedDocument = errors.New("unsupported document type")

// KindFromFilename returns the document kind for filename, compared
// case-insensitively on the final extension.
func KindFromFilename(filename string) (DocumentKind, error) {
	switch DocumentKind(strings.ToLower(filepath.Ext(filename))) {
	case DocumentPDF:
		return DocumentPDF, nil
	case DocumentDOCX:
		return DocumentDOCX, nil
	default:
		return "", ErrUnsupportedDocument
	}
}

// Ext returns the file extension including the leading dot.
func (k DocumentKind) Ext() string {
	return string(k)
}

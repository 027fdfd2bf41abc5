package pdftext

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	ErrEmptyFile   = errors.New("empty file")
	ErrUnsupported = errors.New("unsupported file type")
	ErrNoText      = errors.New("no extractable text")
)

// Extract sniffs the payload and returns its plain text. Supported: PDF,
// DOCX and plain text. Paragraph breaks between PDF pages are kept.
func Extract(originalName string, mimeType string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	mt := strings.ToLower(strings.TrimSpace(mimeType))

	if len(data) == 0 {
		return "", fmt.Errorf("%w: name=%s", ErrEmptyFile, originalName)
	}

	switch {
	case IsPDF(data):
		return extractPDF(data)
	case isZip(data):
		return extractDOCX(data)
	case mt == "application/pdf" || ext == ".pdf":
		return "", fmt.Errorf("%w: file claims pdf but missing %%PDF header (name=%s head=%s)", ErrUnsupported, originalName, firstBytesHex(data, 8))
	case isProbablyText(data):
		s := normalize(string(data))
		if s == "" {
			return "", ErrNoText
		}
		return s, nil
	default:
		return "", fmt.Errorf("%w: name=%s ext=%s mime=%s", ErrUnsupported, originalName, ext, mimeType)
	}
}

func IsPDF(b []byte) bool {
	return len(b) >= 5 && string(b[:5]) == "%PDF-"
}

func isZip(b []byte) bool {
	return len(b) >= 4 && b[0] == 'P' && b[1] == 'K' && b[2] == 3 && b[3] == 4
}

func extractPDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("pdf reader: %w", err)
	}
	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("pdf page %d: %w", i, err)
		}
		if s := normalize(text); s != "" {
			pages = append(pages, s)
		}
	}
	if len(pages) == 0 {
		return "", fmt.Errorf("pdf: %w", ErrNoText)
	}
	return strings.Join(pages, "\n\n"), nil
}

func extractDOCX(zipBytes []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(zipBytes), int64(len(zipBytes)))
	if err != nil {
		return "", fmt.Errorf("docx: %w", err)
	}
	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", fmt.Errorf("%w: zip does not look like docx", ErrUnsupported)
	}
	rc, err := doc.Open()
	if err != nil {
		return "", err
	}
	b, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		return "", err
	}
	s := normalize(textFromWordXML(b))
	if s == "" {
		return "", fmt.Errorf("docx: %w", ErrNoText)
	}
	return s, nil
}

// textFromWordXML gathers <w:t> runs and breaks lines at </w:p>.
func textFromWordXML(xmlBytes []byte) string {
	dec := xml.NewDecoder(bytes.NewReader(xmlBytes))
	var out strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Local != "t" {
				continue
			}
			var v string
			_ = dec.DecodeElement(&v, &el)
			out.WriteString(v)
		case xml.EndElement:
			if el.Name.Local == "p" {
				out.WriteString("\n")
			}
		}
	}
	return out.String()
}

func isProbablyText(b []byte) bool {
	sample := b[:min(len(b), 4096)]
	good := 0
	for _, c := range sample {
		if c == 0x00 {
			return false
		}
		if c == '\n' || c == '\r' || c == '\t' || (c >= 0x20 && c <= 0x7E) || c >= 0x80 {
			good++
		}
	}
	return float64(good)/float64(len(sample)) > 0.9
}

// normalize collapses runs of spaces inside lines and drops blank lines.
func normalize(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func firstBytesHex(b []byte, n int) string {
	n = min(len(b), n)
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 0, n*2)
	for i := 0; i < n; i++ {
		out = append(out, hexdigits[b[i]>>4], hexdigits[b[i]&0x0f])
	}
	return string(out)
}

package pdfextract

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

// ExtractText returns the plain text of the PDF read from r. A document with
// no extractable text yields an empty string and no error; the caller decides
// whether that is acceptable.
func ExtractText(r io.Reader) (string, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, r)
	if err != nil {
		return "", fmt.Errorf("read pdf bytes failed: %w", err)
	}
	if n == 0 {
		return "", nil
	}

	doc, err := pdf.NewReader(bytes.NewReader(buf.Bytes()), n)
	if err != nil {
		return "", fmt.Errorf("parse pdf failed: %w", err)
	}

	plain, err := doc.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text failed: %w", err)
	}

	var text bytes.Buffer
	if _, err := io.Copy(&text, plain); err != nil {
		return "", fmt.Errorf("collect pdf text failed: %w", err)
	}
	return text.String(), nil
}

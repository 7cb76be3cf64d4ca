package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	appErr "github.com/paperbotai/paperbot/internal/pkg/errors"
)

// Result holds the plain text pulled out of a PDF. PageCount is best-effort
// and 0 when the reader cannot determine it.
type Result struct {
	Text      string
	PageCount int
}

// PDFText extracts the full plain text of the PDF at path. The underlying
// reader panics on some malformed files, so the call is recover-guarded and
// every failure is wrapped as ErrExtraction.
func PDFText(path string) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%w: reader panic: %v", appErr.ErrExtraction, r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrExtraction, err)
	}
	defer f.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrExtraction, err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrExtraction, err)
	}
	text := strings.TrimSpace(buf.String())
	if text == "" {
		return nil, fmt.Errorf("%w: no extractable text", appErr.ErrExtraction)
	}
	return &Result{Text: text, PageCount: reader.NumPage()}, nil
}

// Package statement parses bank and UPI app PDF statements into ledger
// entries: text extraction, line parsing per provider, preview enrichment
// and idempotent commit.
package statement

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Extractor turns a PDF file into per-page plain text.
type Extractor interface {
	PageTexts(ctx context.Context, path string) ([]string, error)
}

// PopplerExtractor shells out to pdftotext. Pages arrive separated by
// form feeds in a single invocation, so one subprocess covers the whole
// document.
type PopplerExtractor struct {
	// Binary overrides the pdftotext executable name, for tests.
	Binary string
}

func (e *PopplerExtractor) PageTexts(ctx context.Context, path string) ([]string, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("statement file: %w", err)
	}

	bin := e.Binary
	if bin == "" {
		bin = "pdftotext"
	}

	var out, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, "-layout", path, "-")
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftotext %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}

	pages := strings.Split(out.String(), "\f")
	// pdftotext terminates the last page with a form feed too.
	if n := len(pages); n > 0 && strings.TrimSpace(pages[n-1]) == "" {
		pages = pages[:n-1]
	}
	return pages, nil
}

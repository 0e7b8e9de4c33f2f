package gallery

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/hazyhaar/vitrine/safe"
)

// ErrDocEncrypted is returned by ValidateDocuments for password-protected
// documents. The gallery serves every document to anonymous visitors, so
// encrypted files are a configuration mistake.
var ErrDocEncrypted = errors.New("gallery: document is encrypted")

// ValidateDocuments opens every catalog PDF under dir and rejects unreadable
// or encrypted ones. Page counts are recorded on the samples. Non-PDF
// documents only need to exist.
func (c *Catalog) ValidateDocuments(dir string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	for _, s := range c.List() {
		name := path.Base(s.Document)
		fp, err := safe.JoinUnder(dir, name)
		if err != nil {
			return fmt.Errorf("gallery: sample %s: %w", s.ID, err)
		}

		if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
			if _, err := os.Stat(fp); err != nil {
				return fmt.Errorf("gallery: sample %s: %w", s.ID, err)
			}
			continue
		}

		pages, err := validatePDF(fp)
		if err != nil {
			return fmt.Errorf("gallery: sample %s (%s): %w", s.ID, name, err)
		}
		c.setPages(s.ID, pages)
		logger.Debug("gallery: document validated", "sample", s.ID, "file", name, "pages", pages)
	}
	return nil
}

func validatePDF(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	ctx, err := api.ReadValidateAndOptimize(f, model.NewDefaultConfiguration())
	if err != nil {
		return 0, fmt.Errorf("read: %w", err)
	}
	if ctx.Encrypt != nil {
		return 0, ErrDocEncrypted
	}
	if ctx.PageCount < 1 {
		return 0, fmt.Errorf("no pages")
	}
	return ctx.PageCount, nil
}

// Package mdexport turns HTML into markdown and deposits markdown files on
// local disk.
//
// The converter sanitizes untrusted HTML before conversion, so script and
// event-handler payloads in a pasted page never reach the markdown output.
// The writer lands files atomically (write .tmp then rename) so a consumer
// watching the export directory never sees a partial file.
package mdexport

import (
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
)

// Converter converts sanitized HTML to markdown.
type Converter struct {
	policy *bluemonday.Policy
	md     *converter.Converter
}

// NewConverter creates a Converter with the standard plugin set. Tables
// survive conversion; everything bluemonday's UGC policy strips (scripts,
// event handlers, iframes) is gone before the converter sees the input.
func NewConverter() *Converter {
	return &Converter{
		policy: bluemonday.UGCPolicy(),
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Convert sanitizes html and converts it to markdown. sourceURL, when
// non-empty, resolves relative links in the output. Empty input converts
// to empty output without error.
func (c *Converter) Convert(html, sourceURL string) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", nil
	}
	clean := c.policy.Sanitize(html)

	var opts []converter.ConvertOptionFunc
	if sourceURL != "" {
		opts = append(opts, converter.WithDomain(sourceURL))
	}
	result, err := c.md.ConvertString(clean, opts...)
	if err != nil {
		return "", fmt.Errorf("mdexport: convert: %w", err)
	}
	return strings.TrimSpace(result), nil
}

// Package compare produces line-level differences between two documents
// for the comparison demo.
//
// Inputs are PDF, HTML, or plain text. Each is reduced to a sequence of
// text lines (PDF lines remember their page), then diffed with a longest
// common subsequence so the sample page can render added, removed, and
// unchanged runs side by side.
package compare

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
)

var (
	// ErrTooLarge means the inputs exceed the diff size cap.
	ErrTooLarge = errors.New("compare: documents too large to diff")

	// ErrNoContent means extraction produced no text at all.
	ErrNoContent = errors.New("compare: no text content found")
)

// maxDiffCells caps the LCS table size. Demo documents sit far below this;
// the cap keeps a hostile upload from allocating gigabytes.
const maxDiffCells = 4 << 20

// Format identifies a source document format.
type Format string

const (
	FormatAuto Format = ""
	FormatPDF  Format = "pdf"
	FormatHTML Format = "html"
	FormatText Format = "txt"
)

// DetectFormat maps a file name to a Format. Unknown extensions are
// treated as plain text.
func DetectFormat(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return FormatPDF
	case ".html", ".htm", ".xhtml":
		return FormatHTML
	default:
		return FormatText
	}
}

// Source is one comparison input.
type Source struct {
	// Name is the display name; with FormatAuto it also drives format
	// detection.
	Name string

	// Format forces a format. FormatAuto detects from Name.
	Format Format

	Reader io.Reader
}

// Op classifies one diff line.
type Op string

const (
	OpEqual   Op = "equal"
	OpAdded   Op = "added"
	OpRemoved Op = "removed"
)

// Change is one line of the diff. Page is the source page the line came
// from: the left document for equal and removed lines, the right one for
// added lines. HTML and text inputs count as a single page.
type Change struct {
	Op   Op     `json:"op"`
	Page int    `json:"page"`
	Text string `json:"text"`
}

// Summary counts the diff by operation.
type Summary struct {
	Added     int `json:"added"`
	Removed   int `json:"removed"`
	Unchanged int `json:"unchanged"`
}

// Result is a full comparison.
type Result struct {
	Left    string   `json:"left"`
	Right   string   `json:"right"`
	Changes []Change `json:"changes"`
	Summary Summary  `json:"summary"`
}

// Comparer diffs documents.
type Comparer struct {
	logger *slog.Logger
}

// New creates a Comparer.
func New(logger *slog.Logger) *Comparer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Comparer{logger: logger}
}

// Compare extracts both sources and diffs them line by line.
func (c *Comparer) Compare(ctx context.Context, left, right Source) (*Result, error) {
	a, err := extract(left)
	if err != nil {
		return nil, fmt.Errorf("compare: extract %q: %w", left.Name, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := extract(right)
	if err != nil {
		return nil, fmt.Errorf("compare: extract %q: %w", right.Name, err)
	}

	changes, err := diffLines(a, b)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Left:    left.Name,
		Right:   right.Name,
		Changes: changes,
	}
	for _, ch := range changes {
		switch ch.Op {
		case OpAdded:
			res.Summary.Added++
		case OpRemoved:
			res.Summary.Removed++
		default:
			res.Summary.Unchanged++
		}
	}

	c.logger.Debug("compare: diffed documents",
		"left", left.Name, "right", right.Name,
		"added", res.Summary.Added, "removed", res.Summary.Removed,
		"unchanged", res.Summary.Unchanged)
	return res, nil
}

// line is one extracted text line with its source page.
type line struct {
	text string
	page int
}

// diffLines runs an LCS diff over the two line sequences. Removed lines
// are emitted before added lines at each divergence.
func diffLines(a, b []line) ([]Change, error) {
	// Common prefix and suffix never enter the LCS table.
	var prefix []Change
	for len(a) > 0 && len(b) > 0 && a[0].text == b[0].text {
		prefix = append(prefix, Change{Op: OpEqual, Page: a[0].page, Text: a[0].text})
		a, b = a[1:], b[1:]
	}
	var suffix []Change
	for len(a) > 0 && len(b) > 0 && a[len(a)-1].text == b[len(b)-1].text {
		last := a[len(a)-1]
		suffix = append(suffix, Change{Op: OpEqual, Page: last.page, Text: last.text})
		a, b = a[:len(a)-1], b[:len(b)-1]
	}

	n, m := len(a), len(b)
	if n > 0 && m > 0 && n*m > maxDiffCells {
		return nil, ErrTooLarge
	}

	// dp[i][j] = LCS length of a[:i] and b[:j], flattened.
	w := m + 1
	dp := make([]int32, (n+1)*w)
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			if a[i-1].text == b[j-1].text {
				dp[i*w+j] = dp[(i-1)*w+j-1] + 1
			} else if dp[(i-1)*w+j] >= dp[i*w+j-1] {
				dp[i*w+j] = dp[(i-1)*w+j]
			} else {
				dp[i*w+j] = dp[i*w+j-1]
			}
		}
	}

	// Backtrack from the far corner; changes come out reversed.
	var rev []Change
	i, j := n, m
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && a[i-1].text == b[j-1].text:
			rev = append(rev, Change{Op: OpEqual, Page: a[i-1].page, Text: a[i-1].text})
			i--
			j--
		case j > 0 && (i == 0 || dp[i*w+j-1] >= dp[(i-1)*w+j]):
			rev = append(rev, Change{Op: OpAdded, Page: b[j-1].page, Text: b[j-1].text})
			j--
		default:
			rev = append(rev, Change{Op: OpRemoved, Page: a[i-1].page, Text: a[i-1].text})
			i--
		}
	}

	changes := prefix
	for k := len(rev) - 1; k >= 0; k-- {
		changes = append(changes, rev[k])
	}
	for k := len(suffix) - 1; k >= 0; k-- {
		changes = append(changes, suffix[k])
	}
	if changes == nil {
		changes = []Change{}
	}
	return changes, nil
}

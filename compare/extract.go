package compare

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/vitrine/safe"
)

// extract reduces a source to lines, dispatching on format.
func extract(src Source) ([]line, error) {
	format := src.Format
	if format == FormatAuto {
		format = DetectFormat(src.Name)
	}
	switch format {
	case FormatPDF:
		return extractPDF(src.Reader)
	case FormatHTML:
		return extractHTML(src.Reader)
	case FormatText:
		return extractText(src.Reader)
	default:
		return nil, fmt.Errorf("compare: unsupported format %q", format)
	}
}

// extractText splits plain text into trimmed non-empty lines, all on page 1.
func extractText(r io.Reader) ([]line, error) {
	var lines []line
	sc := bufio.NewScanner(io.LimitReader(r, safe.MaxUploadBody))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		if text := normalizeLine(sc.Text()); text != "" {
			lines = append(lines, line{text: text, page: 1})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("compare: read text: %w", err)
	}
	if len(lines) == 0 {
		return nil, ErrNoContent
	}
	return lines, nil
}

// extractHTML walks the DOM and emits one line per block-level element.
func extractHTML(r io.Reader) ([]line, error) {
	data, err := safe.ReadAllCapped(r, safe.MaxUploadBody)
	if err != nil {
		return nil, fmt.Errorf("compare: read html: %w", err)
	}
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("compare: parse html: %w", err)
	}

	var lines []line
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript:
				return
			case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
				atom.P, atom.Li, atom.Tr, atom.Pre, atom.Blockquote:
				if text := normalizeLine(nodeText(n)); text != "" {
					lines = append(lines, line{text: text, page: 1})
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if len(lines) == 0 {
		// No block structure; fall back to the full visible text.
		if text := normalizeLine(nodeText(doc)); text != "" {
			lines = append(lines, line{text: text, page: 1})
		}
	}
	if len(lines) == 0 {
		return nil, ErrNoContent
	}
	return lines, nil
}

// nodeText collects the visible text of a subtree.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(t)
			}
		}
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript:
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// extractPDF pulls per-page text out of the content streams. The whole
// input is buffered because pdfcpu needs a seeker.
func extractPDF(r io.Reader) ([]line, error) {
	data, err := safe.ReadAllCapped(r, safe.MaxUploadBody)
	if err != nil {
		return nil, fmt.Errorf("compare: read pdf: %w", err)
	}

	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("compare: pdfcpu read: %w", err)
	}

	var lines []line
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		cr, err := pdfcpu.ExtractPageContent(ctx, pageNr)
		if err != nil {
			continue
		}
		stream, err := io.ReadAll(cr)
		if err != nil || len(stream) == 0 {
			continue
		}
		for _, text := range contentStreamLines(stream) {
			lines = append(lines, line{text: text, page: pageNr})
		}
	}
	if len(lines) == 0 {
		return nil, ErrNoContent
	}
	return lines, nil
}

// pdfLiteralRe matches string literals inside text-showing operators.
var pdfLiteralRe = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)`)

// contentStreamLines parses the text-showing operators of one page's
// content stream into display lines. Tj/TJ append to the current line;
// the ', Td, TD, and T* positioning operators start a new one.
func contentStreamLines(stream []byte) []string {
	var lines []string
	var cur strings.Builder

	flush := func() {
		if text := normalizeLine(cur.String()); text != "" {
			lines = append(lines, text)
		}
		cur.Reset()
	}

	for _, raw := range bytes.Split(stream, []byte{'\n'}) {
		op := bytes.TrimSpace(raw)
		if len(op) == 0 {
			continue
		}
		switch {
		case bytes.HasSuffix(op, []byte("Tj")), bytes.HasSuffix(op, []byte("TJ")):
			for _, m := range pdfLiteralRe.FindAllSubmatch(op, -1) {
				cur.WriteString(decodeLiteral(m[1]))
			}
		case bytes.HasSuffix(op, []byte("'")) && bytes.Contains(op, []byte("(")):
			flush()
			for _, m := range pdfLiteralRe.FindAllSubmatch(op, -1) {
				cur.WriteString(decodeLiteral(m[1]))
			}
		case bytes.HasSuffix(op, []byte("Td")), bytes.HasSuffix(op, []byte("TD")), bytes.Equal(op, []byte("T*")):
			flush()
		}
	}
	flush()
	return lines
}

// decodeLiteral resolves PDF string escapes: \n \r \t \\ \( \) and octal
// codes like \040.
func decodeLiteral(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		switch c := raw[i]; c {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\', '(', ')':
			sb.WriteByte(c)
		default:
			if c < '0' || c > '7' {
				sb.WriteByte(c)
				break
			}
			val := int(c - '0')
			for k := 0; k < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; k++ {
				i++
				val = val*8 + int(raw[i]-'0')
			}
			sb.WriteByte(byte(val))
		}
	}
	return sb.String()
}

// normalizeLine collapses runs of whitespace and drops non-printable
// runes so diffs compare content, not layout.
func normalizeLine(s string) string {
	var sb strings.Builder
	space := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			space = sb.Len() > 0
		case unicode.IsPrint(r):
			if space {
				sb.WriteByte(' ')
				space = false
			}
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

package scraper

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// TextExtractor turns a PDF document into newline separated text lines.
type TextExtractor interface {
	ExtractText(data []byte) (string, error)
}

// PDFText extracts text row by row from every page.
type PDFText struct{}

// ExtractText returns the text of all pages, one line per visual row.
func (PDFText) ExtractText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return "", fmt.Errorf("read page %d: %w", i, err)
		}
		for _, row := range rows {
			line := joinRow(row.Content)
			if line == "" {
				continue
			}
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	}
	return sb.String(), nil
}

// joinRow concatenates the text runs of a row, inserting a space wherever
// the horizontal gap between runs is wider than a fraction of the font size.
func joinRow(texts pdf.TextHorizontal) string {
	var sb strings.Builder
	for i, t := range texts {
		if i > 0 && needsSpace(texts[i-1], t) {
			sb.WriteByte(' ')
		}
		sb.WriteString(t.S)
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

func needsSpace(prev, cur pdf.Text) bool {
	if strings.HasSuffix(prev.S, " ") || strings.HasPrefix(cur.S, " ") {
		return false
	}
	end := prev.X + prev.W
	if prev.W <= 0 {
		// No advance width: estimate half an em per rune.
		end = prev.X + prev.FontSize*0.5*float64(utf8.RuneCountInString(prev.S))
	}
	size := cur.FontSize
	if size <= 0 {
		size = 1
	}
	return cur.X-end > size*0.2
}

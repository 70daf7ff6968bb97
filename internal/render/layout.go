package render

import (
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// A4 portrait geometry in points.
const (
	pageWidth    = 595.28
	pageHeight   = 841.89
	marginLeft   = 40.0
	marginRight  = 40.0
	marginTop    = 40.0
	contentWidth = pageWidth - marginLeft - marginRight

	slipHeight   = 250.0
	bottomMargin = 24.0
	slipGap      = 16.0
)

type rgb struct{ r, g, b int }

var (
	colorText   = rgb{33, 37, 41}
	colorMuted  = rgb{108, 117, 125}
	colorBrand  = rgb{22, 78, 99}
	colorStripe = rgb{241, 245, 249}
	colorPanel  = rgb{232, 240, 245}
	colorBorder = rgb{173, 181, 189}
	colorSlip   = rgb{255, 246, 230}
)

// page tracks the write cursor and the protected bottom region.
type page struct {
	pdf *gofpdf.Fpdf
	tr  func(string) string

	y float64
	// limit is the lowest y content may reach before the slip region.
	limit float64
	// floor is the highest y the cursor may be moved back to.
	floor float64
}

func newPage(pdf *gofpdf.Fpdf) *page {
	return &page{
		pdf:   pdf,
		tr:    pdf.UnicodeTranslatorFromDescriptor(""),
		y:     marginTop,
		limit: protectedTop(),
		floor: marginTop,
	}
}

// protectedTop is the y coordinate where the reserved slip region begins.
func protectedTop() float64 {
	return pageHeight - (slipHeight + bottomMargin + slipGap)
}

// ensureSpace moves the cursor up when a block of height needed would enter
// the protected region. Content is never moved onto another page.
func (p *page) ensureSpace(needed float64) {
	p.y = clampCursor(p.y, needed, p.limit, p.floor)
}

func clampCursor(y, needed, limit, floor float64) float64 {
	if y+needed <= limit {
		return y
	}
	y = limit - needed
	if y < floor {
		y = floor
	}
	return y
}

func (p *page) font(style string, size float64, c rgb) {
	p.pdf.SetFont("Helvetica", style, size)
	p.pdf.SetTextColor(c.r, c.g, c.b)
}

func (p *page) fill(c rgb) {
	p.pdf.SetFillColor(c.r, c.g, c.b)
}

func (p *page) draw(c rgb) {
	p.pdf.SetDrawColor(c.r, c.g, c.b)
}

// cell writes a single line of text at x,y in a box of width w.
func (p *page) cell(x, y, w, h float64, text, align string, fill bool) {
	p.pdf.SetXY(x, y)
	p.pdf.CellFormat(w, h, p.tr(text), "", 0, align, fill, 0, "")
}

func (p *page) width(text string) float64 {
	return p.pdf.GetStringWidth(p.tr(text))
}

// wrap splits text into lines no wider than maxWidth at the current font.
// Words wider than maxWidth are broken by rune.
func (p *page) wrap(text string, maxWidth float64) []string {
	return wrapWords(text, maxWidth, p.width)
}

func wrapWords(text string, maxWidth float64, measure func(string) float64) []string {
	// Split on breaking whitespace only so no-break spaces in amounts survive.
	words := strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	line := ""
	for _, word := range words {
		if measure(word) > maxWidth {
			if line != "" {
				lines = append(lines, line)
				line = ""
			}
			pieces := breakWord(word, maxWidth, measure)
			lines = append(lines, pieces[:len(pieces)-1]...)
			line = pieces[len(pieces)-1]
			continue
		}

		candidate := word
		if line != "" {
			candidate = line + " " + word
		}
		if measure(candidate) <= maxWidth {
			line = candidate
			continue
		}
		lines = append(lines, line)
		line = word
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}

func breakWord(word string, maxWidth float64, measure func(string) float64) []string {
	var pieces []string
	current := ""
	for _, r := range word {
		candidate := current + string(r)
		if current != "" && measure(candidate) > maxWidth {
			pieces = append(pieces, current)
			current = string(r)
			continue
		}
		current = candidate
	}
	return append(pieces, current)
}

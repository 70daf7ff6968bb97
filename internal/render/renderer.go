// Package render produces the single page invoice PDF with its giro
// payment slip.
package render

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/kartarkiv/invoice-service/internal/domain"
)

const (
	emptyItemsText  = "Ingen fakturalinjer"
	placeholderDash = "–"

	tableHeaderHeight = 20.0
	rowLineHeight     = 12.0
	rowPadding        = 5.0
	cellPadding       = 6.0
)

// Table column widths; they add up to contentWidth.
const (
	colDescription = 275.0
	colQuantity    = 60.0
	colUnitPrice   = 90.0
	colLineTotal   = contentWidth - colDescription - colQuantity - colUnitPrice
)

// Error wraps a failure of the PDF toolkit. It is never retryable.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("render invoice %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type Seller struct {
	Name  string
	Email string
	OrgNr string
}

// Input is everything printed on the invoice. The renderer does not validate
// it; an empty item list renders a placeholder row.
type Input struct {
	InvoiceID     int64
	BuyerName     string
	BuyerEmail    string
	AmountNOK     decimal.Decimal
	IssueDate     time.Time
	DueDate       time.Time
	AccountNumber string
	KID           string
	LineItems     []domain.LineItem
}

type Options struct {
	Seller Seller
	// Compress deflates page content streams.
	Compress bool
}

type Renderer struct {
	seller   Seller
	compress bool
}

func NewRenderer(opts Options) *Renderer {
	return &Renderer{seller: opts.Seller, compress: opts.Compress}
}

// Render returns the PDF bytes for in.
func (r *Renderer) Render(in Input) ([]byte, error) {
	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetCompression(r.compress)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(marginLeft, marginTop, marginRight)
	pdf.SetTitle(fmt.Sprintf("Faktura %d", in.InvoiceID), true)
	pdf.SetAuthor(r.seller.Name, true)
	pdf.SetCreator("kartarkiv-invoice", false)
	pdf.AddPage()

	p := newPage(pdf)
	r.drawHeader(p, in)
	r.drawBuyer(p, in)
	drawItems(p, in)
	drawInstructions(p, in)
	r.drawGiro(p, in)

	if pdf.Err() {
		return nil, &Error{Op: "layout", Err: pdf.Error()}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, &Error{Op: "output", Err: err}
	}
	return buf.Bytes(), nil
}

func (r *Renderer) drawHeader(p *page, in Input) {
	top := p.y

	p.font("B", 20, colorBrand)
	p.cell(marginLeft, top, 260, 24, r.seller.Name, "L", false)

	leftY := top + 28
	p.font("", 9, colorMuted)
	if r.seller.Email != "" {
		p.cell(marginLeft, leftY, 260, 12, r.seller.Email, "L", false)
		leftY += 12
	}
	if r.seller.OrgNr != "" {
		p.cell(marginLeft, leftY, 260, 12, "Org.nr. "+r.seller.OrgNr, "L", false)
		leftY += 12
	}

	const blockWidth = 210.0
	blockX := pageWidth - marginRight - blockWidth

	p.font("B", 18, colorText)
	p.cell(blockX, top, blockWidth, 22, "FAKTURA", "R", false)

	rows := [][2]string{
		{"Fakturanr.", strconv.FormatInt(in.InvoiceID, 10)},
		{"Fakturadato", FormatDate(in.IssueDate)},
		{"Forfallsdato", FormatDate(in.DueDate)},
		{"Kontonr.", FormatAccountNumber(in.AccountNumber)},
		{"KID", in.KID},
	}
	rightY := top + 28
	for _, row := range rows {
		p.font("", 9, colorMuted)
		p.cell(blockX, rightY, blockWidth/2, 13, row[0], "L", false)
		p.font("B", 9, colorText)
		p.cell(blockX+blockWidth/2, rightY, blockWidth/2, 13, row[1], "R", false)
		rightY += 13
	}

	p.y = max(leftY, rightY) + 18
	p.draw(colorBorder)
	p.pdf.SetLineWidth(0.5)
	p.pdf.Line(marginLeft, p.y, pageWidth-marginRight, p.y)
	p.y += 14
}

func (r *Renderer) drawBuyer(p *page, in Input) {
	p.font("", 8, colorMuted)
	p.cell(marginLeft, p.y, 200, 10, "FAKTURA TIL", "L", false)
	p.y += 12

	p.font("B", 11, colorText)
	p.cell(marginLeft, p.y, 300, 14, in.BuyerName, "L", false)
	p.y += 14

	if in.BuyerEmail != "" {
		p.font("", 10, colorText)
		p.cell(marginLeft, p.y, 300, 13, in.BuyerEmail, "L", false)
		p.y += 13
	}
	p.y += 16
}

func drawItems(p *page, in Input) {
	x := marginLeft

	p.ensureSpace(tableHeaderHeight)
	p.fill(colorBrand)
	p.pdf.Rect(x, p.y, contentWidth, tableHeaderHeight, "F")
	p.font("B", 9, rgb{255, 255, 255})
	p.cell(x+cellPadding, p.y, colDescription-cellPadding, tableHeaderHeight, "Beskrivelse", "L", false)
	p.cell(x+colDescription, p.y, colQuantity, tableHeaderHeight, "Antall", "C", false)
	p.cell(x+colDescription+colQuantity, p.y, colUnitPrice-cellPadding, tableHeaderHeight, "Pris", "R", false)
	p.cell(x+colDescription+colQuantity+colUnitPrice, p.y, colLineTotal-cellPadding, tableHeaderHeight, "Beløp", "R", false)
	p.y += tableHeaderHeight

	if len(in.LineItems) == 0 {
		rowHeight := rowLineHeight + 2*rowPadding
		p.ensureSpace(rowHeight)
		p.font("I", 9, colorMuted)
		p.cell(x+cellPadding, p.y+rowPadding, colDescription-2*cellPadding, rowLineHeight, emptyItemsText, "L", false)
		p.y += rowHeight
		drawTotal(p, in.AmountNOK)
		return
	}

	subtotal := decimal.Zero
	for i, item := range in.LineItems {
		p.font("", 9, colorText)
		lines := p.wrap(item.Description, colDescription-2*cellPadding)
		rowHeight := float64(len(lines))*rowLineHeight + 2*rowPadding
		p.ensureSpace(rowHeight)

		if i%2 == 1 {
			p.fill(colorStripe)
			p.pdf.Rect(x, p.y, contentWidth, rowHeight, "F")
		}

		for j, line := range lines {
			p.cell(x+cellPadding, p.y+rowPadding+float64(j)*rowLineHeight, colDescription-2*cellPadding, rowLineHeight, line, "L", false)
		}

		unitPrice, lineTotal := placeholderDash, placeholderDash
		if item.Quantity != 0 {
			unitPrice = FormatNOK(item.Amount)
			lineTotal = FormatNOK(item.Total())
			subtotal = subtotal.Add(item.Total())
		}
		p.cell(x+colDescription, p.y+rowPadding, colQuantity, rowLineHeight, strconv.Itoa(item.Quantity), "C", false)
		p.cell(x+colDescription+colQuantity, p.y+rowPadding, colUnitPrice-cellPadding, rowLineHeight, unitPrice, "R", false)
		p.cell(x+colDescription+colQuantity+colUnitPrice, p.y+rowPadding, colLineTotal-cellPadding, rowLineHeight, lineTotal, "R", false)

		p.y += rowHeight
	}

	drawTotal(p, subtotal)
}

func drawTotal(p *page, total decimal.Decimal) {
	const height = 22.0

	p.ensureSpace(height)
	p.draw(colorText)
	p.pdf.SetLineWidth(0.8)
	p.pdf.Line(marginLeft, p.y, pageWidth-marginRight, p.y)

	p.font("B", 10, colorText)
	labelWidth := colDescription + colQuantity + colUnitPrice - cellPadding
	p.cell(marginLeft, p.y, labelWidth, height, "Sum", "R", false)
	p.cell(marginLeft+colDescription+colQuantity+colUnitPrice, p.y, colLineTotal-cellPadding, height, FormatNOK(total), "R", false)
	p.y += height + 18
}

func drawInstructions(p *page, in Input) {
	const padding = 10.0

	p.font("", 9, colorText)
	body := fmt.Sprintf(
		"Beløpet %s betales til konto %s innen %s. Oppgi KID %s ved betaling slik at innbetalingen blir registrert automatisk.",
		FormatNOK(in.AmountNOK),
		FormatAccountNumber(in.AccountNumber),
		FormatDate(in.DueDate),
		in.KID,
	)
	lines := p.wrap(body, contentWidth-2*padding)
	height := 2*padding + 14 + float64(len(lines))*rowLineHeight

	p.ensureSpace(height)
	p.fill(colorPanel)
	p.pdf.Rect(marginLeft, p.y, contentWidth, height, "F")

	p.font("B", 10, colorBrand)
	p.cell(marginLeft+padding, p.y+padding, contentWidth-2*padding, 12, "Betalingsinformasjon", "L", false)

	p.font("", 9, colorText)
	for i, line := range lines {
		p.cell(marginLeft+padding, p.y+padding+14+float64(i)*rowLineHeight, contentWidth-2*padding, rowLineHeight, line, "L", false)
	}
	p.y += height
}

package render

import (
	"fmt"
	"strings"
)

const (
	fieldLabelHeight = 10.0
	fieldLineHeight  = 12.0
	fieldGap         = 6.0
	columnGap        = 14.0
)

// drawGiro fills the reserved bottom region: the payer's receipt on the left
// and the bank slip on the right.
func (r *Renderer) drawGiro(p *page, in Input) {
	top := pageHeight - bottomMargin - slipHeight

	cutY := top - slipGap/2
	p.draw(colorMuted)
	p.pdf.SetLineWidth(0.5)
	p.pdf.SetDashPattern([]float64{4, 3}, 0)
	p.pdf.Line(marginLeft, cutY, pageWidth-marginRight, cutY)
	p.pdf.SetDashPattern([]float64{}, 0)

	p.fill(colorSlip)
	p.pdf.Rect(marginLeft, top, contentWidth, slipHeight, "F")

	leftWidth := contentWidth*0.42 - columnGap/2
	rightX := marginLeft + leftWidth + columnGap
	rightWidth := pageWidth - marginRight - rightX - 8

	amount := FormatNOK(in.AmountNOK)
	account := FormatAccountNumber(in.AccountNumber)
	due := FormatDate(in.DueDate)

	// Receipt
	x := marginLeft + 8
	y := top + 10
	p.font("B", 10, colorText)
	p.cell(x, y, leftWidth, 12, "KVITTERING", "L", false)
	y += 18

	payer := []string{in.BuyerName}
	if in.BuyerEmail != "" {
		payer = append(payer, in.BuyerEmail)
	}
	y = p.field(x, y, leftWidth, "Betalt av", payer...)
	y = p.field(x, y, leftWidth, "Betalt til", r.seller.Name, account)
	y = p.field(x, y, leftWidth, "Beløp", amount)
	p.field(x, y, leftWidth, "Betalingsfrist", due)

	// Bank slip
	y = top + 10
	p.font("B", 10, colorText)
	p.cell(rightX, y, rightWidth, 12, "GIRO", "L", false)
	y += 18

	y = p.field(rightX, y, rightWidth, "Betalingsinformasjon", fmt.Sprintf("Faktura %d", in.InvoiceID))
	y = p.field(rightX, y, rightWidth, "Kundeidentifikasjon (KID)", in.KID)

	half := (rightWidth - fieldGap) / 2
	p.field(rightX, y, half, "Kroner", amount)
	y = p.field(rightX+half+fieldGap, y, half, "Til konto", account)
	p.field(rightX, y, rightWidth, "Forfallsdato", due)

	// Reference line
	p.pdf.SetFont("Courier", "", 10)
	p.pdf.SetTextColor(colorText.r, colorText.g, colorText.b)
	ref := fmt.Sprintf("%s  %s  %s", in.KID, amount, account)
	p.cell(marginLeft+8, top+slipHeight-18, contentWidth-16, 12, ref, "L", false)
}

// field draws a boxed, labeled value and returns the y below it.
func (p *page) field(x, y, w float64, label string, lines ...string) float64 {
	if len(lines) == 0 {
		lines = []string{""}
	}
	h := fieldLabelHeight + float64(len(lines))*fieldLineHeight + 6

	p.draw(colorBorder)
	p.pdf.SetLineWidth(0.6)
	p.fill(rgb{255, 255, 255})
	p.pdf.Rect(x, y, w, h, "FD")

	p.font("", 6.5, colorMuted)
	p.cell(x+4, y+2, w-8, fieldLabelHeight, strings.ToUpper(label), "L", false)

	p.font("B", 10, colorText)
	for i, line := range lines {
		p.cell(x+4, y+2+fieldLabelHeight+float64(i)*fieldLineHeight, w-8, fieldLineHeight, line, "L", false)
	}
	return y + h + fieldGap
}

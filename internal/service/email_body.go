package service

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"text/template"

	"github.com/kartarkiv/invoice-service/internal/render"
)

const invoiceEmailHTML = `<!doctype html>
<html lang="nb">
<head>
  <meta charset="utf-8" />
  <title>Faktura {{.InvoiceID}}</title>
</head>
<body style="margin:0;padding:24px;font-family:Helvetica,Arial,sans-serif;color:#212529;">
  <p>Hei {{.BuyerName}},</p>
  <p>Vedlagt finner du faktura {{.InvoiceID}} fra {{.SellerName}}.</p>
  <table style="border-collapse:collapse;font-size:14px;">
    <tr><td style="padding:4px 16px 4px 0;color:#6c757d;">Beløp</td><td><strong>{{.Amount}}</strong></td></tr>
    <tr><td style="padding:4px 16px 4px 0;color:#6c757d;">Forfallsdato</td><td>{{.DueDate}}</td></tr>
    <tr><td style="padding:4px 16px 4px 0;color:#6c757d;">Kontonummer</td><td>{{.AccountNumber}}</td></tr>
    <tr><td style="padding:4px 16px 4px 0;color:#6c757d;">KID</td><td><strong>{{.KID}}</strong></td></tr>
  </table>
  <p>Husk å oppgi KID ved betaling.</p>
  <p>Med vennlig hilsen<br />{{.SellerName}}</p>
</body>
</html>
`

const invoiceEmailText = `Hei {{.BuyerName}},

Vedlagt finner du faktura {{.InvoiceID}} fra {{.SellerName}}.

Beløp: {{.Amount}}
Forfallsdato: {{.DueDate}}
Kontonummer: {{.AccountNumber}}
KID: {{.KID}}

Husk å oppgi KID ved betaling.

Med vennlig hilsen
{{.SellerName}}
`

var (
	invoiceHTMLTemplate = htmltemplate.Must(htmltemplate.New("invoice-email-html").Parse(invoiceEmailHTML))
	invoiceTextTemplate = template.Must(template.New("invoice-email-text").Parse(invoiceEmailText))
)

type emailBodyData struct {
	InvoiceID     int64
	BuyerName     string
	SellerName    string
	Amount        string
	DueDate       string
	AccountNumber string
	KID           string
}

func newEmailBodyData(in render.Input, sellerName string) emailBodyData {
	buyer := in.BuyerName
	if buyer == "" {
		buyer = in.BuyerEmail
	}
	return emailBodyData{
		InvoiceID:     in.InvoiceID,
		BuyerName:     buyer,
		SellerName:    sellerName,
		Amount:        render.FormatNOK(in.AmountNOK),
		DueDate:       render.FormatDate(in.DueDate),
		AccountNumber: render.FormatAccountNumber(in.AccountNumber),
		KID:           in.KID,
	}
}

func invoiceSubject(invoiceID int64, sellerName string) string {
	return fmt.Sprintf("Faktura %d fra %s", invoiceID, sellerName)
}

// composeEmailBody renders the HTML and plain text parts of the invoice email.
func composeEmailBody(data emailBodyData) (html string, text string, err error) {
	var htmlBuf bytes.Buffer
	if err := invoiceHTMLTemplate.Execute(&htmlBuf, data); err != nil {
		return "", "", fmt.Errorf("failed to render html email body: %w", err)
	}

	var textBuf bytes.Buffer
	if err := invoiceTextTemplate.Execute(&textBuf, data); err != nil {
		return "", "", fmt.Errorf("failed to render text email body: %w", err)
	}

	return htmlBuf.String(), textBuf.String(), nil
}

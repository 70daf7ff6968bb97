package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/kartarkiv/invoice-service/internal/domain"
	"github.com/kartarkiv/invoice-service/internal/kid"
	"github.com/kartarkiv/invoice-service/internal/render"
	"github.com/kartarkiv/invoice-service/internal/service"
)

type renderFlags struct {
	invoiceID     int64
	buyerName     string
	buyerEmail    string
	amount        string
	dueDate       string
	accountNumber string
	sellerName    string
	items         []string
	out           string
}

func renderCmd() *cobra.Command {
	var f renderFlags

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render an invoice PDF with a giro slip to a file",
		Example: `  invoicectl render --id 42 --buyer-email ola@example.com --amount 1250 \
    --item "Medlemskap 2026;1250;1" --out invoice-42.pdf`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := f.input(time.Now())
			if err != nil {
				return err
			}

			pdf, err := render.NewRenderer(render.Options{
				Seller:   render.Seller{Name: f.sellerName},
				Compress: true,
			}).Render(in)
			if err != nil {
				return err
			}

			if err := os.WriteFile(f.out, pdf, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", f.out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes, KID %s)\n", f.out, len(pdf), in.KID)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.Int64Var(&f.invoiceID, "id", 0, "Invoice id")
	flags.StringVar(&f.buyerName, "buyer-name", "", "Buyer name")
	flags.StringVar(&f.buyerEmail, "buyer-email", "", "Buyer email")
	flags.StringVar(&f.amount, "amount", "", "Invoice amount in NOK")
	flags.StringVar(&f.dueDate, "due", "", "Due date (YYYY-MM-DD), defaults to 14 days from today")
	flags.StringVar(&f.accountNumber, "account", service.FallbackAccountNumber, "Payee account number")
	flags.StringVar(&f.sellerName, "seller", "Kartarkiv", "Seller name")
	flags.StringArrayVar(&f.items, "item", nil, `Line item as "description;unit price;quantity" (repeatable)`)
	flags.StringVarP(&f.out, "out", "o", "invoice.pdf", "Output file")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("buyer-email")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func (f renderFlags) input(now time.Time) (render.Input, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(f.amount))
	if err != nil {
		return render.Input{}, fmt.Errorf("invalid amount %q: %w", f.amount, err)
	}

	items := make([]domain.LineItem, 0, len(f.items))
	for _, raw := range f.items {
		item, err := parseLineItem(raw)
		if err != nil {
			return render.Input{}, err
		}
		items = append(items, item)
	}

	req := domain.InvoiceRequest{
		InvoiceID:  f.invoiceID,
		BuyerEmail: f.buyerEmail,
		BuyerName:  f.buyerName,
		AmountNOK:  amount,
		LineItems:  items,
	}
	if err := req.Validate(); err != nil {
		return render.Input{}, err
	}

	issue := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	due := issue.AddDate(0, 0, domain.DefaultDueDays)
	if f.dueDate != "" {
		due, err = time.ParseInLocation("2006-01-02", f.dueDate, now.Location())
		if err != nil {
			return render.Input{}, fmt.Errorf("invalid due date %q: %w", f.dueDate, err)
		}
	}

	kidValue, err := kid.ForInvoice(f.invoiceID)
	if err != nil {
		return render.Input{}, err
	}

	return render.Input{
		InvoiceID:     f.invoiceID,
		BuyerName:     f.buyerName,
		BuyerEmail:    f.buyerEmail,
		AmountNOK:     amount,
		IssueDate:     issue,
		DueDate:       due,
		AccountNumber: f.accountNumber,
		KID:           kidValue,
		LineItems:     items,
	}, nil
}

func parseLineItem(raw string) (domain.LineItem, error) {
	parts := strings.Split(raw, ";")
	if len(parts) != 3 {
		return domain.LineItem{}, fmt.Errorf("line item %q must be description;unit price;quantity", raw)
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(parts[1]))
	if err != nil {
		return domain.LineItem{}, fmt.Errorf("line item %q has invalid price: %w", raw, err)
	}
	qty, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return domain.LineItem{}, fmt.Errorf("line item %q has invalid quantity: %w", raw, err)
	}

	return domain.LineItem{
		Description: strings.TrimSpace(parts[0]),
		Amount:      amount,
		Quantity:    qty,
	}, nil
}

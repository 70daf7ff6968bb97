package domain

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status represents the billing state of an invoice row.
type Status string

const (
	StatusPending          Status = "pending"
	StatusInvoiceRequested Status = "invoice_requested"
	StatusPaid             Status = "paid"
	StatusCanceled         Status = "canceled"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInvoiceRequested, StatusPaid, StatusCanceled:
		return true
	}
	return false
}

func ParseStatusFromString(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid status %q", ErrValidation, s)
	}
	return st, nil
}

// DefaultDueDays is the payment term applied when no due date is given.
const DefaultDueDays = 14

// LineItem is one priced row of an invoice. Amount is the unit price.
type LineItem struct {
	Description string
	Amount      decimal.Decimal
	Quantity    int
}

// Total returns Amount*Quantity. Zero or negative quantities count as nothing.
func (l LineItem) Total() decimal.Decimal {
	if l.Quantity <= 0 {
		return decimal.Zero
	}
	return l.Amount.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Invoice is the billing record owned by the club billing component.
type Invoice struct {
	ID                 int64
	BuyerEmail         string
	BuyerName          string
	AmountNOK          decimal.Decimal
	DueDate            *time.Time
	AccountNumber      *string
	KID                *string
	Status             Status
	InvoiceRequestedAt *time.Time
	LineItems          []LineItem
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// InvoiceRequest is the input of a single invoice send.
type InvoiceRequest struct {
	InvoiceID     int64
	BuyerEmail    string
	BuyerName     string
	AmountNOK     decimal.Decimal
	DueDate       *time.Time
	AccountNumber string
	LineItems     []LineItem
}

func (r *InvoiceRequest) Validate() error {
	if r.InvoiceID <= 0 {
		return fmt.Errorf("%w: invoice id must be positive", ErrValidation)
	}
	email := strings.TrimSpace(r.BuyerEmail)
	if email == "" {
		return fmt.Errorf("%w: buyer email is required", ErrValidation)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("%w: invalid buyer email %q", ErrValidation, r.BuyerEmail)
	}
	if !r.AmountNOK.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", ErrValidation)
	}
	for i, item := range r.LineItems {
		if strings.TrimSpace(item.Description) == "" {
			return fmt.Errorf("%w: line item %d is missing a description", ErrValidation, i+1)
		}
		if item.Quantity < 0 {
			return fmt.Errorf("%w: line item %d has negative quantity", ErrValidation, i+1)
		}
	}
	return nil
}

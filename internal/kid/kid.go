// Package kid computes Norwegian KID (kundeidentifikasjon) payment references.
package kid

import (
	"fmt"
	"strings"

	"github.com/kartarkiv/invoice-service/internal/domain"
)

// Mod11Invalid is returned by Mod11CheckDigit when the remainder yields 10.
// The KID standard then falls back to Mod10.
const Mod11Invalid = 10

// InvoiceBaseWidth is the zero-padded width of the invoice id part of a KID.
const InvoiceBaseWidth = 7

// Mod11CheckDigit computes the Mod11 check digit of base, weighting digits
// 2,3,4,5,6,7,2,... from the right. ok is false when base has no digits.
func Mod11CheckDigit(base string) (digit int, ok bool) {
	digits := onlyDigits(base)
	if digits == "" {
		return 0, false
	}

	sum := 0
	weight := 2
	for i := len(digits) - 1; i >= 0; i-- {
		sum += int(digits[i]-'0') * weight
		weight++
		if weight > 7 {
			weight = 2
		}
	}

	check := 11 - sum%11
	switch check {
	case 11:
		return 0, true
	case 10:
		return Mod11Invalid, true
	}
	return check, true
}

// Mod10CheckDigit computes the Luhn check digit of base. Every second digit,
// starting with the rightmost, is doubled.
func Mod10CheckDigit(base string) int {
	digits := onlyDigits(base)

	sum := 0
	double := true
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}

	return (10 - sum%10) % 10
}

// GenerateKID appends a check digit to the digits of numericBase, using Mod11
// and falling back to Mod10 when Mod11 yields the invalid value.
func GenerateKID(numericBase string) (string, error) {
	digits := onlyDigits(numericBase)
	if digits == "" {
		return "", fmt.Errorf("%w: kid base %q contains no digits", domain.ErrInvalidArgument, numericBase)
	}

	check, _ := Mod11CheckDigit(digits)
	if check == Mod11Invalid {
		check = Mod10CheckDigit(digits)
	}

	return fmt.Sprintf("%s%d", digits, check), nil
}

// InvoiceBase left-pads the invoice id to InvoiceBaseWidth digits.
func InvoiceBase(invoiceID int64) string {
	return fmt.Sprintf("%0*d", InvoiceBaseWidth, invoiceID)
}

// ForInvoice returns the KID used on invoices for invoiceID.
func ForInvoice(invoiceID int64) (string, error) {
	if invoiceID < 0 {
		return "", fmt.Errorf("%w: invoice id must not be negative", domain.ErrInvalidArgument)
	}
	return GenerateKID(InvoiceBase(invoiceID))
}

// Validate reports whether kid ends in the check digit GenerateKID would
// produce for the preceding digits.
func Validate(kid string) bool {
	kid = strings.TrimSpace(kid)
	if len(kid) < 2 || onlyDigits(kid) != kid {
		return false
	}

	want, err := GenerateKID(kid[:len(kid)-1])
	if err != nil {
		return false
	}
	return want == kid
}

func onlyDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

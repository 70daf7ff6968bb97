package render

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func plainSpaces(s string) string {
	return strings.NewReplacer("\u00a0", " ", "\u202f", " ").Replace(s)
}

func TestFormatNOK(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		amount string
		want   string
	}{
		{amount: "0", want: "kr 0,00"},
		{amount: "9.5", want: "kr 9,50"},
		{amount: "1250.5", want: "kr 1 250,50"},
		{amount: "1234567.891", want: "kr 1 234 567,89"},
		{amount: "499.995", want: "kr 500,00"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.amount, func(t *testing.T) {
			t.Parallel()

			got := FormatNOK(decimal.RequireFromString(tc.amount))
			if plainSpaces(got) != tc.want {
				t.Fatalf("FormatNOK(%s) = %q, want %q", tc.amount, got, tc.want)
			}
			if strings.Contains(got, "\u202f") {
				t.Fatalf("FormatNOK(%s) = %q, narrow no-break space should be normalized", tc.amount, got)
			}
		})
	}
}

func TestFormatDate(t *testing.T) {
	t.Parallel()

	got := FormatDate(time.Date(2026, time.March, 5, 23, 59, 0, 0, time.UTC))
	if got != "05.03.2026" {
		t.Fatalf("FormatDate() = %q, want 05.03.2026", got)
	}
	if FormatDate(time.Time{}) != "" {
		t.Fatal("zero time should format as empty string")
	}
}

func TestFormatAccountNumber(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		input string
		want  string
	}{
		{input: "12345678903", want: "1234.56.78903"},
		{input: " 1234 56 78903 ", want: "1234.56.78903"},
		{input: "1234.56.78903", want: "1234.56.78903"},
		{input: "123", want: "123"},
		{input: "NO9386011117947", want: "NO9386011117947"},
		{input: "", want: ""},
	}

	for _, tc := range testCases {
		if got := FormatAccountNumber(tc.input); got != tc.want {
			t.Fatalf("FormatAccountNumber(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

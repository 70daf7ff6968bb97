package render

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const dateLayout = "02.01.2006"

var nbPrinter = message.NewPrinter(language.MustParse("nb-NO"))

// groupSeparators are the spacing runes locale data may use between digit
// groups; all are normalized to a no-break space.
var groupSeparators = strings.NewReplacer("\u202f", "\u00a0", "\u2009", "\u00a0")

// FormatNOK formats an amount as Norwegian kroner, e.g. "kr 1 250,50" with a
// no-break space between digit groups.
func FormatNOK(amount decimal.Decimal) string {
	value := amount.Round(2).InexactFloat64()
	return "kr " + groupSeparators.Replace(nbPrinter.Sprintf("%.2f", value))
}

// FormatDate formats t as DD.MM.YYYY.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

// FormatAccountNumber groups an 11 digit Norwegian account number as
// 4.2.5. Anything else is returned trimmed and unchanged.
func FormatAccountNumber(account string) string {
	trimmed := strings.TrimSpace(account)

	var digits strings.Builder
	for _, r := range trimmed {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == ' ' || r == '.':
		default:
			return trimmed
		}
	}

	d := digits.String()
	if len(d) != 11 {
		return trimmed
	}
	return d[:4] + "." + d[4:6] + "." + d[6:]
}

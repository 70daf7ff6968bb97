package render

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/kartarkiv/invoice-service/internal/domain"
)

func testInput() Input {
	return Input{
		InvoiceID:     42,
		BuyerName:     "Bøler Orienteringsklubb",
		BuyerEmail:    "kasserer@boler-ok.no",
		AmountNOK:     decimal.RequireFromString("1250.50"),
		IssueDate:     time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
		DueDate:       time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC),
		AccountNumber: "12345678903",
		KID:           "00000426",
		LineItems: []domain.LineItem{
			{Description: "Kartlisens 2026", Amount: decimal.RequireFromString("1000"), Quantity: 1},
			{Description: "Trykk av løpskart", Amount: decimal.RequireFromString("125.25"), Quantity: 2},
		},
	}
}

func renderUncompressed(t *testing.T, in Input) []byte {
	t.Helper()

	r := NewRenderer(Options{Seller: Seller{Name: "Kartarkiv", Email: "faktura@kartarkiv.no", OrgNr: "912 345 678"}})
	out, err := r.Render(in)
	if err != nil {
		t.Fatalf("Render() unexpected error: %v", err)
	}
	return out
}

// cp1252 applies the same translation the renderer uses for core fonts.
func cp1252(s string) []byte {
	pdf := gofpdf.New("P", "pt", "A4", "")
	return []byte(pdf.UnicodeTranslatorFromDescriptor("")(s))
}

func TestRenderProducesPDF(t *testing.T) {
	t.Parallel()

	out := renderUncompressed(t, testInput())
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Fatalf("output does not start with a PDF header: %q", out[:min(len(out), 16)])
	}
	if !bytes.Contains(out, []byte("%%EOF")) {
		t.Fatal("output is missing the PDF trailer")
	}

	for _, want := range []string{"00000426", "1234.56.78903", "15.03.2026", "Kartlisens 2026", "Trykk av løpskart"} {
		if !bytes.Contains(out, cp1252(want)) {
			t.Fatalf("output missing %q", want)
		}
	}
	if !bytes.Contains(out, cp1252(FormatNOK(decimal.RequireFromString("1250.50")))) {
		t.Fatal("output missing formatted total")
	}
}

func TestRenderCompressedIsSmaller(t *testing.T) {
	t.Parallel()

	plain := renderUncompressed(t, testInput())
	compressed, err := NewRenderer(Options{Seller: Seller{Name: "Kartarkiv"}, Compress: true}).Render(testInput())
	if err != nil {
		t.Fatalf("Render() unexpected error: %v", err)
	}
	if len(compressed) >= len(plain) {
		t.Fatalf("compressed size %d, want less than %d", len(compressed), len(plain))
	}
}

func TestRenderEmptyItemsShowsSinglePlaceholderRow(t *testing.T) {
	t.Parallel()

	in := testInput()
	in.LineItems = nil

	out := renderUncompressed(t, in)
	if len(out) == 0 {
		t.Fatal("expected non-empty output")
	}
	if got := bytes.Count(out, []byte(emptyItemsText)); got != 1 {
		t.Fatalf("placeholder rows = %d, want 1", got)
	}
}

func TestRenderZeroQuantityShowsDash(t *testing.T) {
	t.Parallel()

	in := testInput()
	in.LineItems = []domain.LineItem{
		{Description: "Kartlisens 2026", Amount: decimal.RequireFromString("1250.50"), Quantity: 1},
		{Description: "Gratis prøvekart", Amount: decimal.RequireFromString("333.33"), Quantity: 0},
	}

	out := renderUncompressed(t, in)

	if !bytes.Contains(out, cp1252("Gratis prøvekart")) {
		t.Fatal("zero quantity row should still list its description")
	}
	if bytes.Contains(out, []byte("333,33")) {
		t.Fatal("zero quantity row must not print its unit price")
	}
	if bytes.Contains(out, cp1252(FormatNOK(decimal.Zero))) {
		t.Fatal("zero quantity row must not print a zero amount")
	}

	dashCell := append(append([]byte("("), cp1252(placeholderDash)...), []byte(")Tj")...)
	if got := bytes.Count(out, dashCell); got != 2 {
		t.Fatalf("dash cells = %d, want 2 (unit price and line total)", got)
	}
}

func TestRenderLongItemListStaysOnOnePage(t *testing.T) {
	t.Parallel()

	in := testInput()
	in.LineItems = nil
	for i := 0; i < 60; i++ {
		in.LineItems = append(in.LineItems, domain.LineItem{
			Description: strings.Repeat("Løype ", 12),
			Amount:      decimal.NewFromInt(10),
			Quantity:    1,
		})
	}

	out := renderUncompressed(t, in)
	if got := bytes.Count(out, []byte("/Type /Page\n")); got != 1 {
		t.Fatalf("page objects = %d, want 1", got)
	}
}

func TestClampCursor(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		y      float64
		needed float64
		want   float64
	}{
		{name: "fits", y: 100, needed: 50, want: 100},
		{name: "exactly fits", y: 450, needed: 50, want: 450},
		{name: "moved up", y: 480, needed: 50, want: 450},
		{name: "not above floor", y: 480, needed: 480, want: 40},
	}

	for _, tc := range testCases {
		if got := clampCursor(tc.y, tc.needed, 500, 40); got != tc.want {
			t.Fatalf("%s: clampCursor() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestProtectedRegionLeavesRoomForSlip(t *testing.T) {
	t.Parallel()

	if got, want := protectedTop(), pageHeight-slipHeight-bottomMargin-slipGap; got != want {
		t.Fatalf("protectedTop() = %v, want %v", got, want)
	}
	if protectedTop() <= marginTop {
		t.Fatal("protected region leaves no space for content")
	}
}

func TestWrapWords(t *testing.T) {
	t.Parallel()

	// Each rune is 1 unit wide.
	measure := func(s string) float64 { return float64(len([]rune(s))) }

	testCases := []struct {
		name  string
		text  string
		width float64
		want  []string
	}{
		{name: "fits on one line", text: "Kart over Nordmarka", width: 40, want: []string{"Kart over Nordmarka"}},
		{name: "greedy split", text: "aaa bbb ccc ddd", width: 7, want: []string{"aaa bbb", "ccc ddd"}},
		{name: "collapses whitespace", text: "  aaa   bbb  ", width: 20, want: []string{"aaa bbb"}},
		{name: "breaks long word", text: "abcdefghij kl", width: 4, want: []string{"abcd", "efgh", "ij", "kl"}},
		{name: "empty text", text: "", width: 10, want: []string{""}},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := wrapWords(tc.text, tc.width, measure)
			if strings.Join(got, "|") != strings.Join(tc.want, "|") {
				t.Fatalf("wrapWords() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestWrapUsesFontMetrics(t *testing.T) {
	t.Parallel()

	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 9)
	p := newPage(pdf)

	text := "Oppdatering av kartgrunnlag for sprintløp i Frognerparken med nye stier og bygninger"
	lines := p.wrap(text, 120)
	if len(lines) < 2 {
		t.Fatalf("wrap() = %q, want several lines", lines)
	}
	for _, line := range lines {
		if w := p.width(line); w > 120 {
			t.Fatalf("line %q is %.2fpt wide, want <= 120", line, w)
		}
	}
	if strings.Join(lines, " ") != text {
		t.Fatalf("wrapped lines lost words: %q", lines)
	}
}

func TestErrorUnwraps(t *testing.T) {
	t.Parallel()

	cause := errors.New("font not found")
	err := &Error{Op: "layout", Err: cause}
	if !errors.Is(err, cause) {
		t.Fatal("Error should unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "layout") {
		t.Fatalf("Error() = %q, want op in message", err.Error())
	}
}

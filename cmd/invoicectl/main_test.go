package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestKidCommand(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		args    []string
		want    string
		wantErr bool
	}{
		{name: "from invoice id", args: []string{"kid", "--invoice", "42"}, want: "00000426\n"},
		{name: "from base", args: []string{"kid", "0000042"}, want: "00000426\n"},
		{name: "validate ok", args: []string{"kid", "--validate", "00000426"}, want: "00000426 is valid\n"},
		{name: "validate bad", args: []string{"kid", "--validate", "00000427"}, wantErr: true},
		{name: "no digits", args: []string{"kid", "abc"}, wantErr: true},
		{name: "exclusive flags", args: []string{"kid", "--invoice", "--validate", "1"}, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			out, err := execute(t, tc.args...)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got output %q", out)
				}
				return
			}
			if err != nil {
				t.Fatalf("execute() error = %v", err)
			}
			if out != tc.want {
				t.Fatalf("output = %q, want %q", out, tc.want)
			}
		})
	}
}

func TestRenderCommandWritesPDF(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "invoice.pdf")
	out, err := execute(t,
		"render",
		"--id", "42",
		"--buyer-email", "ola@example.com",
		"--buyer-name", "Ola Nordmann",
		"--amount", "1250",
		"--due", "2026-04-01",
		"--item", "Medlemskap;1250;1",
		"--out", path,
	)
	if err != nil {
		t.Fatalf("execute() error = %v", err)
	}
	if !strings.Contains(out, "KID 00000426") {
		t.Fatalf("output = %q", out)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatal("output file is not a pdf")
	}
}

func TestRenderFlagsInput(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	in, err := renderFlags{
		invoiceID:  7,
		buyerEmail: "kari@example.com",
		amount:     "300",
		items:      []string{"Kart; 100 ;3"},
	}.input(now)
	if err != nil {
		t.Fatalf("input() error = %v", err)
	}

	if want := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC); !in.DueDate.Equal(want) {
		t.Fatalf("due date = %v, want %v", in.DueDate, want)
	}
	if len(in.LineItems) != 1 || in.LineItems[0].Quantity != 3 || in.LineItems[0].Description != "Kart" {
		t.Fatalf("line items = %+v", in.LineItems)
	}
}

func TestParseLineItemErrors(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"only-description", "a;x;1", "a;1;y"} {
		if _, err := parseLineItem(raw); err == nil {
			t.Fatalf("parseLineItem(%q) expected error", raw)
		}
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

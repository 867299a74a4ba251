package parser

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"docstream/internal/models"
)

const maxTestBytes = 25 << 20

func validPDFBytes() []byte {
	return append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("x"), 64)...)
}

func TestValidatePDFAccepts(t *testing.T) {
	if err := ValidatePDF(validPDFBytes(), "report.pdf", maxTestBytes); err != nil {
		t.Fatalf("ValidatePDF: %v", err)
	}
	// Extension check is case-insensitive.
	if err := ValidatePDF(validPDFBytes(), "REPORT.PDF", maxTestBytes); err != nil {
		t.Fatalf("ValidatePDF uppercase ext: %v", err)
	}
}

func TestValidatePDFRejects(t *testing.T) {
	cases := []struct {
		name     string
		data     []byte
		filename string
		wantMsg  string
	}{
		{"oversized", append([]byte("%PDF-"), bytes.Repeat([]byte("x"), 1024)...), "big.pdf", "exceeds maximum allowed size"},
		{"tiny", []byte("%PDF"), "tiny.pdf", "too small"},
		{"no magic", bytes.Repeat([]byte("A"), 64), "fake.pdf", "missing PDF header"},
		{"wrong extension", validPDFBytes(), "report.docx", ".pdf extension"},
	}

	for _, tc := range cases {
		max := int64(maxTestBytes)
		if tc.name == "oversized" {
			max = 512
		}
		err := ValidatePDF(tc.data, tc.filename, max)
		if err == nil {
			t.Fatalf("%s: validation passed, want error", tc.name)
		}
		var ve *models.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("%s: err type %T, want ValidationError", tc.name, err)
		}
		if !strings.Contains(err.Error(), tc.wantMsg) {
			t.Fatalf("%s: message %q missing %q", tc.name, err.Error(), tc.wantMsg)
		}
	}
}

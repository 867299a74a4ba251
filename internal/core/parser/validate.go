package parser

import (
	"bytes"
	"strings"

	"docstream/internal/models"
)

var pdfMagic = []byte("%PDF-")

// ValidatePDF checks upload bytes before any job exists: size bounds, the
// PDF header magic and the file extension. Failures come back as
// ValidationError with a user-visible message.
func ValidatePDF(data []byte, filename string, maxBytes int64) error {
	if int64(len(data)) > maxBytes {
		return models.Validationf("file size (%.1fMB) exceeds maximum allowed size (%dMB)",
			float64(len(data))/(1024*1024), maxBytes>>20)
	}
	if len(data) < 10 {
		return models.Validationf("file is too small to be a valid PDF")
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		return models.Validationf("file is not a valid PDF (missing PDF header)")
	}
	if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		return models.Validationf("file must have a .pdf extension")
	}
	return nil
}

package validation

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
)

// MaxFieldLength bounds client-supplied strings that are never validated,
// such as upload file names, in characters.
const MaxFieldLength = 256

// genericContentType is what browsers and curl send when they do not know the type.
const genericContentType = "application/octet-stream"

// SanitizeString removes potentially dangerous characters for display
func SanitizeString(s string) string {
	// Remove null bytes
	s = strings.ReplaceAll(s, "\x00", "")

	// Remove control characters except newlines and tabs
	var result strings.Builder
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' || !unicode.IsControl(r) {
			result.WriteRune(r)
		}
	}

	return result.String()
}

// TruncateString truncates s to maxLen characters without splitting a rune.
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen])
}

// CleanField makes a client-supplied label safe to log and forward. It is not
// for form fields, which are validated as posted.
func CleanField(s string) string {
	return TruncateString(SanitizeString(s), MaxFieldLength)
}

// DetectContentType returns the declared type of an upload, sniffing the
// content only when the client did not declare a useful one.
func DetectContentType(declared string, data []byte) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != genericContentType {
		return declared
	}
	return mimetype.Detect(data).String()
}

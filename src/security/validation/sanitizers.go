package validation

import (
	"strings"
	"unicode"
)

// SanitizeForFormulaInjection prepends a single quote if the string starts
// with a formula character, so spreadsheet software treats exported CSV
// fields as text.
func SanitizeForFormulaInjection(s string) string {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) > 0 {
		firstChar := rune(trimmed[0])
		if firstChar == '=' || firstChar == '+' || firstChar == '-' || firstChar == '@' || firstChar == '\t' || firstChar == '\r' {
			return "'" + s
		}
	}
	return s
}

// StripUnprintable removes non-printable characters, allowing common
// whitespace like space, tab, newline, and carriage return.
func StripUnprintable(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		return -1
	}, s)
}

// AllowedClientContentTypes is a map for quick lookup of allowed
// client-declared MIME types on the CSV import endpoint.
var AllowedClientContentTypes = map[string]bool{
	"text/csv":                 true,
	"application/csv":          true,
	"application/vnd.ms-excel": true,
	"text/plain":               true,
	"application/octet-stream": true,
}

// ValidateClientContentType checks the Content-Type header provided by the
// client on a CSV upload.
func ValidateClientContentType(contentType string) error {
	base := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if !AllowedClientContentTypes[base] {
		return &ContentTypeError{ContentType: contentType}
	}
	return nil
}

type ContentTypeError struct {
	ContentType string
}

func (e *ContentTypeError) Error() string {
	return "client-declared file type '" + e.ContentType + "' is not allowed for CSV upload"
}

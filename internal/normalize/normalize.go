// Package normalize provides utilities for normalizing and sanitizing user input
// before it is stored.
package normalize

import (
	"errors"
	"regexp"
	"strings"
	"unicode"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/text/unicode/norm"
)

// ErrEmptyEmail is returned when an email address is blank.
var ErrEmptyEmail = errors.New("the email must be set")

// htmlTagPattern matches common HTML tags to detect if a string contains HTML.
var htmlTagPattern = regexp.MustCompile(`<(p|br|div|span|b|i|strong|em|a|ul|ol|li|h[1-6]|blockquote)[\s>/]`)

// Email normalizes an email address by lowercasing the domain part.
// The local part is left untouched: "Test2@Example.com" -> "Test2@example.com".
func Email(raw string) (string, error) {
	s := strings.TrimSpace(sanitizeString(raw))
	if s == "" {
		return "", ErrEmptyEmail
	}

	at := strings.LastIndex(s, "@")
	if at < 0 {
		return s, nil
	}
	return s[:at] + "@" + strings.ToLower(s[at+1:]), nil
}

// TagName canonicalizes a tag name: NFC normalization, trimmed, and runs of
// whitespace collapsed to a single space. Case is preserved.
func TagName(raw string) string {
	s := norm.NFC.String(sanitizeString(raw))
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// Title trims a work session title.
func Title(raw string) string {
	return strings.TrimSpace(norm.NFC.String(sanitizeString(raw)))
}

// Description converts HTML descriptions to Markdown and trims the result.
// Plain text is returned unchanged apart from trimming.
func Description(raw string) string {
	s := strings.TrimSpace(sanitizeString(raw))
	if s == "" || !containsHTML(s) {
		return s
	}

	markdown, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		return s
	}
	return strings.TrimSpace(markdown)
}

func containsHTML(s string) bool {
	return htmlTagPattern.MatchString(strings.ToLower(s))
}

// sanitizeString removes null bytes, which SQLite and JSON clients choke on.
func sanitizeString(s string) string {
	return strings.Map(func(r rune) rune {
		if r == 0 {
			return -1
		}
		return r
	}, s)
}

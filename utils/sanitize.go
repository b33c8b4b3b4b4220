package utils

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	sanitizer   = bluemonday.UGCPolicy()
	plainPolicy = bluemonday.StrictPolicy()

	boldPattern  = regexp.MustCompile(`\*\*(.+?)\*\*`)
	tokenPattern = regexp.MustCompile(`\[(?:GOAL|TITLE):[^\]]*\]`)
)

// Sanitize cleans HTML content to prevent XSS attacks.
func Sanitize(input string) string {
	return sanitizer.Sanitize(input)
}

// SanitizeText strips every tag and trims the result.
func SanitizeText(input string) string {
	return strings.TrimSpace(html.UnescapeString(plainPolicy.Sanitize(input)))
}

// RenderInsightHTML turns completion text into safe HTML: GOAL/TITLE markers are removed,
// **bold** becomes <strong>, newlines become <br>.
func RenderInsightHTML(text string) string {
	text = tokenPattern.ReplaceAllString(text, "")
	text = html.EscapeString(strings.TrimSpace(text))
	text = boldPattern.ReplaceAllString(text, "<strong>$1</strong>")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\n", "<br>")
	return sanitizer.Sanitize(text)
}

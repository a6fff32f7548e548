package logging

import (
	"regexp"
)

// RedactedText is the replacement text for sensitive data.
const RedactedText = "[REDACTED]"

var (
	// Bearer tokens: three base64url segments separated by dots.
	bearerPattern = regexp.MustCompile(`Bearer\s+[A-Za-z0-9-_]+\.[A-Za-z0-9-_]+\.[A-Za-z0-9-_]*`)

	// token=xxx style query or form parameters.
	tokenParamPattern = regexp.MustCompile(`(?i)(token|api[_-]?key|apikey)=[^;&\s]+`)

	// user:pass@host credentials embedded in URLs.
	urlCredsPattern = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@[^/\s]+`)
)

// SanitizeURL removes credentials and token parameters from a URL before it
// is logged.
func SanitizeURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	sanitized := urlCredsPattern.ReplaceAllString(rawURL, "://"+RedactedText+"@"+RedactedText)
	return tokenParamPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
}

// SanitizeError scrubs bearer tokens and credentials from an error message.
// Use this before logging any error from an HTTP round trip.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	sanitized := bearerPattern.ReplaceAllString(err.Error(), "Bearer "+RedactedText)
	sanitized = tokenParamPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	return urlCredsPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)
}

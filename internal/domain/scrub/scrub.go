// Package scrub redacts personally identifying data and secrets from free text
// before it is dispatched to experts or persisted.
package scrub

import "regexp"

// Replacement markers.
const (
	RedactedEmail = "[REDACTED_EMAIL]"
	RedactedURL   = "[REDACTED_URL]"
	RedactedKey   = "[REDACTED_KEY]"
)

type rule struct {
	re   *regexp.Regexp
	repl string
}

// Rules apply in order: emails before URLs so "user@www.example.com" is
// redacted as one email rather than a URL fragment.
var rules = []rule{
	{regexp.MustCompile(`[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+`), RedactedEmail},
	{regexp.MustCompile(`https?://\S+|www\.\S+`), RedactedURL},
	{regexp.MustCompile(`(?i)(?:api_key|secret|password)[:=]\s*\S+`), RedactedKey},
}

// Text returns s with emails, URLs and key/secret/password assignments redacted.
// Applying it twice yields the same result as applying it once.
func Text(s string) string {
	for _, r := range rules {
		s = r.re.ReplaceAllLiteralString(s, r.repl)
	}
	return s
}

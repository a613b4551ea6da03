// Package privacy scrubs logged prompts before they reach a model for
// profile maintenance.
//
// Two concerns: text the user explicitly marked private, and material
// that never belongs in a profile update regardless of marking
// (credentials, previously injected profile context).
package privacy

import (
	"regexp"
	"strings"
)

var (
	// privateSpanRegex matches <private>...</private> spans.
	privateSpanRegex = regexp.MustCompile(`(?s)<private>.*?</private>`)

	// profileContextRegex matches profile text recall itself injected
	// into an earlier prompt. Stripping it keeps the updater from
	// feeding its own output back into the next revision.
	profileContextRegex = regexp.MustCompile(`(?s)<profile>.*?</profile>`)

	// credentialRegexes match common secret shapes worth redacting
	// even without explicit private markers.
	credentialRegexes = []*regexp.Regexp{
		regexp.MustCompile(`\bsk-[A-Za-z0-9_-]{16,}\b`),                  // OpenAI-style API keys
		regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`),                       // AWS access key IDs
		regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{20,}\b`),             // GitHub tokens
		regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._~+/-]{20,}=*`),    // bearer tokens
		regexp.MustCompile(`(?i)\b(password|passwd|secret)\s*[:=]\s*\S+`), // key=value secrets
	}
)

// redactedPlaceholder replaces credential matches so the surrounding
// sentence still reads.
const redactedPlaceholder = "[redacted]"

// StripPrivateSpans removes all <private>...</private> content.
func StripPrivateSpans(text string) string {
	return privateSpanRegex.ReplaceAllString(text, "")
}

// StripProfileContext removes profile text recall injected into the prompt.
func StripProfileContext(text string) string {
	return profileContextRegex.ReplaceAllString(text, "")
}

// RedactCredentials replaces recognizable secrets with a placeholder.
func RedactCredentials(text string) string {
	for _, re := range credentialRegexes {
		text = re.ReplaceAllString(text, redactedPlaceholder)
	}
	return text
}

// IsEntirelyPrivate reports whether nothing remains once private spans
// are stripped.
func IsEntirelyPrivate(text string) bool {
	return strings.TrimSpace(StripPrivateSpans(text)) == ""
}

// Clean is the full scrub applied to a logged prompt before it is
// embedded in a profile-update instruction.
func Clean(text string) string {
	text = StripPrivateSpans(text)
	text = StripProfileContext(text)
	text = RedactCredentials(text)
	return strings.TrimSpace(text)
}

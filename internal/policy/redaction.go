package policy

import "regexp"

var (
	// "api key" shows up spoken with a space, and transcripts phrase
	// credentials conversationally ("my api key is ...").
	bearerPattern = regexp.MustCompile(`(?i)\b(bearer|token|api[ _-]?key)\b(?:\s+(?:is|was))?[:=\s]+[A-Za-z0-9_\-.]{8,}`)
	emailPattern  = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	cardPattern   = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
	phonePattern  = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
)

// RedactTranscript masks credentials and high-risk PII before a transcript is
// written to logs. The displayed transcript is never altered; this is for log
// output only.
func RedactTranscript(input string) (redacted string, changed bool) {
	out := input

	next := bearerPattern.ReplaceAllString(out, "[REDACTED_CREDENTIAL]")
	changed = changed || next != out
	out = next

	next = emailPattern.ReplaceAllString(out, "[REDACTED_EMAIL]")
	changed = changed || next != out
	out = next

	// Card redaction runs before phone so card numbers are not classified
	// as phone numbers.
	next = cardPattern.ReplaceAllString(out, "[REDACTED_CARD]")
	changed = changed || next != out
	out = next

	next = phonePattern.ReplaceAllString(out, "[REDACTED_PHONE]")
	changed = changed || next != out
	out = next

	return out, changed
}

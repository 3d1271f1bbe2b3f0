package auth

import "strings"

// BearerScheme is the literal, case sensitive prefix of a bearer credential.
const BearerScheme = "Bearer "

// ExtractBearer pulls a credential out of an Authorization header value.
// Absent, malformed and empty headers all yield ("", false).
func ExtractBearer(header string) (string, bool) {
	if !strings.HasPrefix(header, BearerScheme) {
		return "", false
	}
	token := strings.TrimSpace(header[len(BearerScheme):])
	if token == "" {
		return "", false
	}
	return token, true
}

// extractionReason tells a missing header apart from one with a foreign scheme.
func extractionReason(header string) DenyReason {
	if strings.TrimSpace(header) == "" {
		return ReasonMissingHeader
	}
	return ReasonMalformedScheme
}

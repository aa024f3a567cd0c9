package speech

import "strings"

// ResolveVoice picks the persona's own voice when it has one and falls back
// to the configured default otherwise.
func ResolveVoice(personaVoice, fallback string) string {
	if voice := strings.TrimSpace(personaVoice); voice != "" {
		return voice
	}
	return strings.TrimSpace(fallback)
}

package ai

import (
	"regexp"
	"strings"
)

// roleMarker matches the speaker prefix some models echo back from the transcript.
var roleMarker = regexp.MustCompile(`(?i)user:`)

// CleanResponse strips leaked "user:" markers, surrounding whitespace and one
// pair of wrapping double quotes from raw model output.
func CleanResponse(content string) string {
	// Removal can splice a new marker together ("useuser:r:"), so repeat until stable.
	for roleMarker.MatchString(content) {
		content = roleMarker.ReplaceAllString(content, "")
	}
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, `"`) {
		content = content[1:]
	}
	if strings.HasSuffix(content, `"`) {
		content = content[:len(content)-1]
	}
	return content
}

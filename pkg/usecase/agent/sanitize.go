package agent

import "strings"

// blockedPrefixes mark meta-commentary lines the user must never see.
var blockedPrefixes = []string{
	"analysis:",
	"thoughts:",
	"inner thoughts:",
	"inner monologue:",
	"plan:",
	"reflection:",
	"reasoning:",
	"assistant's plan:",
}

// sanitizeReply strips lines of accidental meta-commentary. Blank lines are
// kept as structural spacing. If every line is stripped the original text
// is returned trimmed, never an empty string in place of real content.
func sanitizeReply(reply string) string {
	var lines []string
	for _, raw := range strings.Split(reply, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			lines = append(lines, "")
			continue
		}
		lowered := strings.ToLower(line)
		blocked := false
		for _, prefix := range blockedPrefixes {
			if strings.HasPrefix(lowered, prefix) {
				blocked = true
				break
			}
		}
		if blocked {
			continue
		}
		if strings.HasPrefix(lowered, "[thinking") || strings.HasPrefix(lowered, "(thinking") {
			continue
		}
		lines = append(lines, raw)
	}
	sanitized := strings.TrimSpace(strings.Join(lines, "\n"))
	if sanitized != "" {
		return sanitized
	}
	return strings.TrimSpace(reply)
}

package generate

import "strings"

// FallbackReply is returned by Extract when the output holds no assistant turn.
const FallbackReply = "I couldn't generate a proper response."

// Extract isolates the reply from the executable's raw output, which echoes
// the whole prompt before the continuation. The text after the last
// assistant marker is returned with surrounding whitespace trimmed.
func Extract(raw string) string {
	reply, _ := extract(raw)
	return reply
}

// extract is Extract that also reports whether the marker was found.
func extract(raw string) (string, bool) {
	idx := strings.LastIndex(raw, AssistantMarker)
	if idx < 0 {
		return FallbackReply, false
	}
	return strings.TrimSpace(raw[idx+len(AssistantMarker):]), true
}

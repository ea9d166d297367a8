package generate

import (
	"strings"

	bitchat "github.com/Paranoid-AF/bitchat"
)

// AssistantMarker opens the assistant's turn at the end of every composed
// prompt. The executable continues from it, and Extract searches for it.
const AssistantMarker = "Assistant: "

// Transcript is the running conversation of one chat session.
// It starts with a single System turn and grows by a User turn followed by
// an Assistant turn per round.
type Transcript struct {
	turns []bitchat.Turn
}

// NewTranscript creates a transcript seeded with the given system message.
func NewTranscript(system string) *Transcript {
	return &Transcript{
		turns: []bitchat.Turn{{Speaker: bitchat.System, Text: system}},
	}
}

// AddUser appends a User turn.
func (t *Transcript) AddUser(text string) {
	t.turns = append(t.turns, bitchat.Turn{Speaker: bitchat.User, Text: text})
}

// AddAssistant appends an Assistant turn.
func (t *Transcript) AddAssistant(text string) {
	t.turns = append(t.turns, bitchat.Turn{Speaker: bitchat.Assistant, Text: text})
}

// DropLast removes the most recent turn unless only the System seed is left.
func (t *Transcript) DropLast() {
	if len(t.turns) > 1 {
		t.turns = t.turns[:len(t.turns)-1]
	}
}

// Reset discards every turn except the System seed.
func (t *Transcript) Reset() {
	t.turns = t.turns[:1]
}

// Len returns the number of turns, including the System seed.
func (t *Transcript) Len() int {
	return len(t.turns)
}

// Turns returns a copy of the turns in order.
func (t *Transcript) Turns() []bitchat.Turn {
	out := make([]bitchat.Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Compose flattens the whole transcript into one prompt ending with the
// open assistant marker.
func (t *Transcript) Compose() string {
	return compose(t.turns)
}

// ComposeSingle builds a one-turn prompt for a message with no prior context.
func ComposeSingle(message string) string {
	return compose([]bitchat.Turn{{Speaker: bitchat.User, Text: message}})
}

func compose(turns []bitchat.Turn) string {
	var sb strings.Builder
	for _, turn := range turns {
		sb.WriteString(string(turn.Speaker))
		sb.WriteString(": ")
		sb.WriteString(turn.Text)
		sb.WriteString("\n\n")
	}
	sb.WriteString(AssistantMarker)
	return sb.String()
}

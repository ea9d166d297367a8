package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/term"
)

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// printHeader writes the chat banner, clearing the screen first when clear is set.
func printHeader(w io.Writer, name, model string, clear bool) {
	if clear {
		fmt.Fprint(w, "\033[2J\033[H")
	}
	rule := strings.Repeat("=", 80)
	fmt.Fprintln(w, rule)
	if model != "" {
		fmt.Fprintf(w, "%s Chat Interface - %s\n", name, model)
	} else {
		fmt.Fprintf(w, "%s Chat Interface\n", name)
	}
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "Type 'exit' to quit the chat, '/clear' to start over.")
	fmt.Fprintln(w, strings.Repeat("-", 80))
}

// Round is one logged exchange of a chat session.
type Round struct {
	Timestamp time.Time `toml:"timestamp"`
	Input     string    `toml:"input"`
	Reply     string    `toml:"reply,omitempty"`
	Error     string    `toml:"error,omitempty"`
	// Turns is the transcript length after the round, System seed included.
	Turns int `toml:"turns"`
}

// RoundLog appends rounds to w as TOML [[round]] tables, so the whole log
// decodes as one document.
type RoundLog struct {
	w io.Writer
}

// NewRoundLog creates a log writing to w.
func NewRoundLog(w io.Writer) *RoundLog {
	return &RoundLog{w: w}
}

// Write appends a single round. A nil *RoundLog discards it.
func (l *RoundLog) Write(r Round) error {
	if l == nil {
		return nil
	}
	if _, err := fmt.Fprintf(l.w, "# %s\n", strings.Repeat("═", 60)); err != nil {
		return err
	}
	return toml.NewEncoder(l.w).Encode(map[string][]Round{"round": {r}})
}

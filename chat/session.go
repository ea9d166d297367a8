package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Paranoid-AF/bitchat/generate"
)

// Replier turns a composed prompt into a reply.
type Replier interface {
	Reply(ctx context.Context, prompt string) (string, error)
}

// Session is one terminal conversation. The transcript lives only as long
// as the session.
type Session struct {
	engine     Replier
	transcript *generate.Transcript
	name       string
	greeting   string
	out        io.Writer
	log        *RoundLog
}

// NewSession creates a session whose transcript is seeded with system.
// name labels the assistant's lines.
func NewSession(engine Replier, system, name string, out io.Writer) *Session {
	return &Session{
		engine:     engine,
		transcript: generate.NewTranscript(system),
		name:       name,
		greeting:   fmt.Sprintf("Hello! I'm %s. How can I help you today?", name),
		out:        out,
	}
}

// SetGreeting replaces the assistant's opening line.
func (s *Session) SetGreeting(greeting string) {
	s.greeting = greeting
}

// SetLog records every round to l.
func (s *Session) SetLog(l *RoundLog) {
	s.log = l
}

// Run reads user lines from in until "exit" (any case), end of input, or
// ctx is done. A failed round is reported to the user and the loop continues.
func (s *Session) Run(ctx context.Context, in io.Reader) error {
	lines, readErr, done := readLines(in)
	defer close(done)

	fmt.Fprintf(s.out, "%s: %s\n", s.name, s.greeting)

	for {
		fmt.Fprint(s.out, "\nYou: ")

		var input string
		var ok bool
		select {
		case <-ctx.Done():
			fmt.Fprintln(s.out)
			return nil
		case input, ok = <-lines:
		}
		if !ok {
			break
		}

		switch strings.ToLower(strings.TrimSpace(input)) {
		case "exit":
			fmt.Fprintf(s.out, "\nThank you for chatting with %s. Goodbye!\n", s.name)
			return nil
		case "/clear":
			s.transcript.Reset()
			fmt.Fprintln(s.out, "\nConversation cleared.")
			continue
		}

		fmt.Fprintf(s.out, "\n%s is thinking...\n", s.name)
		reply, err := s.Round(ctx, input)
		if err != nil {
			if ctx.Err() != nil {
				fmt.Fprintln(s.out)
				return nil
			}
			fmt.Fprintf(s.out, "\n%s: Sorry, I couldn't generate a response.\n", s.name)
			continue
		}
		fmt.Fprintf(s.out, "\n%s: %s\n", s.name, reply)
	}

	fmt.Fprintln(s.out)
	if err := <-readErr; err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}

// readLines scans in on its own goroutine so the session can also watch for
// cancellation. Closing done stops the reader at its next line.
func readLines(in io.Reader) (<-chan string, <-chan error, chan struct{}) {
	lines := make(chan string)
	readErr := make(chan error, 1)
	done := make(chan struct{})

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		readErr <- scanner.Err()
	}()

	return lines, readErr, done
}

// Round sends input with the whole conversation so far and records the
// reply. On failure the user turn is withdrawn so the transcript keeps
// alternating between user and assistant.
func (s *Session) Round(ctx context.Context, input string) (string, error) {
	s.transcript.AddUser(input)

	reply, err := s.engine.Reply(ctx, s.transcript.Compose())
	if err != nil {
		slog.Info("generation failed", "error", err)
		s.transcript.DropLast()
	} else {
		s.transcript.AddAssistant(reply)
	}

	entry := Round{
		Timestamp: time.Now(),
		Input:     input,
		Reply:     reply,
		Turns:     s.transcript.Len(),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if logErr := s.log.Write(entry); logErr != nil {
		slog.Warn("failed to write round log", "error", logErr)
	}

	return reply, err
}

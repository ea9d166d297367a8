// Package bitchat defines the shared types for the bitchat front-ends.
// The HTTP server exchanges GenerateRequest/GenerateResponse as JSON; the
// terminal chat keeps its conversation as a sequence of Turns.
package bitchat

// Speaker labels one turn of a conversation.
type Speaker string

const (
	System    Speaker = "System"
	User      Speaker = "User"
	Assistant Speaker = "Assistant"
)

// Turn is one entry of a conversation transcript.
type Turn struct {
	Speaker Speaker `json:"speaker" toml:"speaker"`
	Text    string  `json:"text" toml:"text"`
}

// GenerateRequest is the body of POST /generate.
type GenerateRequest struct {
	// Prompt is the user's message. It is used as a single turn; the server
	// keeps no memory of earlier requests.
	Prompt string `json:"prompt"`
}

// GenerateResponse is returned from POST /generate.
type GenerateResponse struct {
	// Response is the extracted assistant reply. Generation failures are
	// reported here as prose with status 200.
	Response string `json:"response"`
	// Error is set only when the request itself could not be understood.
	Error *Error `json:"error,omitempty"`
}

// Error describes a request-level error returned to the HTTP client.
type Error struct {
	// Code is a machine-readable error identifier (e.g. "invalid_request").
	Code string `json:"code"`
	// Message is a human-readable error description.
	Message string `json:"message"`
}

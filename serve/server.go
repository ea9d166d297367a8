package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/semaphore"

	bitchat "github.com/Paranoid-AF/bitchat"
	"github.com/Paranoid-AF/bitchat/generate"
)

// errorReply is sent with status 200 when generation fails.
const errorReply = "Sorry, there was an error processing your request."

const maxBodyBytes = 1 << 20

// statusClientClosedRequest marks requests abandoned by the client. Nothing
// reaches the client; the code only feeds the request log.
const statusClientClosedRequest = 499

// Replier turns a composed prompt into a reply.
type Replier interface {
	Reply(ctx context.Context, prompt string) (string, error)
}

// Options configures a Server.
type Options struct {
	// StaticDir is served for GET requests. Empty disables static files.
	StaticDir string
	// MaxConcurrent bounds in-flight generations. Values below 1 mean 1.
	MaxConcurrent int
	// CacheTTL enables the reply cache when positive. Repeated prompts then
	// get the stored reply rather than a fresh sample.
	CacheTTL time.Duration
}

// Server answers POST /generate and serves static files.
type Server struct {
	engine  Replier
	sem     *semaphore.Weighted
	cache   *ReplyCache
	static  http.Handler
	handler http.Handler
}

// NewServer creates a server backed by engine.
func NewServer(engine Replier, opts Options) *Server {
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	s := &Server{
		engine: engine,
		sem:    semaphore.NewWeighted(int64(maxConcurrent)),
		cache:  NewReplyCache(opts.CacheTTL),
	}
	if opts.StaticDir != "" {
		s.static = http.FileServer(http.Dir(opts.StaticDir))
	}
	s.handler = withRequestLogging(http.HandlerFunc(s.route))
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Close releases the reply cache.
func (s *Server) Close() {
	s.cache.Close()
}

func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodOptions:
		setCORSHeaders(w.Header())
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPost && r.URL.Path == "/generate":
		s.handleGenerate(w, r)
	case (r.Method == http.MethodGet || r.Method == http.MethodHead) && s.static != nil:
		s.static.ServeHTTP(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := loggerFrom(ctx)

	var req bitchat.GenerateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		logger.Warn("invalid request", "error", err)
		writeJSON(w, http.StatusBadRequest, bitchat.GenerateResponse{
			Error: &bitchat.Error{
				Code:    "invalid_request",
				Message: "request body must be a JSON object with a prompt field",
			},
		})
		return
	}

	prompt := generate.ComposeSingle(req.Prompt)
	logger.Debug("prompt", "text", prompt)

	if reply, ok := s.cache.Get(prompt); ok {
		logger.Debug("reply cache hit")
		writeJSON(w, http.StatusOK, bitchat.GenerateResponse{Response: reply})
		return
	}

	// Wait for a generation slot; give up if the client goes away first.
	if err := s.sem.Acquire(ctx, 1); err != nil {
		logger.Info("client gone while waiting for a generation slot", "error", err)
		w.WriteHeader(statusClientClosedRequest)
		return
	}
	reply, err := s.engine.Reply(ctx, prompt)
	s.sem.Release(1)

	if err != nil {
		if ctx.Err() != nil {
			logger.Info("client gone during generation", "error", err)
			w.WriteHeader(statusClientClosedRequest)
			return
		}
		logger.Error("generation failed", "error", err)
		writeJSON(w, http.StatusOK, bitchat.GenerateResponse{Response: errorReply})
		return
	}

	if reply != generate.FallbackReply {
		s.cache.Set(prompt, reply)
	}
	writeJSON(w, http.StatusOK, bitchat.GenerateResponse{Response: reply})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

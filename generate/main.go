// Package generate turns prompts into replies by running an external
// text-generation executable and extracting the continuation it prints.
package generate

import (
	"context"
	"log/slog"

	bitchat "github.com/Paranoid-AF/bitchat"
)

// Engine composes the invocation and extraction steps shared by the
// terminal chat and the HTTP server.
type Engine struct {
	invoker   *Invoker
	maxTokens int
}

// NewEngine creates an engine from config. Relative paths in cfg are
// resolved against baseDir.
func NewEngine(cfg *bitchat.Config, baseDir string) *Engine {
	if cfg == nil {
		cfg = bitchat.DefaultConfig()
	}

	inv := NewInvoker(InvokerConfig{
		CLIPath:   bitchat.ResolveCLIPath(cfg, baseDir),
		ModelPath: bitchat.ResolveModelPath(cfg, baseDir),
		WorkDir:   cfg.Generation.WorkDir,
		Timeout:   bitchat.GenerationTimeout(cfg),
	})

	slog.Debug("engine configured",
		"cli", inv.cfg.CLIPath,
		"model", inv.cfg.ModelPath,
		"timeout", inv.cfg.Timeout,
	)

	return NewEngineWithInvoker(inv, cfg.Generation.MaxTokens)
}

// NewEngineWithInvoker creates an engine around an existing invoker.
func NewEngineWithInvoker(inv *Invoker, maxTokens int) *Engine {
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Engine{invoker: inv, maxTokens: maxTokens}
}

// Reply runs the executable on prompt and returns the extracted reply.
// A missing assistant marker is not an error: the fallback reply is returned.
// Invocation errors are returned unlogged; the caller decides how to report them.
func (e *Engine) Reply(ctx context.Context, prompt string) (string, error) {
	result, err := e.invoker.Invoke(ctx, NewRequest(prompt, e.maxTokens))
	if err != nil {
		return "", err
	}

	reply, ok := extract(result.RawOutput)
	if !ok {
		slog.Warn("no assistant marker in output", "bytes", len(result.RawOutput))
	}
	return reply, nil
}

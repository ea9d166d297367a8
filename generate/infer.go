package generate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"mvdan.cc/sh/v3/syntax"
)

// Sampling parameters passed on every invocation. They are not configurable.
const (
	DefaultMaxTokens     = 256
	DefaultTemperature   = 0.7
	DefaultTopP          = 0.95
	DefaultRepeatPenalty = 1.1
)

// Request is one generation call against the external executable.
type Request struct {
	Prompt        string
	MaxTokens     int
	Temperature   float64
	TopP          float64
	RepeatPenalty float64
}

// NewRequest creates a request for prompt with the fixed sampling parameters.
func NewRequest(prompt string, maxTokens int) *Request {
	return &Request{
		Prompt:        prompt,
		MaxTokens:     maxTokens,
		Temperature:   DefaultTemperature,
		TopP:          DefaultTopP,
		RepeatPenalty: DefaultRepeatPenalty,
	}
}

// Result holds the executable's full standard output.
type Result struct {
	RawOutput string
}

// InvocationError reports that the executable could not be run or exited
// non-zero. ExitCode is -1 when the process never produced an exit status.
type InvocationError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *InvocationError) Error() string {
	msg := "generation failed"
	if e.ExitCode >= 0 {
		msg = fmt.Sprintf("generation failed (exit status %d)", e.ExitCode)
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + lastLine(stderr)
	}
	return msg
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// InvokerConfig configures an Invoker. CLIPath and ModelPath should be absolute.
type InvokerConfig struct {
	// CLIPath is the generation executable.
	CLIPath string
	// ModelPath is the model file passed with -m.
	ModelPath string
	// WorkDir receives the temporary prompt files. Empty means the process
	// working directory.
	WorkDir string
	// Timeout bounds each invocation. Zero waits for as long as the
	// executable runs.
	Timeout time.Duration
}

// Invoker runs the external generation executable, one child process per call.
// It holds no mutable state and is safe for concurrent use.
type Invoker struct {
	cfg InvokerConfig
}

// NewInvoker creates an invoker from cfg.
func NewInvoker(cfg InvokerConfig) *Invoker {
	return &Invoker{cfg: cfg}
}

// Invoke writes the prompt to a temporary file, runs the executable against
// it, and returns its stdout. The temporary file is removed before Invoke
// returns, whatever the outcome.
func (inv *Invoker) Invoke(ctx context.Context, req *Request) (*Result, error) {
	if _, err := os.Stat(inv.cfg.ModelPath); err != nil {
		return nil, &InvocationError{ExitCode: -1, Err: fmt.Errorf("model file: %w", err)}
	}

	promptPath, err := inv.writePrompt(req.Prompt)
	if err != nil {
		return nil, &InvocationError{ExitCode: -1, Err: err}
	}
	defer removePrompt(promptPath)

	if inv.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.cfg.Timeout)
		defer cancel()
	}

	args := inv.args(req, promptPath)
	cmd := exec.CommandContext(ctx, inv.cfg.CLIPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Stop waiting on output pipes held open by orphaned grandchildren
	// once the process has been killed.
	cmd.WaitDelay = time.Second

	slog.Debug("invoking", "cmd", shellJoin(append([]string{inv.cfg.CLIPath}, args...)))
	start := time.Now()

	if err := cmd.Run(); err != nil {
		ierr := &InvocationError{ExitCode: -1, Stderr: stderr.String(), Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			ierr.ExitCode = exitErr.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			ierr.Err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		return nil, ierr
	}

	slog.Debug("invocation finished", "elapsed", time.Since(start), "stdout_bytes", stdout.Len())
	return &Result{RawOutput: stdout.String()}, nil
}

// args builds the executable's argument list.
func (inv *Invoker) args(req *Request, promptPath string) []string {
	args := []string{"-m", inv.cfg.ModelPath, "-f", promptPath}
	if req.MaxTokens > 0 {
		args = append(args, "-n", strconv.Itoa(req.MaxTokens))
	}
	return append(args,
		"--temp", formatFloat(req.Temperature),
		"--top-p", formatFloat(req.TopP),
		"--repeat-penalty", formatFloat(req.RepeatPenalty),
	)
}

// writePrompt stores prompt in a uniquely named file in the work directory.
func (inv *Invoker) writePrompt(prompt string) (string, error) {
	dir := inv.cfg.WorkDir
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, "prompt-"+uuid.NewString()+".txt")

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return "", fmt.Errorf("create prompt file: %w", err)
	}
	if _, err := f.WriteString(prompt); err != nil {
		f.Close()
		removePrompt(path)
		return "", fmt.Errorf("write prompt file: %w", err)
	}
	if err := f.Close(); err != nil {
		removePrompt(path)
		return "", fmt.Errorf("close prompt file: %w", err)
	}
	return path, nil
}

// removePrompt deletes a prompt file. Failures are logged and otherwise ignored.
func removePrompt(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Debug("failed to remove prompt file", "path", path, "error", err)
	}
}

// shellJoin renders args as a copy-pasteable shell command line.
func shellJoin(args []string) string {
	quoted := make([]string, len(args))
	for i, arg := range args {
		q, err := syntax.Quote(arg, syntax.LangBash)
		if err != nil {
			q = strconv.Quote(arg)
		}
		quoted[i] = q
	}
	return strings.Join(quoted, " ")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

package generate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// stub is a fake generation executable written to a temp dir. Each run
// records its arguments and the prompt file it was given.
type stub struct {
	dir     string
	cliPath string
	model   string
	workDir string
}

// newStub writes a /bin/sh script that runs body after recording its inputs.
// Within body, $prompt holds the prompt file path.
func newStub(t *testing.T, body string) *stub {
	t.Helper()
	dir := t.TempDir()
	s := &stub{
		dir:     dir,
		cliPath: filepath.Join(dir, "llama-cli"),
		model:   filepath.Join(dir, "model.gguf"),
		workDir: filepath.Join(dir, "work"),
	}

	script := fmt.Sprintf(`#!/bin/sh
echo "$@" > '%[1]s/args'
prompt=""
while [ $# -gt 0 ]; do
  case "$1" in
    -f) prompt="$2"; shift ;;
  esac
  shift
done
printf '%%s' "$prompt" > '%[1]s/prompt_path'
cp "$prompt" '%[1]s/prompt_copy'
%[2]s
`, dir, body)

	if err := os.WriteFile(s.cliPath, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.model, []byte("gguf"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(s.workDir, 0755); err != nil {
		t.Fatal(err)
	}
	return s
}

func (s *stub) invoker() *Invoker {
	return NewInvoker(InvokerConfig{
		CLIPath:   s.cliPath,
		ModelPath: s.model,
		WorkDir:   s.workDir,
	})
}

func (s *stub) read(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		t.Fatalf("stub did not record %s: %v", name, err)
	}
	return string(data)
}

// assertNoPromptFiles fails if any temporary prompt file is left behind.
func (s *stub) assertNoPromptFiles(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(s.workDir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "prompt-") {
			t.Errorf("temporary prompt file left behind: %s", e.Name())
		}
	}
}

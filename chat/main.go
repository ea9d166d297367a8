// Command bitchat-chat is an interactive terminal chat on top of the
// external generation executable. Each round sends the whole conversation
// so far; nothing is kept after the program exits.
//
// Usage:
//
//	./bitchat-chat                  # chat on the terminal
//	./bitchat-chat -log rounds.toml # also append every round to a TOML log
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	bitchat "github.com/Paranoid-AF/bitchat"
	defaults "github.com/Paranoid-AF/bitchat/default"
	"github.com/Paranoid-AF/bitchat/generate"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	verbose := flag.Bool("verbose", false, "log prompts and invocations to stderr")
	logPath := flag.String("log", "", "append each round to this TOML file")
	flag.Parse()

	if *showVersion {
		fmt.Println("bitchat-chat", Version)
		os.Exit(0)
	}

	_ = godotenv.Load()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := bitchat.LoadConfig()
	if err != nil {
		slog.Warn("failed to load config, using defaults", "error", err)
		cfg = bitchat.DefaultConfig()
	}

	baseDir := bitchat.ExecutableDir()
	for _, w := range bitchat.ValidateConfig(cfg, baseDir) {
		slog.Warn("config", "warning", w)
	}

	session := NewSession(
		generate.NewEngine(cfg, baseDir),
		defaults.SystemPrompt,
		cfg.Chat.AssistantName,
		os.Stdout,
	)
	if cfg.Chat.Greeting != "" {
		session.SetGreeting(cfg.Chat.Greeting)
	}

	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		session.SetLog(NewRoundLog(f))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	model := filepath.Base(bitchat.ResolveModelPath(cfg, baseDir))
	printHeader(os.Stdout, cfg.Chat.AssistantName, model, isTerminal(os.Stdout))

	if err := session.Run(ctx, os.Stdin); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

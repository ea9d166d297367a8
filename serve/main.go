// Command bitchat-serve exposes the generation pipeline over HTTP.
// POST /generate takes {"prompt": "..."} and answers {"response": "..."};
// other GET requests are served from the static directory.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	bitchat "github.com/Paranoid-AF/bitchat"
	"github.com/Paranoid-AF/bitchat/generate"
)

// Version is set at build time via -ldflags.
var Version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	verbose := flag.Bool("verbose", false, "log prompts and invocations")
	addr := flag.String("addr", "", "listen address (overrides config host/port)")
	flag.Parse()

	if *showVersion {
		fmt.Println("bitchat-serve", Version)
		os.Exit(0)
	}

	_ = godotenv.Load()

	level := slog.LevelInfo
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

	listenAddr := *addr
	if listenAddr == "" {
		listenAddr = bitchat.ResolveListenAddr(cfg)
	}

	srv := NewServer(generate.NewEngine(cfg, baseDir), Options{
		StaticDir:     bitchat.ResolveStaticDir(cfg, baseDir),
		MaxConcurrent: cfg.Server.MaxConcurrent,
		CacheTTL:      time.Duration(cfg.Server.CacheTTLSeconds) * time.Second,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting", "addr", listenAddr)
	err = run(ctx, listenAddr, srv)
	srv.Close()
	if err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// run serves h on addr until ctx is done, then shuts down gracefully.
func run(ctx context.Context, addr string, h http.Handler) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return serve(ctx, ln, h)
}

func serve(ctx context.Context, ln net.Listener, h http.Handler) error {
	httpSrv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("ready", "addr", ln.Addr().String())
		if err := httpSrv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

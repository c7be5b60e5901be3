// Command doodlectl replays a stroke script on a headless canvas, sends its
// commands to a running doodle server and writes the final canvas as PNG.
//
// Usage:
//
//	doodlectl -script apple.yaml -server http://localhost:3000 -out apple.png
//	doodlectl -script sketch.yaml -out sketch.png    # draw only, no server
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hazyhaar/doodle/canvas"
	"github.com/hazyhaar/doodle/editclient"
	"github.com/hazyhaar/doodle/internal/config"
	"github.com/hazyhaar/doodle/safe"
)

func main() {
	scriptPath := flag.String("script", "", "path to YAML stroke script")
	server := flag.String("server", "", "doodle server base URL (required when the script submits)")
	endpoint := flag.String("endpoint", "/edit2", "edit endpoint path")
	out := flag.String("out", "doodle.png", "output PNG path")
	timeout := flag.Duration("timeout", 2*time.Minute, "per-submit timeout")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	level, err := config.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *scriptPath == "" {
		fmt.Fprintln(os.Stderr, "usage: doodlectl -script <file> [-server <url>] [-out <file>]")
		os.Exit(2)
	}

	if *server != "" {
		if err := safe.ValidateHTTPURL(*server); err != nil {
			fmt.Fprintln(os.Stderr, "-server:", err)
			os.Exit(2)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *scriptPath, *server, *endpoint, *out, *timeout); err != nil {
		logger.Error("doodlectl: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, scriptPath, server, endpoint, out string, timeout time.Duration) error {
	sc, err := LoadScript(scriptPath)
	if err != nil {
		return err
	}

	opts := []canvas.Option{canvas.WithLogger(logger)}
	if server != "" {
		opts = append(opts, canvas.WithSubmitter(editclient.New(editclient.Config{
			BaseURL: server,
			Path:    endpoint,
			Timeout: timeout,
		})))
	}
	ed := canvas.New(opts...)
	defer ed.Close()

	if err := sc.Replay(ctx, ed, logger); err != nil {
		return err
	}

	png, err := ed.PNG()
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, png, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	logger.Info("canvas written", "path", out, "bytes", len(png))
	return nil
}

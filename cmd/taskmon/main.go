// Command taskmon is a terminal task manager: live CPU, memory, GPU, network,
// disk and process views, with one-shot JSON and NDJSON stream modes.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dicklesworthstone/taskmon/internal/config"
	"github.com/Dicklesworthstone/taskmon/internal/scheduler"
	"github.com/Dicklesworthstone/taskmon/internal/telemetry"
	"github.com/Dicklesworthstone/taskmon/internal/ui"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "taskmon:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.FromFlags(args)
	if err != nil {
		return err
	}

	if cfg.WriteConfig {
		if cfg.Path == "" {
			return errors.New("no config path; pass -config")
		}
		if err := config.Save(cfg, cfg.Path); err != nil {
			return err
		}
		fmt.Println("wrote", cfg.Path)
		return nil
	}

	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	host := telemetry.NewHost(logger.With("component", "telemetry"))
	if !cfg.GPU {
		host.DisableGPU()
	}
	sched := scheduler.New(host, cfg.Scheduler(), logger.With("component", "scheduler"))

	switch {
	case cfg.JSON:
		return oneShot(ctx, sched, os.Stdout)
	case cfg.JSONStream:
		return stream(ctx, sched, os.Stdout)
	}

	sched.Start(ctx)
	defer sched.Stop()
	return ui.RunTUI(sched, cfg)
}

// newLogger writes to the configured file, or to stderr in the JSON modes.
// The TUI owns the terminal, so without a file its logs are dropped.
func newLogger(cfg config.Config) (*slog.Logger, func(), error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, nil, err
	}
	var w io.Writer = io.Discard
	closeFn := func() {}
	switch {
	case cfg.LogFile != "":
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		closeFn = func() { _ = f.Close() }
	case cfg.JSON || cfg.JSONStream:
		w = os.Stderr
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), closeFn, nil
}

// oneShot polls twice so rate-based readings have a baseline, then prints
// the second snapshot.
func oneShot(ctx context.Context, sched *scheduler.Scheduler, w io.Writer) error {
	if err := sched.Poll(ctx); err != nil {
		return err
	}
	wait := sched.Config().UpdateInterval
	if wait > time.Second {
		wait = time.Second
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
	}
	if err := sched.Poll(ctx); err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(sched.Snapshot())
}

// stream writes one JSON line per cycle until ctx is cancelled.
func stream(ctx context.Context, sched *scheduler.Scheduler, w io.Writer) error {
	updates := sched.Subscribe()
	sched.Start(ctx)
	defer sched.Stop()

	enc := json.NewEncoder(w)
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap := <-updates:
			if err := enc.Encode(snap); err != nil {
				return err
			}
		}
	}
}

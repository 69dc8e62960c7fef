// Package ralphrunner supervises one invocation of the sandboxed
// coding agent: it launches the child (via a PTY in AFK mode, or with
// inherited stdio in interactive mode), formats its output to stdout,
// and watches for sentinel files that end the loop early.
package ralphrunner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/creack/pty"

	"github.com/fieldnotes/springfield/internal/ralphrunner/format"
)

// Config describes one child-process invocation. Output is not teed to
// a file here: when the stage loop runs this under AFK mode, it pipes
// this process's own stdout to the loop's log file one layer up, so a
// second writer inside this package would race the same path.
type Config struct {
	Command   string // binary to exec (RALPH_COMMAND override, or the real sandbox binary)
	Args      []string
	Dir       string
	AFK       bool
	LoopDir   string // directory sentinel files are watched in
	PollEvery time.Duration
}

// ExitReason distinguishes why Run returned.
type ExitReason int

const (
	ExitNormal ExitReason = iota
	ExitSentinelComplete
	ExitSignaled
)

// Result is what Run reports back to the stage loop.
type Result struct {
	ExitCode int
	Reason   ExitReason
}

// Run launches the child process per cfg and blocks until it exits,
// the context is cancelled, or a `.ralph-complete` sentinel appears.
func Run(ctx context.Context, cfg Config, log *slog.Logger) (*Result, error) {
	sentinelCtx, stopSentinel := context.WithCancel(ctx)
	defer stopSentinel()
	complete := make(chan struct{}, 1)
	pollEvery := cfg.PollEvery
	if pollEvery <= 0 {
		pollEvery = 200 * time.Millisecond
	}
	if cfg.LoopDir != "" {
		go watchSentinels(sentinelCtx, cfg.LoopDir, pollEvery, complete, log)
	}

	if cfg.AFK {
		return runAFK(ctx, cfg, complete, log)
	}
	return runInteractive(ctx, cfg, complete)
}

func runInteractive(ctx context.Context, cfg Config, complete chan struct{}) (*Result, error) {
	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	cmd.Dir = cfg.Dir
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start child: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-complete:
		_ = cmd.Process.Kill()
		return &Result{ExitCode: 0, Reason: ExitSentinelComplete}, nil
	case err := <-done:
		return resultFromWait(err, ctx)
	}
}

// runAFK allocates a PTY and puts the child in its own session so the
// sandboxed agent cannot steal the controlling terminal's foreground
// process group away from Ralph, while SIGINT still reaches Ralph.
func runAFK(ctx context.Context, cfg Config, complete chan struct{}, log *slog.Logger) (*Result, error) {
	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Dir = cfg.Dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return nil, fmt.Errorf("start child under pty: %w", err)
	}
	defer ptmx.Close()

	outDone := make(chan struct{})
	go teeFormatted(ptmx, outDone, log)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-complete:
		_ = cmd.Process.Kill()
		<-outDone
		return &Result{ExitCode: 0, Reason: ExitSentinelComplete}, nil
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-outDone
		return &Result{ExitCode: 130, Reason: ExitSignaled}, nil
	case err := <-done:
		<-outDone
		return resultFromWait(err, ctx)
	}
}

// teeFormatted reads raw PTY bytes line by line and writes each
// formatted line to stdout, with a carriage-return + clear-to-end-of-
// line prefix since the agent's own spinner writes directly to the
// tty. Nothing is written to a file here: in AFK mode the stage loop
// one layer up pipes this process's stdout into its own log file, so
// that log receives these formatted lines, not the raw stream.
func teeFormatted(r io.Reader, done chan<- struct{}, log *slog.Logger) {
	defer close(done)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		raw := scanner.Text()
		if line, ok := format.Line(raw); ok {
			fmt.Print("\r\x1b[K" + strings.ReplaceAll(line, "\n", "\n\r\x1b[K") + "\n")
		}
	}
}

func resultFromWait(err error, ctx context.Context) (*Result, error) {
	if ctx.Err() != nil {
		return &Result{ExitCode: 130, Reason: ExitSignaled}, nil
	}
	if err == nil {
		return &Result{ExitCode: 0, Reason: ExitNormal}, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &Result{ExitCode: exitErr.ExitCode(), Reason: ExitNormal}, nil
	}
	return nil, fmt.Errorf("wait for child: %w", err)
}

// watchSentinels polls loopDir for .ralph-complete (up to depth 2) and
// .ralph-ding, signalling complete and best-effort playing a ding sound
// for the latter.
func watchSentinels(ctx context.Context, loopDir string, pollEvery time.Duration, complete chan<- struct{}, log *slog.Logger) {
	ticker := time.NewTicker(pollEvery)
	defer ticker.Stop()
	dinged := map[string]bool{}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if findSentinel(loopDir, ".ralph-complete", 2) != "" {
				select {
				case complete <- struct{}{}:
				default:
				}
				return
			}
			if p := findSentinel(loopDir, ".ralph-ding", 2); p != "" && !dinged[p] {
				dinged[p] = true
				playDing(log)
			}
		}
	}
}

func findSentinel(root, name string, maxDepth int) string {
	var found string
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || found != "" {
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		if rel != "." && strings.Count(rel, string(filepath.Separator)) >= maxDepth {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && d.Name() == name {
			found = path
		}
		return nil
	})
	return found
}

// playDing best-effort plays an audible notification; failure (no
// afplay binary, headless CI) is logged, never fatal.
func playDing(log *slog.Logger) {
	cmd := exec.Command("afplay", "/System/Library/Sounds/Glass.aiff")
	if err := cmd.Run(); err != nil {
		log.Debug("ding notification unavailable", "error", err)
	}
}

package deploy

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// command runs a shell command in the given directory. The combined
// output goes to the debug log; on failure its tail is attached to
// the returned error, so operators see why the stage broke without
// digging through debug output.
func command(ctx context.Context, dir, cmdline string) error {
	cmd := exec.CommandContext(ctx, "sh", "-c", cmdline)
	cmd.Dir = dir

	out := &bytes.Buffer{}
	cmd.Stdout = out
	cmd.Stderr = out

	start := time.Now()
	err := cmd.Run()

	slog.DebugContext(ctx, "command finished",
		slog.String("cmd", cmdline),
		slog.String("dir", dir),
		slog.Duration("elapsed", time.Since(start)),
		slog.String("output", out.String()))

	if err != nil {
		return fmt.Errorf("%q: %w: %s", cmdline, err, tail(out.String(), 10))
	}

	return nil
}

// output runs a shell command and returns its trimmed stdout.
func output(ctx context.Context, dir, cmdline string) (string, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", cmdline)
	cmd.Dir = dir

	bts, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("%q: %w", cmdline, err)
	}

	return strings.TrimSpace(string(bts)), nil
}

func tail(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// shellQuote wraps the argument in single quotes for safe
// interpolation into remote command lines.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

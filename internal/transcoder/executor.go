package transcoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// outputFlags are appended to every invocation, after any mode or retry
// flags and before the output path.
var outputFlags = []string{
	"-c:v", "libx264",
	"-preset", "medium",
	"-crf", "23",
	"-profile:v", "high",
	"-level:v", "4.1",
	"-pix_fmt", "yuv420p",
	"-movflags", "+faststart",
	"-c:a", "aac",
	"-b:a", "192k",
}

const keyFlag = "-decryption_key"

// waitDelay is how long Wait keeps draining output after the process has
// been killed.
const waitDelay = 5 * time.Second

// RunResult is what a Runner reports about a finished process.
type RunResult struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Runner starts a process, waits for it and captures both output streams.
// A non-zero exit is reported in RunResult, not as an error; the error is
// reserved for processes that could not be started.
type Runner interface {
	Run(ctx context.Context, name string, args []string) (RunResult, error)
}

// ExecRunner runs processes with os/exec.
type ExecRunner struct{}

// Run implements Runner. Both streams are collected into buffers, which
// os/exec drains completely before Wait returns.
func (ExecRunner) Run(ctx context.Context, name string, args []string) (RunResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	// Bound the wait for pipes still held by children after a kill.
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := RunResult{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil || errors.Is(err, exec.ErrWaitDelay) {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// -1 when the process was killed by a signal
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	return res, err
}

// Executor runs single FFmpeg attempts.
type Executor struct {
	FFmpegPath string
	Runner     Runner
	// AttemptTimeout bounds one invocation; zero means no limit.
	AttemptTimeout time.Duration
}

// BuildArgs returns the full argument vector, executable first.
func (e *Executor) BuildArgs(mode Mode, req Request, extra []string) []string {
	args := make([]string, 0, 8+len(extra)+len(outputFlags))
	args = append(args, e.FFmpegPath, "-y")
	if mode.decrypts() && req.DecryptionKey != "" {
		args = append(args, keyFlag, req.DecryptionKey)
	}
	args = append(args, "-i", mode.InputRef(req.InputPath))
	args = append(args, extra...)
	args = append(args, outputFlags...)
	return append(args, req.OutputPath)
}

// Run performs one attempt. A failed conversion is returned as data in the
// AttemptResult. The error is non-nil only when FFmpeg could not be started
// (*EnvironmentError) or ctx was canceled.
func (e *Executor) Run(ctx context.Context, mode Mode, req Request, extra []string) (AttemptResult, error) {
	args := e.BuildArgs(mode, req, extra)

	attemptCtx, cancel := ctx, context.CancelFunc(func() {})
	if e.AttemptTimeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, e.AttemptTimeout)
	}
	defer cancel()

	runner := e.Runner
	if runner == nil {
		runner = ExecRunner{}
	}

	start := time.Now()
	res, err := runner.Run(attemptCtx, args[0], args[1:])

	result := AttemptResult{
		Mode:     mode,
		Args:     args,
		ExitCode: res.ExitCode,
		Stdout:   decodeOutput(res.Stdout),
		Stderr:   decodeOutput(res.Stderr),
		Duration: time.Since(start),
	}

	if ctx.Err() != nil {
		return result, fmt.Errorf("attempt aborted: %w", ctx.Err())
	}

	if attemptCtx.Err() != nil && (err != nil || result.ExitCode != 0) {
		result.TimedOut = true
		result.ExitCode = -1
	} else if err != nil {
		return result, &EnvironmentError{Executable: args[0], Err: err}
	}

	result.OutputExists = fileExists(req.OutputPath)
	return result, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// decodeOutput converts captured process output to text, replacing
// ill-formed UTF-8 with U+FFFD instead of failing.
func decodeOutput(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	out, _, err := transform.Bytes(runes.ReplaceIllFormed(), b)
	if err != nil {
		return strings.ToValidUTF8(string(b), string(utf8.RuneError))
	}
	return string(out)
}

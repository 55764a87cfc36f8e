package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"video-converter/internal/naming"
	"video-converter/internal/startup"
	"video-converter/internal/transcoder"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type converter interface {
	Convert(ctx context.Context, req transcoder.Request) (*transcoder.Outcome, error)
}

type runOptions struct {
	key       string
	keyPrompt bool
	outputDir string
	ffmpeg    string
	timeout   time.Duration
	logFile   string
	jsonOut   bool
}

// runSummary is printed with --json.
type runSummary struct {
	Success  bool   `json:"success"`
	Input    string `json:"input"`
	Output   string `json:"output,omitempty"`
	Message  string `json:"message,omitempty"`
	Attempts int    `json:"attempts"`
	Rounds   int    `json:"rounds"`
	Duration string `json:"duration"`
	Log      string `json:"log"`
}

func newRunCommand() *cobra.Command {
	opts := runOptions{}

	cmd := &cobra.Command{
		Use:   "run <input>",
		Short: "Convert one file to MP4",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.keyPrompt {
				if opts.key != "" {
					return errors.New("--key and --key-prompt are mutually exclusive")
				}
				key, err := promptKey(os.Stdin, cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				opts.key = key
			}

			if opts.ffmpeg == "" {
				opts.ffmpeg = defaultFFmpeg()
			}
			trans := transcoder.New(transcoder.Options{
				FFmpegPath:     opts.ffmpeg,
				AttemptTimeout: opts.timeout,
			})
			defer trans.Cleanup()

			return runConversion(cmd.Context(), opts, args[0], trans, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.key, "key", "", "Decryption key for encrypted inputs")
	flags.BoolVar(&opts.keyPrompt, "key-prompt", false, "Read the decryption key from the terminal without echo")
	flags.StringVarP(&opts.outputDir, "output-dir", "o", "", "Directory for the converted file (default: next to the input)")
	flags.StringVar(&opts.ffmpeg, "ffmpeg", "", "FFmpeg executable (default: FFMPEG_PATH or the platform default)")
	flags.DurationVar(&opts.timeout, "timeout", 0, "Limit for a single FFmpeg attempt, 0 for none")
	flags.StringVar(&opts.logFile, "log-file", "", "Write the full attempt log to this file")
	flags.BoolVar(&opts.jsonOut, "json", false, "Print the result as JSON")

	return cmd
}

func runConversion(ctx context.Context, opts runOptions, input string, conv converter, stdout, stderr io.Writer) error {
	absInput, err := filepath.Abs(input)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	info, err := os.Stat(absInput)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("file does not exist: %s", absInput)
		}
		return fmt.Errorf("inspect file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", absInput)
	}

	stem, _, err := naming.SplitName(filepath.Base(absInput))
	if err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(absInput), err)
	}

	outDir := opts.outputDir
	if outDir == "" {
		outDir = filepath.Dir(absInput)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	reserver := naming.NewReserver()
	output, err := reserver.Reserve(outDir, stem, ".mp4")
	if err != nil {
		return err
	}
	defer reserver.Release(output)

	key := strings.TrimSpace(opts.key)

	fmt.Fprintf(stderr, "Converting %s (%s) -> %s\n", filepath.Base(absInput), humanize.IBytes(uint64(info.Size())), output)

	outcome, convErr := conv.Convert(ctx, transcoder.Request{
		InputPath:     absInput,
		OutputPath:    output,
		DecryptionKey: key,
	})
	if outcome == nil {
		outcome = &transcoder.Outcome{}
	}
	log := transcoder.Redact(outcome.Log(), key)

	if !outcome.Success {
		// A failed session may leave a partial file behind.
		if err := os.Remove(output); err != nil && !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(stderr, "Warning: failed to remove partial output: %v\n", err)
		}
	}

	if opts.logFile != "" {
		if err := os.WriteFile(opts.logFile, []byte(log), 0o600); err != nil {
			fmt.Fprintf(stderr, "Warning: failed to write log file: %v\n", err)
		}
	}

	if convErr != nil {
		if transcoder.IsEnvironmentError(convErr) {
			return fmt.Errorf("transcoder could not be started: %w", convErr)
		}
		return convErr
	}

	if opts.jsonOut {
		summary := runSummary{
			Success:  outcome.Success,
			Input:    absInput,
			Output:   outcome.OutputPath,
			Message:  outcome.Message,
			Attempts: len(outcome.Attempts()),
			Rounds:   len(outcome.Rounds),
			Duration: outcome.Duration.Round(time.Millisecond).String(),
			Log:      log,
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			return err
		}
	}

	if !outcome.Success {
		if !opts.jsonOut {
			fmt.Fprintln(stderr, log)
		}
		return outcome.Err()
	}

	if !opts.jsonOut {
		fmt.Fprintf(stdout, "Converted %s -> %s in %s (%d attempts)\n",
			filepath.Base(absInput), output, outcome.Duration.Round(time.Millisecond), len(outcome.Attempts()))
	}
	return nil
}

func promptKey(in *os.File, out io.Writer) (string, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("--key-prompt needs an interactive terminal")
	}

	fmt.Fprint(out, "Decryption key: ")
	key, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("reading key: %w", err)
	}
	return strings.TrimSpace(string(key)), nil
}

func defaultFFmpeg() string {
	if path := os.Getenv("FFMPEG_PATH"); path != "" {
		return path
	}
	return startup.DefaultFFmpegPath(runtime.GOOS, func(path string) bool {
		_, err := os.Stat(path)
		return err == nil
	})
}

package transcoder

import (
	"fmt"
	"strings"
	"time"
)

// AttemptResult is the record of one FFmpeg invocation.
type AttemptResult struct {
	Round        int           `json:"round"`
	Attempt      int           `json:"attempt"`
	Mode         Mode          `json:"mode"`
	Args         []string      `json:"args"`
	ExitCode     int           `json:"exitCode"`
	Stdout       string        `json:"stdout"`
	Stderr       string        `json:"stderr"`
	OutputExists bool          `json:"outputExists"`
	TimedOut     bool          `json:"timedOut,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// Succeeded is the combined postcondition: exit code 0 and the output file
// present. A stale file with a non-zero exit is a failure.
func (r AttemptResult) Succeeded() bool {
	return r.ExitCode == 0 && r.OutputExists
}

// CommandLine renders Args as a shell-like command line with the
// decryption key masked.
func (r AttemptResult) CommandLine() string {
	quoted := make([]string, len(r.Args))
	for i, arg := range r.Args {
		if i > 0 && r.Args[i-1] == keyFlag {
			quoted[i] = Redacted
			continue
		}
		quoted[i] = shellQuote(arg)
	}
	return strings.Join(quoted, " ")
}

// key returns the value passed with -decryption_key, if any.
func (r AttemptResult) key() string {
	for i := 0; i+1 < len(r.Args); i++ {
		if r.Args[i] == keyFlag {
			return r.Args[i+1]
		}
	}
	return ""
}

// Render formats the attempt for the diagnostic log.
func (r AttemptResult) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "--- Round %d, attempt %d: %s ---\n", r.Round, r.Attempt, r.Mode.Label())
	fmt.Fprintf(&b, "$ %s\n", r.CommandLine())
	if r.TimedOut {
		fmt.Fprintf(&b, "(killed after %s: attempt timeout exceeded)\n", r.Duration.Round(time.Millisecond))
	}
	fmt.Fprintf(&b, "exit code: %d, output file present: %v\n", r.ExitCode, r.OutputExists)
	key := r.key()
	fmt.Fprintf(&b, "\nSTDOUT:\n%s\n\nSTDERR:\n%s\n", Redact(r.Stdout, key), Redact(r.Stderr, key))
	return b.String()
}

// RoundResult is one pass over the selected modes with a fixed set of extra
// flags.
type RoundResult struct {
	Number     int             `json:"number"`
	ExtraFlags []string        `json:"extraFlags,omitempty"`
	Attempts   []AttemptResult `json:"attempts"`
	Success    bool            `json:"success"`
	// ExitCode is the exit code of the last attempt in the round.
	ExitCode int `json:"exitCode"`
}

// Render formats the round marker followed by every attempt in order.
func (r RoundResult) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== Round %d ===\n", r.Number)
	if len(r.ExtraFlags) > 0 {
		fmt.Fprintf(&b, "extra flags: %s\n", strings.Join(r.ExtraFlags, " "))
	}
	for _, a := range r.Attempts {
		b.WriteString("\n")
		b.WriteString(a.Render())
	}
	return b.String()
}

// Outcome is the result of a whole conversion session.
type Outcome struct {
	Success    bool          `json:"success"`
	OutputPath string        `json:"outputPath,omitempty"`
	Message    string        `json:"message,omitempty"`
	Rounds     []RoundResult `json:"rounds"`
	Duration   time.Duration `json:"duration"`
}

// Attempts returns every attempt across rounds in execution order.
func (o *Outcome) Attempts() []AttemptResult {
	var all []AttemptResult
	for _, r := range o.Rounds {
		all = append(all, r.Attempts...)
	}
	return all
}

// Log concatenates the rendered rounds in execution order.
func (o *Outcome) Log() string {
	parts := make([]string, 0, len(o.Rounds))
	for _, r := range o.Rounds {
		parts = append(parts, r.Render())
	}
	return strings.Join(parts, "\n\n")
}

// Err returns nil on success and an error wrapping ErrAllRoundsExhausted
// otherwise.
func (o *Outcome) Err() error {
	if o.Success {
		return nil
	}
	return fmt.Errorf("%w (%d attempts)", ErrAllRoundsExhausted, len(o.Attempts()))
}

// shellQuote single-quotes an argument when it contains characters a POSIX
// shell would interpret.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$`!*?[]{}()<>|&;#~") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Redacted replaces a decryption key in rendered logs.
const Redacted = "[REDACTED]"

// minRedactLen is the shortest secret Redact searches for in free text.
// Shorter keys would match round numbers, codec levels and bitrates.
const minRedactLen = 8

// Redact masks whole-token occurrences of secret in text, for logs that are
// persisted or shown to someone other than the submitter. An occurrence
// embedded in a longer alphanumeric run is left alone.
func Redact(text, secret string) string {
	if len(secret) < minRedactLen {
		return text
	}

	var b strings.Builder
	start := 0
	for {
		i := strings.Index(text[start:], secret)
		if i < 0 {
			b.WriteString(text[start:])
			return b.String()
		}
		i += start
		end := i + len(secret)
		b.WriteString(text[start:i])
		if (i == 0 || !isTokenByte(text[i-1])) && (end == len(text) || !isTokenByte(text[end])) {
			b.WriteString(Redacted)
		} else {
			b.WriteString(secret)
		}
		start = end
	}
}

func isTokenByte(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

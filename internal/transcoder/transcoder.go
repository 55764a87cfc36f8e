package transcoder

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"video-converter/internal/logging"
)

// MaxRounds bounds the top-level retries.
const MaxRounds = 2

// TimestampRepairFlags are added in round 2 for inputs with broken or
// missing timestamps.
var TimestampRepairFlags = []string{
	"-fflags", "+genpts",
	"-use_wallclock_as_timestamps", "1",
}

// Request describes one conversion. The caller owns InputPath and must have
// reserved OutputPath so that it does not exist yet.
type Request struct {
	InputPath     string
	OutputPath    string
	DecryptionKey string
}

// Observer receives attempt and session events. Implementations are provided
// by the metrics package to keep this package free of Prometheus.
type Observer interface {
	SessionStarted()
	ObserveAttempt(result AttemptResult)
	ObserveSession(outcome *Outcome, err error)
}

// Options configures a Transcoder.
type Options struct {
	FFmpegPath     string
	AttemptTimeout time.Duration
	// Runner defaults to ExecRunner.
	Runner   Runner
	Observer Observer
}

// Transcoder runs conversion sessions. It is safe for concurrent use; each
// Convert call owns its request exclusively.
type Transcoder struct {
	executor *Executor
	observer Observer

	root   context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	active map[uint64]string
	nextID uint64
}

// New creates a Transcoder.
func New(opts Options) *Transcoder {
	root, cancel := context.WithCancel(context.Background())
	return &Transcoder{
		executor: &Executor{
			FFmpegPath:     opts.FFmpegPath,
			Runner:         opts.Runner,
			AttemptTimeout: opts.AttemptTimeout,
		},
		observer: opts.Observer,
		root:     root,
		cancel:   cancel,
		active:   make(map[uint64]string),
	}
}

// FFmpegPath returns the configured executable.
func (t *Transcoder) FFmpegPath() string {
	return t.executor.FFmpegPath
}

// Convert runs up to two rounds of the mode search and returns the outcome.
//
// A conversion that fails in both rounds is not an error: the outcome has
// Success=false, Message=FailureMessage and the full log. The error is
// non-nil only for an *EnvironmentError or a canceled context; the partial
// outcome is returned alongside it.
func (t *Transcoder) Convert(ctx context.Context, req Request) (*Outcome, error) {
	if req.InputPath == "" || req.OutputPath == "" {
		return nil, errors.New("transcoder: input and output paths are required")
	}

	ctx, done := t.track(ctx, req.InputPath)
	defer done()

	if t.observer != nil {
		t.observer.SessionStarted()
	}

	start := time.Now()
	modes := SelectModes(req.InputPath, req.DecryptionKey != "")
	outcome := &Outcome{}

	logging.Debug("Converting %s -> %s (modes: %v)", req.InputPath, req.OutputPath, modes)

	for number := 1; number <= MaxRounds; number++ {
		var extra []string
		if number > 1 {
			extra = TimestampRepairFlags
		}

		round, err := t.runRound(ctx, number, modes, req, extra)
		outcome.Rounds = append(outcome.Rounds, round)
		if err != nil {
			outcome.Duration = time.Since(start)
			t.observeSession(outcome, err)
			return outcome, err
		}
		if round.Success {
			outcome.Success = true
			outcome.OutputPath = req.OutputPath
			break
		}
		if number < MaxRounds {
			logging.Info("Round %d failed for %s (exit %d), retrying with timestamp repair", number, req.InputPath, round.ExitCode)
		}
	}

	if !outcome.Success {
		outcome.Message = FailureMessage
		logging.Warn("Conversion of %s failed after %d attempts", req.InputPath, len(outcome.Attempts()))
	}
	outcome.Duration = time.Since(start)
	t.observeSession(outcome, nil)
	return outcome, nil
}

// runRound tries each mode in order and stops at the first attempt that
// exits 0 and leaves the output file behind.
func (t *Transcoder) runRound(ctx context.Context, number int, modes []Mode, req Request, extra []string) (RoundResult, error) {
	round := RoundResult{Number: number, ExtraFlags: extra, ExitCode: 1}

	for i, mode := range modes {
		result, err := t.executor.Run(ctx, mode, req, extra)
		result.Round = number
		result.Attempt = i + 1

		if err != nil {
			if !IsEnvironmentError(err) {
				round.Attempts = append(round.Attempts, result)
			}
			return round, err
		}

		round.Attempts = append(round.Attempts, result)
		round.ExitCode = result.ExitCode
		if t.observer != nil {
			t.observer.ObserveAttempt(result)
		}

		logging.Debug("Round %d attempt %d (%s): exit %d, output present %v, %v",
			number, result.Attempt, mode, result.ExitCode, result.OutputExists, result.Duration.Round(time.Millisecond))

		if result.Succeeded() {
			round.Success = true
			return round, nil
		}
	}

	return round, nil
}

func (t *Transcoder) observeSession(outcome *Outcome, err error) {
	if t.observer != nil {
		t.observer.ObserveSession(outcome, err)
	}
}

// track registers an in-flight session and ties its context to the
// transcoder's lifetime so Cleanup can stop it.
func (t *Transcoder) track(ctx context.Context, input string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(t.root, cancel)

	t.mu.Lock()
	t.nextID++
	id := t.nextID
	t.active[id] = input
	t.mu.Unlock()

	return ctx, func() {
		stop()
		cancel()
		t.mu.Lock()
		delete(t.active, id)
		t.mu.Unlock()
	}
}

// Active returns the inputs of the sessions currently running.
func (t *Transcoder) Active() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	inputs := make([]string, 0, len(t.active))
	for _, input := range t.active {
		inputs = append(inputs, input)
	}
	sort.Strings(inputs)
	return inputs
}

// Cleanup stops all running sessions; their FFmpeg processes are killed.
// Sessions started afterwards are canceled immediately.
func (t *Transcoder) Cleanup() {
	for _, input := range t.Active() {
		logging.Info("Stopping transcoding session for: %s", input)
	}
	t.cancel()
}

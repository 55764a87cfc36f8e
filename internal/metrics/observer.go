package metrics

import (
	"context"
	"errors"
	"strconv"

	"video-converter/internal/transcoder"
)

// transcoderObserver implements transcoder.Observer using the Prometheus
// metrics declared in this package.
type transcoderObserver struct{}

// NewTranscoderObserver creates an observer that records attempt and session
// metrics into the collectors declared in metrics.go.
func NewTranscoderObserver() transcoder.Observer {
	return &transcoderObserver{}
}

func (o *transcoderObserver) SessionStarted() {
	ConversionsInProgress.Inc()
}

func (o *transcoderObserver) ObserveAttempt(r transcoder.AttemptResult) {
	AttemptsTotal.WithLabelValues(string(r.Mode), strconv.Itoa(r.Round), AttemptResultLabel(r)).Inc()
	AttemptDuration.WithLabelValues(string(r.Mode)).Observe(r.Duration.Seconds())
}

func (o *transcoderObserver) ObserveSession(outcome *transcoder.Outcome, err error) {
	ConversionsInProgress.Dec()

	status := SessionStatus(outcome, err)
	ConversionsTotal.WithLabelValues(status).Inc()
	if outcome != nil {
		ConversionDuration.WithLabelValues(status).Observe(outcome.Duration.Seconds())
		if len(outcome.Rounds) > 0 {
			ConversionRounds.Observe(float64(len(outcome.Rounds)))
		}
	}
}

// AttemptResultLabel is the result label for one attempt.
func AttemptResultLabel(r transcoder.AttemptResult) string {
	switch {
	case r.TimedOut:
		return "timeout"
	case r.Succeeded():
		return "success"
	default:
		return "failure"
	}
}

// SessionStatus is the status label for a finished session. It matches the
// status stored in conversion history.
func SessionStatus(outcome *transcoder.Outcome, err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case err != nil:
		return "error"
	case outcome != nil && outcome.Success:
		return "succeeded"
	default:
		return "failed"
	}
}

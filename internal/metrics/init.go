package metrics

import (
	"strconv"

	"video-converter/internal/transcoder"
)

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	statuses := []string{"succeeded", "failed", "error", "canceled"}
	for _, status := range statuses {
		ConversionsTotal.WithLabelValues(status)
		ConversionDuration.WithLabelValues(status)
		HistoryConversions.WithLabelValues(status)
	}

	modes := []transcoder.Mode{transcoder.ModePlain, transcoder.ModeCENC, transcoder.ModeTSCrypto}
	for _, mode := range modes {
		AttemptDuration.WithLabelValues(string(mode))
		for round := 1; round <= transcoder.MaxRounds; round++ {
			for _, result := range []string{"success", "failure", "timeout"} {
				AttemptsTotal.WithLabelValues(string(mode), strconv.Itoa(round), result)
			}
		}
	}

	for _, status := range []string{"success", "error_extract", "error_decode", "error_encode"} {
		PosterGenerationsTotal.WithLabelValues(status)
	}

	for _, file := range []string{"main", "wal", "shm"} {
		DBSizeBytes.WithLabelValues(file)
	}

	for _, op := range []string{"initialize_schema", "record", "get", "list", "stats"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}
}

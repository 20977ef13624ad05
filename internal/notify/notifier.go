// Package notify delivers the end-of-batch summary to whoever asked for the
// run.
package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/facturaIA/invoice-report-service/internal/pipeline"
)

// Notifier receives the finished batch result. Implementations must not
// mutate it.
type Notifier interface {
	BatchFinished(ctx context.Context, result *pipeline.BatchResult) error
}

// LogNotifier writes the batch summary to the log. It is the default sink
// when no external channel is configured.
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log.With().Str("component", "notify").Logger()}
}

// BatchFinished logs one line per processed file plus the batch counters.
func (n *LogNotifier) BatchFinished(_ context.Context, result *pipeline.BatchResult) error {
	for _, line := range result.Summary.Lines() {
		n.log.Info().Str("batchId", result.BatchID.String()).Msg(line)
	}
	return nil
}

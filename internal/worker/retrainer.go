package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// InlineRetrainer runs retrain requests in-process, for deployments
// without a message broker. The job runs in the background; the caller
// gets a job ID back immediately.
type InlineRetrainer struct {
	job     *RefreshJob
	timeout time.Duration
	logger  zerolog.Logger
}

// NewInlineRetrainer creates an in-process retrainer around the job.
func NewInlineRetrainer(job *RefreshJob, timeout time.Duration, logger zerolog.Logger) *InlineRetrainer {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &InlineRetrainer{
		job:     job,
		timeout: timeout,
		logger:  logger,
	}
}

// RequestRetrain starts a background retrain run and returns its job ID.
func (r *InlineRetrainer) RequestRetrain(_ context.Context, cities []string) (string, error) {
	jobID := "job_" + uuid.New().String()[:8]

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		result := r.job.RunCities(ctx, cities)
		r.logger.Info().
			Str("job_id", jobID).
			Int("trained", result.Trained).
			Int("failed", result.Failed).
			Msg("inline retrain completed")
	}()

	return jobID, nil
}

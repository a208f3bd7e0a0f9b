package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"whatsapp-course-delivery/internal/domain/ports/repository"
	"whatsapp-course-delivery/internal/infra/metrics"
)

// RetentionSweeper removes aged-out terminal job history and expired
// auxiliary records. Live jobs and the message log are never touched, so
// nothing referenced by an active scheduling run can be deleted.
type RetentionSweeper struct {
	jobs   repository.JobRepository
	creds  repository.CredentialStore
	window time.Duration
	keep   int
	log    *zerolog.Logger
}

func NewRetentionSweeper(
	jobs repository.JobRepository,
	creds repository.CredentialStore,
	window time.Duration,
	keep int,
	logger *zerolog.Logger,
) *RetentionSweeper {
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}
	if keep <= 0 {
		keep = 5
	}
	compLog := logger.With().Str("component", "RetentionSweeper").Logger()
	return &RetentionSweeper{jobs: jobs, creds: creds, window: window, keep: keep, log: &compLog}
}

// Sweep runs one retention pass. Intended to be driven by cron.
func (w *RetentionSweeper) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-w.window)

	removed, err := w.jobs.SweepTerminal(ctx, cutoff, w.keep)
	if err != nil {
		w.log.Error().Err(err).Msg("job sweep failed")
	} else if removed > 0 {
		metrics.AddSwept("jobs", removed)
		w.log.Info().Int("count", removed).Msg("terminal jobs swept")
	}

	expired, err := w.creds.DeleteExpired(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("credential sweep failed")
	} else if expired > 0 {
		metrics.AddSwept("credentials", expired)
		w.log.Info().Int("count", expired).Msg("expired credentials removed")
	}
}

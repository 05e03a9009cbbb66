package worker

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/drewmudry/chatshorts-api/models"
	"github.com/drewmudry/chatshorts-api/renders"
	"github.com/drewmudry/chatshorts-api/tasks"
	"github.com/rs/zerolog"
)

// Janitor runs the periodic housekeeping jobs of the scheduler.
type Janitor struct {
	Store      renders.Store
	Queue      tasks.Queue
	StuckAfter time.Duration
	Retention  time.Duration
	Logger     zerolog.Logger

	now func() time.Time
}

func NewJanitor(store renders.Store, queue tasks.Queue, stuckAfter, retention time.Duration, logger zerolog.Logger) *Janitor {
	return &Janitor{
		Store:      store,
		Queue:      queue,
		StuckAfter: stuckAfter,
		Retention:  retention,
		Logger:     logger.With().Str("component", "janitor").Logger(),
		now:        time.Now,
	}
}

// RequeueStuck pushes renders that sat in pending for longer than
// StuckAfter back onto the compose queue.
func (j *Janitor) RequeueStuck(ctx context.Context) (int, error) {
	stuck, err := j.Store.InStatusBefore(ctx, models.StatusPending, j.now().Add(-j.StuckAfter))
	if err != nil {
		return 0, err
	}

	n := 0
	for _, r := range stuck {
		if err := j.Queue.Push(ctx, tasks.QueueCompose, tasks.ComposeTaskPayload{RenderID: r.ID}); err != nil {
			j.Logger.Error().Err(err).Uint("render_id", r.ID).Msg("failed to requeue render")
			continue
		}
		// touch so the next sweep does not requeue it again
		if err := j.Store.Update(ctx, r.ID, map[string]interface{}{"updated_at": j.now()}); err != nil {
			j.Logger.Warn().Err(err).Uint("render_id", r.ID).Msg("failed to touch requeued render")
		}
		n++
	}
	if n > 0 {
		j.Logger.Info().Int("count", n).Msg("requeued stuck renders")
	}
	return n, nil
}

// Sweep deletes the output files and records of finished renders older
// than Retention.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	old, err := j.Store.FinishedBefore(ctx, j.now().Add(-j.Retention))
	if err != nil {
		return 0, err
	}

	n := 0
	for _, r := range old {
		for _, path := range []string{r.OutputPath, r.EnhancedPath, r.SpedUpPath} {
			if path == "" {
				continue
			}
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				j.Logger.Warn().Err(err).Str("path", path).Msg("failed to remove output")
			}
		}
		if err := j.Store.Delete(ctx, r.ID); err != nil {
			j.Logger.Error().Err(err).Uint("render_id", r.ID).Msg("failed to delete render")
			continue
		}
		n++
	}
	if n > 0 {
		j.Logger.Info().Int("count", n).Msg("removed expired renders")
	}
	return n, nil
}

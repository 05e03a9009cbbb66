package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/drewmudry/chatshorts-api/failure"
	"github.com/drewmudry/chatshorts-api/models"
	"github.com/drewmudry/chatshorts-api/tasks"
)

// HandleCompose processes tasks from QueueCompose.
func (p *Processor) HandleCompose(ctx context.Context, payload string) error {
	var task tasks.ComposeTaskPayload
	if err := json.Unmarshal([]byte(payload), &task); err != nil {
		return err
	}

	render, err := p.Store.Get(ctx, task.RenderID)
	if err != nil {
		return err
	}
	if render.Status != models.StatusPending {
		p.logger.Warn().Uint("render_id", render.ID).Str("status", render.Status).Msg("render is not pending, skipping")
		return nil
	}
	logger := p.logger.With().Uint("render_id", render.ID).Str("public_id", render.PublicID).Logger()

	if err := p.setStatus(ctx, render.ID, models.StatusComposing); err != nil {
		return err
	}

	runCtx := ctx
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	res, err := p.Pipeline.Generate(runCtx, render.PublicID, render.Messages, render.Header)
	if err != nil {
		// shutdown leaves the render pending for the scheduler to requeue
		if ctx.Err() != nil {
			if serr := p.setStatus(context.Background(), render.ID, models.StatusPending); serr != nil {
				logger.Error().Err(serr).Msg("failed to return interrupted render to pending")
			}
			return err
		}
		return p.fail(ctx, render, err)
	}
	logger.Info().Str("output", res.OutputPath).Int("steps", res.Steps).Int("skipped", res.Skipped).Msg("render composed")

	err = p.Store.Update(ctx, render.ID, map[string]interface{}{
		"status":      models.StatusPendingPostprocess,
		"step_count":  res.Steps,
		"duration":    res.Duration,
		"output_path": res.OutputPath,
	})
	if err != nil {
		return err
	}

	if err := p.Enqueue(ctx, tasks.QueuePostprocess, tasks.PostprocessTaskPayload{RenderID: render.ID}); err != nil {
		return p.fail(ctx, render, err)
	}
	return nil
}

// HandlePostprocess processes tasks from QueuePostprocess.
func (p *Processor) HandlePostprocess(ctx context.Context, payload string) error {
	var task tasks.PostprocessTaskPayload
	if err := json.Unmarshal([]byte(payload), &task); err != nil {
		return err
	}

	render, err := p.Store.Get(ctx, task.RenderID)
	if err != nil {
		return err
	}
	if render.Status != models.StatusPendingPostprocess {
		p.logger.Warn().Uint("render_id", render.ID).Str("status", render.Status).Msg("render is not awaiting post-processing, skipping")
		return nil
	}

	if err := p.setStatus(ctx, render.ID, models.StatusPostprocessing); err != nil {
		return err
	}

	res, err := p.Pipeline.PostProcess(ctx, render.PublicID, render.OutputPath)
	if err != nil {
		if ctx.Err() != nil {
			if serr := p.setStatus(context.Background(), render.ID, models.StatusPendingPostprocess); serr != nil {
				p.logger.Error().Err(serr).Uint("render_id", render.ID).Msg("failed to return interrupted render to pending_postprocess")
			}
			return err
		}
		return p.fail(ctx, render, err)
	}
	for _, w := range res.Warnings {
		p.logger.Warn().Err(w).Uint("render_id", render.ID).Msg("post-processing pass failed, keeping earlier output")
	}

	err = p.Store.Update(ctx, render.ID, map[string]interface{}{
		"status":        models.StatusPendingNotify,
		"enhanced_path": res.EnhancedPath,
		"sped_up_path":  res.SpedUpPath,
	})
	if err != nil {
		return err
	}

	if err := p.Enqueue(ctx, tasks.QueueNotify, tasks.NotifyTaskPayload{RenderID: render.ID}); err != nil {
		return p.fail(ctx, render, err)
	}
	return nil
}

// HandleNotify processes tasks from QueueNotify. A failed announcement is
// logged; the render still completes.
func (p *Processor) HandleNotify(ctx context.Context, payload string) error {
	var task tasks.NotifyTaskPayload
	if err := json.Unmarshal([]byte(payload), &task); err != nil {
		return err
	}

	render, err := p.Store.Get(ctx, task.RenderID)
	if err != nil {
		return err
	}
	if render.Status != models.StatusPendingNotify {
		p.logger.Warn().Uint("render_id", render.ID).Str("status", render.Status).Msg("render is not awaiting notification, skipping")
		return nil
	}

	if p.Notifier != nil {
		if err := p.Notifier.Notify(ctx, render); err != nil {
			p.logger.Warn().Err(err).Uint("render_id", render.ID).Msg("failed to send notification")
		}
	}

	if err := p.setStatus(ctx, render.ID, models.StatusComplete); err != nil {
		return err
	}
	p.publish(ctx, render, models.StatusComplete)
	p.logger.Info().Uint("render_id", render.ID).Msg("render complete")
	return nil
}

func (p *Processor) setStatus(ctx context.Context, id uint, status string) error {
	return p.Store.Update(ctx, id, map[string]interface{}{"status": status})
}

// fail marks the render failed with the classified cause and returns cause.
func (p *Processor) fail(ctx context.Context, render *models.Render, cause error) error {
	kind := failure.KindOf(cause)
	if errors.Is(cause, context.DeadlineExceeded) {
		kind = "timeout"
	}

	err := p.Store.Update(ctx, render.ID, map[string]interface{}{
		"status":        models.StatusFailed,
		"error_kind":    string(kind),
		"error_message": cause.Error(),
	})
	if err != nil {
		p.logger.Error().Err(err).Uint("render_id", render.ID).Msg("failed to record render failure")
	}

	event := p.logger.Error()
	if failure.Is(cause, failure.KindConfig) || failure.Is(cause, failure.KindNothingToCompose) {
		event = p.logger.Warn()
	}
	event.Err(cause).Uint("render_id", render.ID).Str("kind", string(kind)).Msg("render failed")

	p.publish(ctx, render, models.StatusFailed)
	return cause
}

func (p *Processor) publish(ctx context.Context, render *models.Render, status string) {
	msg := tasks.RenderCompletedMessage{RenderID: render.ID, PublicID: render.PublicID, Status: status}
	if err := p.Queue.Publish(ctx, tasks.ChannelRenderCompleted, msg); err != nil {
		p.logger.Warn().Err(err).Uint("render_id", render.ID).Msg("failed to publish render completion")
	}
}

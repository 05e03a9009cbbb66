// Package worker consumes render tasks from the queues.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/drewmudry/chatshorts-api/metrics"
	"github.com/drewmudry/chatshorts-api/models"
	"github.com/drewmudry/chatshorts-api/notify"
	"github.com/drewmudry/chatshorts-api/pipeline"
	"github.com/drewmudry/chatshorts-api/renders"
	"github.com/drewmudry/chatshorts-api/tasks"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// popTimeout bounds a single blocking pop so Listen notices cancellation.
const popTimeout = 5 * time.Second

// TaskHandler is a function that processes a task payload.
type TaskHandler func(ctx context.Context, payload string) error

// Composer is the part of the pipeline the worker drives.
type Composer interface {
	Generate(ctx context.Context, id string, messages []models.Message, header models.HeaderConfig) (*pipeline.Result, error)
	PostProcess(ctx context.Context, id, in string) (*pipeline.PostResult, error)
}

// Processor holds dependencies and registered task handlers.
type Processor struct {
	Store    renders.Store
	Queue    tasks.Queue
	Pipeline Composer
	Notifier notify.Notifier
	// Timeout bounds one composition. Zero means no limit.
	Timeout time.Duration

	handlers map[string]TaskHandler
	logger   zerolog.Logger
}

// NewProcessor creates a processor with the render handlers registered.
func NewProcessor(store renders.Store, queue tasks.Queue, p Composer, n notify.Notifier, logger zerolog.Logger) *Processor {
	proc := &Processor{
		Store:    store,
		Queue:    queue,
		Pipeline: p,
		Notifier: n,
		handlers: make(map[string]TaskHandler),
		logger:   logger.With().Str("component", "worker").Logger(),
	}
	proc.Register(tasks.QueueCompose, proc.HandleCompose)
	proc.Register(tasks.QueuePostprocess, proc.HandlePostprocess)
	proc.Register(tasks.QueueNotify, proc.HandleNotify)
	return proc
}

// Register maps a queue name (task type) to a handler function.
func (p *Processor) Register(queueName string, handler TaskHandler) {
	p.handlers[queueName] = handler
	p.logger.Debug().Str("queue", queueName).Msg("registered handler")
}

// Enqueue is a helper to add a new task to a queue.
func (p *Processor) Enqueue(ctx context.Context, queueName string, payload interface{}) error {
	return p.Queue.Push(ctx, queueName, payload)
}

// Listen handles tasks from queueNames until ctx is done.
func (p *Processor) Listen(ctx context.Context, queueNames ...string) error {
	p.logger.Info().Strs("queues", queueNames).Msg("worker listening")

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		queueName, payload, err := p.Queue.Pop(ctx, popTimeout, queueNames...)
		if errors.Is(err, tasks.ErrEmpty) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Error().Err(err).Msg("error popping from queue")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		p.dispatch(ctx, queueName, payload)
	}
}

// Run starts concurrency listeners on every registered queue.
func (p *Processor) Run(ctx context.Context, concurrency int) error {
	if concurrency < 1 {
		concurrency = 1
	}
	queues := make([]string, 0, len(p.handlers))
	for _, q := range tasks.Queues {
		if _, ok := p.handlers[q]; ok {
			queues = append(queues, q)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < concurrency; i++ {
		g.Go(func() error {
			return p.Listen(ctx, queues...)
		})
	}
	return g.Wait()
}

func (p *Processor) dispatch(ctx context.Context, queueName, payload string) {
	handler, ok := p.handlers[queueName]
	if !ok {
		p.logger.Error().Str("queue", queueName).Msg("no handler registered for queue")
		metrics.TasksProcessed.WithLabelValues(queueName, "unhandled").Inc()
		return
	}

	p.logger.Info().Str("queue", queueName).Msg("received task")
	if err := handler(ctx, payload); err != nil {
		p.logger.Error().Err(err).Str("queue", queueName).Msg("error processing task")
		metrics.TasksProcessed.WithLabelValues(queueName, "error").Inc()
		return
	}
	metrics.TasksProcessed.WithLabelValues(queueName, "ok").Inc()
}

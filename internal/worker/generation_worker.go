// Package worker runs the background side of the engine: scheduled bulk
// generation, queued generate requests and the spreadsheet export loop.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"mymoney/internal/amqp"
	applog "mymoney/internal/log"
)

// Generator consolidates every active rule of an owner for a period.
type Generator interface {
	GenerateForPeriod(ctx context.Context, owner int64, year, month int) (int, error)
}

// RequestConsumer delivers queued generate requests to handler until ctx is done.
type RequestConsumer interface {
	ConsumeGenerateRequests(ctx context.Context, handler func(context.Context, *amqp.GenerateRequestMessage) error) error
}

// Exporter is a start/stop background loop, normally *services.ExportProcessor.
type Exporter interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Config holds the worker settings.
type Config struct {
	// Owners are generated for on every tick. Empty disables the schedule.
	Owners   []int64
	Interval time.Duration
	// StopTimeout bounds the exporter shutdown.
	StopTimeout time.Duration
}

// GenerationWorker materializes recurring transactions in the background.
type GenerationWorker struct {
	generator Generator
	consumer  RequestConsumer
	exporter  Exporter
	config    Config
	logger    *applog.Logger
	now       func() time.Time
}

// Option customizes a GenerationWorker.
type Option func(*GenerationWorker)

// WithConsumer enables processing of queued generate requests.
func WithConsumer(c RequestConsumer) Option {
	return func(w *GenerationWorker) { w.consumer = c }
}

// WithExporter runs the export loop alongside generation.
func WithExporter(e Exporter) Option {
	return func(w *GenerationWorker) { w.exporter = e }
}

// WithLogger sets the logger.
func WithLogger(l *applog.Logger) Option {
	return func(w *GenerationWorker) { w.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(w *GenerationWorker) { w.now = now }
}

func NewGenerationWorker(generator Generator, config Config, opts ...Option) *GenerationWorker {
	if config.Interval <= 0 {
		config.Interval = time.Hour
	}
	if config.StopTimeout <= 0 {
		config.StopTimeout = 10 * time.Second
	}
	w := &GenerationWorker{
		generator: generator,
		config:    config,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = applog.New(applog.DefaultConfig())
	}
	w.logger = w.logger.WithComponent(applog.ComponentWorker)
	return w
}

// HandleGenerateRequest runs one queued generation. An error requeues the message.
func (w *GenerationWorker) HandleGenerateRequest(ctx context.Context, msg *amqp.GenerateRequestMessage) error {
	created, err := w.generator.GenerateForPeriod(ctx, msg.OwnerID, msg.Year, msg.Month)
	if err != nil {
		return fmt.Errorf("generate for owner %d %04d-%02d: %w", msg.OwnerID, msg.Year, msg.Month, err)
	}
	w.logger.InfoContext(ctx, "Generate request processed",
		"message_id", msg.MessageID,
		applog.FieldOwnerID, msg.OwnerID,
		applog.FieldYear, msg.Year,
		applog.FieldMonth, msg.Month,
		"created", created)
	return nil
}

// GenerateCurrentMonth generates the month containing now for every
// configured owner. Failures are logged per owner and joined.
func (w *GenerationWorker) GenerateCurrentMonth(ctx context.Context) (int, error) {
	now := w.now().UTC()
	year, month := now.Year(), int(now.Month())

	var (
		total int
		errs  []error
	)
	for _, owner := range w.config.Owners {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		created, err := w.generator.GenerateForPeriod(ctx, owner, year, month)
		if err != nil {
			w.logger.ErrorContext(ctx, "Scheduled generation failed",
				applog.NewFields().WithPeriod(owner, year, month).WithError(err).ToSlice()...)
			errs = append(errs, fmt.Errorf("owner %d: %w", owner, err))
			continue
		}
		total += created
	}
	return total, errors.Join(errs...)
}

// Run blocks until ctx is cancelled or a component fails.
func (w *GenerationWorker) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if len(w.config.Owners) > 0 {
		g.Go(func() error {
			w.runSchedule(gctx)
			return nil
		})
	} else {
		w.logger.InfoContext(ctx, "No owners configured - scheduled generation disabled")
	}

	if w.consumer != nil {
		g.Go(func() error {
			err := w.consumer.ConsumeGenerateRequests(gctx, w.HandleGenerateRequest)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("consume generate requests: %w", err)
			}
			return nil
		})
	}

	if w.exporter != nil {
		if err := w.exporter.Start(gctx); err != nil {
			return fmt.Errorf("start exporter: %w", err)
		}
		g.Go(func() error {
			<-gctx.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), w.config.StopTimeout)
			defer cancel()
			return w.exporter.Stop(stopCtx)
		})
	}

	return g.Wait()
}

func (w *GenerationWorker) runSchedule(ctx context.Context) {
	w.logger.InfoContext(ctx, "Scheduled generation configured",
		"interval", w.config.Interval,
		"owners", len(w.config.Owners))

	w.tick(ctx)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *GenerationWorker) tick(ctx context.Context) {
	created, err := w.GenerateCurrentMonth(ctx)
	if err != nil && ctx.Err() == nil {
		w.logger.WarnContext(ctx, "Scheduled generation finished with errors",
			"created", created, applog.FieldError, err)
		return
	}
	w.logger.InfoContext(ctx, "Scheduled generation complete",
		"created", created,
		"next_check", w.now().Add(w.config.Interval).Format("15:04:05"))
}

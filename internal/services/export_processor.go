package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mymoney/internal/core"
	"mymoney/internal/sheets"
)

// ExportQueue is the storage side of the spreadsheet export: transactions
// not yet exported, oldest first.
type ExportQueue interface {
	ListUnexported(ctx context.Context, limit int) ([]core.Transaction, error)
	MarkExported(ctx context.Context, id int64) error
}

// ExportProcessorConfig holds configuration for the export processor
type ExportProcessorConfig struct {
	// PollInterval is how often to check for unexported transactions (default: 10s)
	PollInterval time.Duration

	// BatchSize is the max number of transactions exported per cycle (default: 10)
	BatchSize int
}

// DefaultExportProcessorConfig returns sensible defaults
func DefaultExportProcessorConfig() ExportProcessorConfig {
	return ExportProcessorConfig{
		PollInterval: 10 * time.Second,
		BatchSize:    10,
	}
}

// ExportProcessor copies persisted transactions to a spreadsheet. A failed
// export stays unexported and is retried on the next cycle.
type ExportProcessor struct {
	queue    ExportQueue
	exporter sheets.TransactionExporter
	config   ExportProcessorConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewExportProcessor creates a new export processor
func NewExportProcessor(queue ExportQueue, exporter sheets.TransactionExporter, config ExportProcessorConfig) *ExportProcessor {
	return &ExportProcessor{
		queue:    queue,
		exporter: exporter,
		config:   config,
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *ExportProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("export processor is already running")
	}
	if p.queue == nil || p.exporter == nil {
		p.mu.Unlock()
		return fmt.Errorf("export processor not properly initialized")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Export processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *ExportProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Export processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Export processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the processor is currently running
func (p *ExportProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *ExportProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.ProcessBatch(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch exports one batch and returns how many rows were written.
func (p *ExportProcessor) ProcessBatch(ctx context.Context) int {
	items, err := p.queue.ListUnexported(ctx, p.config.BatchSize)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to list unexported transactions", "error", err)
		return 0
	}
	if len(items) == 0 {
		return 0
	}

	slog.DebugContext(ctx, "Exporting transaction batch", "count", len(items))

	exported := 0
	for _, tx := range items {
		if ctx.Err() != nil {
			return exported
		}

		ref, err := p.exporter.Append(ctx, tx)
		if err != nil {
			slog.WarnContext(ctx, "Transaction export failed",
				"transaction_id", tx.ID,
				"error", err)
			continue
		}

		// A failure here re-exports the row on the next cycle.
		if err := p.queue.MarkExported(ctx, tx.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to mark transaction as exported",
				"transaction_id", tx.ID,
				"error", err)
			continue
		}

		exported++
		slog.InfoContext(ctx, "Exported transaction to Google Sheets",
			"transaction_id", tx.ID,
			"sheets_ref", ref)
	}

	return exported
}

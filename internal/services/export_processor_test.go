package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mymoney/internal/core"
	"mymoney/internal/sheets/memory"
)

func TestDefaultExportProcessorConfig(t *testing.T) {
	config := DefaultExportProcessorConfig()
	assert.Equal(t, 10*time.Second, config.PollInterval)
	assert.Equal(t, 10, config.BatchSize)
}

func TestExportProcessor_StartRequiresDependencies(t *testing.T) {
	processor := NewExportProcessor(nil, nil, DefaultExportProcessorConfig())
	assert.False(t, processor.IsRunning())
	assert.Error(t, processor.Start(context.Background()))
	assert.NoError(t, processor.Stop(context.Background()))
}

func TestExportProcessor_StartTwice(t *testing.T) {
	store := memory.New(nil)
	config := DefaultExportProcessorConfig()
	config.PollInterval = time.Hour
	processor := NewExportProcessor(store, store, config)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, processor.Start(ctx))
	assert.True(t, processor.IsRunning())
	assert.Error(t, processor.Start(ctx))

	require.NoError(t, processor.Stop(context.Background()))
	assert.False(t, processor.IsRunning())
}

type failingExporter struct{ calls int }

func (e *failingExporter) Append(context.Context, core.Transaction) (string, error) {
	e.calls++
	return "", errors.New("quota exceeded")
}

func TestExportProcessor_ProcessBatch(t *testing.T) {
	ctx := context.Background()
	store := memory.New(nil)
	for day := 1; day <= 3; day++ {
		_, err := store.Create(ctx, core.Transaction{
			Owner:       1,
			Description: "Coffee",
			Amount:      decimal.RequireFromString("1.20"),
			Kind:        core.Expense,
			Date:        core.NewDate(2024, 6, day),
		})
		require.NoError(t, err)
	}

	failing := &failingExporter{}
	assert.Zero(t, NewExportProcessor(store, failing, DefaultExportProcessorConfig()).ProcessBatch(ctx))
	assert.Equal(t, 3, failing.calls)

	config := DefaultExportProcessorConfig()
	config.BatchSize = 2
	processor := NewExportProcessor(store, store, config)
	assert.Equal(t, 2, processor.ProcessBatch(ctx))
	assert.Equal(t, 1, processor.ProcessBatch(ctx))
	assert.Zero(t, processor.ProcessBatch(ctx))
}

package services

import (
	"context"
	"fmt"
	"log/slog"

	"mymoney/internal/core"
)

// TransactionService saves transactions locally and announces them on the
// message bus. It satisfies TransactionStore so it can sit in front of the
// consolidator.
type TransactionService struct {
	store     TransactionStore
	publisher TransactionPublisher
}

func NewTransactionService(store TransactionStore, publisher TransactionPublisher) *TransactionService {
	return &TransactionService{
		store:     store,
		publisher: publisher,
	}
}

func (s *TransactionService) ExistsByOriginTag(ctx context.Context, owner int64, originTag string) (bool, error) {
	return s.store.ExistsByOriginTag(ctx, owner, originTag)
}

// Create saves the transaction first; a publish failure is logged and does
// not fail the request.
func (s *TransactionService) Create(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("invalid transaction: %w", err)
	}

	created, err := s.store.Create(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	if s.publisher == nil {
		slog.WarnContext(ctx, "Publisher not available, skipping transaction message")
		return created, nil
	}
	if err := s.publisher.PublishTransactionCreated(ctx, created); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction message",
			"transaction_id", created.ID,
			"error", err)
	}

	return created, nil
}

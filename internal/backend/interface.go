package backend

import (
	"context"

	"mymoney/internal/amqp"
	"mymoney/internal/core"
	"mymoney/internal/services"
)

// Store represents a unified backend interface that provides all necessary operations
type Store interface {
	services.EngineStore
	services.ExportQueue

	ListCategories(ctx context.Context, owner int64) ([]core.Category, error)
	CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
	ListAccounts(ctx context.Context, owner int64) ([]core.Account, error)
	CreateAccount(ctx context.Context, a core.Account) (core.Account, error)

	ListRules(ctx context.Context, owner int64, filter core.RuleFilter) ([]core.RecurrenceRule, error)
	GetRule(ctx context.Context, owner, id int64) (core.RecurrenceRule, error)
	CreateRule(ctx context.Context, rule core.RecurrenceRule) (core.RecurrenceRule, error)
	UpdateRule(ctx context.Context, rule core.RecurrenceRule) (core.RecurrenceRule, error)
	DeleteRule(ctx context.Context, owner, id int64) error

	ListTransactions(ctx context.Context, owner int64, year, month int) ([]core.Transaction, error)
}

// Pinger is implemented by stores that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the store, the optional publisher and a cleanup function
type BackendResult struct {
	Store Store
	// Publisher is nil when AMQP is disabled or unreachable.
	Publisher services.TransactionPublisher
	// AMQP is the underlying client, nil when Publisher is nil.
	AMQP    *amqp.Client
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Memory backend specific
	DataDirectory string

	// Optional publisher
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

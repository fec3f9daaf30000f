package services

// EngineStore is everything the recurrence engine needs from a backend.
type EngineStore interface {
	RuleStore
	TransactionStore
	TotalsReader
}

// Engine bundles the services that share one store and publisher.
type Engine struct {
	Transactions *TransactionService
	Projector    *Projector
	Consolidator *Consolidator
	Processor    *RecurringProcessor
}

// NewEngine wires the engine. publisher may be nil.
func NewEngine(store EngineStore, publisher TransactionPublisher) *Engine {
	transactions := NewTransactionService(store, publisher)
	consolidator := NewConsolidator(transactions)
	return &Engine{
		Transactions: transactions,
		Projector:    NewProjector(store, transactions, store),
		Consolidator: consolidator,
		Processor:    NewRecurringProcessor(store, consolidator),
	}
}

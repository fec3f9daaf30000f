package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mymoney/internal/core"
)

// Routing keys on the direct exchange.
const (
	RoutingTransactionConsolidated = "transaction.consolidated"
	RoutingGenerateRequest         = "recurrence.generate"
)

// TransactionMessage announces a persisted transaction. Consumers fetch
// nothing back; the message carries the full ledger row.
type TransactionMessage struct {
	MessageID     string    `json:"message_id"`
	TransactionID int64     `json:"transaction_id"`
	OwnerID       int64     `json:"owner_id"`
	Description   string    `json:"description"`
	Amount        string    `json:"amount"`
	Kind          string    `json:"kind"`
	Date          string    `json:"date"`
	OriginTag     string    `json:"origin_tag,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// NewTransactionMessage builds the message for a persisted transaction.
func NewTransactionMessage(tx core.Transaction) *TransactionMessage {
	return &TransactionMessage{
		MessageID:     uuid.NewString(),
		TransactionID: tx.ID,
		OwnerID:       tx.Owner,
		Description:   tx.Description,
		Amount:        core.FormatAmount(tx.Amount),
		Kind:          string(tx.Kind),
		Date:          tx.Date.String(),
		OriginTag:     tx.OriginTag,
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func TransactionMessageFromJSON(data []byte) (*TransactionMessage, error) {
	var msg TransactionMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// GenerateRequestMessage asks the worker to run bulk generation for an
// owner and period.
type GenerateRequestMessage struct {
	MessageID string    `json:"message_id"`
	OwnerID   int64     `json:"owner_id"`
	Year      int       `json:"year"`
	Month     int       `json:"month"`
	Timestamp time.Time `json:"timestamp"`
}

func NewGenerateRequestMessage(owner int64, year, month int) *GenerateRequestMessage {
	return &GenerateRequestMessage{
		MessageID: uuid.NewString(),
		OwnerID:   owner,
		Year:      year,
		Month:     month,
		Timestamp: time.Now(),
	}
}

func (m *GenerateRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// GenerateRequestMessageFromJSON decodes and validates a request.
func GenerateRequestMessageFromJSON(data []byte) (*GenerateRequestMessage, error) {
	var msg GenerateRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.OwnerID <= 0 {
		return nil, fmt.Errorf("invalid owner id %d", msg.OwnerID)
	}
	if err := core.ValidateMonth(msg.Month); err != nil {
		return nil, err
	}
	return &msg, nil
}

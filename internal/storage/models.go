package storage

import (
	"database/sql"
	"fmt"
	"time"
)

type Category struct {
	ID        int64
	OwnerID   int64
	Name      string
	Kind      string
	Color     string
	CreatedAt Timestamp
}

type Account struct {
	ID        int64
	OwnerID   int64
	Name      string
	Bank      string
	CreatedAt Timestamp
}

type RecurrenceRule struct {
	ID          int64
	OwnerID     int64
	Description string
	Amount      string
	Kind        string
	Cadence     string
	DueDay      int64
	StartDate   string
	EndDate     sql.NullString
	Active      bool
	CategoryID  int64
	AccountID   sql.NullInt64
	CreatedAt   Timestamp
	UpdatedAt   Timestamp
}

type Transaction struct {
	ID          int64
	OwnerID     int64
	Description string
	Amount      string
	Kind        string
	Date        string
	CategoryID  sql.NullInt64
	AccountID   sql.NullInt64
	OriginTag   string
	Imported    bool
	CreatedAt   Timestamp
	ExportedAt  Timestamp
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
}

// Timestamp scans a nullable SQLite timestamp. The driver yields time.Time
// for columns with a declared TIMESTAMP type and text for RETURNING rows.
type Timestamp struct {
	Time  time.Time
	Valid bool
}

func (t *Timestamp) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*t = Timestamp{}
		return nil
	case time.Time:
		*t = Timestamp{Time: v.UTC(), Valid: true}
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	}
	return fmt.Errorf("unsupported timestamp type %T", value)
}

func (t *Timestamp) parse(s string) error {
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = Timestamp{Time: parsed.UTC(), Valid: true}
			return nil
		}
	}
	return fmt.Errorf("unparseable timestamp %q", s)
}

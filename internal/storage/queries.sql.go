package storage

import (
	"context"
	"database/sql"
)

const createCategory = `-- name: CreateCategory :one
INSERT INTO categories (owner_id, name, kind, color)
VALUES (?, ?, ?, ?)
RETURNING id, owner_id, name, kind, color, created_at
`

type CreateCategoryParams struct {
	OwnerID int64
	Name    string
	Kind    string
	Color   string
}

func (q *Queries) CreateCategory(ctx context.Context, arg CreateCategoryParams) (Category, error) {
	row := q.db.QueryRowContext(ctx, createCategory, arg.OwnerID, arg.Name, arg.Kind, arg.Color)
	var i Category
	err := row.Scan(&i.ID, &i.OwnerID, &i.Name, &i.Kind, &i.Color, &i.CreatedAt)
	return i, err
}

const listCategories = `-- name: ListCategories :many
SELECT id, owner_id, name, kind, color, created_at FROM categories
WHERE owner_id IN (0, ?)
ORDER BY kind, name
`

func (q *Queries) ListCategories(ctx context.Context, ownerID int64) ([]Category, error) {
	rows, err := q.db.QueryContext(ctx, listCategories, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Category
	for rows.Next() {
		var i Category
		if err := rows.Scan(&i.ID, &i.OwnerID, &i.Name, &i.Kind, &i.Color, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countVisibleCategory = `-- name: CountVisibleCategory :one
SELECT COUNT(*) FROM categories WHERE id = ? AND owner_id IN (0, ?)
`

func (q *Queries) CountVisibleCategory(ctx context.Context, id, ownerID int64) (int64, error) {
	row := q.db.QueryRowContext(ctx, countVisibleCategory, id, ownerID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const createAccount = `-- name: CreateAccount :one
INSERT INTO accounts (owner_id, name, bank)
VALUES (?, ?, ?)
RETURNING id, owner_id, name, bank, created_at
`

type CreateAccountParams struct {
	OwnerID int64
	Name    string
	Bank    string
}

func (q *Queries) CreateAccount(ctx context.Context, arg CreateAccountParams) (Account, error) {
	row := q.db.QueryRowContext(ctx, createAccount, arg.OwnerID, arg.Name, arg.Bank)
	var i Account
	err := row.Scan(&i.ID, &i.OwnerID, &i.Name, &i.Bank, &i.CreatedAt)
	return i, err
}

const listAccounts = `-- name: ListAccounts :many
SELECT id, owner_id, name, bank, created_at FROM accounts
WHERE owner_id = ?
ORDER BY name
`

func (q *Queries) ListAccounts(ctx context.Context, ownerID int64) ([]Account, error) {
	rows, err := q.db.QueryContext(ctx, listAccounts, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Account
	for rows.Next() {
		var i Account
		if err := rows.Scan(&i.ID, &i.OwnerID, &i.Name, &i.Bank, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countOwnedAccount = `-- name: CountOwnedAccount :one
SELECT COUNT(*) FROM accounts WHERE id = ? AND owner_id = ?
`

func (q *Queries) CountOwnedAccount(ctx context.Context, id, ownerID int64) (int64, error) {
	row := q.db.QueryRowContext(ctx, countOwnedAccount, id, ownerID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const ruleColumns = `r.id, r.owner_id, r.description, r.amount, r.kind, r.cadence, r.due_day,
       r.start_date, r.end_date, r.active, r.category_id, r.account_id, r.created_at, r.updated_at`

func scanRule(row interface{ Scan(...interface{}) error }) (RecurrenceRule, error) {
	var i RecurrenceRule
	err := row.Scan(
		&i.ID,
		&i.OwnerID,
		&i.Description,
		&i.Amount,
		&i.Kind,
		&i.Cadence,
		&i.DueDay,
		&i.StartDate,
		&i.EndDate,
		&i.Active,
		&i.CategoryID,
		&i.AccountID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createRecurrenceRule = `-- name: CreateRecurrenceRule :one
INSERT INTO recurrence_rules (
    owner_id, description, amount, kind, cadence, due_day,
    start_date, end_date, active, category_id, account_id
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id, owner_id, description, amount, kind, cadence, due_day,
          start_date, end_date, active, category_id, account_id, created_at, updated_at
`

type RecurrenceRuleParams struct {
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
}

func (q *Queries) CreateRecurrenceRule(ctx context.Context, arg RecurrenceRuleParams) (RecurrenceRule, error) {
	row := q.db.QueryRowContext(ctx, createRecurrenceRule,
		arg.OwnerID,
		arg.Description,
		arg.Amount,
		arg.Kind,
		arg.Cadence,
		arg.DueDay,
		arg.StartDate,
		arg.EndDate,
		arg.Active,
		arg.CategoryID,
		arg.AccountID,
	)
	return scanRule(row)
}

const updateRecurrenceRule = `-- name: UpdateRecurrenceRule :one
UPDATE recurrence_rules SET
    description = ?, amount = ?, kind = ?, cadence = ?, due_day = ?,
    start_date = ?, end_date = ?, active = ?, category_id = ?, account_id = ?,
    updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND owner_id = ?
RETURNING id, owner_id, description, amount, kind, cadence, due_day,
          start_date, end_date, active, category_id, account_id, created_at, updated_at
`

func (q *Queries) UpdateRecurrenceRule(ctx context.Context, arg RecurrenceRuleParams) (RecurrenceRule, error) {
	row := q.db.QueryRowContext(ctx, updateRecurrenceRule,
		arg.Description,
		arg.Amount,
		arg.Kind,
		arg.Cadence,
		arg.DueDay,
		arg.StartDate,
		arg.EndDate,
		arg.Active,
		arg.CategoryID,
		arg.AccountID,
		arg.ID,
		arg.OwnerID,
	)
	return scanRule(row)
}

const getRecurrenceRule = `-- name: GetRecurrenceRule :one
SELECT ` + ruleColumns + ` FROM recurrence_rules r
WHERE r.id = ? AND r.owner_id = ?
`

func (q *Queries) GetRecurrenceRule(ctx context.Context, id, ownerID int64) (RecurrenceRule, error) {
	return scanRule(q.db.QueryRowContext(ctx, getRecurrenceRule, id, ownerID))
}

const deleteRecurrenceRule = `-- name: DeleteRecurrenceRule :execrows
DELETE FROM recurrence_rules WHERE id = ? AND owner_id = ?
`

func (q *Queries) DeleteRecurrenceRule(ctx context.Context, id, ownerID int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteRecurrenceRule, id, ownerID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listRecurrenceRules = `-- name: ListRecurrenceRules :many
SELECT ` + ruleColumns + ` FROM recurrence_rules r
JOIN categories c ON c.id = r.category_id
WHERE r.owner_id = ?
  AND (? = '' OR r.kind = ?)
  AND (? < 0 OR r.active = ?)
  AND (? = '' OR lower(r.description) LIKE ? OR lower(c.name) LIKE ?)
ORDER BY r.id
`

type ListRecurrenceRulesParams struct {
	OwnerID int64
	Kind    string
	// Active is -1 for any, 0 for inactive, 1 for active.
	Active int64
	// Query is lower-cased; it is matched as a substring.
	Query string
}

func (q *Queries) ListRecurrenceRules(ctx context.Context, arg ListRecurrenceRulesParams) ([]RecurrenceRule, error) {
	like := "%" + arg.Query + "%"
	rows, err := q.db.QueryContext(ctx, listRecurrenceRules,
		arg.OwnerID,
		arg.Kind, arg.Kind,
		arg.Active, arg.Active,
		arg.Query, like, like,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RecurrenceRule
	for rows.Next() {
		i, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const transactionColumns = `id, owner_id, description, amount, kind, date, category_id, account_id,
       origin_tag, imported, created_at, exported_at`

func scanTransaction(row interface{ Scan(...interface{}) error }) (Transaction, error) {
	var i Transaction
	err := row.Scan(
		&i.ID,
		&i.OwnerID,
		&i.Description,
		&i.Amount,
		&i.Kind,
		&i.Date,
		&i.CategoryID,
		&i.AccountID,
		&i.OriginTag,
		&i.Imported,
		&i.CreatedAt,
		&i.ExportedAt,
	)
	return i, err
}

const createTransaction = `-- name: CreateTransaction :one
INSERT INTO transactions (
    owner_id, description, amount, kind, date, category_id, account_id, origin_tag, imported
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + transactionColumns + `
`

type CreateTransactionParams struct {
	OwnerID     int64
	Description string
	Amount      string
	Kind        string
	Date        string
	CategoryID  sql.NullInt64
	AccountID   sql.NullInt64
	OriginTag   string
	Imported    bool
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (Transaction, error) {
	row := q.db.QueryRowContext(ctx, createTransaction,
		arg.OwnerID,
		arg.Description,
		arg.Amount,
		arg.Kind,
		arg.Date,
		arg.CategoryID,
		arg.AccountID,
		arg.OriginTag,
		arg.Imported,
	)
	return scanTransaction(row)
}

const countByOriginTag = `-- name: CountByOriginTag :one
SELECT COUNT(*) FROM transactions WHERE owner_id = ? AND origin_tag = ?
`

func (q *Queries) CountByOriginTag(ctx context.Context, ownerID int64, originTag string) (int64, error) {
	row := q.db.QueryRowContext(ctx, countByOriginTag, ownerID, originTag)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const listTransactionsBetween = `-- name: ListTransactionsBetween :many
SELECT ` + transactionColumns + ` FROM transactions
WHERE owner_id = ? AND date >= ? AND date < ?
ORDER BY date, id
`

// ListTransactionsBetween returns transactions dated in [from, to).
func (q *Queries) ListTransactionsBetween(ctx context.Context, ownerID int64, from, to string) ([]Transaction, error) {
	return q.listTransactions(ctx, listTransactionsBetween, ownerID, from, to)
}

const listUnexportedTransactions = `-- name: ListUnexportedTransactions :many
SELECT ` + transactionColumns + ` FROM transactions
WHERE exported_at IS NULL
ORDER BY id
LIMIT ?
`

func (q *Queries) ListUnexportedTransactions(ctx context.Context, limit int64) ([]Transaction, error) {
	return q.listTransactions(ctx, listUnexportedTransactions, limit)
}

func (q *Queries) listTransactions(ctx context.Context, query string, args ...interface{}) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		i, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const markTransactionExported = `-- name: MarkTransactionExported :exec
UPDATE transactions SET exported_at = CURRENT_TIMESTAMP WHERE id = ?
`

func (q *Queries) MarkTransactionExported(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, markTransactionExported, id)
	return err
}

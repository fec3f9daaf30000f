package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"mymoney/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

// dsn enables foreign keys and waits on a locked database instead of
// failing concurrent writers immediately.
func dsn(dbPath string) string {
	return "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, owner int64) ([]core.Category, error) {
	rows, err := r.queries.ListCategories(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out := make([]core.Category, len(rows))
	for i, c := range rows {
		out[i] = core.Category{ID: c.ID, Owner: c.OwnerID, Name: c.Name, Kind: core.Kind(c.Kind), Color: c.Color}
	}
	return out, nil
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	row, err := r.queries.CreateCategory(ctx, CreateCategoryParams{
		OwnerID: c.Owner,
		Name:    strings.TrimSpace(c.Name),
		Kind:    string(c.Kind),
		Color:   c.Color,
	})
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return core.Category{ID: row.ID, Owner: row.OwnerID, Name: row.Name, Kind: core.Kind(row.Kind), Color: row.Color}, nil
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context, owner int64) ([]core.Account, error) {
	rows, err := r.queries.ListAccounts(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	out := make([]core.Account, len(rows))
	for i, a := range rows {
		out[i] = core.Account{ID: a.ID, Owner: a.OwnerID, Name: a.Name, Bank: a.Bank}
	}
	return out, nil
}

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	row, err := r.queries.CreateAccount(ctx, CreateAccountParams{
		OwnerID: a.Owner,
		Name:    strings.TrimSpace(a.Name),
		Bank:    a.Bank,
	})
	if err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}
	return core.Account{ID: row.ID, Owner: row.OwnerID, Name: row.Name, Bank: row.Bank}, nil
}

// ListRules implements the rule listing with kind, active and text filters.
func (r *SQLiteRepository) ListRules(ctx context.Context, owner int64, filter core.RuleFilter) ([]core.RecurrenceRule, error) {
	active := int64(-1)
	if filter.Active != nil {
		active = 0
		if *filter.Active {
			active = 1
		}
	}
	rows, err := r.queries.ListRecurrenceRules(ctx, ListRecurrenceRulesParams{
		OwnerID: owner,
		Kind:    string(filter.Kind),
		Active:  active,
		Query:   strings.ToLower(strings.TrimSpace(filter.Query)),
	})
	if err != nil {
		return nil, fmt.Errorf("list recurrence rules: %w", err)
	}

	rules := make([]core.RecurrenceRule, 0, len(rows))
	for _, row := range rows {
		rule, err := toCoreRule(row)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// ListActiveRules implements services.RuleStore
func (r *SQLiteRepository) ListActiveRules(ctx context.Context, owner int64) ([]core.RecurrenceRule, error) {
	active := true
	return r.ListRules(ctx, owner, core.RuleFilter{Active: &active})
}

// GetRule returns core.ErrRuleNotFound for unknown ids and rules of other owners.
func (r *SQLiteRepository) GetRule(ctx context.Context, owner, id int64) (core.RecurrenceRule, error) {
	row, err := r.queries.GetRecurrenceRule(ctx, id, owner)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RecurrenceRule{}, core.ErrRuleNotFound
	}
	if err != nil {
		return core.RecurrenceRule{}, fmt.Errorf("get recurrence rule: %w", err)
	}
	return toCoreRule(row)
}

func (r *SQLiteRepository) CreateRule(ctx context.Context, rule core.RecurrenceRule) (core.RecurrenceRule, error) {
	if err := rule.Validate(); err != nil {
		return core.RecurrenceRule{}, err
	}
	if err := r.checkRefs(ctx, rule); err != nil {
		return core.RecurrenceRule{}, err
	}

	row, err := r.queries.CreateRecurrenceRule(ctx, toRuleParams(rule))
	if err != nil {
		return core.RecurrenceRule{}, fmt.Errorf("create recurrence rule: %w", err)
	}

	slog.InfoContext(ctx, "Recurrence rule saved to SQLite",
		"rule_id", row.ID,
		"owner_id", row.OwnerID,
		"cadence", row.Cadence)

	return toCoreRule(row)
}

func (r *SQLiteRepository) UpdateRule(ctx context.Context, rule core.RecurrenceRule) (core.RecurrenceRule, error) {
	if err := rule.Validate(); err != nil {
		return core.RecurrenceRule{}, err
	}
	if err := r.checkRefs(ctx, rule); err != nil {
		return core.RecurrenceRule{}, err
	}

	row, err := r.queries.UpdateRecurrenceRule(ctx, toRuleParams(rule))
	if errors.Is(err, sql.ErrNoRows) {
		return core.RecurrenceRule{}, core.ErrRuleNotFound
	}
	if err != nil {
		return core.RecurrenceRule{}, fmt.Errorf("update recurrence rule: %w", err)
	}
	return toCoreRule(row)
}

func (r *SQLiteRepository) DeleteRule(ctx context.Context, owner, id int64) error {
	n, err := r.queries.DeleteRecurrenceRule(ctx, id, owner)
	if err != nil {
		return fmt.Errorf("delete recurrence rule: %w", err)
	}
	if n == 0 {
		return core.ErrRuleNotFound
	}
	return nil
}

func (r *SQLiteRepository) checkRefs(ctx context.Context, rule core.RecurrenceRule) error {
	n, err := r.queries.CountVisibleCategory(ctx, rule.CategoryID, rule.Owner)
	if err != nil {
		return fmt.Errorf("check category: %w", err)
	}
	if n == 0 {
		return core.ErrCategoryNotFound
	}
	if rule.AccountID == nil {
		return nil
	}
	n, err = r.queries.CountOwnedAccount(ctx, *rule.AccountID, rule.Owner)
	if err != nil {
		return fmt.Errorf("check account: %w", err)
	}
	if n == 0 {
		return core.ErrAccountNotFound
	}
	return nil
}

// ExistsByOriginTag implements services.TransactionStore
func (r *SQLiteRepository) ExistsByOriginTag(ctx context.Context, owner int64, originTag string) (bool, error) {
	n, err := r.queries.CountByOriginTag(ctx, owner, originTag)
	if err != nil {
		return false, fmt.Errorf("count by origin tag: %w", err)
	}
	return n > 0, nil
}

// Create implements services.TransactionStore. The partial unique index on
// (owner_id, origin_tag) rejects a second occurrence of the same tag.
func (r *SQLiteRepository) Create(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	row, err := r.queries.CreateTransaction(ctx, CreateTransactionParams{
		OwnerID:     tx.Owner,
		Description: tx.Description,
		Amount:      core.FormatAmount(tx.Amount),
		Kind:        string(tx.Kind),
		Date:        tx.Date.String(),
		CategoryID:  sql.NullInt64{Int64: tx.CategoryID, Valid: tx.CategoryID > 0},
		AccountID:   nullInt64(tx.AccountID),
		OriginTag:   tx.OriginTag,
		Imported:    tx.Imported,
	})
	if isUniqueConstraintError(err) {
		return core.Transaction{}, fmt.Errorf("origin tag %q: %w", tx.OriginTag, core.ErrDuplicateOriginTag)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", row.ID,
		"owner_id", row.OwnerID,
		"amount", row.Amount,
		"date", row.Date,
		"origin_tag", row.OriginTag)

	return toCoreTransaction(row)
}

// ListTransactions returns the owner's transactions dated in year/month.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, owner int64, year, month int) ([]core.Transaction, error) {
	if err := core.ValidateMonth(month); err != nil {
		return nil, err
	}
	from := core.FirstOfMonth(year, month)
	to := core.Date{Time: from.AddDate(0, 1, 0)}

	rows, err := r.queries.ListTransactionsBetween(ctx, owner, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return toCoreTransactions(rows)
}

// SumByKind implements services.TotalsReader. Amounts are summed as
// decimals in Go, never as SQLite REAL.
func (r *SQLiteRepository) SumByKind(ctx context.Context, owner int64, year, month int) (decimal.Decimal, decimal.Decimal, error) {
	txs, err := r.ListTransactions(ctx, owner, year, month)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	income, expense := decimal.Zero, decimal.Zero
	for _, tx := range txs {
		switch tx.Kind {
		case core.Income:
			income = income.Add(tx.Amount)
		case core.Expense:
			expense = expense.Add(tx.Amount)
		}
	}
	return income, expense, nil
}

// ListUnexported implements services.ExportQueue
func (r *SQLiteRepository) ListUnexported(ctx context.Context, limit int) ([]core.Transaction, error) {
	rows, err := r.queries.ListUnexportedTransactions(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list unexported transactions: %w", err)
	}
	return toCoreTransactions(rows)
}

// MarkExported implements services.ExportQueue
func (r *SQLiteRepository) MarkExported(ctx context.Context, id int64) error {
	if err := r.queries.MarkTransactionExported(ctx, id); err != nil {
		return fmt.Errorf("mark transaction exported: %w", err)
	}
	return nil
}

func toRuleParams(rule core.RecurrenceRule) RecurrenceRuleParams {
	return RecurrenceRuleParams{
		ID:          rule.ID,
		OwnerID:     rule.Owner,
		Description: strings.TrimSpace(rule.Description),
		Amount:      core.FormatAmount(rule.Amount),
		Kind:        string(rule.Kind),
		Cadence:     string(rule.Cadence),
		DueDay:      int64(rule.DueDay),
		StartDate:   rule.StartDate.String(),
		EndDate:     sql.NullString{String: rule.EndDate.String(), Valid: !rule.EndDate.IsEmpty()},
		Active:      rule.Active,
		CategoryID:  rule.CategoryID,
		AccountID:   nullInt64(rule.AccountID),
	}
}

func toCoreRule(row RecurrenceRule) (core.RecurrenceRule, error) {
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return core.RecurrenceRule{}, fmt.Errorf("rule %d amount: %w", row.ID, err)
	}
	start, err := core.ParseDate(row.StartDate)
	if err != nil {
		return core.RecurrenceRule{}, fmt.Errorf("rule %d start date: %w", row.ID, err)
	}
	var end core.Date
	if row.EndDate.Valid {
		if end, err = core.ParseDate(row.EndDate.String); err != nil {
			return core.RecurrenceRule{}, fmt.Errorf("rule %d end date: %w", row.ID, err)
		}
	}
	return core.RecurrenceRule{
		ID:          row.ID,
		Owner:       row.OwnerID,
		Description: row.Description,
		Amount:      amount,
		Kind:        core.Kind(row.Kind),
		Cadence:     core.Cadence(row.Cadence),
		DueDay:      int(row.DueDay),
		StartDate:   start,
		EndDate:     end,
		Active:      row.Active,
		CategoryID:  row.CategoryID,
		AccountID:   int64Ptr(row.AccountID),
	}, nil
}

func toCoreTransaction(row Transaction) (core.Transaction, error) {
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d amount: %w", row.ID, err)
	}
	date, err := core.ParseDate(row.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d date: %w", row.ID, err)
	}
	return core.Transaction{
		ID:          row.ID,
		Owner:       row.OwnerID,
		Description: row.Description,
		Amount:      amount,
		Kind:        core.Kind(row.Kind),
		Date:        date,
		CategoryID:  row.CategoryID.Int64,
		AccountID:   int64Ptr(row.AccountID),
		OriginTag:   row.OriginTag,
		Imported:    row.Imported,
		CreatedAt:   row.CreatedAt.Time,
	}, nil
}

func toCoreTransactions(rows []Transaction) ([]core.Transaction, error) {
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		tx, err := toCoreTransaction(row)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

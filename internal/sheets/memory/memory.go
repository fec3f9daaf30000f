// Package memory is an in-process implementation of every storage and
// export port. It backs the "memory" data backend and the engine tests.
package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"mymoney/internal/core"
)

// SharedOwner marks seeded categories visible to every owner.
const SharedOwner int64 = 0

type Store struct {
	mu         sync.Mutex
	nextID     int64
	categories []core.Category
	accounts   []core.Account
	rules      map[int64]core.RecurrenceRule
	txs        []core.Transaction
	exported   map[int64]bool
	rows       []core.Transaction
}

func New(categories []core.Category) *Store {
	s := &Store{
		rules:    map[int64]core.RecurrenceRule{},
		exported: map[int64]bool{},
	}
	for _, c := range categories {
		s.nextID++
		c.ID = s.nextID
		s.categories = append(s.categories, c)
	}
	return s
}

// NewFromFiles seeds shared categories from seed_categories.txt in base.
// Each line is "KIND,Name"; blank lines and # comments are ignored.
func NewFromFiles(base string) *Store {
	var cats []core.Category
	for _, line := range readLines(filepath.Join(base, "seed_categories.txt")) {
		kind, name, ok := strings.Cut(line, ",")
		if !ok {
			continue
		}
		c := core.Category{Owner: SharedOwner, Name: strings.TrimSpace(name), Kind: core.Kind(strings.ToUpper(strings.TrimSpace(kind)))}
		if c.Validate() != nil {
			continue
		}
		cats = append(cats, c)
	}
	if len(cats) == 0 {
		cats = []core.Category{
			{Owner: SharedOwner, Name: "Salary", Kind: core.Income},
			{Owner: SharedOwner, Name: "Housing", Kind: core.Expense},
			{Owner: SharedOwner, Name: "Utilities", Kind: core.Expense},
		}
	}
	return New(cats)
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func visible(resourceOwner, owner int64) bool {
	return resourceOwner == owner || resourceOwner == SharedOwner
}

// ListCategories returns the owner's categories plus the shared ones.
func (s *Store) ListCategories(_ context.Context, owner int64) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Category
	for _, c := range s.categories {
		if visible(c.Owner, owner) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) CreateCategory(_ context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.id()
	s.categories = append(s.categories, c)
	return c, nil
}

func (s *Store) ListAccounts(_ context.Context, owner int64) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Account
	for _, a := range s.accounts {
		if a.Owner == owner {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) CreateAccount(_ context.Context, a core.Account) (core.Account, error) {
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.id()
	s.accounts = append(s.accounts, a)
	return a, nil
}

// ListRules returns the owner's rules matching filter, by ascending id.
func (s *Store) ListRules(_ context.Context, owner int64, filter core.RuleFilter) ([]core.RecurrenceRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.RecurrenceRule
	for _, r := range s.rules {
		if r.Owner == owner && filter.Matches(r, s.categoryName(r.CategoryID)) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListActiveRules(ctx context.Context, owner int64) ([]core.RecurrenceRule, error) {
	active := true
	return s.ListRules(ctx, owner, core.RuleFilter{Active: &active})
}

// GetRule returns core.ErrRuleNotFound for unknown ids and rules of other owners.
func (s *Store) GetRule(_ context.Context, owner, id int64) (core.RecurrenceRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	if !ok || r.Owner != owner {
		return core.RecurrenceRule{}, core.ErrRuleNotFound
	}
	return r, nil
}

func (s *Store) CreateRule(_ context.Context, rule core.RecurrenceRule) (core.RecurrenceRule, error) {
	if err := rule.Validate(); err != nil {
		return core.RecurrenceRule{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkRefs(rule); err != nil {
		return core.RecurrenceRule{}, err
	}
	rule.ID = s.id()
	s.rules[rule.ID] = rule
	return rule, nil
}

func (s *Store) UpdateRule(_ context.Context, rule core.RecurrenceRule) (core.RecurrenceRule, error) {
	if err := rule.Validate(); err != nil {
		return core.RecurrenceRule{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.rules[rule.ID]
	if !ok || existing.Owner != rule.Owner {
		return core.RecurrenceRule{}, core.ErrRuleNotFound
	}
	if err := s.checkRefs(rule); err != nil {
		return core.RecurrenceRule{}, err
	}
	s.rules[rule.ID] = rule
	return rule, nil
}

func (s *Store) DeleteRule(_ context.Context, owner, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	if !ok || r.Owner != owner {
		return core.ErrRuleNotFound
	}
	delete(s.rules, id)
	return nil
}

// checkRefs must be called with mu held.
func (s *Store) checkRefs(rule core.RecurrenceRule) error {
	found := false
	for _, c := range s.categories {
		if c.ID == rule.CategoryID && visible(c.Owner, rule.Owner) {
			found = true
			break
		}
	}
	if !found {
		return core.ErrCategoryNotFound
	}
	if rule.AccountID == nil {
		return nil
	}
	for _, a := range s.accounts {
		if a.ID == *rule.AccountID && a.Owner == rule.Owner {
			return nil
		}
	}
	return core.ErrAccountNotFound
}

// categoryName must be called with mu held.
func (s *Store) categoryName(id int64) string {
	for _, c := range s.categories {
		if c.ID == id {
			return c.Name
		}
	}
	return ""
}

func (s *Store) ExistsByOriginTag(_ context.Context, owner int64, originTag string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasTag(owner, originTag), nil
}

// hasTag must be called with mu held.
func (s *Store) hasTag(owner int64, originTag string) bool {
	for _, tx := range s.txs {
		if tx.Owner == owner && tx.OriginTag == originTag {
			return true
		}
	}
	return false
}

// Create enforces the (owner, origin tag) uniqueness of non-empty tags.
func (s *Store) Create(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.OriginTag != "" && s.hasTag(tx.Owner, tx.OriginTag) {
		return core.Transaction{}, fmt.Errorf("origin tag %q: %w", tx.OriginTag, core.ErrDuplicateOriginTag)
	}
	tx.ID = s.id()
	tx.CreatedAt = time.Now().UTC()
	s.txs = append(s.txs, tx)
	return tx, nil
}

// ListTransactions returns the owner's transactions dated in year/month.
func (s *Store) ListTransactions(_ context.Context, owner int64, year, month int) ([]core.Transaction, error) {
	if err := core.ValidateMonth(month); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, tx := range s.txs {
		if tx.Owner == owner && tx.Date.Year() == year && tx.Date.Month() == month {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *Store) SumByKind(ctx context.Context, owner int64, year, month int) (decimal.Decimal, decimal.Decimal, error) {
	txs, err := s.ListTransactions(ctx, owner, year, month)
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

func (s *Store) ListUnexported(_ context.Context, limit int) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, tx := range s.txs {
		if len(out) >= limit {
			break
		}
		if !s.exported[tx.ID] {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *Store) MarkExported(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exported[id] = true
	return nil
}

// Append records an exported row and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, tx)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

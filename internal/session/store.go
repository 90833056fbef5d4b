package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"duit/internal/core"
	"duit/internal/gateway"
	"duit/internal/log"
)

const adjustmentDescription = "Penyesuaian Saldo"

// EventPublisher receives notification of transaction mutations after they
// have been persisted. A nil publisher disables publishing.
type EventPublisher interface {
	PublishTransactionCreated(ctx context.Context, owner string, t core.Transaction) error
	PublishTransactionDeleted(ctx context.Context, owner, transactionID string) error
}

// Store holds one owner's working data set. All reads are served from memory;
// mutations go to the gateway first and are applied locally only after the
// remote write succeeds, except budget and health profile updates which apply
// locally first and persist in the background.
type Store struct {
	owner     string
	gw        gateway.Gateway
	publisher EventPublisher
	logger    *log.Logger

	budgetDelay time.Duration

	mu           sync.Mutex
	accounts     []core.Account
	categories   []core.Category
	transactions []core.Transaction
	budget       core.Budget
	profile      core.HealthProfile

	budgetTimer *time.Timer
	writes      sync.WaitGroup
}

func (s *Store) Owner() string { return s.owner }

func (s *Store) Accounts() []core.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Account, len(s.accounts))
	copy(out, s.accounts)
	return out
}

func (s *Store) Categories() []core.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Category, len(s.categories))
	copy(out, s.categories)
	return out
}

func (s *Store) Transactions() []core.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, len(s.transactions))
	copy(out, s.transactions)
	return out
}

func (s *Store) Budget() core.Budget {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.budget.Clone()
}

func (s *Store) Profile() core.HealthProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

// Balance sums the account's transactions over the full history.
func (s *Store) Balance(accountID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.AccountBalance(accountID, s.transactions)
}

// Summary aggregates the calendar month containing now.
func (s *Store) Summary(now time.Time) core.MonthSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.Summarize(s.transactions, s.budget, s.categories, now)
}

// FoodCategory returns the owner's food category, if one exists.
func (s *Store) FoodCategory() (core.Category, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return core.FindCategoryByName(s.categories, core.FoodCategoryName)
}

// AddTransaction classifies the draft, persists it and prepends the stored
// transaction to the in-memory list. New entries go to the front regardless
// of their date; the list is only fully ordered again after a reload.
func (s *Store) AddTransaction(ctx context.Context, d core.TransactionDraft) (core.Transaction, error) {
	analysis := s.classify(d)

	t, err := s.gw.InsertTransaction(ctx, s.owner, d, analysis)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("add transaction: %w", err)
	}

	s.mu.Lock()
	s.transactions = append([]core.Transaction{t}, s.transactions...)
	s.mu.Unlock()

	s.publishCreated(ctx, t)
	return t, nil
}

// UpdateTransaction reclassifies the draft, persists the change and rewrites
// the local entry in place, keeping its position and creation time.
func (s *Store) UpdateTransaction(ctx context.Context, id string, d core.TransactionDraft) error {
	analysis := s.classify(d)

	if err := s.gw.UpdateTransaction(ctx, s.owner, id, d, analysis); err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.transactions {
		if t.ID != id {
			continue
		}
		t.AccountID = d.AccountID
		t.Amount = d.Amount
		t.Type = d.Type
		t.Date = d.Date
		t.Description = d.Description
		t.SpendingAnalysis = analysis
		t.CategoryID = d.CategoryID
		t.CategoryName = ""
		t.CategoryColor = ""
		if t.Type == core.Income {
			t.CategoryID = ""
		}
		if t.CategoryID != "" {
			for _, c := range s.categories {
				if c.ID == t.CategoryID {
					t.CategoryName = c.Name
					t.CategoryColor = c.Color
					break
				}
			}
		}
		s.transactions[i] = t
		return nil
	}
	return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	if err := s.gw.DeleteTransaction(ctx, s.owner, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	s.mu.Lock()
	for i, t := range s.transactions {
		if t.ID == id {
			s.transactions = append(s.transactions[:i], s.transactions[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	if s.publisher != nil {
		if err := s.publisher.PublishTransactionDeleted(ctx, s.owner, id); err != nil {
			s.logger.WarnContext(ctx, "failed to publish transaction deletion",
				log.FieldError, err.Error(), "transaction_id", id)
		}
	}
	return nil
}

func (s *Store) AddAccount(ctx context.Context, name string) (core.Account, error) {
	if name == "" {
		return core.Account{}, core.ErrEmptyName
	}
	s.mu.Lock()
	for _, a := range s.accounts {
		if strings.EqualFold(a.Name, name) {
			s.mu.Unlock()
			return core.Account{}, fmt.Errorf("account %q: %w", name, core.ErrDuplicateName)
		}
	}
	s.mu.Unlock()

	a, err := s.gw.InsertAccount(ctx, s.owner, name)
	if err != nil {
		return core.Account{}, fmt.Errorf("add account: %w", err)
	}

	s.mu.Lock()
	s.accounts = append(s.accounts, a)
	s.mu.Unlock()
	return a, nil
}

// DeleteAccount refuses to remove an account that still has transactions.
func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	used, err := s.gw.AccountHasTransactions(ctx, s.owner, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if used {
		return fmt.Errorf("account %s: %w", id, core.ErrAccountInUse)
	}
	if err := s.gw.DeleteAccount(ctx, s.owner, id); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	s.mu.Lock()
	for i, a := range s.accounts {
		if a.ID == id {
			s.accounts = append(s.accounts[:i], s.accounts[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	return nil
}

// AdjustAccountBalance records a compensating transaction that moves the
// account's computed balance to target. Increases are recorded as income;
// decreases as an expense against the fallback category when one exists.
func (s *Store) AdjustAccountBalance(ctx context.Context, accountID string, target int64) (core.Transaction, error) {
	s.mu.Lock()
	current := core.AccountBalance(accountID, s.transactions)
	fallback, hasFallback := core.FindCategoryByName(s.categories, core.FallbackCategoryName)
	s.mu.Unlock()

	diff := target - current
	if diff == 0 {
		return core.Transaction{}, nil
	}

	d := core.TransactionDraft{
		AccountID:   accountID,
		Amount:      diff,
		Type:        core.Income,
		Date:        time.Now(),
		Description: adjustmentDescription,
	}
	if diff < 0 {
		d.Amount = -diff
		d.Type = core.Expense
		if hasFallback {
			d.CategoryID = fallback.ID
		}
	}
	return s.AddTransaction(ctx, d)
}

func (s *Store) AddCategory(ctx context.Context, name, color string) (core.Category, error) {
	if name == "" {
		return core.Category{}, core.ErrEmptyName
	}
	s.mu.Lock()
	for _, c := range s.categories {
		if strings.EqualFold(c.Name, name) {
			s.mu.Unlock()
			return core.Category{}, fmt.Errorf("category %q: %w", name, core.ErrDuplicateName)
		}
	}
	s.mu.Unlock()

	c, err := s.gw.InsertCategory(ctx, s.owner, name, color)
	if err != nil {
		return core.Category{}, fmt.Errorf("add category: %w", err)
	}

	s.mu.Lock()
	s.categories = append(s.categories, c)
	s.mu.Unlock()
	return c, nil
}

// UpdateCategory persists the change and rewrites the category plus the
// denormalized name and color on every transaction that references it.
func (s *Store) UpdateCategory(ctx context.Context, id, name, color string) error {
	if name == "" {
		return core.ErrEmptyName
	}
	if err := s.gw.UpdateCategory(ctx, s.owner, id, name, color); err != nil {
		return fmt.Errorf("update category: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.categories {
		if c.ID == id {
			s.categories[i].Name = name
			s.categories[i].Color = color
			break
		}
	}
	for i, t := range s.transactions {
		if t.CategoryID == id {
			s.transactions[i].CategoryName = name
			s.transactions[i].CategoryColor = color
		}
	}
	return nil
}

// DeleteCategory removes the category remotely, clears references on local
// transactions and drops the category's budget entry. The shrunken budget is
// persisted best-effort; the local state is already consistent either way.
func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	if err := s.gw.DeleteCategory(ctx, s.owner, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}

	s.mu.Lock()
	for i, c := range s.categories {
		if c.ID == id {
			s.categories = append(s.categories[:i], s.categories[i+1:]...)
			break
		}
	}
	for i, t := range s.transactions {
		if t.CategoryID == id {
			s.transactions[i].CategoryID = ""
			s.transactions[i].CategoryName = ""
			s.transactions[i].CategoryColor = ""
		}
	}
	_, hadBudget := s.budget[id]
	var snapshot core.Budget
	if hadBudget {
		delete(s.budget, id)
		snapshot = s.budget.Clone()
	}
	s.mu.Unlock()

	if hadBudget {
		if err := s.gw.UpsertBudget(ctx, s.owner, snapshot); err != nil {
			s.logger.WarnContext(ctx, "failed to persist budget after category deletion",
				log.FieldError, err.Error(), "category_id", id)
		}
	}
	return nil
}

// SetCategoryBudget applies the new limit locally right away and schedules a
// debounced persist, so rapid edits collapse into one write.
func (s *Store) SetCategoryBudget(categoryID string, amount int64) error {
	if amount < 0 {
		return core.ErrNegativeBudget
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.budget == nil {
		s.budget = core.Budget{}
	}
	s.budget[categoryID] = amount

	if s.budgetTimer != nil {
		s.budgetTimer.Stop()
	}
	s.budgetTimer = time.AfterFunc(s.budgetDelay, s.persistBudget)
	return nil
}

func (s *Store) persistBudget() {
	s.mu.Lock()
	snapshot := s.budget.Clone()
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.gw.UpsertBudget(ctx, s.owner, snapshot); err != nil {
		s.logger.Warn("failed to persist budget", log.FieldError, err.Error())
	}
}

// FlushBudget cancels any pending debounce and persists the budget now.
func (s *Store) FlushBudget() {
	s.mu.Lock()
	pending := s.budgetTimer != nil && s.budgetTimer.Stop()
	s.budgetTimer = nil
	s.mu.Unlock()

	if pending {
		s.persistBudget()
	}
}

// UpdateHealthProfile applies the profile locally and persists it in the
// background. Persistence failures are logged, not surfaced.
func (s *Store) UpdateHealthProfile(p core.HealthProfile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.profile = p
	s.mu.Unlock()

	s.writes.Add(1)
	go func() {
		defer s.writes.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.gw.UpsertHealthProfile(ctx, s.owner, p); err != nil {
			s.logger.Warn("failed to persist health profile", log.FieldError, err.Error())
		}
	}()
	return nil
}

// Close flushes pending background writes. Called on sign-out.
func (s *Store) Close() {
	s.FlushBudget()
	s.writes.Wait()
}

func (s *Store) classify(d core.TransactionDraft) core.SpendingAnalysis {
	s.mu.Lock()
	food, ok := core.FindCategoryByName(s.categories, core.FoodCategoryName)
	s.mu.Unlock()
	if !ok {
		return core.ClassifySpending(d, "")
	}
	return core.ClassifySpending(d, food.ID)
}

func (s *Store) publishCreated(ctx context.Context, t core.Transaction) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTransactionCreated(ctx, s.owner, t); err != nil {
		fields := log.NewFields().
			WithTransaction(t.ID, t.Amount).
			WithOperation(log.OpCreate).
			WithError(err)
		s.logger.WarnContext(ctx, "failed to publish transaction creation", fields.ToSlice()...)
	}
}

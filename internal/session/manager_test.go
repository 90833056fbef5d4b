package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"duit/internal/core"
	"duit/internal/log"
)

// fakeGateway is an in-memory Gateway with call counters and optional
// fault injection.
type fakeGateway struct {
	mu           sync.Mutex
	nextID       int
	accounts     map[string][]core.Account
	categories   map[string][]core.Category
	transactions map[string][]core.Transaction
	budgets      map[string]core.Budget
	profiles     map[string]core.HealthProfile

	listCategoriesCalls int
	upsertBudgetCalls   int
	loadDelay           time.Duration
	insertTxErr         error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		accounts:     make(map[string][]core.Account),
		categories:   make(map[string][]core.Category),
		transactions: make(map[string][]core.Transaction),
		budgets:      make(map[string]core.Budget),
		profiles:     make(map[string]core.HealthProfile),
	}
}

func (f *fakeGateway) id() string {
	f.nextID++
	return fmt.Sprintf("id-%d", f.nextID)
}

func (f *fakeGateway) ListAccounts(_ context.Context, owner string) ([]core.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.Account(nil), f.accounts[owner]...), nil
}

func (f *fakeGateway) InsertAccount(_ context.Context, owner, name string) (core.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := core.Account{ID: f.id(), Name: name, CreatedAt: time.Now()}
	f.accounts[owner] = append(f.accounts[owner], a)
	return a, nil
}

func (f *fakeGateway) DeleteAccount(_ context.Context, owner, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, a := range f.accounts[owner] {
		if a.ID == id {
			f.accounts[owner] = append(f.accounts[owner][:i], f.accounts[owner][i+1:]...)
			return nil
		}
	}
	return core.ErrNotFound
}

func (f *fakeGateway) AccountHasTransactions(_ context.Context, owner, accountID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.transactions[owner] {
		if t.AccountID == accountID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeGateway) ListCategories(_ context.Context, owner string) ([]core.Category, error) {
	f.mu.Lock()
	f.listCategoriesCalls++
	delay := f.loadDelay
	out := append([]core.Category(nil), f.categories[owner]...)
	f.mu.Unlock()
	time.Sleep(delay)
	return out, nil
}

func (f *fakeGateway) InsertCategory(_ context.Context, owner, name, color string) (core.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := core.Category{ID: f.id(), Name: name, Color: color, CreatedAt: time.Now()}
	f.categories[owner] = append(f.categories[owner], c)
	return c, nil
}

func (f *fakeGateway) UpdateCategory(_ context.Context, owner, id, name, color string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.categories[owner] {
		if c.ID == id {
			f.categories[owner][i].Name = name
			f.categories[owner][i].Color = color
			return nil
		}
	}
	return core.ErrNotFound
}

func (f *fakeGateway) DeleteCategory(_ context.Context, owner, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.categories[owner] {
		if c.ID == id {
			f.categories[owner] = append(f.categories[owner][:i], f.categories[owner][i+1:]...)
			for j, t := range f.transactions[owner] {
				if t.CategoryID == id {
					f.transactions[owner][j].CategoryID = ""
					f.transactions[owner][j].CategoryName = ""
					f.transactions[owner][j].CategoryColor = ""
				}
			}
			return nil
		}
	}
	return core.ErrNotFound
}

func (f *fakeGateway) ListTransactions(_ context.Context, owner string) ([]core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.Transaction(nil), f.transactions[owner]...), nil
}

func (f *fakeGateway) InsertTransaction(_ context.Context, owner string, d core.TransactionDraft, analysis core.SpendingAnalysis) (core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertTxErr != nil {
		return core.Transaction{}, f.insertTxErr
	}
	if err := d.Validate(); err != nil {
		return core.Transaction{}, err
	}
	t := core.Transaction{
		ID:               f.id(),
		AccountID:        d.AccountID,
		CategoryID:       d.CategoryID,
		Amount:           d.Amount,
		Type:             d.Type,
		Date:             d.Date,
		Description:      d.Description,
		SpendingAnalysis: analysis,
		CreatedAt:        time.Now(),
	}
	if t.Type == core.Income {
		t.CategoryID = ""
	}
	for _, c := range f.categories[owner] {
		if c.ID == t.CategoryID {
			t.CategoryName = c.Name
			t.CategoryColor = c.Color
		}
	}
	f.transactions[owner] = append(f.transactions[owner], t)
	return t, nil
}

func (f *fakeGateway) UpdateTransaction(_ context.Context, owner, id string, d core.TransactionDraft, analysis core.SpendingAnalysis) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.transactions[owner] {
		if t.ID == id {
			t.AccountID = d.AccountID
			t.CategoryID = d.CategoryID
			t.Amount = d.Amount
			t.Type = d.Type
			t.Date = d.Date
			t.Description = d.Description
			t.SpendingAnalysis = analysis
			f.transactions[owner][i] = t
			return nil
		}
	}
	return core.ErrNotFound
}

func (f *fakeGateway) DeleteTransaction(_ context.Context, owner, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.transactions[owner] {
		if t.ID == id {
			f.transactions[owner] = append(f.transactions[owner][:i], f.transactions[owner][i+1:]...)
			return nil
		}
	}
	return core.ErrNotFound
}

func (f *fakeGateway) Budget(_ context.Context, owner string) (core.Budget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.budgets[owner]
	if !ok {
		return nil, core.ErrNotFound
	}
	return b.Clone(), nil
}

func (f *fakeGateway) UpsertBudget(_ context.Context, owner string, b core.Budget) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertBudgetCalls++
	f.budgets[owner] = b.Clone()
	return nil
}

func (f *fakeGateway) HealthProfile(_ context.Context, owner string) (core.HealthProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[owner]
	if !ok {
		return core.HealthProfile{}, core.ErrNotFound
	}
	return p, nil
}

func (f *fakeGateway) UpsertHealthProfile(_ context.Context, owner string, p core.HealthProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[owner] = p
	return nil
}

func testLogger() *log.Logger {
	return log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}

func signIn(t *testing.T, m *Manager, owner string) *Store {
	t.Helper()
	s, err := m.SignIn(context.Background(), owner)
	if err != nil {
		t.Fatalf("SignIn(%q) error = %v", owner, err)
	}
	return s
}

func TestSignInSeedsDefaults(t *testing.T) {
	fake := newFakeGateway()
	m := NewManager(fake, testLogger())

	s := signIn(t, m, "alice")

	categories := s.Categories()
	if len(categories) != len(core.DefaultCategories()) {
		t.Fatalf("seeded %d categories, want %d", len(categories), len(core.DefaultCategories()))
	}
	food, ok := s.FoodCategory()
	if !ok {
		t.Fatal("no food category after seeding")
	}

	budget := s.Budget()
	if budget[food.ID] != core.DefaultFoodBudget {
		t.Errorf("food budget = %d, want %d", budget[food.ID], core.DefaultFoodBudget)
	}
	if _, err := fake.Budget(context.Background(), "alice"); err != nil {
		t.Errorf("default budget was not persisted: %v", err)
	}

	if got := s.Profile().DietPreference; got != core.DietNormal {
		t.Errorf("default diet = %q, want %q", got, core.DietNormal)
	}
	if _, err := fake.HealthProfile(context.Background(), "alice"); err != nil {
		t.Errorf("default profile was not persisted: %v", err)
	}
}

func TestSignInDoesNotReseedExistingCategories(t *testing.T) {
	fake := newFakeGateway()
	fake.InsertCategory(context.Background(), "alice", "Kopi", "#111111")
	m := NewManager(fake, testLogger())

	s := signIn(t, m, "alice")
	if got := len(s.Categories()); got != 1 {
		t.Errorf("categories after sign-in = %d, want the 1 existing", got)
	}
}

func TestConcurrentSignInSharesOneLoad(t *testing.T) {
	fake := newFakeGateway()
	fake.loadDelay = 50 * time.Millisecond
	m := NewManager(fake, testLogger())

	var wg sync.WaitGroup
	stores := make([]*Store, 4)
	errs := make([]error, 4)
	for i := range stores {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stores[i], errs[i] = m.SignIn(context.Background(), "alice")
		}(i)
	}
	wg.Wait()

	for i := range stores {
		if errs[i] != nil {
			t.Fatalf("SignIn() error = %v", errs[i])
		}
		if stores[i] != stores[0] {
			t.Fatal("concurrent sign-ins returned different stores")
		}
	}
	fake.mu.Lock()
	calls := fake.listCategoriesCalls
	fake.mu.Unlock()
	if calls != 1 {
		t.Errorf("ListCategories called %d times, want 1", calls)
	}
}

func TestAddTransactionPrependsAndClassifies(t *testing.T) {
	fake := newFakeGateway()
	m := NewManager(fake, testLogger())
	s := signIn(t, m, "alice")

	acc, err := s.AddAccount(context.Background(), "Cash")
	if err != nil {
		t.Fatalf("AddAccount() error = %v", err)
	}
	food, _ := s.FoodCategory()

	first, err := s.AddTransaction(context.Background(), core.TransactionDraft{
		AccountID:   acc.ID,
		CategoryID:  food.ID,
		Amount:      15_000,
		Type:        core.Expense,
		Date:        time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
		Description: "warteg",
	})
	if err != nil {
		t.Fatalf("AddTransaction() error = %v", err)
	}
	if first.SpendingAnalysis != core.Thrifty {
		t.Errorf("analysis = %q, want %q", first.SpendingAnalysis, core.Thrifty)
	}
	if first.CategoryName != core.FoodCategoryName {
		t.Errorf("category name = %q, want %q", first.CategoryName, core.FoodCategoryName)
	}

	// a back-dated entry still lands at the front of the list
	older, err := s.AddTransaction(context.Background(), core.TransactionDraft{
		AccountID:   acc.ID,
		CategoryID:  food.ID,
		Amount:      120_000,
		Type:        core.Expense,
		Date:        time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		Description: "catering",
	})
	if err != nil {
		t.Fatalf("AddTransaction() error = %v", err)
	}
	if older.SpendingAnalysis != core.Extravagant {
		t.Errorf("analysis = %q, want %q", older.SpendingAnalysis, core.Extravagant)
	}

	txs := s.Transactions()
	if len(txs) != 2 || txs[0].ID != older.ID || txs[1].ID != first.ID {
		t.Errorf("transaction order = %v, want newest insertion first", []string{txs[0].ID, txs[1].ID})
	}
}

func TestAddTransactionRemoteFailureLeavesStateUntouched(t *testing.T) {
	fake := newFakeGateway()
	m := NewManager(fake, testLogger())
	s := signIn(t, m, "alice")

	acc, _ := s.AddAccount(context.Background(), "Cash")
	food, _ := s.FoodCategory()

	fake.insertTxErr = errors.New("gateway down")
	_, err := s.AddTransaction(context.Background(), core.TransactionDraft{
		AccountID:   acc.ID,
		CategoryID:  food.ID,
		Amount:      15_000,
		Type:        core.Expense,
		Date:        time.Now(),
		Description: "warteg",
	})
	if err == nil {
		t.Fatal("AddTransaction() succeeded despite gateway failure")
	}
	if got := len(s.Transactions()); got != 0 {
		t.Errorf("local transactions = %d after failed write, want 0", got)
	}
}

func TestAddAccountRejectsDuplicateName(t *testing.T) {
	fake := newFakeGateway()
	m := NewManager(fake, testLogger())
	s := signIn(t, m, "alice")

	if _, err := s.AddAccount(context.Background(), "Dompet"); err != nil {
		t.Fatalf("AddAccount() error = %v", err)
	}
	if _, err := s.AddAccount(context.Background(), "dompet"); !errors.Is(err, core.ErrDuplicateName) {
		t.Fatalf("AddAccount(case variant) error = %v, want ErrDuplicateName", err)
	}
	if got := len(s.Accounts()); got != 1 {
		t.Errorf("accounts = %d, want 1", got)
	}
}

func TestAddCategoryRejectsDuplicateName(t *testing.T) {
	fake := newFakeGateway()
	m := NewManager(fake, testLogger())
	s := signIn(t, m, "alice")

	if _, err := s.AddCategory(context.Background(), "makanan", "#fff"); !errors.Is(err, core.ErrDuplicateName) {
		t.Fatalf("AddCategory(seeded name) error = %v, want ErrDuplicateName", err)
	}
}

func TestDeleteAccountBlockedWhileInUse(t *testing.T) {
	fake := newFakeGateway()
	m := NewManager(fake, testLogger())
	s := signIn(t, m, "alice")

	acc, _ := s.AddAccount(context.Background(), "Cash")
	food, _ := s.FoodCategory()
	if _, err := s.AddTransaction(context.Background(), core.TransactionDraft{
		AccountID: acc.ID, CategoryID: food.ID, Amount: 15_000,
		Type: core.Expense, Date: time.Now(), Description: "warteg",
	}); err != nil {
		t.Fatalf("AddTransaction() error = %v", err)
	}

	if err := s.DeleteAccount(context.Background(), acc.ID); !errors.Is(err, core.ErrAccountInUse) {
		t.Fatalf("DeleteAccount() error = %v, want ErrAccountInUse", err)
	}
	if got := len(s.Accounts()); got != 1 {
		t.Errorf("accounts = %d, want account kept", got)
	}
}

func TestAdjustAccountBalance(t *testing.T) {
	fake := newFakeGateway()
	m := NewManager(fake, testLogger())
	s := signIn(t, m, "alice")

	acc, _ := s.AddAccount(context.Background(), "Cash")
	if _, err := s.AddTransaction(context.Background(), core.TransactionDraft{
		AccountID: acc.ID, Amount: 500_000, Type: core.Income,
		Date: time.Now(), Description: "gaji",
	}); err != nil {
		t.Fatalf("AddTransaction() error = %v", err)
	}

	t.Run("decrease records fallback expense", func(t *testing.T) {
		adj, err := s.AdjustAccountBalance(context.Background(), acc.ID, 300_000)
		if err != nil {
			t.Fatalf("AdjustAccountBalance() error = %v", err)
		}
		if adj.Type != core.Expense || adj.Amount != 200_000 {
			t.Errorf("adjustment = %s %d, want EXPENSE 200000", adj.Type, adj.Amount)
		}
		if adj.Description != adjustmentDescription {
			t.Errorf("description = %q, want %q", adj.Description, adjustmentDescription)
		}
		if adj.CategoryName != core.FallbackCategoryName {
			t.Errorf("category = %q, want %q", adj.CategoryName, core.FallbackCategoryName)
		}
		if got := s.Balance(acc.ID); got != 300_000 {
			t.Errorf("balance = %d, want 300000", got)
		}
	})

	t.Run("increase records income", func(t *testing.T) {
		adj, err := s.AdjustAccountBalance(context.Background(), acc.ID, 450_000)
		if err != nil {
			t.Fatalf("AdjustAccountBalance() error = %v", err)
		}
		if adj.Type != core.Income || adj.Amount != 150_000 {
			t.Errorf("adjustment = %s %d, want INCOME 150000", adj.Type, adj.Amount)
		}
	})

	t.Run("no-op when already at target", func(t *testing.T) {
		before := len(s.Transactions())
		adj, err := s.AdjustAccountBalance(context.Background(), acc.ID, 450_000)
		if err != nil {
			t.Fatalf("AdjustAccountBalance() error = %v", err)
		}
		if adj.ID != "" || len(s.Transactions()) != before {
			t.Error("no-op adjustment created a transaction")
		}
	})
}

func TestUpdateCategorySyncsTransactionSnapshots(t *testing.T) {
	fake := newFakeGateway()
	m := NewManager(fake, testLogger())
	s := signIn(t, m, "alice")

	acc, _ := s.AddAccount(context.Background(), "Cash")
	food, _ := s.FoodCategory()
	tx, err := s.AddTransaction(context.Background(), core.TransactionDraft{
		AccountID: acc.ID, CategoryID: food.ID, Amount: 15_000,
		Type: core.Expense, Date: time.Now(), Description: "warteg",
	})
	if err != nil {
		t.Fatalf("AddTransaction() error = %v", err)
	}

	if err := s.UpdateCategory(context.Background(), food.ID, "Kuliner", "#000000"); err != nil {
		t.Fatalf("UpdateCategory() error = %v", err)
	}

	txs := s.Transactions()
	if txs[0].ID != tx.ID || txs[0].CategoryName != "Kuliner" || txs[0].CategoryColor != "#000000" {
		t.Errorf("transaction snapshot = %q/%q, want Kuliner/#000000", txs[0].CategoryName, txs[0].CategoryColor)
	}
}

func TestDeleteCategoryClearsReferencesAndBudget(t *testing.T) {
	fake := newFakeGateway()
	m := NewManager(fake, testLogger())
	s := signIn(t, m, "alice")

	acc, _ := s.AddAccount(context.Background(), "Cash")
	food, _ := s.FoodCategory()
	if _, err := s.AddTransaction(context.Background(), core.TransactionDraft{
		AccountID: acc.ID, CategoryID: food.ID, Amount: 15_000,
		Type: core.Expense, Date: time.Now(), Description: "warteg",
	}); err != nil {
		t.Fatalf("AddTransaction() error = %v", err)
	}

	persistedBefore := fake.upsertBudgetCalls
	if err := s.DeleteCategory(context.Background(), food.ID); err != nil {
		t.Fatalf("DeleteCategory() error = %v", err)
	}

	if _, ok := s.FoodCategory(); ok {
		t.Error("food category still present after delete")
	}
	if _, ok := s.Budget()[food.ID]; ok {
		t.Error("budget still carries deleted category")
	}
	if fake.upsertBudgetCalls != persistedBefore+1 {
		t.Errorf("shrunken budget persisted %d times, want 1", fake.upsertBudgetCalls-persistedBefore)
	}
	if got := s.Transactions()[0].CategoryID; got != "" {
		t.Errorf("transaction still references deleted category %q", got)
	}
}

func TestSetCategoryBudgetDebounces(t *testing.T) {
	fake := newFakeGateway()
	m := NewManager(fake, testLogger(), WithBudgetDebounce(20*time.Millisecond))
	s := signIn(t, m, "alice")
	food, _ := s.FoodCategory()

	before := fake.upsertBudgetCalls
	for _, amount := range []int64{1_000_000, 1_200_000, 1_750_000} {
		if err := s.SetCategoryBudget(food.ID, amount); err != nil {
			t.Fatalf("SetCategoryBudget(%d) error = %v", amount, err)
		}
	}
	if got := s.Budget()[food.ID]; got != 1_750_000 {
		t.Errorf("local budget = %d immediately, want 1750000", got)
	}

	time.Sleep(100 * time.Millisecond)
	if fake.upsertBudgetCalls != before+1 {
		t.Errorf("debounced writes = %d, want 1", fake.upsertBudgetCalls-before)
	}
	persisted, err := fake.Budget(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Budget() error = %v", err)
	}
	if persisted[food.ID] != 1_750_000 {
		t.Errorf("persisted budget = %d, want 1750000", persisted[food.ID])
	}

	if err := s.SetCategoryBudget(food.ID, -1); !errors.Is(err, core.ErrNegativeBudget) {
		t.Errorf("negative budget error = %v, want ErrNegativeBudget", err)
	}
}

func TestSignOutFlushesPendingWrites(t *testing.T) {
	fake := newFakeGateway()
	m := NewManager(fake, testLogger(), WithBudgetDebounce(time.Hour))
	s := signIn(t, m, "alice")
	food, _ := s.FoodCategory()

	if err := s.SetCategoryBudget(food.ID, 2_000_000); err != nil {
		t.Fatalf("SetCategoryBudget() error = %v", err)
	}
	if err := s.UpdateHealthProfile(core.HealthProfile{DietPreference: core.DietVegetarian}); err != nil {
		t.Fatalf("UpdateHealthProfile() error = %v", err)
	}

	m.SignOut("alice")

	persisted, err := fake.Budget(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Budget() error = %v", err)
	}
	if persisted[food.ID] != 2_000_000 {
		t.Errorf("persisted budget = %d, want 2000000", persisted[food.ID])
	}
	p, err := fake.HealthProfile(context.Background(), "alice")
	if err != nil {
		t.Fatalf("HealthProfile() error = %v", err)
	}
	if p.DietPreference != core.DietVegetarian {
		t.Errorf("persisted diet = %q, want %q", p.DietPreference, core.DietVegetarian)
	}

	if m.Store("alice") != nil {
		t.Error("store still registered after sign-out")
	}

	// next sign-in loads fresh
	s2 := signIn(t, m, "alice")
	if s2 == s {
		t.Error("sign-in after sign-out returned the stale store")
	}
}

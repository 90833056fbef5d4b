// Package session manages per-owner working sets: one bulk load at sign-in,
// in-memory reads afterwards, write-through mutations via the data gateway.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"duit/internal/core"
	"duit/internal/gateway"
	"duit/internal/log"
)

// DefaultBudgetDebounce is how long budget edits are held back before the
// collapsed value is written out.
const DefaultBudgetDebounce = 500 * time.Millisecond

// Manager signs owners in and out and hands out their stores. Concurrent
// sign-ins for the same owner share a single bulk load.
type Manager struct {
	gw        gateway.Gateway
	publisher EventPublisher
	logger    *log.Logger

	budgetDebounce time.Duration

	mu     sync.Mutex
	stores map[string]*Store
	loads  map[string]*loadCall
}

type loadCall struct {
	done  chan struct{}
	store *Store
	err   error
}

// Option configures a Manager.
type Option func(*Manager)

// WithEventPublisher wires transaction mutation publishing.
func WithEventPublisher(p EventPublisher) Option {
	return func(m *Manager) { m.publisher = p }
}

// WithBudgetDebounce overrides the budget write delay. Mostly for tests.
func WithBudgetDebounce(d time.Duration) Option {
	return func(m *Manager) { m.budgetDebounce = d }
}

func NewManager(gw gateway.Gateway, logger *log.Logger, opts ...Option) *Manager {
	m := &Manager{
		gw:             gw,
		logger:         logger.WithComponent(log.ComponentSession),
		budgetDebounce: DefaultBudgetDebounce,
		stores:         make(map[string]*Store),
		loads:          make(map[string]*loadCall),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SignIn returns the owner's store, bulk-loading it on first use. If a load
// for the same owner is already running, the call waits for that load instead
// of starting another.
func (m *Manager) SignIn(ctx context.Context, owner string) (*Store, error) {
	if owner == "" {
		return nil, errors.New("empty owner")
	}

	m.mu.Lock()
	if s, ok := m.stores[owner]; ok {
		m.mu.Unlock()
		return s, nil
	}
	if call, ok := m.loads[owner]; ok {
		m.mu.Unlock()
		select {
		case <-call.done:
			return call.store, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	call := &loadCall{done: make(chan struct{})}
	m.loads[owner] = call
	m.mu.Unlock()

	store, err := m.bulkLoad(ctx, owner)

	m.mu.Lock()
	call.store, call.err = store, err
	delete(m.loads, owner)
	if err == nil {
		m.stores[owner] = store
	}
	m.mu.Unlock()
	close(call.done)

	return store, err
}

// Store returns an already loaded store, or nil.
func (m *Manager) Store(owner string) *Store {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stores[owner]
}

// SignOut drops the owner's store after flushing its pending writes.
func (m *Manager) SignOut(owner string) {
	m.mu.Lock()
	s := m.stores[owner]
	delete(m.stores, owner)
	m.mu.Unlock()

	if s != nil {
		s.Close()
	}
}

// Shutdown signs out every active owner.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	stores := make([]*Store, 0, len(m.stores))
	for owner, s := range m.stores {
		stores = append(stores, s)
		delete(m.stores, owner)
	}
	m.mu.Unlock()

	for _, s := range stores {
		s.Close()
	}
}

// bulkLoad reads the owner's whole data set. Categories come first so an
// empty set can be seeded with the defaults; the remaining collections load
// concurrently. A missing budget or health profile is replaced with defaults
// and written back; any other failure aborts the sign-in.
func (m *Manager) bulkLoad(ctx context.Context, owner string) (*Store, error) {
	start := time.Now()

	categories, err := m.loadCategories(ctx, owner)
	if err != nil {
		return nil, err
	}

	s := &Store{
		owner:       owner,
		gw:          m.gw,
		publisher:   m.publisher,
		logger:      m.logger,
		budgetDelay: m.budgetDebounce,
		categories:  categories,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		accounts, err := m.gw.ListAccounts(gctx, owner)
		if err != nil {
			return fmt.Errorf("load accounts: %w", err)
		}
		s.accounts = accounts
		return nil
	})
	g.Go(func() error {
		transactions, err := m.gw.ListTransactions(gctx, owner)
		if err != nil {
			return fmt.Errorf("load transactions: %w", err)
		}
		s.transactions = transactions
		return nil
	})
	g.Go(func() error {
		budget, err := m.gw.Budget(gctx, owner)
		if errors.Is(err, core.ErrNotFound) {
			budget = core.DefaultBudget(categories)
			if err := m.gw.UpsertBudget(gctx, owner, budget); err != nil {
				return fmt.Errorf("seed default budget: %w", err)
			}
		} else if err != nil {
			return fmt.Errorf("load budget: %w", err)
		}
		s.budget = budget
		return nil
	})
	g.Go(func() error {
		profile, err := m.gw.HealthProfile(gctx, owner)
		if errors.Is(err, core.ErrNotFound) {
			profile = core.DefaultHealthProfile()
			if err := m.gw.UpsertHealthProfile(gctx, owner, profile); err != nil {
				return fmt.Errorf("seed default health profile: %w", err)
			}
		} else if err != nil {
			return fmt.Errorf("load health profile: %w", err)
		}
		s.profile = profile
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "session loaded",
		"owner", owner,
		"accounts", len(s.accounts),
		"categories", len(s.categories),
		"transactions", len(s.transactions),
		log.FieldDuration, time.Since(start).Milliseconds())
	return s, nil
}

func (m *Manager) loadCategories(ctx context.Context, owner string) ([]core.Category, error) {
	categories, err := m.gw.ListCategories(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	if len(categories) > 0 {
		return categories, nil
	}

	// first sign-in: seed the standard set
	for _, seed := range core.DefaultCategories() {
		c, err := m.gw.InsertCategory(ctx, owner, seed.Name, seed.Color)
		if err != nil {
			return nil, fmt.Errorf("seed category %q: %w", seed.Name, err)
		}
		categories = append(categories, c)
	}
	m.logger.InfoContext(ctx, "seeded default categories", "owner", owner, "count", len(categories))
	return categories, nil
}

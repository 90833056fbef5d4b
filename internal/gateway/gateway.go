// Package gateway is the data-access port of the application. Every operation
// is scoped by the owning user's id; callers never see another owner's rows.
package gateway

import (
	"context"

	"duit/internal/core"
)

// Gateway exposes single-round-trip CRUD operations per collection. There is
// no batching, paging, or retrying at this layer; budget and health-profile
// rows are per-owner singletons upserted wholesale.
type Gateway interface {
	ListAccounts(ctx context.Context, owner string) ([]core.Account, error)
	InsertAccount(ctx context.Context, owner, name string) (core.Account, error)
	DeleteAccount(ctx context.Context, owner, id string) error
	// AccountHasTransactions is the referential-integrity probe run
	// immediately before an account delete.
	AccountHasTransactions(ctx context.Context, owner, accountID string) (bool, error)

	ListCategories(ctx context.Context, owner string) ([]core.Category, error)
	InsertCategory(ctx context.Context, owner, name, color string) (core.Category, error)
	UpdateCategory(ctx context.Context, owner, id, name, color string) error
	// DeleteCategory clears the category reference on every transaction
	// that points at it, then removes the category row.
	DeleteCategory(ctx context.Context, owner, id string) error

	// ListTransactions returns the owner's transactions joined with the
	// category display fields, ordered by date descending then creation
	// time descending.
	ListTransactions(ctx context.Context, owner string) ([]core.Transaction, error)
	InsertTransaction(ctx context.Context, owner string, d core.TransactionDraft, analysis core.SpendingAnalysis) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, owner, id string, d core.TransactionDraft, analysis core.SpendingAnalysis) error
	DeleteTransaction(ctx context.Context, owner, id string) error

	// Budget and HealthProfile return core.ErrNotFound when the owner has
	// no row yet; callers treat that as an expected condition.
	Budget(ctx context.Context, owner string) (core.Budget, error)
	UpsertBudget(ctx context.Context, owner string, b core.Budget) error
	HealthProfile(ctx context.Context, owner string) (core.HealthProfile, error)
	UpsertHealthProfile(ctx context.Context, owner string, p core.HealthProfile) error
}

package gateway

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"duit/internal/core"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = time.RFC3339Nano
)

// SQLite implements Gateway on a local SQLite database.
type SQLite struct {
	db *sql.DB
}

var _ Gateway = (*SQLite)(nil)

func NewSQLite(dbPath string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (g *SQLite) Close() error {
	if g.db != nil {
		return g.db.Close()
	}
	return nil
}

// isUniqueViolation detects the unique(user_id, name) constraints; the
// driver exposes them only through the error text.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (g *SQLite) ListAccounts(ctx context.Context, owner string) ([]core.Account, error) {
	rows, err := g.db.QueryContext(ctx,
		`SELECT id, name, created_at FROM accounts WHERE user_id = ? ORDER BY created_at, name`, owner)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		var a core.Account
		var createdAt string
		if err := rows.Scan(&a.ID, &a.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a.CreatedAt = parseTime(createdAt)
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

func (g *SQLite) InsertAccount(ctx context.Context, owner, name string) (core.Account, error) {
	a := core.Account{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	_, err := g.db.ExecContext(ctx,
		`INSERT INTO accounts (id, user_id, name, created_at) VALUES (?, ?, ?, ?)`,
		a.ID, owner, a.Name, a.CreatedAt.Format(timeLayout))
	if isUniqueViolation(err) {
		return core.Account{}, fmt.Errorf("account %q: %w", name, core.ErrDuplicateName)
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("insert account: %w", err)
	}
	slog.DebugContext(ctx, "account created", "id", a.ID, "name", a.Name)
	return a, nil
}

func (g *SQLite) DeleteAccount(ctx context.Context, owner, id string) error {
	res, err := g.db.ExecContext(ctx,
		`DELETE FROM accounts WHERE user_id = ? AND id = ?`, owner, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("account %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (g *SQLite) AccountHasTransactions(ctx context.Context, owner, accountID string) (bool, error) {
	var one int
	err := g.db.QueryRowContext(ctx,
		`SELECT 1 FROM transactions WHERE user_id = ? AND account_id = ? LIMIT 1`,
		owner, accountID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("probe account transactions: %w", err)
	}
	return true, nil
}

func (g *SQLite) ListCategories(ctx context.Context, owner string) ([]core.Category, error) {
	rows, err := g.db.QueryContext(ctx,
		`SELECT id, name, color, created_at FROM categories WHERE user_id = ? ORDER BY created_at, name`, owner)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var categories []core.Category
	for rows.Next() {
		var c core.Category
		var createdAt string
		if err := rows.Scan(&c.ID, &c.Name, &c.Color, &createdAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.CreatedAt = parseTime(createdAt)
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return categories, nil
}

func (g *SQLite) InsertCategory(ctx context.Context, owner, name, color string) (core.Category, error) {
	c := core.Category{
		ID:        uuid.NewString(),
		Name:      name,
		Color:     color,
		CreatedAt: time.Now().UTC(),
	}
	_, err := g.db.ExecContext(ctx,
		`INSERT INTO categories (id, user_id, name, color, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, owner, c.Name, c.Color, c.CreatedAt.Format(timeLayout))
	if isUniqueViolation(err) {
		return core.Category{}, fmt.Errorf("category %q: %w", name, core.ErrDuplicateName)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	return c, nil
}

func (g *SQLite) UpdateCategory(ctx context.Context, owner, id, name, color string) error {
	res, err := g.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, color = ? WHERE user_id = ? AND id = ?`,
		name, color, owner, id)
	if isUniqueViolation(err) {
		return fmt.Errorf("category %q: %w", name, core.ErrDuplicateName)
	}
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("category %s: %w", id, core.ErrNotFound)
	}
	return nil
}

// DeleteCategory implements set-null-on-delete: referencing transactions keep
// their rows but lose the category link, in the same database transaction.
func (g *SQLite) DeleteCategory(ctx context.Context, owner, id string) error {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete category: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE transactions SET category_id = NULL WHERE user_id = ? AND category_id = ?`,
		owner, id); err != nil {
		return fmt.Errorf("clear category references: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`DELETE FROM categories WHERE user_id = ? AND id = ?`, owner, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("category %s: %w", id, core.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete category: %w", err)
	}
	return nil
}

func (g *SQLite) ListTransactions(ctx context.Context, owner string) ([]core.Transaction, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT t.id, t.account_id, t.category_id, c.name, c.color,
		       t.amount, t.type, t.date, t.description, t.spending_analysis, t.created_at
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = ?
		ORDER BY t.date DESC, t.created_at DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return transactions, nil
}

func scanTransaction(rows *sql.Rows) (core.Transaction, error) {
	var t core.Transaction
	var categoryID, categoryName, categoryColor, analysis sql.NullString
	var date, createdAt string
	err := rows.Scan(&t.ID, &t.AccountID, &categoryID, &categoryName, &categoryColor,
		&t.Amount, &t.Type, &date, &t.Description, &analysis, &createdAt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}
	t.CategoryID = categoryID.String
	t.CategoryName = categoryName.String
	t.CategoryColor = categoryColor.String
	t.SpendingAnalysis = core.SpendingAnalysis(analysis.String)
	t.Date, _ = time.Parse(dateLayout, date)
	t.CreatedAt = parseTime(createdAt)
	return t, nil
}

func (g *SQLite) InsertTransaction(ctx context.Context, owner string, d core.TransactionDraft, analysis core.SpendingAnalysis) (core.Transaction, error) {
	if err := d.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("validate transaction: %w", err)
	}

	t := core.Transaction{
		ID:               uuid.NewString(),
		AccountID:        d.AccountID,
		CategoryID:       d.CategoryID,
		Amount:           d.Amount,
		Type:             d.Type,
		Date:             d.Date,
		Description:      d.Description,
		SpendingAnalysis: analysis,
		CreatedAt:        time.Now().UTC(),
	}
	if t.Type == core.Income {
		t.CategoryID = ""
	}

	if t.CategoryID != "" {
		err := g.db.QueryRowContext(ctx,
			`SELECT name, color FROM categories WHERE user_id = ? AND id = ?`,
			owner, t.CategoryID).Scan(&t.CategoryName, &t.CategoryColor)
		if errors.Is(err, sql.ErrNoRows) {
			return core.Transaction{}, fmt.Errorf("category %s: %w", t.CategoryID, core.ErrNotFound)
		}
		if err != nil {
			return core.Transaction{}, fmt.Errorf("resolve category: %w", err)
		}
	}

	_, err := g.db.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, account_id, category_id, amount, type, date, description, spending_analysis, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, owner, t.AccountID, nullable(t.CategoryID), t.Amount, string(t.Type),
		t.Date.Format(dateLayout), t.Description, nullable(string(t.SpendingAnalysis)),
		t.CreatedAt.Format(timeLayout))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	slog.DebugContext(ctx, "transaction created",
		"id", t.ID, "type", t.Type, "amount", t.Amount)
	return t, nil
}

func (g *SQLite) UpdateTransaction(ctx context.Context, owner, id string, d core.TransactionDraft, analysis core.SpendingAnalysis) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("validate transaction: %w", err)
	}
	categoryID := d.CategoryID
	if d.Type == core.Income {
		categoryID = ""
	}
	res, err := g.db.ExecContext(ctx, `
		UPDATE transactions
		SET account_id = ?, category_id = ?, amount = ?, type = ?, date = ?, description = ?, spending_analysis = ?
		WHERE user_id = ? AND id = ?`,
		d.AccountID, nullable(categoryID), d.Amount, string(d.Type),
		d.Date.Format(dateLayout), d.Description, nullable(string(analysis)),
		owner, id)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (g *SQLite) DeleteTransaction(ctx context.Context, owner, id string) error {
	res, err := g.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE user_id = ? AND id = ?`, owner, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (g *SQLite) Budget(ctx context.Context, owner string) (core.Budget, error) {
	var data string
	err := g.db.QueryRowContext(ctx,
		`SELECT budget_data FROM budgets WHERE user_id = ?`, owner).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query budget: %w", err)
	}
	var b core.Budget
	if err := json.Unmarshal([]byte(data), &b); err != nil {
		return nil, fmt.Errorf("decode budget: %w", err)
	}
	return b, nil
}

func (g *SQLite) UpsertBudget(ctx context.Context, owner string, b core.Budget) error {
	if err := b.Validate(); err != nil {
		return fmt.Errorf("validate budget: %w", err)
	}
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode budget: %w", err)
	}
	now := time.Now().UTC().Format(timeLayout)
	_, err = g.db.ExecContext(ctx, `
		INSERT INTO budgets (user_id, budget_data, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET budget_data = excluded.budget_data, updated_at = excluded.updated_at`,
		owner, string(data), now, now)
	if err != nil {
		return fmt.Errorf("upsert budget: %w", err)
	}
	return nil
}

func (g *SQLite) HealthProfile(ctx context.Context, owner string) (core.HealthProfile, error) {
	var p core.HealthProfile
	err := g.db.QueryRowContext(ctx,
		`SELECT diet_preference FROM health_profiles WHERE user_id = ?`, owner).Scan(&p.DietPreference)
	if errors.Is(err, sql.ErrNoRows) {
		return core.HealthProfile{}, core.ErrNotFound
	}
	if err != nil {
		return core.HealthProfile{}, fmt.Errorf("query health profile: %w", err)
	}
	return p, nil
}

func (g *SQLite) UpsertHealthProfile(ctx context.Context, owner string, p core.HealthProfile) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("validate health profile: %w", err)
	}
	now := time.Now().UTC().Format(timeLayout)
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO health_profiles (user_id, diet_preference, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET diet_preference = excluded.diet_preference, updated_at = excluded.updated_at`,
		owner, string(p.DietPreference), now, now)
	if err != nil {
		return fmt.Errorf("upsert health profile: %w", err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

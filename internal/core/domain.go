package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"
)

const (
	Thrifty     SpendingAnalysis = "Hemat"
	Reasonable  SpendingAnalysis = "Wajar"
	Extravagant SpendingAnalysis = "Cenderung Boros"
)

const (
	DietNormal     DietPreference = "Normal"
	DietVegetarian DietPreference = "Vegetarian"
	DietLowSugar   DietPreference = "RendahGula"
	DietPregnancy  DietPreference = "Ibu Hamil"
	DietBulking    DietPreference = "Badan Berisi"
	DietKidGrowth  DietPreference = "Pertumbuhan Anak"
)

// FoodCategoryName is the display name that marks a category as the food
// category. Budget tracking and the advisory features key off it.
const FoodCategoryName = "Makanan"

// FallbackCategoryName holds transactions that need a category but have no
// better fit, such as balance adjustments.
const FallbackCategoryName = "Lainnya"

// DefaultFoodBudget is the monthly allocation (IDR) given to the food
// category when a user signs in for the first time.
const DefaultFoodBudget int64 = 1_500_000

type (
	TransactionType  string
	SpendingAnalysis string
	DietPreference   string

	Account struct {
		ID        string
		Name      string
		CreatedAt time.Time
	}

	Category struct {
		ID        string
		Name      string
		Color     string
		CreatedAt time.Time
	}

	// Transaction is a single ledger entry. Amount is always positive; the
	// sign is implied by Type. CategoryName and CategoryColor are a
	// denormalized display snapshot of the referenced category and must be
	// re-synced explicitly when the category changes.
	Transaction struct {
		ID               string
		AccountID        string
		CategoryID       string
		CategoryName     string
		CategoryColor    string
		Amount           int64
		Type             TransactionType
		Date             time.Time
		Description      string
		SpendingAnalysis SpendingAnalysis
		CreatedAt        time.Time
	}

	// TransactionDraft carries user input for a transaction before the
	// gateway assigns an id and the classifier assigns a label.
	TransactionDraft struct {
		AccountID   string
		CategoryID  string
		Amount      int64
		Type        TransactionType
		Date        time.Time
		Description string
	}

	// Budget maps category id to a monthly allocation in IDR. Categories
	// absent from the map have a zero allocation.
	Budget map[string]int64

	HealthProfile struct {
		DietPreference DietPreference
	}

	// CategorySeed is a name+color pair used to seed a fresh user's
	// category list.
	CategorySeed struct {
		Name  string
		Color string
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrInvalidDiet      = errors.New("invalid diet preference")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyName        = errors.New("empty name")
	ErrMissingAccount   = errors.New("missing account reference")
	ErrMissingCategory  = errors.New("missing category reference")
	ErrNegativeBudget   = errors.New("negative budget allocation")

	ErrNotFound      = errors.New("not found")
	ErrDuplicateName = errors.New("duplicate name")
	ErrAccountInUse  = errors.New("account has transactions")
)

// DefaultCategories returns the category set seeded for users that have none.
func DefaultCategories() []CategorySeed {
	return []CategorySeed{
		{Name: FoodCategoryName, Color: "#ef4444"},
		{Name: "Transportasi", Color: "#f97316"},
		{Name: "Tagihan", Color: "#eab308"},
		{Name: "Hiburan", Color: "#84cc16"},
		{Name: "Belanja", Color: "#22c55e"},
		{Name: "Kesehatan", Color: "#14b8a6"},
		{Name: FallbackCategoryName, Color: "#64748b"},
	}
}

// FindCategoryByName returns the first category whose name matches,
// case-insensitively.
func FindCategoryByName(categories []Category, name string) (Category, bool) {
	for _, c := range categories {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Category{}, false
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (p DietPreference) Valid() bool {
	switch p {
	case DietNormal, DietVegetarian, DietLowSugar, DietPregnancy, DietBulking, DietKidGrowth:
		return true
	}
	return false
}

func (d TransactionDraft) Validate() error {
	if d.Amount <= 0 {
		return ErrInvalidAmount
	}
	if !d.Type.Valid() {
		return ErrInvalidType
	}
	if d.Date.IsZero() {
		return ErrInvalidDate
	}
	if strings.TrimSpace(d.Description) == "" {
		return ErrEmptyDescription
	}
	if len(d.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if strings.TrimSpace(d.AccountID) == "" {
		return ErrMissingAccount
	}
	if d.Type == Expense && strings.TrimSpace(d.CategoryID) == "" {
		return ErrMissingCategory
	}
	return nil
}

func (b Budget) Validate() error {
	for _, amount := range b {
		if amount < 0 {
			return ErrNegativeBudget
		}
	}
	return nil
}

// Clone returns an independent copy so callers can hand budgets across
// goroutine boundaries without sharing the map.
func (b Budget) Clone() Budget {
	out := make(Budget, len(b))
	for id, amount := range b {
		out[id] = amount
	}
	return out
}

func (p HealthProfile) Validate() error {
	if !p.DietPreference.Valid() {
		return ErrInvalidDiet
	}
	return nil
}

// DefaultHealthProfile is persisted for users without a profile row.
func DefaultHealthProfile() HealthProfile {
	return HealthProfile{DietPreference: DietNormal}
}

// DefaultBudget allocates the default monthly amount to the food category if
// one exists; otherwise the budget starts empty.
func DefaultBudget(categories []Category) Budget {
	b := Budget{}
	if food, ok := FindCategoryByName(categories, FoodCategoryName); ok {
		b[food.ID] = DefaultFoodBudget
	}
	return b
}

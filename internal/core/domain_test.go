package core

import (
	"errors"
	"testing"
	"time"
)

func draft() TransactionDraft {
	return TransactionDraft{
		AccountID:   "acc-1",
		CategoryID:  "cat-1",
		Amount:      25_000,
		Type:        Expense,
		Date:        time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
		Description: "makan siang",
	}
}

func TestTransactionDraftValidate(t *testing.T) {
	if err := draft().Validate(); err != nil {
		t.Fatalf("expected valid draft, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*TransactionDraft)
		want   error
	}{
		{"zero amount", func(d *TransactionDraft) { d.Amount = 0 }, ErrInvalidAmount},
		{"negative amount", func(d *TransactionDraft) { d.Amount = -5 }, ErrInvalidAmount},
		{"bad type", func(d *TransactionDraft) { d.Type = "TRANSFER" }, ErrInvalidType},
		{"zero date", func(d *TransactionDraft) { d.Date = time.Time{} }, ErrInvalidDate},
		{"blank description", func(d *TransactionDraft) { d.Description = "  " }, ErrEmptyDescription},
		{"no account", func(d *TransactionDraft) { d.AccountID = "" }, ErrMissingAccount},
		{"expense without category", func(d *TransactionDraft) { d.CategoryID = "" }, ErrMissingCategory},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := draft()
			tc.mutate(&d)
			if err := d.Validate(); !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}

	// Income never needs a category.
	d := draft()
	d.Type = Income
	d.CategoryID = ""
	if err := d.Validate(); err != nil {
		t.Fatalf("income without category should validate, got %v", err)
	}
}

func TestBudgetValidate(t *testing.T) {
	if err := (Budget{"a": 0, "b": 100}).Validate(); err != nil {
		t.Fatalf("expected valid budget, got %v", err)
	}
	if err := (Budget{"a": -1}).Validate(); !errors.Is(err, ErrNegativeBudget) {
		t.Fatalf("expected ErrNegativeBudget, got %v", err)
	}
}

func TestBudgetClone(t *testing.T) {
	b := Budget{"a": 10}
	c := b.Clone()
	c["a"] = 99
	if b["a"] != 10 {
		t.Fatalf("clone mutated original: %v", b)
	}
}

func TestHealthProfileValidate(t *testing.T) {
	for _, p := range []DietPreference{DietNormal, DietVegetarian, DietLowSugar, DietPregnancy, DietBulking, DietKidGrowth} {
		if err := (HealthProfile{DietPreference: p}).Validate(); err != nil {
			t.Fatalf("%s should validate, got %v", p, err)
		}
	}
	if err := (HealthProfile{DietPreference: "Keto"}).Validate(); !errors.Is(err, ErrInvalidDiet) {
		t.Fatalf("expected ErrInvalidDiet, got %v", err)
	}
}

func TestDefaultCategories(t *testing.T) {
	seeds := DefaultCategories()
	if len(seeds) != 7 {
		t.Fatalf("expected 7 default categories, got %d", len(seeds))
	}
	if seeds[0].Name != FoodCategoryName {
		t.Fatalf("food category should lead the defaults, got %q", seeds[0].Name)
	}
	seen := map[string]bool{}
	for _, s := range seeds {
		if s.Name == "" || s.Color == "" {
			t.Fatalf("seed with empty field: %+v", s)
		}
		if seen[s.Name] {
			t.Fatalf("duplicate seed name %q", s.Name)
		}
		seen[s.Name] = true
	}
}

func TestDefaultBudget(t *testing.T) {
	cats := []Category{{ID: "c1", Name: "Transportasi"}, {ID: "c2", Name: "Makanan"}}
	b := DefaultBudget(cats)
	if b["c2"] != DefaultFoodBudget {
		t.Fatalf("food allocation = %d, want %d", b["c2"], DefaultFoodBudget)
	}
	if len(b) != 1 {
		t.Fatalf("only the food category should be allocated, got %v", b)
	}

	if b := DefaultBudget([]Category{{ID: "c1", Name: "Transportasi"}}); len(b) != 0 {
		t.Fatalf("no food category should mean empty budget, got %v", b)
	}
}

func TestFindCategoryByName(t *testing.T) {
	cats := []Category{{ID: "c1", Name: "Makanan"}}
	if _, ok := FindCategoryByName(cats, "makanan"); !ok {
		t.Fatal("lookup should be case-insensitive")
	}
	if _, ok := FindCategoryByName(cats, "Hiburan"); ok {
		t.Fatal("unexpected match")
	}
}

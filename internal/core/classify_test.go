package core

import (
	"testing"
	"time"
)

func classifyDraft(amount int64, typ TransactionType, categoryID string) TransactionDraft {
	return TransactionDraft{
		AccountID:   "acc",
		CategoryID:  categoryID,
		Amount:      amount,
		Type:        typ,
		Date:        time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Description: "x",
	}
}

func TestClassifySpendingFoodThresholds(t *testing.T) {
	const food = "food-cat"
	cases := []struct {
		amount int64
		want   SpendingAnalysis
	}{
		{1, Thrifty},
		{19_999, Thrifty},
		{20_000, Reasonable}, // boundary: strictly below
		{50_000, Reasonable},
		{100_000, Reasonable}, // boundary: strictly above
		{100_001, Extravagant},
		{500_000, Extravagant},
	}
	for _, tc := range cases {
		got := ClassifySpending(classifyDraft(tc.amount, Expense, food), food)
		if got != tc.want {
			t.Errorf("amount %d: got %s, want %s", tc.amount, got, tc.want)
		}
	}
}

func TestClassifySpendingNonFoodAlwaysReasonable(t *testing.T) {
	const food = "food-cat"

	// Income, at any amount, is Wajar.
	for _, amount := range []int64{1, 19_999, 100_001, 9_000_000} {
		if got := ClassifySpending(classifyDraft(amount, Income, ""), food); got != Reasonable {
			t.Errorf("income %d: got %s, want %s", amount, got, Reasonable)
		}
	}

	// Expenses outside the food category too.
	if got := ClassifySpending(classifyDraft(150_000, Expense, "other-cat"), food); got != Reasonable {
		t.Errorf("non-food expense: got %s, want %s", got, Reasonable)
	}

	// No food category configured at all.
	if got := ClassifySpending(classifyDraft(5_000, Expense, "cat"), ""); got != Reasonable {
		t.Errorf("without food category: got %s, want %s", got, Reasonable)
	}
}

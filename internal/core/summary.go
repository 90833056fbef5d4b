package core

import (
	"sort"
	"time"
)

// CategoryAmount is an expense total aggregated by category.
type CategoryAmount struct {
	CategoryID string
	Name       string
	Color      string
	Amount     int64
}

// MonthSummary aggregates the current calendar month for the dashboard.
type MonthSummary struct {
	Income      int64
	Expense     int64
	FoodExpense int64
	FoodBudget  int64
	ByCategory  []CategoryAmount
}

// AccountBalance derives an account's balance by summing every transaction
// that references it: incomes add, expenses subtract. Balances are never
// stored; this full scan is the single source of truth.
func AccountBalance(accountID string, transactions []Transaction) int64 {
	var balance int64
	for _, t := range transactions {
		if t.AccountID != accountID {
			continue
		}
		if t.Type == Income {
			balance += t.Amount
		} else {
			balance -= t.Amount
		}
	}
	return balance
}

// BudgetUsedPercent reports how much of the food budget the month's food
// spending consumes, and whether it runs over. A zero budget is never over.
func (s MonthSummary) BudgetUsedPercent() (percent float64, over bool) {
	if s.FoodBudget <= 0 {
		return 0, false
	}
	percent = float64(s.FoodExpense) / float64(s.FoodBudget) * 100
	return percent, percent > 100
}

// Summarize aggregates the calendar month containing now. The food category
// is located by name; when absent, food figures stay zero.
func Summarize(transactions []Transaction, budget Budget, categories []Category, now time.Time) MonthSummary {
	var s MonthSummary
	foodID := ""
	if food, ok := FindCategoryByName(categories, FoodCategoryName); ok {
		foodID = food.ID
		s.FoodBudget = budget[food.ID]
	}

	year, month := now.Year(), now.Month()
	byCategory := map[string]*CategoryAmount{}
	for _, t := range transactions {
		if t.Date.Year() != year || t.Date.Month() != month {
			continue
		}
		switch t.Type {
		case Income:
			s.Income += t.Amount
		case Expense:
			s.Expense += t.Amount
			if t.CategoryID != "" {
				entry, ok := byCategory[t.CategoryID]
				if !ok {
					entry = &CategoryAmount{CategoryID: t.CategoryID, Name: t.CategoryName, Color: t.CategoryColor}
					byCategory[t.CategoryID] = entry
				}
				entry.Amount += t.Amount
			}
			if foodID != "" && t.CategoryID == foodID {
				s.FoodExpense += t.Amount
			}
		}
	}

	s.ByCategory = make([]CategoryAmount, 0, len(byCategory))
	for _, entry := range byCategory {
		s.ByCategory = append(s.ByCategory, *entry)
	}
	sort.Slice(s.ByCategory, func(i, j int) bool {
		if s.ByCategory[i].Amount != s.ByCategory[j].Amount {
			return s.ByCategory[i].Amount > s.ByCategory[j].Amount
		}
		return s.ByCategory[i].Name < s.ByCategory[j].Name
	})
	return s
}

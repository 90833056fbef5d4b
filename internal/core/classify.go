package core

// Classification thresholds in IDR. Fixed, not configurable; labels computed
// with these values are persisted and never recomputed.
const (
	thriftyBelow     int64 = 20_000
	extravagantAbove int64 = 100_000
)

// ClassifySpending labels a transaction draft before it is inserted. Only
// expenses in the food category are judged; everything else is Wajar.
func ClassifySpending(d TransactionDraft, foodCategoryID string) SpendingAnalysis {
	if d.Type != Expense || foodCategoryID == "" || d.CategoryID != foodCategoryID {
		return Reasonable
	}
	if d.Amount > extravagantAbove {
		return Extravagant
	}
	if d.Amount < thriftyBelow {
		return Thrifty
	}
	return Reasonable
}

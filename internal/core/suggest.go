package core

// FoodItem is an entry in the static alternative-meal catalog. Prices are
// IDR estimates; the boolean flags mark which diet preferences the item fits.
type FoodItem struct {
	ID                string
	Name              string
	Price             int64
	Calories          int
	Vegetarian        bool
	LowSugar          bool
	PregnancyFriendly bool
	KidFriendly       bool
	BulkingFriendly   bool
}

var foodCatalog = []FoodItem{
	{ID: "1", Name: "Nasi Goreng Spesial", Price: 35_000, Calories: 740, BulkingFriendly: true},
	{ID: "2", Name: "Ayam Geprek + Nasi", Price: 25_000, Calories: 550, LowSugar: true, BulkingFriendly: true},
	{ID: "3", Name: "Sate Ayam (10 tusuk)", Price: 30_000, Calories: 450, KidFriendly: true},
	{ID: "4", Name: "Nasi + Tumis Sayur + Telur", Price: 22_000, Calories: 400, Vegetarian: true, LowSugar: true, PregnancyFriendly: true, KidFriendly: true},
	{ID: "5", Name: "Gado-Gado", Price: 20_000, Calories: 480, Vegetarian: true, PregnancyFriendly: true},
	{ID: "6", Name: "Salad Buah", Price: 25_000, Calories: 250, Vegetarian: true, PregnancyFriendly: true, KidFriendly: true},
	{ID: "7", Name: "Ikan Bakar + Nasi", Price: 45_000, Calories: 600, LowSugar: true, PregnancyFriendly: true, BulkingFriendly: true},
	{ID: "8", Name: "Soto Ayam", Price: 20_000, Calories: 350, LowSugar: true, KidFriendly: true},
	{ID: "9", Name: "Burger Daging", Price: 40_000, Calories: 650, BulkingFriendly: true},
	{ID: "10", Name: "Pizza Medium", Price: 80_000, Calories: 1200, BulkingFriendly: true},
	{ID: "11", Name: "Kopi Susu Gula Aren", Price: 22_000, Calories: 180, Vegetarian: true},
	{ID: "12", Name: "Teh Manis", Price: 8_000, Calories: 80, Vegetarian: true, KidFriendly: true},
	{ID: "13", Name: "Dada Ayam Panggang + Kentang", Price: 55_000, Calories: 500, LowSugar: true, PregnancyFriendly: true, BulkingFriendly: true},
	{ID: "14", Name: "Capcay Goreng", Price: 28_000, Calories: 300, Vegetarian: true, LowSugar: true, PregnancyFriendly: true, KidFriendly: true},
}

// FoodCatalog returns a copy of the static catalog.
func FoodCatalog() []FoodItem {
	out := make([]FoodItem, len(foodCatalog))
	copy(out, foodCatalog)
	return out
}

func (f FoodItem) fitsDiet(pref DietPreference) bool {
	switch pref {
	case DietVegetarian:
		return f.Vegetarian
	case DietLowSugar:
		return f.LowSugar
	case DietPregnancy:
		return f.PregnancyFriendly
	case DietKidGrowth:
		return f.KidFriendly
	case DietBulking:
		return f.BulkingFriendly
	}
	// Normal (and anything unknown) keeps the full variety.
	return true
}

// SuggestAlternative picks the cheapest catalog item that is strictly cheaper
// than the amount spent and fits the diet preference. The second return is
// false when no candidate survives. Ties on price resolve to catalog order.
func SuggestAlternative(amount int64, pref DietPreference) (FoodItem, bool) {
	var best FoodItem
	found := false
	for _, item := range foodCatalog {
		if item.Price >= amount || !item.fitsDiet(pref) {
			continue
		}
		if !found || item.Price < best.Price {
			best = item
			found = true
		}
	}
	return best, found
}

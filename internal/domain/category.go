package domain

import "strings"

// Category is a member of the closed category set. The set is fixed at
// compile time; raw values from models or files that fall outside it collapse
// to CategoryOther rather than extending the set.
type Category string

const (
	CategoryFoodDining     Category = "Food & Dining"
	CategoryShopping       Category = "Shopping"
	CategoryTransportation Category = "Transportation"
	CategoryBillsUtilities Category = "Bills & Utilities"
	CategoryEntertainment  Category = "Entertainment"
	CategoryHealthcare     Category = "Healthcare"
	CategoryTravel         Category = "Travel"
	CategoryIncome         Category = "Income"
	CategoryTransfer       Category = "Transfer"
	CategoryATMCash        Category = "ATM & Cash"
	CategoryOther          Category = "Other"
)

// categories holds the closed set in declaration order. Order matters: the
// heuristic categorizer resolves keyword ties by first declared category.
var categories = []Category{
	CategoryFoodDining,
	CategoryShopping,
	CategoryTransportation,
	CategoryBillsUtilities,
	CategoryEntertainment,
	CategoryHealthcare,
	CategoryTravel,
	CategoryIncome,
	CategoryTransfer,
	CategoryATMCash,
	CategoryOther,
}

// Categories returns the closed category set in declaration order. Callers
// must not mutate the returned slice contents; a fresh slice is returned each
// call.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// ParseCategory maps a raw category name onto the closed set, ignoring case
// and surrounding whitespace. The second return reports whether the raw value
// was a member; when it is false the result is CategoryOther.
func ParseCategory(raw string) (Category, bool) {
	name := normalizeCategoryName(raw)
	for _, c := range categories {
		if normalizeCategoryName(string(c)) == name {
			return c, true
		}
	}
	return CategoryOther, false
}

func normalizeCategoryName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

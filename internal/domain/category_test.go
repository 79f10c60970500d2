package domain

import "testing"

func TestParseCategory(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Category
		wantOK  bool
	}{
		{name: "exact member", raw: "Food & Dining", want: CategoryFoodDining, wantOK: true},
		{name: "case insensitive", raw: "fOOD & dining", want: CategoryFoodDining, wantOK: true},
		{name: "surrounding whitespace", raw: "  Travel  ", want: CategoryTravel, wantOK: true},
		{name: "outside the set", raw: "Groceries", want: CategoryOther, wantOK: false},
		{name: "empty", raw: "", want: CategoryOther, wantOK: false},
		{name: "other itself", raw: "other", want: CategoryOther, wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseCategory(tt.raw)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseCategory(%q) = (%q, %v), want (%q, %v)", tt.raw, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestCategoriesOrderIsStable(t *testing.T) {
	got := Categories()
	if len(got) != 11 {
		t.Fatalf("Categories() returned %d entries, want 11", len(got))
	}
	if got[0] != CategoryFoodDining {
		t.Errorf("first category = %q, want %q", got[0], CategoryFoodDining)
	}
	if got[len(got)-1] != CategoryOther {
		t.Errorf("last category = %q, want %q", got[len(got)-1], CategoryOther)
	}

	// Mutating the returned slice must not leak into later calls.
	got[0] = CategoryOther
	if again := Categories(); again[0] != CategoryFoodDining {
		t.Error("Categories() shares its backing array with callers")
	}
}

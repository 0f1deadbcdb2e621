package types

import "testing"

func TestQuantitiesReconcile(t *testing.T) {
	cases := []struct {
		name string
		want string
		got  string
		ok   bool
	}{
		{"exact", "100", "100", true},
		{"inside tolerance", "100", "100.0005", true},
		{"at tolerance", "100", "100.001", true},
		{"outside tolerance", "100", "100.002", false},
		{"short", "100", "99.99", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := QuantitiesReconcile(MustQuantity(tc.want), MustQuantity(tc.got)); got != tc.ok {
				t.Errorf("QuantitiesReconcile(%s, %s) = %v, want %v", tc.want, tc.got, got, tc.ok)
			}
		})
	}
}

func TestDividesEvenly(t *testing.T) {
	if !DividesEvenly(MustQuantity("12"), 4) {
		t.Error("12 over 4 packs should divide evenly")
	}
	if !DividesEvenly(MustQuantity("10.5"), 3) {
		t.Error("10.5 over 3 packs should divide evenly")
	}
	if DividesEvenly(MustQuantity("10"), 3) {
		t.Error("10 over 3 packs should not divide evenly")
	}
	if DividesEvenly(MustQuantity("10"), 0) {
		t.Error("zero packs never divides")
	}
}

func TestIsWholeQuantity(t *testing.T) {
	if !IsWholeQuantity(MustQuantity("3")) {
		t.Error("3 is whole")
	}
	if IsWholeQuantity(MustQuantity("3.5")) {
		t.Error("3.5 is not whole")
	}
}

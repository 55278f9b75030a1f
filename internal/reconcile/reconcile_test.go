package reconcile

import (
	"testing"

	"leafcart/internal/model"
)

func TestDiffLineItems_EmptyToItems(t *testing.T) {
	// Empty previous, items in next → all added
	next := []model.LineItem{
		{CartItemID: "ci-1", ProductID: "prod-1", Quantity: 2},
		{CartItemID: "ci-2", ProductID: "prod-2", Quantity: 1},
	}

	diff := DiffLineItems(nil, next)

	if len(diff.Added) != 2 {
		t.Errorf("Added = %d, want 2", len(diff.Added))
	}
	if len(diff.Removed) != 0 {
		t.Errorf("Removed = %d, want 0", len(diff.Removed))
	}
	if len(diff.Updated) != 0 {
		t.Errorf("Updated = %d, want 0", len(diff.Updated))
	}
}

func TestDiffLineItems_ItemsToEmpty(t *testing.T) {
	previous := []model.LineItem{
		{CartItemID: "ci-1", ProductID: "prod-1", Quantity: 2},
		{CartItemID: "ci-2", ProductID: "prod-2", Quantity: 1},
	}

	diff := DiffLineItems(previous, []model.LineItem{})

	if len(diff.Removed) != 2 {
		t.Fatalf("Removed = %d, want 2", len(diff.Removed))
	}
	for _, l := range diff.Removed {
		if l.CartItemID == "" {
			t.Error("Removed line missing CartItemID")
		}
	}
}

func TestDiffLineItems_QuantityUpdate(t *testing.T) {
	previous := []model.LineItem{{CartItemID: "ci-1", ProductID: "prod-1", Quantity: 2}}
	next := []model.LineItem{{CartItemID: "ci-1", ProductID: "prod-1", Quantity: 5}}

	diff := DiffLineItems(previous, next)

	if len(diff.Updated) != 1 {
		t.Fatalf("Updated = %d, want 1", len(diff.Updated))
	}
	if diff.Updated[0].OldQuantity != 2 {
		t.Errorf("OldQuantity = %d, want 2", diff.Updated[0].OldQuantity)
	}
	if diff.Updated[0].Quantity != 5 {
		t.Errorf("Quantity = %d, want 5", diff.Updated[0].Quantity)
	}
	if diff.String() != "+0 -0 ~1" {
		t.Errorf("String() = %q", diff.String())
	}
}

func TestDiffLineItems_NoChange(t *testing.T) {
	items := []model.LineItem{{CartItemID: "ci-1", ProductID: "prod-1", Quantity: 2, SelectedSize: "M"}}

	if diff := DiffLineItems(items, items); !diff.IsEmpty() {
		t.Errorf("expected empty diff for identical items, got %s", diff)
	}
}

func TestDiffLineItems_TemporaryIDsMatchBySelection(t *testing.T) {
	// An offline line later confirmed by the server keeps its selection
	// but gets a server id; that is not a change.
	previous := []model.LineItem{
		{CartItemID: "temp-1234", ProductID: "P1", VariantID: "V1", SelectedSize: "M", SelectedColor: "Black", Quantity: 2},
	}
	next := []model.LineItem{
		{CartItemID: "CI-1", ProductID: "P1", VariantID: "V1", SelectedSize: "M", SelectedColor: "Black", Quantity: 2},
	}

	if diff := DiffLineItems(previous, next); !diff.IsEmpty() {
		t.Errorf("expected empty diff, got %s", diff)
	}
}

func TestDiffLineItems_SizeAndColorAreDistinct(t *testing.T) {
	previous := []model.LineItem{
		{CartItemID: "a", ProductID: "P1", SelectedSize: "M", SelectedColor: "Black", Quantity: 1},
	}
	next := []model.LineItem{
		{CartItemID: "a", ProductID: "P1", SelectedSize: "M", SelectedColor: "Black", Quantity: 1},
		{CartItemID: "b", ProductID: "P1", SelectedSize: "L", SelectedColor: "Black", Quantity: 1},
		{CartItemID: "c", ProductID: "P1", SelectedSize: "M", SelectedColor: "White", Quantity: 1},
	}

	diff := DiffLineItems(previous, next)

	if len(diff.Added) != 2 {
		t.Fatalf("Added = %d, want 2", len(diff.Added))
	}
	if len(diff.Removed) != 0 || len(diff.Updated) != 0 {
		t.Errorf("unexpected diff %s", diff)
	}
}

func TestDiffLineItems_MixedOperationsAreOrdered(t *testing.T) {
	previous := []model.LineItem{
		{CartItemID: "k1", ProductID: "prod-1", Quantity: 2}, // removed
		{CartItemID: "k2", ProductID: "prod-2", Quantity: 1}, // updated
		{CartItemID: "k3", ProductID: "prod-3", Quantity: 3}, // unchanged
	}
	next := []model.LineItem{
		{CartItemID: "k5", ProductID: "prod-5", Quantity: 1}, // added
		{CartItemID: "k2", ProductID: "prod-2", Quantity: 5},
		{CartItemID: "k3", ProductID: "prod-3", Quantity: 3},
		{CartItemID: "k4", ProductID: "prod-4", Quantity: 1}, // added
	}

	diff := DiffLineItems(previous, next)

	if len(diff.Added) != 2 || diff.Added[0].ProductID != "prod-4" || diff.Added[1].ProductID != "prod-5" {
		t.Errorf("Added = %+v, want prod-4 then prod-5", diff.Added)
	}
	if len(diff.Removed) != 1 || diff.Removed[0].CartItemID != "k1" {
		t.Errorf("Removed = %+v, want k1", diff.Removed)
	}
	if len(diff.Updated) != 1 || diff.Updated[0].ProductID != "prod-2" {
		t.Errorf("Updated = %+v, want prod-2", diff.Updated)
	}
}

func TestDiffLineItems_DuplicateSelectionsAreSummed(t *testing.T) {
	previous := []model.LineItem{{CartItemID: "a", ProductID: "P1", Quantity: 3}}
	next := []model.LineItem{
		{CartItemID: "a", ProductID: "P1", Quantity: 1},
		{CartItemID: "b", ProductID: "P1", Quantity: 2},
	}

	if diff := DiffLineItems(previous, next); !diff.IsEmpty() {
		t.Errorf("expected empty diff, got %s", diff)
	}
}

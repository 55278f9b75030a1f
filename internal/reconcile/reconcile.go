// Package reconcile computes the delta between two cart states.
// The cart service uses it to report what a server replacement changed
// relative to the local cart: lines the server added, dropped, or requantified.
package reconcile

import (
	"fmt"
	"slices"
	"strings"

	"leafcart/internal/model"
)

// LineItemDiff describes how the next cart differs from the previous one.
// Each slice is ordered by line key so diffs are stable across runs.
type LineItemDiff struct {
	Added   []Line   // Selections in next but not previous
	Removed []Line   // Selections in previous but not next
	Updated []Change // Selections in both with different quantities
}

// Line identifies one cart selection.
type Line struct {
	CartItemID string // ID in the cart it was found in
	ProductID  string
	VariantID  string
	Size       string
	Color      string
	Quantity   int
}

// Change is a quantity change for a selection present on both sides.
type Change struct {
	Line
	OldQuantity int
}

// IsEmpty returns true if the carts hold the same selections and quantities.
func (d *LineItemDiff) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Updated) == 0
}

// String summarizes the diff for logs, e.g. "+1 -2 ~0".
func (d *LineItemDiff) String() string {
	return fmt.Sprintf("+%d -%d ~%d", len(d.Added), len(d.Removed), len(d.Updated))
}

// DiffLineItems computes the delta from previous to next.
//
// Lines are matched by selection (product, variant, size, color), not by
// cart item id: offline adds carry temporary ids that the server replaces.
// Duplicate selections on one side are summed.
func DiffLineItems(previous, next []model.LineItem) *LineItemDiff {
	diff := &LineItemDiff{}

	prevByKey, prevKeys := index(previous)
	nextByKey, nextKeys := index(next)

	for _, key := range nextKeys {
		n := nextByKey[key]
		p, exists := prevByKey[key]
		switch {
		case !exists:
			diff.Added = append(diff.Added, n)
		case p.Quantity != n.Quantity:
			diff.Updated = append(diff.Updated, Change{Line: n, OldQuantity: p.Quantity})
		}
	}

	for _, key := range prevKeys {
		if _, exists := nextByKey[key]; !exists {
			diff.Removed = append(diff.Removed, prevByKey[key])
		}
	}

	return diff
}

// index groups items by selection key and returns the sorted keys.
func index(items []model.LineItem) (map[string]Line, []string) {
	byKey := make(map[string]Line, len(items))
	keys := make([]string, 0, len(items))
	for _, it := range items {
		key := itemKey(it)
		if l, ok := byKey[key]; ok {
			l.Quantity += it.Quantity
			byKey[key] = l
			continue
		}
		byKey[key] = Line{
			CartItemID: it.CartItemID,
			ProductID:  it.ProductID,
			VariantID:  it.VariantID,
			Size:       it.SelectedSize,
			Color:      it.SelectedColor,
			Quantity:   it.Quantity,
		}
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return byKey, keys
}

// itemKey creates a composite key for matching items.
func itemKey(it model.LineItem) string {
	return strings.Join([]string{it.ProductID, it.VariantID, it.SelectedSize, it.SelectedColor}, "\x00")
}

// Package model holds the cart data model shared by every leafcart package:
// line items, shopper identity, catalog types, prices and the error taxonomy.
package model

// LineItem is one entry in a cart: a product (optionally a specific variant)
// with a quantity and the shopper's size/color choice.
//
// DisplayName and DisplayImageURL are derived by enrichment and never sent
// to the server.
type LineItem struct {
	CartItemID      string `json:"cartItemId"`
	ProductID       string `json:"productId"`
	VariantID       string `json:"variantId,omitempty"`
	Quantity        int    `json:"quantity"`
	UnitPrice       Price  `json:"unitPrice"`
	SelectedSize    string `json:"selectedSize,omitempty"`
	SelectedColor   string `json:"selectedColor,omitempty"`
	DisplayName     string `json:"displayName,omitempty"`
	DisplayImageURL string `json:"displayImageUrl,omitempty"`
}

// Subtotal returns UnitPrice * Quantity.
func (li LineItem) Subtotal() float64 {
	return li.UnitPrice.Float64() * float64(li.Quantity)
}

// SameSelection reports whether two lines describe the same product with the
// same size and color. Used to merge local adds while offline.
func (li LineItem) SameSelection(productID, size, color string) bool {
	return li.ProductID == productID && li.SelectedSize == size && li.SelectedColor == color
}

// Identity identifies the shopper whose cart is authoritative on the server.
// SessionID is always present; UserID only after login.
type Identity struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId,omitempty"`

	// Token is the bearer token of the logged-in user, if any. Never persisted.
	Token string `json:"-"`
}

// Key returns the identifier addressing the server cart: the user id when
// authenticated, otherwise the guest session id.
func (id Identity) Key() string {
	if id.UserID != "" {
		return id.UserID
	}
	return id.SessionID
}

// Authenticated reports whether a user id is known.
func (id Identity) Authenticated() bool {
	return id.UserID != ""
}

// Cart is the server-authoritative cart after boundary decoding.
type Cart struct {
	Items []LineItem `json:"items"`
}

// IsEmpty reports whether the cart has no line items.
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

// AddItemRequest is the payload for creating a server cart line.
type AddItemRequest struct {
	ProductID string
	VariantID string
	Quantity  int
	Size      string
	Color     string

	// UnitPrice is only used by the offline fallback; the server prices lines itself.
	UnitPrice Price
}

// Product is the subset of a catalog product needed for display.
type Product struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price Price  `json:"price"`
}

// Media is one image attached to a product.
// Exactly one of S3Key or MediaURL is normally set.
type Media struct {
	ID         string `json:"id"`
	IsPrimary  bool   `json:"isPrimary"`
	MediaOrder int    `json:"mediaOrder"`
	S3Key      string `json:"s3Key,omitempty"`
	MediaURL   string `json:"mediaUrl,omitempty"`
}

// Reference returns the storage key if present, otherwise the direct URL.
func (m Media) Reference() string {
	if m.S3Key != "" {
		return m.S3Key
	}
	return m.MediaURL
}

// CloneItems returns a copy of items that shares no backing array.
func CloneItems(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}

// Package adapter defines the interfaces leafcart uses to reach the shop
// backend. shopapi.Client implements both; tests substitute the mocks.
package adapter

import (
	"context"

	"leafcart/internal/model"
	"leafcart/internal/shopapi"
)

// CartBackend is the server-authoritative cart.
// Every method returns the full cart as the server sees it after the call.
type CartBackend interface {
	// GetCart fetches the cart addressed by id (UserID preferred).
	GetCart(ctx context.Context, id model.Identity) (*model.Cart, error)

	// AddItem creates a line, or lets the server merge it into an existing one.
	AddItem(ctx context.Context, id model.Identity, req model.AddItemRequest) (*model.Cart, error)

	// RemoveItem deletes a line by cart item id.
	RemoveItem(ctx context.Context, id model.Identity, cartItemID string) (*model.Cart, error)

	// UpdateQuantity sets a line's quantity. quantity is always >= 1.
	UpdateQuantity(ctx context.Context, id model.Identity, cartItemID string, quantity int) (*model.Cart, error)
}

// Catalog serves the display data the cart payload omits.
type Catalog interface {
	ListProducts(ctx context.Context) ([]model.Product, error)
	ListMedia(ctx context.Context, productID string) ([]model.Media, error)
	ResolveDownloadURL(ctx context.Context, s3Key string, expirationMinutes int) (*shopapi.DownloadURL, error)
}

var (
	_ CartBackend = (*shopapi.Client)(nil)
	_ Catalog     = (*shopapi.Client)(nil)
)

package adapter

import (
	"context"
	"errors"

	"leafcart/internal/model"
	"leafcart/internal/shopapi"
)

// errNotConfigured is returned by mock methods without a configured func.
var errNotConfigured = errors.New("mock: not configured")

// MockBackend implements CartBackend for testing.
// Each method can be configured via function fields.
type MockBackend struct {
	GetCartFunc        func(ctx context.Context, id model.Identity) (*model.Cart, error)
	AddItemFunc        func(ctx context.Context, id model.Identity, req model.AddItemRequest) (*model.Cart, error)
	RemoveItemFunc     func(ctx context.Context, id model.Identity, cartItemID string) (*model.Cart, error)
	UpdateQuantityFunc func(ctx context.Context, id model.Identity, cartItemID string, quantity int) (*model.Cart, error)
}

// GetCart calls GetCartFunc or returns an empty cart.
func (m *MockBackend) GetCart(ctx context.Context, id model.Identity) (*model.Cart, error) {
	if m.GetCartFunc != nil {
		return m.GetCartFunc(ctx, id)
	}
	return &model.Cart{}, nil
}

// AddItem calls AddItemFunc or fails like an unreachable server.
func (m *MockBackend) AddItem(ctx context.Context, id model.Identity, req model.AddItemRequest) (*model.Cart, error) {
	if m.AddItemFunc != nil {
		return m.AddItemFunc(ctx, id, req)
	}
	return nil, model.NewUpstreamError("mock", errNotConfigured)
}

// RemoveItem calls RemoveItemFunc or fails like an unreachable server.
func (m *MockBackend) RemoveItem(ctx context.Context, id model.Identity, cartItemID string) (*model.Cart, error) {
	if m.RemoveItemFunc != nil {
		return m.RemoveItemFunc(ctx, id, cartItemID)
	}
	return nil, model.NewUpstreamError("mock", errNotConfigured)
}

// UpdateQuantity calls UpdateQuantityFunc or fails like an unreachable server.
func (m *MockBackend) UpdateQuantity(ctx context.Context, id model.Identity, cartItemID string, quantity int) (*model.Cart, error) {
	if m.UpdateQuantityFunc != nil {
		return m.UpdateQuantityFunc(ctx, id, cartItemID, quantity)
	}
	return nil, model.NewUpstreamError("mock", errNotConfigured)
}

// MockCatalog implements Catalog for testing.
type MockCatalog struct {
	ListProductsFunc       func(ctx context.Context) ([]model.Product, error)
	ListMediaFunc          func(ctx context.Context, productID string) ([]model.Media, error)
	ResolveDownloadURLFunc func(ctx context.Context, s3Key string, expirationMinutes int) (*shopapi.DownloadURL, error)
}

// ListProducts calls ListProductsFunc or returns no products.
func (m *MockCatalog) ListProducts(ctx context.Context) ([]model.Product, error) {
	if m.ListProductsFunc != nil {
		return m.ListProductsFunc(ctx)
	}
	return nil, nil
}

// ListMedia calls ListMediaFunc or returns no media.
func (m *MockCatalog) ListMedia(ctx context.Context, productID string) ([]model.Media, error) {
	if m.ListMediaFunc != nil {
		return m.ListMediaFunc(ctx, productID)
	}
	return nil, nil
}

// ResolveDownloadURL calls ResolveDownloadURLFunc or returns an error.
func (m *MockCatalog) ResolveDownloadURL(ctx context.Context, s3Key string, expirationMinutes int) (*shopapi.DownloadURL, error) {
	if m.ResolveDownloadURLFunc != nil {
		return m.ResolveDownloadURLFunc(ctx, s3Key, expirationMinutes)
	}
	return nil, model.NewNotFoundError("media object")
}

// Verify mocks implement the interfaces at compile time.
var (
	_ CartBackend = (*MockBackend)(nil)
	_ Catalog     = (*MockCatalog)(nil)
)

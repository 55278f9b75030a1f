// MCP transport handler for cartd using the official MCP Go SDK.
// Exposes the cart operations as MCP tools for the storefront chatbot.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"leafcart/internal/model"
)

// === MCP Tool Input Types ===

// GetCartInput is the input schema for get_cart. It takes no arguments.
type GetCartInput struct{}

// AddToCartInput is the input schema for add_to_cart.
type AddToCartInput struct {
	ProductID string  `json:"product_id" jsonschema:"product ID"`
	VariantID string  `json:"variant_id,omitempty" jsonschema:"variant ID if the product has variants"`
	Quantity  int     `json:"quantity,omitempty" jsonschema:"quantity to add; defaults to 1"`
	Size      string  `json:"size,omitempty" jsonschema:"selected size, e.g. M"`
	Color     string  `json:"color,omitempty" jsonschema:"selected color, e.g. Black"`
	UnitPrice float64 `json:"unit_price,omitempty" jsonschema:"unit price shown to the shopper, used only if the shop is unreachable"`
}

// RemoveFromCartInput is the input schema for remove_from_cart.
type RemoveFromCartInput struct {
	CartItemID string `json:"cart_item_id" jsonschema:"cart item ID from get_cart"`
}

// UpdateCartQuantityInput is the input schema for update_cart_quantity.
type UpdateCartQuantityInput struct {
	CartItemID string `json:"cart_item_id" jsonschema:"cart item ID from get_cart"`
	Quantity   int    `json:"quantity" jsonschema:"new quantity, at least 1"`
}

// ClearCartInput is the input schema for clear_cart. It takes no arguments.
type ClearCartInput struct{}

// NewMCPServer creates an MCP server with cart tools registered.
// The server exposes the same operations as the REST API but via MCP protocol.
func (h *Handler) NewMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "leafcart",
			Version: "1.0.0",
		},
		&mcp.ServerOptions{
			Instructions: "Leaf Shop cart. Use these tools to read the shopper's cart " +
				"and add, remove, or change items in it.",
		},
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_cart",
		Description: "Get the shopper's cart: items, total, and item count.",
	}, h.mcpGetCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_to_cart",
		Description: "Add a product to the cart. Lines with the same product, size and color are merged.",
	}, h.mcpAddToCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "remove_from_cart",
		Description: "Remove a line from the cart by cart item ID.",
	}, h.mcpRemoveFromCart)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_cart_quantity",
		Description: "Set the quantity of a cart line. Quantity must be at least 1; use remove_from_cart to delete.",
	}, h.mcpUpdateCartQuantity)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "clear_cart",
		Description: "Empty the local cart after checkout. Does not contact the shop.",
	}, h.mcpClearCart)

	return server
}

// NewMCPHandler returns an HTTP handler for the MCP endpoint.
// Mount this at /mcp on your mux.
func (h *Handler) NewMCPHandler() http.Handler {
	server := h.NewMCPServer()
	return mcp.NewStreamableHTTPHandler(
		func(r *http.Request) *mcp.Server { return server },
		nil,
	)
}

// === Tool Handlers ===

func (h *Handler) mcpGetCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input GetCartInput,
) (*mcp.CallToolResult, *CartView, error) {
	view := h.cartView(h.cart.Items())
	return nil, &view, nil
}

func (h *Handler) mcpAddToCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input AddToCartInput,
) (*mcp.CallToolResult, *MutationView, error) {
	if err := validateAdd(input.ProductID, input.Quantity); err != nil {
		return nil, nil, h.mcpError(err)
	}

	m := h.cart.AddItem(ctx, model.AddItemRequest{
		ProductID: input.ProductID,
		VariantID: input.VariantID,
		Quantity:  input.Quantity,
		Size:      input.Size,
		Color:     input.Color,
		UnitPrice: model.Price(input.UnitPrice),
	})
	view := h.mutationView(m)
	return nil, &view, nil
}

func (h *Handler) mcpRemoveFromCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input RemoveFromCartInput,
) (*mcp.CallToolResult, *MutationView, error) {
	if input.CartItemID == "" {
		return nil, nil, h.mcpError(model.NewValidationError("cart_item_id", "is required"))
	}

	view := h.mutationView(h.cart.RemoveItem(ctx, input.CartItemID))
	return nil, &view, nil
}

func (h *Handler) mcpUpdateCartQuantity(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input UpdateCartQuantityInput,
) (*mcp.CallToolResult, *MutationView, error) {
	if input.CartItemID == "" {
		return nil, nil, h.mcpError(model.NewValidationError("cart_item_id", "is required"))
	}
	if input.Quantity < 1 {
		return nil, nil, h.mcpError(model.NewValidationError("quantity", "must be at least 1"))
	}

	view := h.mutationView(h.cart.UpdateQuantity(ctx, input.CartItemID, input.Quantity))
	return nil, &view, nil
}

func (h *Handler) mcpClearCart(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ClearCartInput,
) (*mcp.CallToolResult, *CartView, error) {
	h.cart.Clear()
	view := h.cartView(h.cart.Items())
	return nil, &view, nil
}

// mcpError converts errors to MCP-friendly errors.
func (h *Handler) mcpError(err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
	}
	// Don't leak internal error details
	h.logger.Error("mcp internal error", "error", err.Error())
	return fmt.Errorf("internal error")
}

package handler

import (
	"net/http"
	"strings"

	"leafcart/internal/model"
)

// addItemRequest is the body of POST /cart/items.
type addItemRequest struct {
	ProductID string      `json:"productId"`
	VariantID string      `json:"variantId,omitempty"`
	Quantity  int         `json:"quantity"`
	Size      string      `json:"size,omitempty"`
	Color     string      `json:"color,omitempty"`
	UnitPrice model.Price `json:"unitPrice,omitempty"`
}

// updateQuantityRequest is the body of PUT /cart/items/{id}.
type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// handleGetCart returns the local cart.
// GET /cart
func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.cartView(h.cart.Items()))
}

// handleAddItem adds a product selection.
// POST /cart/items
func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if err := validateAdd(req.ProductID, req.Quantity); err != nil {
		h.writeError(w, err)
		return
	}

	m := h.cart.AddItem(r.Context(), model.AddItemRequest{
		ProductID: strings.TrimSpace(req.ProductID),
		VariantID: req.VariantID,
		Quantity:  req.Quantity,
		Size:      req.Size,
		Color:     req.Color,
		UnitPrice: req.UnitPrice,
	})
	h.writeJSON(w, http.StatusOK, h.mutationView(m))
}

// handleRemoveItem removes a line.
// DELETE /cart/items/{id}
func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, model.NewValidationError("id", "cart item ID is required"))
		return
	}

	m := h.cart.RemoveItem(r.Context(), id)
	h.writeJSON(w, http.StatusOK, h.mutationView(m))
}

// handleUpdateQuantity sets a line's quantity.
// PUT /cart/items/{id}
func (h *Handler) handleUpdateQuantity(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, model.NewValidationError("id", "cart item ID is required"))
		return
	}

	var req updateQuantityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	// Rejected here so no request reaches the shop API.
	if req.Quantity < 1 {
		h.writeError(w, model.NewValidationError("quantity", "must be at least 1"))
		return
	}

	m := h.cart.UpdateQuantity(r.Context(), id, req.Quantity)
	h.writeJSON(w, http.StatusOK, h.mutationView(m))
}

// handleClear empties the local cart after checkout.
// POST /cart/clear
func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	h.cart.Clear()
	h.writeJSON(w, http.StatusOK, h.cartView(h.cart.Items()))
}

// handleSync pulls the server cart for the current identity.
// POST /cart/sync
func (h *Handler) handleSync(w http.ResponseWriter, r *http.Request) {
	res := h.cart.Sync(r.Context())
	h.writeJSON(w, http.StatusOK, h.syncView(res))
}

// validateAdd checks the fields an add cannot proceed without.
// A zero quantity means one; negative quantities are rejected.
func validateAdd(productID string, quantity int) error {
	if strings.TrimSpace(productID) == "" {
		return model.NewValidationError("productId", "is required")
	}
	if quantity < 0 {
		return model.NewValidationError("quantity", "must not be negative")
	}
	return nil
}

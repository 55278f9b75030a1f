package handler

import (
	"leafcart/internal/cart"
	"leafcart/internal/model"
	"leafcart/internal/reconcile"
)

// CartView is the cart as rendered to REST and MCP clients.
type CartView struct {
	Identity IdentityView     `json:"identity"`
	Items    []model.LineItem `json:"items"`
	Total    float64          `json:"total"`
	Count    int              `json:"count"`
}

// IdentityView omits the bearer token.
type IdentityView struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId,omitempty"`
}

// MutationView reports which path a mutation took plus the resulting cart.
type MutationView struct {
	Op     string      `json:"op"`
	Source cart.Source `json:"source"`
	Reason string      `json:"reason,omitempty"`
	Diff   DiffView    `json:"diff"`
	Cart   CartView    `json:"cart"`
}

// SyncView reports the outcome of a sync plus the resulting cart.
type SyncView struct {
	Replaced bool     `json:"replaced"`
	Reason   string   `json:"reason,omitempty"`
	Diff     DiffView `json:"diff"`
	Cart     CartView `json:"cart"`
}

// DiffView counts the lines a change added, removed, and requantified.
type DiffView struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
	Updated int `json:"updated"`
}

func (h *Handler) cartView(items []model.LineItem) CartView {
	id := h.cart.Identity()
	if items == nil {
		items = []model.LineItem{}
	}
	return CartView{
		Identity: IdentityView{SessionID: id.SessionID, UserID: id.UserID},
		Items:    items,
		Total:    model.CartTotal(items),
		Count:    model.CartCount(items),
	}
}

func (h *Handler) mutationView(m cart.Mutation) MutationView {
	return MutationView{
		Op:     m.Op,
		Source: m.Source,
		Reason: m.Reason,
		Diff:   diffView(m.Diff),
		Cart:   h.cartView(m.Items),
	}
}

func (h *Handler) syncView(res cart.SyncResult) SyncView {
	return SyncView{
		Replaced: res.Replaced,
		Reason:   res.Reason,
		Diff:     diffView(res.Diff),
		Cart:     h.cartView(res.Items),
	}
}

func diffView(d *reconcile.LineItemDiff) DiffView {
	if d == nil {
		return DiffView{}
	}
	return DiffView{Added: len(d.Added), Removed: len(d.Removed), Updated: len(d.Updated)}
}

package handler

import (
	"net/http"
	"strings"

	"leafcart/internal/model"
)

// loginRequest is the body of POST /session/login.
type loginRequest struct {
	UserID string `json:"userId"`
	Token  string `json:"token,omitempty"`
}

// handleLogin attaches an authenticated user and resyncs the cart.
// POST /session/login
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		h.writeError(w, model.NewValidationError("userId", "is required"))
		return
	}

	res := h.cart.Login(r.Context(), req.UserID, req.Token)
	h.writeJSON(w, http.StatusOK, h.syncView(res))
}

// handleLogout falls back to the guest session and resyncs the cart.
// POST /session/logout
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	res := h.cart.Logout(r.Context())
	h.writeJSON(w, http.StatusOK, h.syncView(res))
}

// handleHealth returns a simple health check response.
// GET /health, GET /healthz
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

type healthResponse struct {
	Status string `json:"status"`
}

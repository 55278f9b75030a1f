// Package handler provides the cartd HTTP facade: REST cart routes for the
// storefront and an MCP endpoint exposing the same operations to the chatbot.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"leafcart/internal/cart"
	"leafcart/internal/model"
)

// CartService is the cart reconciliation service as seen by the handlers.
type CartService interface {
	Items() []model.LineItem
	Identity() model.Identity

	Sync(ctx context.Context) cart.SyncResult
	Login(ctx context.Context, userID, token string) cart.SyncResult
	Logout(ctx context.Context) cart.SyncResult

	AddItem(ctx context.Context, req model.AddItemRequest) cart.Mutation
	RemoveItem(ctx context.Context, cartItemID string) cart.Mutation
	UpdateQuantity(ctx context.Context, cartItemID string, quantity int) cart.Mutation
	Clear()
}

var _ CartService = (*cart.Service)(nil)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	cart   CartService
	logger *slog.Logger
}

// New creates a new Handler for the given cart service.
func New(svc CartService, logger *slog.Logger) *Handler {
	return &Handler{
		cart:   svc,
		logger: logger,
	}
}

// RegisterRoutes registers all HTTP routes with the given ServeMux.
// Uses Go 1.22+ method routing patterns.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// REST transport - cart operations
	mux.HandleFunc("GET /cart", h.handleGetCart)
	mux.HandleFunc("POST /cart/items", h.handleAddItem)
	mux.HandleFunc("DELETE /cart/items/{id}", h.handleRemoveItem)
	mux.HandleFunc("PUT /cart/items/{id}", h.handleUpdateQuantity)
	mux.HandleFunc("POST /cart/clear", h.handleClear)
	mux.HandleFunc("POST /cart/sync", h.handleSync)

	// Identity changes
	mux.HandleFunc("POST /session/login", h.handleLogin)
	mux.HandleFunc("POST /session/logout", h.handleLogout)

	// MCP transport - JSON-RPC endpoint using official MCP SDK
	mux.Handle("/mcp", h.NewMCPHandler())

	// Health check
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

// === Response Helpers ===

// writeJSON sends a JSON response with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError sends an error response, extracting status/code from APIError if present.
// Uses errors.As() to unwrap error chains (e.g., fmt.Errorf wrapping).
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		apiErr = &model.APIError{
			Code:       "INTERNAL_ERROR",
			Message:    "an internal error occurred",
			StatusCode: http.StatusInternalServerError,
		}
		h.logger.Error("internal error", slog.String("error", err.Error()))
	}

	h.writeJSON(w, apiErr.StatusCode, errorResponse{
		Error: errorBody{
			Code:    apiErr.Code,
			Message: apiErr.Message,
		},
	})
}

// errorResponse is the JSON structure for error responses.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MaxRequestBodySize limits JSON request bodies to 1MB.
const MaxRequestBodySize = 1 << 20 // 1MB

// decodeJSON reads JSON from request body into v.
// Limits body size to MaxRequestBodySize and rejects unknown fields.
// Returns an APIError if decoding fails.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		// Don't expose internal error details to client
		return model.NewValidationError("body", "invalid JSON")
	}
	return nil
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"leafcart/internal/adapter"
	"leafcart/internal/cart"
	"leafcart/internal/identity"
	"leafcart/internal/model"
	"leafcart/internal/storage"
)

var errOffline = model.NewUpstreamError("Leaf Shop API", errors.New("connection refused"))

// nameEnricher labels lines without any I/O.
type nameEnricher struct{}

func (nameEnricher) Enrich(ctx context.Context, items []model.LineItem) []model.LineItem {
	out := model.CloneItems(items)
	for i := range out {
		out[i].DisplayName = "Product " + out[i].ProductID
	}
	return out
}

func testHandler(t *testing.T, backend *adapter.MockBackend) (*Handler, *http.ServeMux) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := storage.NewMemory()
	id, err := identity.New(store)
	if err != nil {
		t.Fatal(err)
	}
	svc, err := cart.New(id, backend, nameEnricher{}, store, logger, cart.Options{})
	if err != nil {
		t.Fatal(err)
	}

	h := New(svc, logger)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return h, mux
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func getErrorCode(t *testing.T, body []byte) string {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decoding error body: %v\n%s", err, body)
	}
	return resp.Error.Code
}

func TestHandleHealth(t *testing.T) {
	_, mux := testHandler(t, &adapter.MockBackend{})

	for _, path := range []string{"/health", "/healthz"} {
		w := doJSON(t, mux, "GET", path, "")
		if w.Code != http.StatusOK {
			t.Errorf("%s: Status = %d, want %d", path, w.Code, http.StatusOK)
		}
		var resp healthResponse
		json.NewDecoder(w.Body).Decode(&resp)
		if resp.Status != "ok" {
			t.Errorf("%s: status = %q, want ok", path, resp.Status)
		}
	}
}

func TestHandleGetCart_Empty(t *testing.T) {
	_, mux := testHandler(t, &adapter.MockBackend{})

	w := doJSON(t, mux, "GET", "/cart", "")

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"items":[]`) {
		t.Errorf("empty cart must render items as an array: %s", w.Body.String())
	}
	var view CartView
	json.Unmarshal(w.Body.Bytes(), &view)
	if view.Identity.SessionID == "" {
		t.Error("identity.sessionId missing")
	}
	if view.Count != 0 || view.Total != 0 {
		t.Errorf("count/total = %d/%v, want 0/0", view.Count, view.Total)
	}
}

func TestHandleAddItem(t *testing.T) {
	var got model.AddItemRequest
	backend := &adapter.MockBackend{
		AddItemFunc: func(ctx context.Context, id model.Identity, req model.AddItemRequest) (*model.Cart, error) {
			got = req
			return &model.Cart{Items: []model.LineItem{{
				CartItemID: "CI-1", ProductID: req.ProductID, VariantID: req.VariantID,
				Quantity: req.Quantity, UnitPrice: 120000,
				SelectedSize: req.Size, SelectedColor: req.Color,
			}}}, nil
		},
	}
	_, mux := testHandler(t, backend)

	w := doJSON(t, mux, "POST", "/cart/items",
		`{"productId":"P1","variantId":"V1","quantity":2,"size":"M","color":"Black"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, body %s", w.Code, w.Body.String())
	}
	var view MutationView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatal(err)
	}
	if view.Source != cart.SourceServer || view.Op != cart.OpAdd {
		t.Errorf("op/source = %s/%s", view.Op, view.Source)
	}
	if len(view.Cart.Items) != 1 || view.Cart.Items[0].CartItemID != "CI-1" {
		t.Fatalf("items = %+v", view.Cart.Items)
	}
	if view.Cart.Items[0].DisplayName != "Product P1" {
		t.Errorf("DisplayName = %q", view.Cart.Items[0].DisplayName)
	}
	if view.Cart.Total != 240000 || view.Cart.Count != 2 {
		t.Errorf("total/count = %v/%d, want 240000/2", view.Cart.Total, view.Cart.Count)
	}
	if view.Diff.Added != 1 {
		t.Errorf("diff = %+v", view.Diff)
	}
	if got.Size != "M" || got.Color != "Black" || got.VariantID != "V1" {
		t.Errorf("backend request = %+v", got)
	}
}

func TestHandleAddItem_OfflineFallback(t *testing.T) {
	_, mux := testHandler(t, &adapter.MockBackend{
		AddItemFunc: func(ctx context.Context, id model.Identity, req model.AddItemRequest) (*model.Cart, error) {
			return nil, errOffline
		},
	})

	w := doJSON(t, mux, "POST", "/cart/items", `{"productId":"P1","quantity":1,"unitPrice":"99.000đ"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, body %s", w.Code, w.Body.String())
	}
	var view MutationView
	json.Unmarshal(w.Body.Bytes(), &view)
	if view.Source != cart.SourceLocal || view.Reason == "" {
		t.Errorf("source/reason = %s/%q", view.Source, view.Reason)
	}
	if len(view.Cart.Items) != 1 || !cart.IsTemporary(view.Cart.Items[0].CartItemID) {
		t.Errorf("items = %+v, want one temporary line", view.Cart.Items)
	}
	if view.Cart.Total != 99000 {
		t.Errorf("total = %v, want 99000", view.Cart.Total)
	}
}

func TestHandleAddItem_Invalid(t *testing.T) {
	backend := &adapter.MockBackend{
		AddItemFunc: func(ctx context.Context, id model.Identity, req model.AddItemRequest) (*model.Cart, error) {
			t.Error("invalid input must not reach the backend")
			return nil, nil
		},
	}
	_, mux := testHandler(t, backend)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"productId":`},
		{"unknown field", `{"productId":"P1","qty":2}`},
		{"missing product", `{"quantity":1}`},
		{"blank product", `{"productId":"  ","quantity":1}`},
		{"negative quantity", `{"productId":"P1","quantity":-2}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, mux, "POST", "/cart/items", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("Status = %d, want 400", w.Code)
			}
			if code := getErrorCode(t, w.Body.Bytes()); code != "VALIDATION_ERROR" {
				t.Errorf("code = %s, want VALIDATION_ERROR", code)
			}
		})
	}
}

func TestHandleRemoveItem(t *testing.T) {
	var removed string
	backend := &adapter.MockBackend{
		AddItemFunc: func(ctx context.Context, id model.Identity, req model.AddItemRequest) (*model.Cart, error) {
			return &model.Cart{Items: []model.LineItem{{CartItemID: "CI-1", ProductID: "P1", Quantity: 1}}}, nil
		},
		RemoveItemFunc: func(ctx context.Context, id model.Identity, cartItemID string) (*model.Cart, error) {
			removed = cartItemID
			return &model.Cart{}, nil
		},
	}
	_, mux := testHandler(t, backend)
	doJSON(t, mux, "POST", "/cart/items", `{"productId":"P1"}`)

	w := doJSON(t, mux, "DELETE", "/cart/items/CI-1", "")

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d", w.Code)
	}
	if removed != "CI-1" {
		t.Errorf("removed = %q, want CI-1", removed)
	}
	var view MutationView
	json.Unmarshal(w.Body.Bytes(), &view)
	if len(view.Cart.Items) != 0 || view.Diff.Removed != 1 {
		t.Errorf("cart = %+v diff = %+v", view.Cart, view.Diff)
	}
}

func TestHandleUpdateQuantity(t *testing.T) {
	var updates []int
	backend := &adapter.MockBackend{
		AddItemFunc: func(ctx context.Context, id model.Identity, req model.AddItemRequest) (*model.Cart, error) {
			return &model.Cart{Items: []model.LineItem{{CartItemID: "CI-1", ProductID: "P1", Quantity: 2}}}, nil
		},
		UpdateQuantityFunc: func(ctx context.Context, id model.Identity, cartItemID string, quantity int) (*model.Cart, error) {
			updates = append(updates, quantity)
			return nil, errOffline
		},
	}
	_, mux := testHandler(t, backend)
	doJSON(t, mux, "POST", "/cart/items", `{"productId":"P1","quantity":2}`)

	t.Run("offline sets locally", func(t *testing.T) {
		w := doJSON(t, mux, "PUT", "/cart/items/CI-1", `{"quantity":5}`)
		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d", w.Code)
		}
		var view MutationView
		json.Unmarshal(w.Body.Bytes(), &view)
		if view.Source != cart.SourceLocal {
			t.Errorf("source = %s, want local", view.Source)
		}
		if view.Cart.Items[0].Quantity != 5 {
			t.Errorf("quantity = %d, want 5", view.Cart.Items[0].Quantity)
		}
	})

	t.Run("below one is rejected without a request", func(t *testing.T) {
		before := len(updates)
		w := doJSON(t, mux, "PUT", "/cart/items/CI-1", `{"quantity":0}`)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want 400", w.Code)
		}
		if len(updates) != before {
			t.Error("backend was called for quantity 0")
		}
	})
}

func TestHandleClear(t *testing.T) {
	backend := &adapter.MockBackend{
		AddItemFunc: func(ctx context.Context, id model.Identity, req model.AddItemRequest) (*model.Cart, error) {
			return &model.Cart{Items: []model.LineItem{{CartItemID: "CI-1", ProductID: "P1", Quantity: 2}}}, nil
		},
	}
	_, mux := testHandler(t, backend)
	doJSON(t, mux, "POST", "/cart/items", `{"productId":"P1","quantity":2}`)

	w := doJSON(t, mux, "POST", "/cart/clear", "")

	var view CartView
	json.Unmarshal(w.Body.Bytes(), &view)
	if w.Code != http.StatusOK || len(view.Items) != 0 || view.Count != 0 {
		t.Errorf("Status = %d, cart = %+v", w.Code, view)
	}
}

func TestHandleSessionLoginLogout(t *testing.T) {
	var seen []model.Identity
	backend := &adapter.MockBackend{
		GetCartFunc: func(ctx context.Context, id model.Identity) (*model.Cart, error) {
			seen = append(seen, id)
			if id.UserID == "u-1" {
				return &model.Cart{Items: []model.LineItem{{CartItemID: "U-1", ProductID: "P5", Quantity: 3}}}, nil
			}
			return &model.Cart{}, nil
		},
	}
	_, mux := testHandler(t, backend)

	w := doJSON(t, mux, "POST", "/session/login", `{"userId":"u-1","token":"secret"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login Status = %d, body %s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "secret") {
		t.Error("token leaked into response")
	}
	var sync SyncView
	json.Unmarshal(w.Body.Bytes(), &sync)
	if !sync.Replaced || sync.Cart.Identity.UserID != "u-1" || sync.Cart.Count != 3 {
		t.Errorf("login sync = %+v", sync)
	}
	if len(seen) != 1 || seen[0].Token != "secret" {
		t.Errorf("GetCart identities = %+v", seen)
	}

	w = doJSON(t, mux, "POST", "/session/logout", "")
	var logout SyncView
	json.Unmarshal(w.Body.Bytes(), &logout)
	if logout.Replaced {
		t.Error("empty guest cart must not replace local state")
	}
	if logout.Cart.Identity.UserID != "" || logout.Cart.Count != 3 {
		t.Errorf("logout sync = %+v", logout)
	}
}

func TestHandleLogin_Invalid(t *testing.T) {
	_, mux := testHandler(t, &adapter.MockBackend{})

	for _, body := range []string{`{}`, `{"userId":" "}`, `not json`} {
		w := doJSON(t, mux, "POST", "/session/login", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %s: Status = %d, want 400", body, w.Code)
		}
	}
}

func TestHandleSync_Failure(t *testing.T) {
	_, mux := testHandler(t, &adapter.MockBackend{
		GetCartFunc: func(ctx context.Context, id model.Identity) (*model.Cart, error) {
			return nil, errOffline
		},
	})

	w := doJSON(t, mux, "POST", "/cart/sync", "")

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d", w.Code)
	}
	var view SyncView
	json.Unmarshal(w.Body.Bytes(), &view)
	if view.Replaced || view.Reason == "" {
		t.Errorf("sync = %+v, want not replaced with reason", view)
	}
}

func TestWriteError(t *testing.T) {
	h, _ := testHandler(t, &adapter.MockBackend{})

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", model.NewValidationError("x", "bad"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"not found", model.NewNotFoundError("cart item"), http.StatusNotFound, "NOT_FOUND"},
		{"wrapped upstream", errors.Join(errors.New("ctx"), errOffline), http.StatusBadGateway, "UPSTREAM_ERROR"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.writeError(w, tt.err)
			if w.Code != tt.wantStatus {
				t.Errorf("Status = %d, want %d", w.Code, tt.wantStatus)
			}
			if code := getErrorCode(t, w.Body.Bytes()); code != tt.wantCode {
				t.Errorf("code = %s, want %s", code, tt.wantCode)
			}
		})
	}
}

func TestDecodeJSON_BodyTooLarge(t *testing.T) {
	big := `{"productId":"` + strings.Repeat("x", MaxRequestBodySize) + `"}`
	req := httptest.NewRequest("POST", "/cart/items", bytes.NewBufferString(big))
	w := httptest.NewRecorder()

	var v addItemRequest
	if err := decodeJSON(w, req, &v); err == nil {
		t.Error("expected error for oversized body")
	}
}

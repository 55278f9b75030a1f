// Package shopapi is the HTTP client for the Leaf Shop REST API: cart
// endpoints, the product catalog, product media and S3 download URLs.
//
// Responses are decoded once here, at the network boundary, into typed
// model values. Nothing downstream inspects raw JSON.
package shopapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"leafcart/internal/model"
)

// flexID decodes identifiers the backend emits as either JSON numbers or
// strings ("cartItemId": 17 and "cartItemId": "17" are the same item).
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		*f = flexID(strconv.FormatInt(i, 10))
		return nil
	}
	*f = flexID(n.String())
	return nil
}

// wireCartItem is one line of a cart payload as the API sends it.
type wireCartItem struct {
	CartItemID flexID      `json:"cartItemId"`
	ProductID  flexID      `json:"productId"`
	VariantID  flexID      `json:"variantId"`
	Quantity   int         `json:"quantity"`
	UnitPrice  model.Price `json:"unitPrice"`
	Size       string      `json:"size"`
	Color      string      `json:"color"`
}

// wireCart is the cart payload returned by every cart endpoint.
type wireCart struct {
	Items []wireCartItem `json:"items"`
}

// addItemBody is the POST /api/cart/items request body.
type addItemBody struct {
	UserID    string `json:"userId,omitempty"`
	SessionID string `json:"sessionId"`
	ProductID string `json:"productId"`
	VariantID string `json:"variantId,omitempty"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
}

type wireProduct struct {
	ID    flexID      `json:"id"`
	Name  string      `json:"name"`
	Price model.Price `json:"price"`
}

type wireMedia struct {
	ID         flexID `json:"id"`
	IsPrimary  bool   `json:"isPrimary"`
	MediaOrder int    `json:"mediaOrder"`
	S3Key      string `json:"s3Key"`
	MediaURL   string `json:"mediaUrl"`
}

// errorBody is the API's error envelope. Best effort; any field may be empty.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// decodeCart converts a cart payload into model form.
// Lines without an id or product, or with a quantity below 1, are dropped:
// the local store never holds such lines.
func decodeCart(body []byte) (*model.Cart, error) {
	var wc wireCart
	if err := json.Unmarshal(body, &wc); err != nil {
		return nil, fmt.Errorf("parsing cart response: %w", err)
	}

	cart := &model.Cart{Items: make([]model.LineItem, 0, len(wc.Items))}
	for _, it := range wc.Items {
		if it.CartItemID == "" || it.ProductID == "" || it.Quantity < 1 {
			continue
		}
		cart.Items = append(cart.Items, model.LineItem{
			CartItemID:    string(it.CartItemID),
			ProductID:     string(it.ProductID),
			VariantID:     string(it.VariantID),
			Quantity:      it.Quantity,
			UnitPrice:     it.UnitPrice,
			SelectedSize:  it.Size,
			SelectedColor: it.Color,
		})
	}
	return cart, nil
}

// decodeList accepts a bare JSON array or a paged envelope
// ({"content": [...]}, {"items": [...]} or {"data": [...]}).
func decodeList[T any](body []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var out []T
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, err
		}
		return out, nil
	}

	var env struct {
		Content []T `json:"content"`
		Items   []T `json:"items"`
		Data    []T `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, err
	}
	switch {
	case env.Content != nil:
		return env.Content, nil
	case env.Items != nil:
		return env.Items, nil
	default:
		return env.Data, nil
	}
}

func decodeProducts(body []byte) ([]model.Product, error) {
	wire, err := decodeList[wireProduct](body)
	if err != nil {
		return nil, fmt.Errorf("parsing products response: %w", err)
	}
	out := make([]model.Product, 0, len(wire))
	for _, p := range wire {
		if p.ID == "" {
			continue
		}
		out = append(out, model.Product{ID: string(p.ID), Name: p.Name, Price: p.Price})
	}
	return out, nil
}

func decodeMedia(body []byte) ([]model.Media, error) {
	wire, err := decodeList[wireMedia](body)
	if err != nil {
		return nil, fmt.Errorf("parsing media response: %w", err)
	}
	out := make([]model.Media, 0, len(wire))
	for _, m := range wire {
		out = append(out, model.Media{
			ID:         string(m.ID),
			IsPrimary:  m.IsPrimary,
			MediaOrder: m.MediaOrder,
			S3Key:      strings.TrimSpace(m.S3Key),
			MediaURL:   strings.TrimSpace(m.MediaURL),
		})
	}
	return out, nil
}

// decodeDownloadURL accepts {"downloadUrl": ...}, {"url": ...}, a JSON
// string, or a bare text URL.
func decodeDownloadURL(body []byte) (string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "", fmt.Errorf("empty download-url response")
	}

	switch trimmed[0] {
	case '{':
		var obj struct {
			DownloadURL string `json:"downloadUrl"`
			URL         string `json:"url"`
		}
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return "", fmt.Errorf("parsing download-url response: %w", err)
		}
		if obj.DownloadURL != "" {
			return obj.DownloadURL, nil
		}
		if obj.URL != "" {
			return obj.URL, nil
		}
		return "", fmt.Errorf("download-url response has no url")
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", fmt.Errorf("parsing download-url response: %w", err)
		}
		return s, nil
	default:
		s := string(trimmed)
		if !IsAbsoluteURL(s) {
			return "", fmt.Errorf("download-url response is not a URL")
		}
		return s, nil
	}
}

// IsAbsoluteURL reports whether ref is a fully-qualified http(s) URL.
func IsAbsoluteURL(ref string) bool {
	ref = strings.ToLower(strings.TrimSpace(ref))
	return strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "http://")
}

package shopapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"leafcart/internal/model"
)

// serviceName labels upstream errors.
const serviceName = "Leaf Shop API"

// userAgent identifies this client to the API gateway.
const userAgent = "leafcart/1.0"

// maxResponseBytes bounds how much of any response body is read.
const maxResponseBytes = 4 << 20

// Config holds client settings.
type Config struct {
	// BaseURL is the API origin, e.g. "https://api.leafshop.vn". Paths
	// (/api/cart, ...) are appended to it.
	BaseURL string

	// APIKey is sent as X-API-Key when set.
	APIKey string

	// HTTPClient defaults to a client with a 15s timeout.
	HTTPClient *http.Client
}

// Client talks to the Leaf Shop REST API.
// All methods are safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// New creates a client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", cfg.BaseURL)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}

	return &Client{
		httpClient: hc,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
	}, nil
}

// === Cart ===

// GetCart fetches the server cart for the identity.
// GET /api/cart?userId=&sessionId=
func (c *Client) GetCart(ctx context.Context, id model.Identity) (*model.Cart, error) {
	body, _, err := c.do(ctx, http.MethodGet, "/api/cart", identityQuery(id), nil, id.Token, "cart")
	if err != nil {
		return nil, err
	}
	return decodeCart(body)
}

// AddItem creates a cart line and returns the updated cart.
// POST /api/cart/items
func (c *Client) AddItem(ctx context.Context, id model.Identity, req model.AddItemRequest) (*model.Cart, error) {
	payload := addItemBody{
		UserID:    id.UserID,
		SessionID: id.SessionID,
		ProductID: req.ProductID,
		VariantID: req.VariantID,
		Quantity:  req.Quantity,
		Size:      req.Size,
		Color:     req.Color,
	}
	body, _, err := c.do(ctx, http.MethodPost, "/api/cart/items", nil, payload, id.Token, "product")
	if err != nil {
		return nil, err
	}
	return decodeCart(body)
}

// RemoveItem deletes a cart line and returns the updated cart.
// DELETE /api/cart/items/{cartItemId}?userId=&sessionId=
func (c *Client) RemoveItem(ctx context.Context, id model.Identity, cartItemID string) (*model.Cart, error) {
	path := "/api/cart/items/" + url.PathEscape(cartItemID)
	body, _, err := c.do(ctx, http.MethodDelete, path, identityQuery(id), nil, id.Token, "cart item")
	if err != nil {
		return nil, err
	}
	return decodeCart(body)
}

// UpdateQuantity sets a cart line's quantity and returns the updated cart.
// PUT /api/cart/items/{cartItemId}?userId=&sessionId=&quantity=
func (c *Client) UpdateQuantity(ctx context.Context, id model.Identity, cartItemID string, quantity int) (*model.Cart, error) {
	if quantity < 1 {
		return nil, model.NewValidationError("quantity", "must be at least 1")
	}
	q := identityQuery(id)
	q.Set("quantity", strconv.Itoa(quantity))

	path := "/api/cart/items/" + url.PathEscape(cartItemID)
	body, _, err := c.do(ctx, http.MethodPut, path, q, nil, id.Token, "cart item")
	if err != nil {
		return nil, err
	}
	return decodeCart(body)
}

// identityQuery builds the userId/sessionId query scoping every cart call.
// Both keys are always present; the server prefers userId when non-empty.
func identityQuery(id model.Identity) url.Values {
	q := url.Values{}
	q.Set("userId", id.UserID)
	q.Set("sessionId", id.SessionID)
	return q
}

// === Catalog ===

// ListProducts fetches the full product list.
// GET /api/products
func (c *Client) ListProducts(ctx context.Context) ([]model.Product, error) {
	body, _, err := c.do(ctx, http.MethodGet, "/api/products", nil, nil, "", "products")
	if err != nil {
		return nil, err
	}
	return decodeProducts(body)
}

// ListMedia fetches the media attached to a product.
// GET /api/products/{productId}/media
func (c *Client) ListMedia(ctx context.Context, productID string) ([]model.Media, error) {
	path := "/api/products/" + url.PathEscape(productID) + "/media"
	body, _, err := c.do(ctx, http.MethodGet, path, nil, nil, "", "product media")
	if err != nil {
		return nil, err
	}
	return decodeMedia(body)
}

// DownloadURL is a time-limited browsable URL for a storage key.
type DownloadURL struct {
	URL string

	// MaxAge is the Cache-Control max-age of the response, if the gateway sent one.
	MaxAge    time.Duration
	HasMaxAge bool
}

// ResolveDownloadURL exchanges a storage key for a presigned URL valid for
// expirationMinutes.
// GET /api/s3/download-url?s3Key=&expirationMinutes=
func (c *Client) ResolveDownloadURL(ctx context.Context, s3Key string, expirationMinutes int) (*DownloadURL, error) {
	q := url.Values{}
	q.Set("s3Key", s3Key)
	q.Set("expirationMinutes", strconv.Itoa(expirationMinutes))

	body, resp, err := c.do(ctx, http.MethodGet, "/api/s3/download-url", q, nil, "", "media object")
	if err != nil {
		return nil, err
	}
	u, err := decodeDownloadURL(body)
	if err != nil {
		return nil, err
	}

	out := &DownloadURL{URL: u}
	out.MaxAge, out.HasMaxAge = cacheMaxAge(resp)
	return out, nil
}

// === Transport helpers ===

// do executes a request and returns the body of a successful (< 400)
// response. Error statuses are mapped to model.APIError; resource names the
// thing a 404 refers to.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload interface{}, token, resource string) ([]byte, *http.Response, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, fmt.Errorf("marshaling request: %w", err)
		}
		bodyReader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req, token, payload != nil)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, model.NewUpstreamError(serviceName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, nil, model.NewUpstreamError(serviceName, fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode >= 400 {
		return nil, nil, parseErrorResponse(resp.StatusCode, body, resource)
	}
	return body, resp, nil
}

func (c *Client) setHeaders(req *http.Request, token string, hasBody bool) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
}

// parseErrorResponse converts an error status into an APIError.
func parseErrorResponse(statusCode int, body []byte, resource string) error {
	var eb errorBody
	json.Unmarshal(body, &eb) // best effort

	msg := eb.Message
	if msg == "" {
		msg = eb.Error
	}

	switch {
	case statusCode == http.StatusNotFound:
		return model.NewNotFoundError(resource)
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		if msg == "" {
			msg = "Leaf Shop authentication failed"
		}
		return model.NewUnauthorizedError(msg)
	case statusCode == http.StatusBadRequest || statusCode == http.StatusUnprocessableEntity:
		if msg == "" {
			msg = "invalid request"
		}
		return model.NewValidationError("request", msg)
	case statusCode == http.StatusTooManyRequests:
		return model.NewRateLimitError(serviceName)
	default:
		return model.NewUpstreamError(serviceName,
			fmt.Errorf("status %d: %s - %s", statusCode, eb.Code, msg))
	}
}

package cart

import (
	"leafcart/internal/model"
)

// Result is the outcome of a remote cart call: either the server cart (Ok)
// or the reason the call failed (Err). Exactly one side is set.
type Result struct {
	cart *model.Cart
	err  error
}

// Ok wraps a server cart. A nil cart is treated as empty.
func Ok(c *model.Cart) Result {
	if c == nil {
		c = &model.Cart{}
	}
	return Result{cart: c}
}

// Err wraps a failure reason.
func Err(err error) Result {
	return Result{err: err}
}

// resultOf adapts a backend (cart, error) pair.
func resultOf(c *model.Cart, err error) Result {
	if err != nil {
		return Err(err)
	}
	return Ok(c)
}

// IsOk reports whether the remote call succeeded.
func (r Result) IsOk() bool { return r.err == nil }

// Cart returns the server cart, or nil for Err.
func (r Result) Cart() *model.Cart { return r.cart }

// Reason returns the failure, or nil for Ok.
func (r Result) Reason() error { return r.err }

// Source tells where a cart state came from.
type Source string

const (
	// SourceServer means local state was replaced by the server response.
	SourceServer Source = "server"
	// SourceLocal means the server call failed and the local fallback ran.
	SourceLocal Source = "local"
	// SourceNone means nothing was attempted (e.g. invalid quantity).
	SourceNone Source = "none"
)

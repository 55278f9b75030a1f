// Package transport builds the HTTP transports used to reach the shop API.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

// Kind selects a transport implementation.
type Kind string

const (
	// KindStandard is net/http's default transport.
	KindStandard Kind = "standard"

	// KindChrome presents a Chrome TLS fingerprint. The storefront sits behind
	// a CDN that throttles clients with Go's distinctive JA3 fingerprint.
	KindChrome Kind = "chrome"
)

// ParseKind maps a config string to a Kind. Empty means standard.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case "", KindStandard:
		return KindStandard, nil
	case KindChrome:
		return KindChrome, nil
	default:
		return "", fmt.Errorf("unknown transport %q (want standard or chrome)", s)
	}
}

// NewHTTPClient returns an http.Client with the given transport kind and
// overall request timeout.
func NewHTTPClient(kind Kind, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: New(kind, timeout),
	}
}

// New returns a RoundTripper of the given kind. Unknown kinds fall back to
// the standard transport.
func New(kind Kind, dialTimeout time.Duration) http.RoundTripper {
	if kind == KindChrome {
		return NewChromeTransport(dialTimeout)
	}
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.DialContext = (&net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}).DialContext
	return t
}

// NewChromeTransport dials with uTLS using HelloChrome_Auto and lets ALPN
// pick h2 or http/1.1. h2 responses are framed by x/net/http2.
func NewChromeTransport(dialTimeout time.Duration) http.RoundTripper {
	dialer := &net.Dialer{Timeout: dialTimeout}

	h2 := &http2.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			return dialChromeTLS(ctx, dialer, network, addr)
		},
	}

	h1 := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialChromeTLS(ctx, dialer, network, addr)
		},
		DialContext:       dialer.DialContext,
		ForceAttemptHTTP2: false,
	}

	return &chromeTransport{h2: h2, h1: h1}
}

type chromeTransport struct {
	h2 *http2.Transport
	h1 *http.Transport
}

// RoundTrip sends plain-http requests over HTTP/1.1; TLS requests try h2
// first and fall back to HTTP/1.1.
func (t *chromeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		return t.h1.RoundTrip(req)
	}
	resp, err := t.h2.RoundTrip(req)
	if err == nil {
		return resp, nil
	}
	if req.Body != nil && req.GetBody == nil {
		// body already consumed by the h2 attempt
		return nil, err
	}
	if req.GetBody != nil {
		body, berr := req.GetBody()
		if berr != nil {
			return nil, berr
		}
		req = req.Clone(req.Context())
		req.Body = body
	}
	return t.h1.RoundTrip(req)
}

func dialChromeTLS(ctx context.Context, dialer *net.Dialer, network, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	tlsConn := utls.UClient(conn, &utls.Config{ServerName: host}, utls.HelloChrome_Auto)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tls handshake: %w", err)
	}

	return tlsConn, nil
}

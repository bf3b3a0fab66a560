package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/tuniway/tuniway-web/metrics"
	"github.com/tuniway/tuniway-web/store"
)

// HandoffNamespace marks identity provider requests. They authenticate by
// redirect and must never carry a possibly stale bearer token.
const HandoffNamespace = "/oauth2/"

// Injector is an http.RoundTripper that attaches the persisted access token
// to outgoing requests. It never retries, refreshes or inspects expiry: a 401
// reaches the caller as-is.
type Injector struct {
	store   store.Store
	base    http.RoundTripper
	metrics *metrics.Metrics
}

var _ http.RoundTripper = (*Injector)(nil)

// Option configures an Injector.
type Option func(*Injector)

func WithMetrics(m *metrics.Metrics) Option {
	return func(i *Injector) {
		i.metrics = m
	}
}

// NewInjector wraps base. A nil base uses http.DefaultTransport.
func NewInjector(s store.Store, base http.RoundTripper, opts ...Option) *Injector {
	if base == nil {
		base = http.DefaultTransport
	}
	i := &Injector{store: s, base: base}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Client returns an http.Client using the injector.
func (i *Injector) Client() *http.Client {
	return &http.Client{Transport: i}
}

func (i *Injector) RoundTrip(req *http.Request) (*http.Response, error) {
	token, ok := i.tokenFor(req.URL.Path)
	if !ok {
		return i.base.RoundTrip(req)
	}

	// RoundTrippers must not modify the caller's request
	clone := req.Clone(req.Context())
	bearer(token).SetAuthHeader(clone)
	return i.base.RoundTrip(clone)
}

// Header returns the headers a websocket handshake to path should carry.
func (i *Injector) Header(path string) http.Header {
	h := http.Header{}
	if token, ok := i.tokenFor(path); ok {
		h.Set("Authorization", bearer(token).Type()+" "+token)
	}
	return h
}

// DialWebSocket opens a websocket with the same authorization rule as
// RoundTrip. A nil dialer uses websocket.DefaultDialer.
func (i *Injector) DialWebSocket(ctx context.Context, dialer *websocket.Dialer, rawURL string) (*websocket.Conn, *http.Response, error) {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, nil, fmt.Errorf("[transport DialWebSocket] parse %q: %w", rawURL, err)
	}
	return dialer.DialContext(ctx, rawURL, i.Header(u.Path))
}

func (i *Injector) tokenFor(path string) (string, bool) {
	if strings.Contains(path, HandoffNamespace) {
		i.metrics.Injection(metrics.InjectBypassed)
		return "", false
	}

	token, ok, err := i.store.Get(store.KeyToken)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("injector: token lookup failed, sending unauthenticated")
		i.metrics.Injection(metrics.InjectAnonymous)
		return "", false
	}
	if !ok || token == "" {
		i.metrics.Injection(metrics.InjectAnonymous)
		return "", false
	}

	i.metrics.Injection(metrics.InjectAuthorized)
	return token, true
}

func bearer(token string) *oauth2.Token {
	return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}
}

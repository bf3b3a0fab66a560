// Package guard decides whether a route may be shown, from what the session
// store holds at the moment of the check.
package guard

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tuniway/tuniway-web/metrics"
	"github.com/tuniway/tuniway-web/store"
	"github.com/tuniway/tuniway-web/users"
)

// Environment is the execution context a check runs in. Session state only
// exists in a browser-like context.
type Environment int

const (
	Browser Environment = iota
	ServerRender
)

func (e Environment) String() string {
	if e == Browser {
		return "browser"
	}
	return "server-render"
}

const (
	// RenderModeHeader marks a request made by a server-side renderer.
	RenderModeHeader = "X-Render-Mode"

	DefaultLoginPath = "/login"
	ReturnURLParam   = "returnUrl"
)

// EnvironmentOf classifies an incoming request.
func EnvironmentOf(r *http.Request) Environment {
	if strings.EqualFold(r.Header.Get(RenderModeHeader), "server") {
		return ServerRender
	}
	return Browser
}

// Decision is the outcome of Check.
type Decision struct {
	Allowed  bool
	Redirect string       // Where to send the user when denied
	Reason   string       // One of the metrics.Guard* labels
	Record   users.Record // Set when allowed
}

type roleRule struct {
	prefix string
	roles  []users.Role
}

// Guard checks protected routes. It reads the store directly rather than the
// session manager, so it always sees the last persisted state.
type Guard struct {
	store     store.Store
	loginPath string
	rules     []roleRule
	metrics   *metrics.Metrics
}

type Option func(*Guard)

func WithLoginPath(path string) Option {
	return func(g *Guard) {
		g.loginPath = path
	}
}

// WithRoles restricts prefix, and every path below it, to the given roles.
// The longest matching prefix wins.
func WithRoles(prefix string, roles ...users.Role) Option {
	return func(g *Guard) {
		g.rules = append(g.rules, roleRule{prefix: strings.TrimRight(prefix, "/"), roles: roles})
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Guard) {
		g.metrics = m
	}
}

func New(s store.Store, opts ...Option) *Guard {
	g := &Guard{store: s, loginPath: DefaultLoginPath}
	for _, opt := range opts {
		opt(g)
	}
	sort.SliceStable(g.rules, func(i, j int) bool {
		return len(g.rules[i].prefix) > len(g.rules[j].prefix)
	})
	return g
}

// Check evaluates target, a path optionally carrying a query string.
func (g *Guard) Check(env Environment, target string) Decision {
	d := g.check(env, target)
	g.metrics.GuardDecision(d.Reason)
	return d
}

func (g *Guard) check(env Environment, target string) Decision {
	if env != Browser {
		return g.deny(metrics.GuardServerRender, g.loginURL(target))
	}

	raw, hasRecord, err := g.store.Get(store.KeyCurrentUser)
	if err != nil {
		log.Warn().Err(err).Str("path", target).Msg("guard: failed to read session record")
		return g.deny(metrics.GuardNoSession, g.loginURL(target))
	}
	token, hasToken, err := g.store.Get(store.KeyToken)
	if err != nil {
		log.Warn().Err(err).Str("path", target).Msg("guard: failed to read token")
		return g.deny(metrics.GuardNoSession, g.loginURL(target))
	}
	if !hasRecord || raw == "" || !hasToken || token == "" {
		return g.deny(metrics.GuardNoSession, g.loginURL(target))
	}

	var record users.Record
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		log.Warn().Err(err).Msg("guard: stored record is corrupted, clearing session")
		if err := store.Clear(g.store); err != nil {
			log.Err(err).Msg("guard: failed to clear corrupted session")
		}
		return g.deny(metrics.GuardCorrupted, g.loginURL(target))
	}

	if roles, ok := g.rolesFor(target); ok && !hasRole(roles, record.Role) {
		return g.deny(metrics.GuardForbidden, record.Role.LandingPath())
	}

	return Decision{Allowed: true, Reason: metrics.GuardAllowed, Record: record}
}

func (g *Guard) deny(reason, redirect string) Decision {
	return Decision{Reason: reason, Redirect: redirect}
}

func (g *Guard) loginURL(target string) string {
	return g.loginPath + "?" + url.Values{ReturnURLParam: {target}}.Encode()
}

func (g *Guard) rolesFor(target string) ([]users.Role, bool) {
	path, _, _ := strings.Cut(target, "?")
	for _, rule := range g.rules {
		if path == rule.prefix || strings.HasPrefix(path, rule.prefix+"/") {
			return rule.roles, true
		}
	}
	return nil, false
}

func hasRole(roles []users.Role, role users.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// Middleware redirects denied requests with 303 See Other.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := g.Check(EnvironmentOf(r), r.URL.RequestURI())
		if !d.Allowed {
			http.Redirect(w, r, d.Redirect, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithRecord(r.Context(), d.Record)))
	})
}

package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/tuniway/tuniway-web/guard"
	"github.com/tuniway/tuniway-web/handoff"
	"github.com/tuniway/tuniway-web/internal/config"
	"github.com/tuniway/tuniway-web/metrics"
	"github.com/tuniway/tuniway-web/session"
	"github.com/tuniway/tuniway-web/store"
	"github.com/tuniway/tuniway-web/transport"
	"github.com/tuniway/tuniway-web/users"
)

// ProfileUpdater saves profile edits on the backend.
type ProfileUpdater interface {
	UpdateProfile(ctx context.Context, id int64, patch users.Patch) (users.Record, error)
}

// Deps are the session components the front end is built from. They are
// shared with the CLI, so the server never constructs them itself.
type Deps struct {
	Store    store.Store
	Manager  *session.Manager
	Profiles ProfileUpdater
	Handoff  *handoff.Handler
	Injector *transport.Injector
	Metrics  *metrics.Metrics
}

type Server struct {
	env      string
	appName  string
	router   chi.Router
	config   config.Config
	manager  *session.Manager
	profiles ProfileUpdater
	guard    *guard.Guard
	handoff  *handoff.Handler
	proxy    *httputil.ReverseProxy
	metrics  *metrics.Metrics
	limiter  *IPRateLimiter
}

func New(cfg config.Config, deps Deps) (*Server, error) {
	backendURL, err := url.Parse(handoff.BackendOrigin(cfg.GetBackendURL()))
	if err != nil {
		return nil, fmt.Errorf("[Server New] invalid backend url: %w", err)
	}

	s := &Server{
		env:      cfg.GetEnv(),
		appName:  cfg.GetAppName(),
		config:   cfg,
		manager:  deps.Manager,
		profiles: deps.Profiles,
		handoff:  deps.Handoff,
		metrics:  deps.Metrics,
		guard: guard.New(deps.Store,
			guard.WithLoginPath(RouteLogin),
			guard.WithRoles(RouteGuideProfile, users.RoleGuide),
			guard.WithRoles(RouteAdmin, users.RoleAdmin),
			guard.WithMetrics(deps.Metrics),
		),
		proxy:   newBackendProxy(backendURL, deps.Injector),
		limiter: NewIPRateLimiter(rate.Limit(cfg.GetLoginRate()), cfg.GetLoginBurst()),
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops background work owned by the server.
func (s *Server) Close() {
	s.limiter.Close()
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	_ = chi.Walk(s.router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		logRoute(method, route)
		return nil
	})
}

func logRoute(method, path string) {
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	log.Debug().Msgf("[%s %-7s%s] %s", color, method, ResetColor, path)
}

// newBackendProxy forwards /api traffic to the backend. Authorization comes
// only from the injector, never from the browser.
func newBackendProxy(target *url.URL, injector *transport.Injector) *httputil.ReverseProxy {
	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			pr.Out.Header.Del("Authorization")
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Warn().Err(err).Str("path", r.URL.Path).Msg("backend proxy failed")
			writeJSONError(w, http.StatusBadGateway, "backend unavailable")
		},
	}
	if injector != nil {
		proxy.Transport = injector
	}
	return proxy
}

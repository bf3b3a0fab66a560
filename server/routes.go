package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/tuniway/tuniway-web/handoff"
	"github.com/tuniway/tuniway-web/internal/logging"
)

func (s *Server) initRoutes() {
	r := chi.NewRouter()

	r.Use(cors.New(cors.Options{
		AllowedOrigins:   s.config.GetAllowedOrigins().List(),
		AllowedMethods:   s.config.GetAllowedMethods(),
		AllowedHeaders:   s.config.GetAllowedHeaders(),
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)
	r.Use(middleware.RequestID)
	if s.config.GetTrustProxy() {
		r.Use(middleware.RealIP)
	}
	r.Use(logging.RequestLogger())
	r.Use(middleware.Recoverer)
	r.Use(SameOriginMiddleware(s.config.GetAllowedOrigins()))

	r.Get(RouteHealth, s.HealthHandler())
	r.Handle(RouteMetrics, s.metrics.Handler())
	r.Mount(RouteAPI, s.proxy)

	r.Group(func(r chi.Router) {
		r.Use(FrameSecurityMiddleware, NoStoreMiddleware)

		r.Get(RouteHome, s.HomeHandler())
		r.Get(RouteSession, s.SessionHandler())

		// LOGIN
		r.Get(RouteLogin, s.LoginPageHandler())
		r.With(s.limiter.Middleware).Post(RouteLogin, s.LoginSubmissionHandler())
		r.Get(RouteRegister, s.RegisterPageHandler())
		r.With(s.limiter.Middleware).Post(RouteRegister, s.RegisterSubmissionHandler())
		r.Post(RouteLogout, s.LogoutHandler())

		r.Get(RouteOAuth2Redirect, s.handoff.ServeHTTP)
		r.Get(RouteOAuth2Authorization, s.handoff.LoginRedirect(func(r *http.Request) string {
			return chi.URLParam(r, "provider")
		}))

		// Guarded views
		r.Group(func(r chi.Router) {
			r.Use(s.guard.Middleware)

			r.Get(RouteProfile, s.ProfileViewHandler("profile"))
			r.Put(RouteProfile, s.ProfileUpdateHandler())
			r.Get(RouteGuideProfile, s.ProfileViewHandler("guide-profile"))
			r.Get(RouteAdmin, s.AdminIndexHandler())
			r.Get(RouteAdminSection, s.AdminSectionHandler())
		})
	})

	s.router = r
}

// providerLinks lists the provider login entry points shown on the login
// and register views.
func (s *Server) providerLinks() map[string]string {
	links := make(map[string]string, 2)
	for _, p := range []string{handoff.ProviderGoogle, handoff.ProviderGitHub} {
		if u, err := s.handoff.ProviderLoginURL(p); err == nil {
			links[p] = u
		}
	}
	return links
}

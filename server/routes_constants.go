package server

// Route path constants
const (
	RouteHome     = "/"
	RouteLogin    = "/login"
	RouteRegister = "/register"
	RouteLogout   = "/logout"
	RouteSession  = "/session"

	// Identity provider handoff
	RouteOAuth2Redirect      = "/oauth2/redirect"
	RouteOAuth2Authorization = "/oauth2/authorization/{provider}"

	// Guarded views
	RouteProfile      = "/profile"
	RouteGuideProfile = "/guide/profile"
	RouteAdmin        = "/admin"
	RouteAdminSection = "/admin/{section}"

	RouteAPI     = "/api"
	RouteMetrics = "/metrics"
	RouteHealth  = "/health"
)

// Admin sections. An unknown section is a 404 even for admins.
var adminSections = map[string]struct{}{
	"overview": {},
	"places":   {},
	"users":    {},
	"guides":   {},
	"reviews":  {},
	"tours":    {},
}

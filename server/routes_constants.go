package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteIndex = "/{$}"

	// OAuth2 authorization-code flow
	RouteAuthorize = "/oauth/authorize"
	RouteLogin     = "/oauth/login"
	RouteGrant     = "/oauth/grant"
	RouteToken     = "/oauth/token"
	RouteLogout    = "/oauth/logout"

	// Operations
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"
)

package guard

import (
	"strings"

	"github.com/adopt-a-farmer/client-go/domain"
	"github.com/adopt-a-farmer/client-go/session"
)

// Router maps path patterns to route requirements. Longest pattern wins,
// so a specific rule can carve an exception out of a wildcard subtree.
type Router struct {
	routes []Route
}

// NewRouter creates a router over the given route table.
func NewRouter(routes []Route) *Router {
	return &Router{routes: routes}
}

// DefaultRoutes is the platform's route surface: each role-gated subtree
// under its prefix.
func DefaultRoutes() []Route {
	return []Route{
		{Pattern: "/admin/*", RequireAdmin: true},
		{Pattern: "/farmer/*", RequireFarmer: true},
		{Pattern: "/adopter/*", AllowedRoles: []domain.Role{
			domain.RoleAdopter, domain.RoleInvestor, domain.RoleBuyer,
		}},
		{Pattern: "/expert/*", AllowedRoles: []domain.Role{domain.RoleExpert}},
	}
}

// Match finds the route covering path. The second return is false when no
// pattern matches.
func (r *Router) Match(path string) (Route, bool) {
	var best Route
	bestLen := -1
	for _, route := range r.routes {
		if matchPattern(route.Pattern, path) && len(route.Pattern) > bestLen {
			best = route
			bestLen = len(route.Pattern)
		}
	}
	return best, bestLen >= 0
}

// Evaluate matches path against the table and runs the guard. Unmatched
// paths produce NotFound.
func (r *Router) Evaluate(state session.State, path string) Result {
	route, ok := r.Match(path)
	if !ok {
		return Result{Decision: DecisionNotFound}
	}
	return Evaluate(state, route, path)
}

// matchPattern supports exact patterns and a trailing "/*" prefix
// wildcard. "/admin/*" covers "/admin" itself and everything under it.
func matchPattern(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		return path == prefix || strings.HasPrefix(path, prefix+"/")
	}
	return path == pattern
}

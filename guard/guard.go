// Package guard decides whether a navigation target may render for the
// current session, and where to send the user when it may not. Decisions
// are pure functions of session state and route requirements: evaluating
// the same pair twice always yields the same answer.
package guard

import (
	"net/url"

	"github.com/adopt-a-farmer/client-go/domain"
	"github.com/adopt-a-farmer/client-go/session"
)

// LoginPath is where unauthenticated (and, deliberately, unauthorized)
// navigations are redirected. The original frontend sends role mismatches
// here rather than to a forbidden page; kept as-is.
const LoginPath = "/auth/login"

// Decision is the outcome of evaluating a route against a session.
type Decision int

const (
	// DecisionLoading: the session has not finished initializing; render
	// a placeholder, make no redirect yet.
	DecisionLoading Decision = iota
	// DecisionUnauthenticated: redirect to login, carrying the requested
	// path so login can return the user there.
	DecisionUnauthenticated
	// DecisionUnauthorized: authenticated, but the role requirement is
	// not met; redirect to login.
	DecisionUnauthorized
	// DecisionAuthorized: render the protected subtree.
	DecisionAuthorized
	// DecisionNotFound: no route matches the path; render not-found,
	// never an error.
	DecisionNotFound
)

func (d Decision) String() string {
	switch d {
	case DecisionLoading:
		return "loading"
	case DecisionUnauthenticated:
		return "unauthenticated"
	case DecisionUnauthorized:
		return "unauthorized"
	case DecisionAuthorized:
		return "authorized"
	case DecisionNotFound:
		return "not_found"
	}
	return "unknown"
}

// Route declares a protected subtree's role requirements. The explicit
// flags and the allow-list are independent gates; all set gates must
// pass.
type Route struct {
	// Pattern is the path this route covers, either exact ("/dashboard")
	// or a prefix wildcard ("/admin/*").
	Pattern string

	RequireAdmin   bool
	RequireFarmer  bool
	RequireAdopter bool
	// AllowedRoles, when non-empty, admits only the listed roles.
	AllowedRoles []domain.Role
}

// allows checks every declared gate, in declaration order. First failing
// gate loses.
func (r Route) allows(role domain.Role) bool {
	if r.RequireAdmin && role != domain.RoleAdmin {
		return false
	}
	if r.RequireFarmer && role != domain.RoleFarmer {
		return false
	}
	if r.RequireAdopter && role != domain.RoleAdopter {
		return false
	}
	if len(r.AllowedRoles) > 0 {
		ok := false
		for _, allowed := range r.AllowedRoles {
			if role == allowed {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// Result pairs a decision with the redirect target, when one applies.
type Result struct {
	Decision Decision
	// Redirect is the navigation target for the Unauthenticated and
	// Unauthorized decisions, empty otherwise.
	Redirect string
}

// Evaluate runs the guard state machine for one route against one session
// snapshot. requestedPath is the navigation target, carried into the
// login redirect as the redirect query parameter.
func Evaluate(state session.State, route Route, requestedPath string) Result {
	if !state.Initialized {
		return Result{Decision: DecisionLoading}
	}
	if !state.IsAuthenticated() {
		return Result{
			Decision: DecisionUnauthenticated,
			Redirect: loginRedirect(requestedPath),
		}
	}
	if !route.allows(state.Role()) {
		return Result{
			Decision: DecisionUnauthorized,
			Redirect: LoginPath,
		}
	}
	return Result{Decision: DecisionAuthorized}
}

// loginRedirect builds the login path with the original destination as a
// redirect query parameter.
func loginRedirect(requestedPath string) string {
	if requestedPath == "" {
		return LoginPath
	}
	return LoginPath + "?redirect=" + url.QueryEscape(requestedPath)
}

// DefaultLandingRouteFor picks the post-login dashboard purely from the
// role. Both the login flow and startup restoration use this one
// function, so the two can never drift apart.
func DefaultLandingRouteFor(role domain.Role) string {
	switch role {
	case domain.RoleFarmer:
		return "/farmer/dashboard"
	case domain.RoleAdmin:
		return "/admin/dashboard"
	case domain.RoleExpert:
		return "/expert/dashboard"
	default:
		return "/adopter/dashboard"
	}
}

// PostLoginTarget resolves where a fresh login should land: the redirect
// parameter when one was carried, otherwise the role's default dashboard.
func PostLoginTarget(redirectParam string, role domain.Role) string {
	if redirectParam != "" {
		return redirectParam
	}
	return DefaultLandingRouteFor(role)
}

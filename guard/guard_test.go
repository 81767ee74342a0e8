package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/adopt-a-farmer/client-go/domain"
	"github.com/adopt-a-farmer/client-go/session"
)

func authedState(role domain.Role) session.State {
	return session.State{
		AccessToken: "tok",
		User:        &domain.User{ID: "u1", Role: role},
		Initialized: true,
	}
}

func TestEvaluate_LoadingBeforeInitialize(t *testing.T) {
	res := Evaluate(session.State{}, Route{Pattern: "/admin/*", RequireAdmin: true}, "/admin/dashboard")
	assert.Equal(t, DecisionLoading, res.Decision)
	assert.Empty(t, res.Redirect)
}

func TestEvaluate_UnauthenticatedCarriesRedirect(t *testing.T) {
	state := session.State{Initialized: true}
	res := Evaluate(state, Route{Pattern: "/farmer/*", RequireFarmer: true}, "/farmer/plots?page=2")

	assert.Equal(t, DecisionUnauthenticated, res.Decision)
	assert.Equal(t, "/auth/login?redirect=%2Ffarmer%2Fplots%3Fpage%3D2", res.Redirect)
}

func TestEvaluate_AdminRouteNonAdminRedirectsToLogin(t *testing.T) {
	res := Evaluate(authedState(domain.RoleAdopter), Route{Pattern: "/admin/*", RequireAdmin: true}, "/admin/dashboard")

	assert.Equal(t, DecisionUnauthorized, res.Decision)
	assert.Equal(t, LoginPath, res.Redirect)
}

func TestEvaluate_AllowListAdmitsListedRoles(t *testing.T) {
	route := Route{
		Pattern:      "/adopter/*",
		AllowedRoles: []domain.Role{domain.RoleAdopter, domain.RoleInvestor, domain.RoleBuyer},
	}

	for _, role := range route.AllowedRoles {
		res := Evaluate(authedState(role), route, "/adopter/portfolio")
		assert.Equal(t, DecisionAuthorized, res.Decision, "role %s", role)
	}

	res := Evaluate(authedState(domain.RoleExpert), route, "/adopter/portfolio")
	assert.Equal(t, DecisionUnauthorized, res.Decision)
}

func TestEvaluate_AllGatesMustPass(t *testing.T) {
	// A route requiring admin AND an allow-list without admin is
	// unsatisfiable; no role passes.
	route := Route{
		Pattern:      "/impossible",
		RequireAdmin: true,
		AllowedRoles: []domain.Role{domain.RoleFarmer},
	}
	for _, role := range domain.Roles {
		res := Evaluate(authedState(role), route, "/impossible")
		assert.Equal(t, DecisionUnauthorized, res.Decision, "role %s", role)
	}
}

func TestEvaluate_Idempotent(t *testing.T) {
	state := authedState(domain.RoleFarmer)
	route := Route{Pattern: "/farmer/*", RequireFarmer: true}

	first := Evaluate(state, route, "/farmer/dashboard")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Evaluate(state, route, "/farmer/dashboard"))
	}
	assert.Equal(t, DecisionAuthorized, first.Decision)
}

func TestDefaultLandingRouteFor(t *testing.T) {
	cases := map[domain.Role]string{
		domain.RoleFarmer:           "/farmer/dashboard",
		domain.RoleAdmin:            "/admin/dashboard",
		domain.RoleExpert:           "/expert/dashboard",
		domain.RoleAdopter:          "/adopter/dashboard",
		domain.RoleInvestor:         "/adopter/dashboard",
		domain.RoleBuyer:            "/adopter/dashboard",
		domain.RoleLogisticsPartner: "/adopter/dashboard",
	}
	for role, want := range cases {
		assert.Equal(t, want, DefaultLandingRouteFor(role), "role %s", role)
	}
}

func TestPostLoginTarget(t *testing.T) {
	assert.Equal(t, "/farmer/plots", PostLoginTarget("/farmer/plots", domain.RoleFarmer))
	assert.Equal(t, "/farmer/dashboard", PostLoginTarget("", domain.RoleFarmer))
	assert.Equal(t, "/adopter/dashboard", PostLoginTarget("", domain.RoleInvestor))
}

func TestRouter_DefaultRoutes(t *testing.T) {
	r := NewRouter(DefaultRoutes())

	// Admin subtree, adopter user: redirected, subtree never renders.
	res := r.Evaluate(authedState(domain.RoleAdopter), "/admin/dashboard")
	assert.Equal(t, DecisionUnauthorized, res.Decision)
	assert.Equal(t, LoginPath, res.Redirect)

	// Allow-list subtree admits an investor.
	res = r.Evaluate(authedState(domain.RoleInvestor), "/adopter/portfolio")
	assert.Equal(t, DecisionAuthorized, res.Decision)

	// Unmatched paths are not-found, never an error.
	res = r.Evaluate(authedState(domain.RoleAdmin), "/no/such/page")
	assert.Equal(t, DecisionNotFound, res.Decision)
}

func TestRouter_PatternMatching(t *testing.T) {
	r := NewRouter([]Route{
		{Pattern: "/admin/*", RequireAdmin: true},
		{Pattern: "/admin/help"}, // public exception inside the subtree
	})

	// Exact pattern is longer, so it wins over the wildcard.
	route, ok := r.Match("/admin/help")
	assert.True(t, ok)
	assert.False(t, route.RequireAdmin)

	route, ok = r.Match("/admin/users")
	assert.True(t, ok)
	assert.True(t, route.RequireAdmin)

	// The wildcard covers its own root.
	_, ok = r.Match("/admin")
	assert.True(t, ok)

	_, ok = r.Match("/administrator")
	assert.False(t, ok, "prefix match must respect path boundaries")
}

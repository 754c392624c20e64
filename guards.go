package approval

import (
	"context"
)

// Application routes the guards redirect to.
const (
	RouteHome            = "/"
	RouteRegister        = "/register"
	RoutePendingApproval = "/pending-approval"
	RouteAdminApprovals  = "/admin/approvals"
)

// Decision is the outcome of a route guard.
type Decision struct {
	Allow    bool   `json:"allow"`
	Redirect string `json:"redirect,omitempty"`
}

func allow() Decision                  { return Decision{Allow: true} }
func redirectTo(route string) Decision { return Decision{Redirect: route} }

// Guards project the resolved approval state onto navigation. They hold no
// state of their own.
type Guards struct {
	resolver *Resolver
}

func NewGuards(resolver *Resolver) *Guards {
	return &Guards{resolver: resolver}
}

// Entry sends pending or rejected users to the pending view and users with
// nothing on record to registration. An approved status wins even when the
// profile has not been written yet.
func (g *Guards) Entry(ctx context.Context, user User) Decision {
	switch g.resolver.Resolve(ctx, user).Status {
	case StatusApproved:
		return allow()
	case StatusPending, StatusRejected:
		return redirectTo(RoutePendingApproval)
	}

	if g.resolver.NeedsRegistration(ctx, user) {
		return redirectTo(RouteRegister)
	}
	return allow()
}

// Registration keeps approved and already submitted users out of the form.
func (g *Guards) Registration(ctx context.Context, user User) Decision {
	if user == nil {
		return allow()
	}

	switch g.resolver.Resolve(ctx, user).Status {
	case StatusApproved:
		return redirectTo(RouteHome)
	case StatusPending, StatusRejected:
		return redirectTo(RoutePendingApproval)
	default:
		return allow()
	}
}

// AdminArea requires approval_admin on a refreshed token. Everyone else is
// treated as an ordinary pending user.
func (g *Guards) AdminArea(ctx context.Context, user User) Decision {
	if user == nil {
		return redirectTo(RoutePendingApproval)
	}

	claims, err := user.Claims(ctx, true)
	if err != nil || !claims.ApprovalAdmin() {
		return redirectTo(RoutePendingApproval)
	}
	return allow()
}

// Check runs the guard protecting route. Unknown routes are allowed.
func (g *Guards) Check(ctx context.Context, route string, user User) Decision {
	switch route {
	case RouteHome:
		return g.Entry(ctx, user)
	case RouteRegister:
		return g.Registration(ctx, user)
	case RouteAdminApprovals:
		return g.AdminArea(ctx, user)
	default:
		return allow()
	}
}

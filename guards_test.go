package approval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuards(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	guards := NewGuards(NewResolver(store, WithResolverLogger(nopLogger{})))

	newcomer := &stubUser{uid: "new"}
	pending := &stubUser{uid: "pending"}
	rejected := &stubUser{uid: "rejected"}
	approved := &stubUser{uid: "approved", claims: Claims{ClaimApproved: true}}
	admin := &stubUser{uid: "admin", claims: Claims{ClaimApprovalAdmin: true}}
	broken := &stubUser{uid: "broken", claimsErr: errBoom}

	_, err := store.SetSubmission(ctx, &PendingSubmission{UID: "pending", Role: RoleParent, Status: SubmissionPending})
	require.NoError(t, err)
	reason := "missing documents"
	_, err = store.SetSubmission(ctx, &PendingSubmission{UID: "rejected", Role: RoleParent, Status: SubmissionRejected, RejectionReason: &reason})
	require.NoError(t, err)
	_, err = store.MergeProfile(ctx, &ApprovedProfile{UID: "admin", RegistrationCompleted: true})
	require.NoError(t, err)

	tests := []struct {
		name     string
		route    string
		user     User
		expected Decision
	}{
		{"entry sends newcomers to registration", RouteHome, newcomer, Decision{Redirect: RouteRegister}},
		{"entry sends pending users to the pending view", RouteHome, pending, Decision{Redirect: RoutePendingApproval}},
		{"entry sends rejected users to the pending view", RouteHome, rejected, Decision{Redirect: RoutePendingApproval}},
		{"entry lets approved users in", RouteHome, approved, Decision{Allow: true}},
		{"entry lets completed profiles in", RouteHome, admin, Decision{Allow: true}},
		{"registration allows newcomers", RouteRegister, newcomer, Decision{Allow: true}},
		{"registration allows anonymous users", RouteRegister, nil, Decision{Allow: true}},
		{"registration sends approved users home", RouteRegister, approved, Decision{Redirect: RouteHome}},
		{"registration sends pending users to the pending view", RouteRegister, pending, Decision{Redirect: RoutePendingApproval}},
		{"registration sends rejected users to the pending view", RouteRegister, rejected, Decision{Redirect: RoutePendingApproval}},
		{"admin area allows approval admins", RouteAdminApprovals, admin, Decision{Allow: true}},
		{"admin area rejects approved non admins", RouteAdminApprovals, approved, Decision{Redirect: RoutePendingApproval}},
		{"admin area rejects anonymous users", RouteAdminApprovals, nil, Decision{Redirect: RoutePendingApproval}},
		{"admin area rejects on refresh failure", RouteAdminApprovals, broken, Decision{Redirect: RoutePendingApproval}},
		{"unknown routes are allowed", "/settings", newcomer, Decision{Allow: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, guards.Check(ctx, tt.route, tt.user))
		})
	}
}

func TestGuardsApprovedClaimBeforeProfileWrite(t *testing.T) {
	ctx := context.Background()
	resolver := NewResolver(newTestStore(t), WithResolverLogger(nopLogger{}))
	guards := NewGuards(resolver)

	// claims are set first during approval, the profile lands later
	user := &stubUser{uid: "mid-approval", claims: Claims{ClaimApproved: true}}

	require.True(t, resolver.NeedsRegistration(ctx, user))
	assert.Equal(t, Decision{Allow: true}, guards.Entry(ctx, user))
	assert.Equal(t, Decision{Redirect: RouteHome}, guards.Registration(ctx, user))
}

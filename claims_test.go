package approval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClaimsAccessors(t *testing.T) {
	claims := Claims{ClaimApproved: true, ClaimRole: "teacher", ClaimApprovalAdmin: "yes"}
	assert.True(t, claims.Approved())
	assert.Equal(t, RoleTeacher, claims.Role())
	assert.False(t, claims.ApprovalAdmin(), "only boolean true counts")

	var empty Claims
	assert.False(t, empty.Approved())
	assert.Equal(t, Role(""), empty.Role())
	assert.NotNil(t, empty.Clone())
}

func TestClaimsMergeKeepsOriginal(t *testing.T) {
	base := Claims{"school": "north", ClaimRole: "parent"}
	merged := base.Merge(Claims{ClaimApproved: true, ClaimRole: "teacher"})

	assert.Equal(t, Claims{"school": "north", ClaimRole: "teacher", ClaimApproved: true}, merged)
	assert.Equal(t, Claims{"school": "north", ClaimRole: "parent"}, base)
}

func TestJWTClaimsRoundTrip(t *testing.T) {
	custom := Claims{ClaimApproved: true, ClaimRole: "parent", ClaimApprovalAdmin: true, "school": "north"}
	jwtClaims := NewJWTClaims("u1", "a@example.com", ProviderGoogle, custom)

	assert.Equal(t, "u1", jwtClaims.UserID())
	assert.Equal(t, "u1", jwtClaims.Subject)
	assert.True(t, jwtClaims.Approved)
	assert.Equal(t, "parent", jwtClaims.UserRole)
	assert.Equal(t, map[string]any{"school": "north"}, jwtClaims.Extra)
	assert.Equal(t, custom, jwtClaims.Custom())

	bare := NewJWTClaims("u2", "", ProviderPassword, nil)
	assert.Nil(t, bare.Extra)
	assert.Empty(t, bare.Custom())
	assert.True(t, bare.Expires().IsZero())
}

func TestParseRole(t *testing.T) {
	role, ok := ParseRole(" Teacher ")
	assert.True(t, ok)
	assert.Equal(t, RoleTeacher, role)

	_, ok = ParseRole("admin")
	assert.False(t, ok)
}

func TestApprovalStatusEqual(t *testing.T) {
	a, b := "x", "x"
	assert.True(t, ApprovalStatus{Status: StatusRejected, RejectionReason: &a}.Equal(ApprovalStatus{Status: StatusRejected, RejectionReason: &b}))
	assert.False(t, ApprovalStatus{Status: StatusRejected, RejectionReason: &a}.Equal(ApprovalStatus{Status: StatusRejected}))
	assert.False(t, ApprovalStatus{Status: StatusPending}.Equal(ApprovalStatus{Status: StatusNone}))
}

func TestIntentStepReached(t *testing.T) {
	assert.True(t, IntentProfileWritten.Reached(IntentClaimsSet))
	assert.True(t, IntentClaimsSet.Reached(IntentClaimsSet))
	assert.False(t, IntentStarted.Reached(IntentClaimsSet))
	assert.True(t, IntentCompleted.Reached(IntentProfileWritten))
}

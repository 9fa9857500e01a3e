package guard

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ronittamrakar/xordon/internal/apperr"
	"github.com/ronittamrakar/xordon/internal/rbac"
	"github.com/ronittamrakar/xordon/internal/tenant"
)

// fakeProber records the probe it was asked to run and answers from a
// canned row set keyed (table, scopeValue, resourceID).
type fakeProber struct {
	rows  map[probeKey]int64
	calls []probeCall
	err   error
}

type probeKey struct {
	table      string
	scopeValue int64
	resourceID int64
}

type probeCall struct {
	table, scopeColumn, creatorColumn string
	scopeValue, resourceID            int64
}

func (f *fakeProber) Probe(_ context.Context, table, scopeColumn, creatorColumn string, scopeValue, resourceID int64) (bool, int64, error) {
	f.calls = append(f.calls, probeCall{table, scopeColumn, creatorColumn, scopeValue, resourceID})
	if f.err != nil {
		return false, 0, f.err
	}
	creator, ok := f.rows[probeKey{table, scopeValue, resourceID}]
	return ok, creator, nil
}

func memberContext() *tenant.Context {
	return &tenant.Context{
		UserID:            7,
		WorkspaceID:       100,
		Role:              rbac.RoleMember,
		AllowedCompanyIDs: []int64{500},
		ActiveCompanyID:   500,
	}
}

func TestVerifyScopesByWorkspace(t *testing.T) {
	prober := &fakeProber{rows: map[probeKey]int64{
		{"campaigns", 100, 1}: 7,
	}}
	g := New(prober)

	ok, err := g.Verify(context.Background(), memberContext(), Campaigns, 1)
	require.NoError(t, err)
	require.True(t, ok)

	call := prober.calls[0]
	require.Equal(t, "campaigns", call.table)
	require.Equal(t, "workspace_id", call.scopeColumn)
	require.Equal(t, int64(100), call.scopeValue)
}

func TestVerifyScopesByActiveCompany(t *testing.T) {
	prober := &fakeProber{rows: map[probeKey]int64{
		{"tickets", 500, 9}: 7,
	}}
	g := New(prober)

	ok, err := g.Verify(context.Background(), memberContext(), Tickets, 9)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(500), prober.calls[0].scopeValue)
}

func TestVerifyOtherTenantRowIsInvisible(t *testing.T) {
	// The row exists, but under workspace 999.
	prober := &fakeProber{rows: map[probeKey]int64{
		{"campaigns", 999, 1}: 7,
	}}
	g := New(prober)

	ok, err := g.Verify(context.Background(), memberContext(), Campaigns, 1)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCompanyScopeWithoutActiveCompany(t *testing.T) {
	prober := &fakeProber{rows: map[probeKey]int64{}}
	g := New(prober)

	tc := memberContext()
	tc.ActiveCompanyID = 0
	tc.AllowedCompanyIDs = nil

	ok, err := g.Verify(context.Background(), tc, Tickets, 9)
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, prober.calls, "no company selected means nothing to probe")
}

func TestRequireOwnershipMapsToNotFound(t *testing.T) {
	g := New(&fakeProber{rows: map[probeKey]int64{}})

	err := g.RequireOwnership(context.Background(), memberContext(), Campaigns, 1)
	require.True(t, errors.Is(err, apperr.ErrNotFound))
	require.False(t, errors.Is(err, apperr.ErrForbidden))
}

func TestVerifyManyReturnsOwnedSubset(t *testing.T) {
	prober := &fakeProber{rows: map[probeKey]int64{
		{"campaigns", 100, 1}: 7,
		{"campaigns", 100, 3}: 8,
	}}
	g := New(prober)

	owned, err := g.VerifyMany(context.Background(), memberContext(), Campaigns, []int64{1, 2, 3, 4})
	require.NoError(t, err)
	require.Equal(t, []int64{1, 3}, owned)

	// A batch with nothing verifiable filters down to nothing.
	owned, err = g.VerifyMany(context.Background(), memberContext(), Campaigns, []int64{2, 4})
	require.NoError(t, err)
	require.Empty(t, owned)
}

func TestIsOwnerOrAdmin(t *testing.T) {
	prober := &fakeProber{rows: map[probeKey]int64{
		{"campaigns", 100, 1}: 7,
		{"campaigns", 100, 2}: 8,
	}}
	g := New(prober)
	ctx := context.Background()

	// Admins never need a creator match.
	admin := memberContext()
	admin.Role = rbac.RoleAdmin
	ok, err := g.IsOwnerOrAdmin(ctx, admin, Campaigns, 2)
	require.NoError(t, err)
	require.True(t, ok)
	require.Empty(t, prober.calls)

	// A member passes only on rows they created.
	member := memberContext()
	ok, err = g.IsOwnerOrAdmin(ctx, member, Campaigns, 1)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = g.IsOwnerOrAdmin(ctx, member, Campaigns, 2)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIsOwnerOrAdminWithoutCreatorColumn(t *testing.T) {
	prober := &fakeProber{rows: map[probeKey]int64{
		{"invoices", 500, 1}: 0,
	}}
	g := New(prober)

	ok, err := g.IsOwnerOrAdmin(context.Background(), memberContext(), Invoices, 1)
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, prober.calls, "no creator column means no probe can help")
}

func TestProbeErrorPropagates(t *testing.T) {
	g := New(&fakeProber{err: errors.New("connection reset")})

	_, err := g.Verify(context.Background(), memberContext(), Campaigns, 1)
	require.ErrorContains(t, err, "verify campaign ownership")
}

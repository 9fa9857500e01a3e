package tenant

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ronittamrakar/xordon/internal/apperr"
	"github.com/ronittamrakar/xordon/internal/models"
	"github.com/ronittamrakar/xordon/internal/observ"
	"github.com/ronittamrakar/xordon/internal/rbac"
)

// fakeWorkspaceStore serves memberships from a static slice, in slice
// order for the default fallback (owner rows first mimics the store's
// ordering contract when constructed that way).
type fakeWorkspaceStore struct {
	memberships map[int64][]models.Membership // by user id, fallback order
	slugs       map[string]bool
	created     []models.Workspace
	nextID      int64
}

func (f *fakeWorkspaceStore) MembershipBySlug(_ context.Context, userID int64, slug string) (*models.Membership, error) {
	for _, m := range f.memberships[userID] {
		if m.Slug == slug {
			copied := m
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeWorkspaceStore) MembershipByWorkspace(_ context.Context, userID, workspaceID int64) (*models.Membership, error) {
	for _, m := range f.memberships[userID] {
		if m.WorkspaceID == workspaceID {
			copied := m
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeWorkspaceStore) DefaultMembership(_ context.Context, userID int64) (*models.Membership, error) {
	list := f.memberships[userID]
	if len(list) == 0 {
		return nil, nil
	}
	for _, m := range list {
		if m.Role == "owner" {
			copied := m
			return &copied, nil
		}
	}
	copied := list[0]
	return &copied, nil
}

func (f *fakeWorkspaceStore) ListMemberships(_ context.Context, userID int64) ([]models.Membership, error) {
	return f.memberships[userID], nil
}

func (f *fakeWorkspaceStore) ListMembers(_ context.Context, _ int64) ([]models.RosterEntry, error) {
	return nil, nil
}

func (f *fakeWorkspaceStore) SlugExists(_ context.Context, slug string) (bool, error) {
	return f.slugs[slug], nil
}

func (f *fakeWorkspaceStore) CreateWithOwner(_ context.Context, name, slug string, ownerUserID int64) (*models.Workspace, error) {
	f.nextID++
	ws := models.Workspace{ID: f.nextID, Name: name, Slug: slug, OwnerUserID: ownerUserID}
	f.created = append(f.created, ws)
	if f.slugs == nil {
		f.slugs = map[string]bool{}
	}
	f.slugs[slug] = true
	if f.memberships == nil {
		f.memberships = map[int64][]models.Membership{}
	}
	f.memberships[ownerUserID] = append(f.memberships[ownerUserID], models.Membership{
		WorkspaceID: ws.ID, WorkspaceName: name, Slug: slug, Role: "owner",
	})
	return &ws, nil
}

type fakeCompanyStore struct {
	companies map[int64][]models.Company // by workspace
	grants    map[int64][]int64          // by user
	legacy    map[int64][]int64          // by user

	listCalls int
}

func (f *fakeCompanyStore) ListByWorkspace(_ context.Context, workspaceID int64) ([]models.Company, error) {
	f.listCalls++
	return f.companies[workspaceID], nil
}

func (f *fakeCompanyStore) GrantedIDs(_ context.Context, _, userID int64) ([]int64, error) {
	return f.grants[userID], nil
}

func (f *fakeCompanyStore) LegacyOwnedIDs(_ context.Context, _, userID int64) ([]int64, error) {
	return f.legacy[userID], nil
}

func (f *fakeCompanyStore) GetByID(_ context.Context, workspaceID, companyID int64) (*models.Company, error) {
	for _, c := range f.companies[workspaceID] {
		if c.ID == companyID {
			copied := c
			return &copied, nil
		}
	}
	return nil, nil
}

type fakeUserStore struct {
	users map[int64]*models.User
}

func (f *fakeUserStore) GetByID(_ context.Context, userID int64) (*models.User, error) {
	return f.users[userID], nil
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeUserStore) Create(context.Context, string, string, string) (*models.User, error) {
	return nil, errors.New("not implemented")
}

// captureEvents records audit rows for assertions.
type captureEvents struct {
	mu     sync.Mutex
	events []models.SecurityEvent
}

func (c *captureEvents) Insert(_ context.Context, event models.SecurityEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *captureEvents) kinds() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var kinds []string
	for _, e := range c.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

func testResolver() (*Resolver, *fakeCompanyStore, *captureEvents) {
	workspaces := &fakeWorkspaceStore{
		memberships: map[int64][]models.Membership{
			7: {
				{WorkspaceID: 1, WorkspaceName: "Acme", Slug: "acme", Role: "owner"},
				{WorkspaceID: 2, WorkspaceName: "Side Project", Slug: "side", Role: "member"},
			},
			8: {
				{WorkspaceID: 1, WorkspaceName: "Acme", Slug: "acme", Role: "member"},
			},
		},
	}
	companies := &fakeCompanyStore{
		companies: map[int64][]models.Company{
			1: {
				{ID: 10, WorkspaceID: 1, Name: "Alpha"},
				{ID: 11, WorkspaceID: 1, Name: "Beta"},
			},
		},
		grants: map[int64][]int64{8: {11}},
	}
	users := &fakeUserStore{users: map[int64]*models.User{
		7: {ID: 7, Email: "owner@acme.test", Name: "Owner", AccountType: "standard"},
		8: {ID: 8, Email: "member@acme.test", Name: "Member", AccountType: "standard"},
	}}
	events := &captureEvents{}
	audit := observ.NewAuditSink(zap.NewNop(), events)
	return NewResolver(workspaces, companies, users, audit, zap.NewNop()), companies, events
}

func TestResolveBySlug(t *testing.T) {
	resolver, _, _ := testResolver()

	tc, err := resolver.ResolveOrFail(context.Background(), 7, Hints{Slug: "side"})
	require.NoError(t, err)
	require.Equal(t, int64(2), tc.WorkspaceID)
	require.Equal(t, rbac.RoleMember, tc.Role)
}

func TestSlugTakesPriorityOverHeader(t *testing.T) {
	resolver, _, _ := testResolver()

	tc, err := resolver.ResolveOrFail(context.Background(), 7, Hints{Slug: "side", WorkspaceID: "1"})
	require.NoError(t, err)
	require.Equal(t, int64(2), tc.WorkspaceID)
}

func TestHeaderSelectsWorkspaceWhenMember(t *testing.T) {
	resolver, _, _ := testResolver()

	tc, err := resolver.ResolveOrFail(context.Background(), 7, Hints{WorkspaceID: "2"})
	require.NoError(t, err)
	require.Equal(t, int64(2), tc.WorkspaceID)
}

func TestHeaderFallsThroughWhenNotMember(t *testing.T) {
	resolver, _, _ := testResolver()

	// User 8 is not in workspace 2; the hint selects nothing and the
	// default membership applies.
	tc, err := resolver.ResolveOrFail(context.Background(), 8, Hints{WorkspaceID: "2"})
	require.NoError(t, err)
	require.Equal(t, int64(1), tc.WorkspaceID)
}

func TestMalformedHeaderFallsThrough(t *testing.T) {
	resolver, _, _ := testResolver()

	for _, raw := range []string{"abc", "-3", "0", "1.5"} {
		tc, err := resolver.ResolveOrFail(context.Background(), 7, Hints{WorkspaceID: raw})
		require.NoError(t, err, "header %q", raw)
		require.Equal(t, int64(1), tc.WorkspaceID, "header %q", raw)
	}
}

func TestDefaultPrefersOwnerMembership(t *testing.T) {
	resolver, _, _ := testResolver()

	tc, err := resolver.ResolveOrFail(context.Background(), 7, Hints{})
	require.NoError(t, err)
	require.Equal(t, int64(1), tc.WorkspaceID)
	require.Equal(t, rbac.RoleOwner, tc.Role)
}

func TestNoMembershipIsForbidden(t *testing.T) {
	resolver, _, _ := testResolver()

	_, err := resolver.ResolveOrFail(context.Background(), 999, Hints{})
	require.True(t, errors.Is(err, apperr.ErrForbidden))
}

func TestOwnerSeesAllCompanies(t *testing.T) {
	resolver, _, _ := testResolver()

	tc, err := resolver.ResolveOrFail(context.Background(), 7, Hints{})
	require.NoError(t, err)
	require.Equal(t, []int64{10, 11}, tc.AllowedCompanyIDs)
	require.Equal(t, int64(10), tc.ActiveCompanyID)
	require.NotNil(t, tc.Company)
	require.Equal(t, "Alpha", tc.Company.Name)
}

func TestMemberSeesOnlyGrantedCompanies(t *testing.T) {
	resolver, _, _ := testResolver()

	tc, err := resolver.ResolveOrFail(context.Background(), 8, Hints{})
	require.NoError(t, err)
	require.Equal(t, []int64{11}, tc.AllowedCompanyIDs)
	require.Equal(t, int64(11), tc.ActiveCompanyID)
}

func TestMemberWithoutGrantsFallsBackToLegacyOwned(t *testing.T) {
	resolver, companies, _ := testResolver()
	companies.grants = nil
	companies.legacy = map[int64][]int64{8: {10}}

	tc, err := resolver.ResolveOrFail(context.Background(), 8, Hints{})
	require.NoError(t, err)
	require.Equal(t, []int64{10}, tc.AllowedCompanyIDs)
}

func TestHostileCompanyHeaderIsDeniedAndAudited(t *testing.T) {
	resolver, _, events := testResolver()

	// Company 10 exists in the workspace but is not granted to user 8.
	_, err := resolver.ResolveOrFail(context.Background(), 8, Hints{CompanyID: "10"})
	require.True(t, errors.Is(err, apperr.ErrForbidden))
	require.Contains(t, events.kinds(), observ.EventCompanyDenied)
}

func TestMalformedCompanyHeaderIsDenied(t *testing.T) {
	resolver, _, events := testResolver()

	_, err := resolver.ResolveOrFail(context.Background(), 8, Hints{CompanyID: "not-a-number"})
	require.True(t, errors.Is(err, apperr.ErrForbidden))
	require.Contains(t, events.kinds(), observ.EventCompanyDenied)
}

func TestLegacyClientHeaderIsHonored(t *testing.T) {
	resolver, _, _ := testResolver()

	tc, err := resolver.ResolveOrFail(context.Background(), 7, Hints{LegacyClientID: "11"})
	require.NoError(t, err)
	require.Equal(t, int64(11), tc.ActiveCompanyID)
}

func TestNoCompaniesMeansNoActiveCompany(t *testing.T) {
	resolver, companies, _ := testResolver()
	companies.companies = nil
	companies.grants = nil

	tc, err := resolver.ResolveOrFail(context.Background(), 7, Hints{})
	require.NoError(t, err)
	require.Empty(t, tc.AllowedCompanyIDs)
	require.Zero(t, tc.ActiveCompanyID)
}

func TestActiveCompanyAlwaysInAllowedSet(t *testing.T) {
	resolver, _, _ := testResolver()

	for _, hints := range []Hints{{}, {CompanyID: "11"}, {LegacyClientID: "10"}} {
		tc, err := resolver.ResolveOrFail(context.Background(), 7, hints)
		require.NoError(t, err)
		if tc.ActiveCompanyID != 0 {
			require.True(t, tc.AllowsCompany(tc.ActiveCompanyID))
		}
	}
}

func TestAllowedCompaniesAreMemoized(t *testing.T) {
	resolver, companies, _ := testResolver()
	ctx := context.Background()

	_, err := resolver.ResolveOrFail(ctx, 7, Hints{})
	require.NoError(t, err)
	_, err = resolver.ResolveOrFail(ctx, 7, Hints{})
	require.NoError(t, err)
	require.Equal(t, 1, companies.listCalls)

	resolver.InvalidateAllowedCompanies(7, 1)
	_, err = resolver.ResolveOrFail(ctx, 7, Hints{})
	require.NoError(t, err)
	require.Equal(t, 2, companies.listCalls)
}

package tenant

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/ronittamrakar/xordon/internal/models"
)

// slugMaxAttempts caps the -N suffix search. Fifty collisions on one base
// slug means something is wrong with the data, not with our luck.
const slugMaxAttempts = 50

var nonSlugChars = regexp.MustCompile(`[^a-z0-9-]+`)
var dashRuns = regexp.MustCompile(`-+`)

// Slugify lowercases value and collapses everything outside [a-z0-9-]
// into single dashes. An input with nothing usable becomes "workspace".
func Slugify(value string) string {
	slug := strings.ToLower(value)
	slug = nonSlugChars.ReplaceAllString(slug, "-")
	slug = dashRuns.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "workspace"
	}
	return slug
}

// EnsureWorkspace returns the user's membership, creating a workspace
// (with the user as owner) when they have none. This runs at signup,
// never inside request-time resolution, which stays read-only.
//
// Name defaults to "<user name>'s Workspace"; the slug is derived from
// the preferred slug, the email local part, or the name, uniquified with
// a -N suffix.
func (r *Resolver) EnsureWorkspace(ctx context.Context, userID int64, preferredName, preferredSlug string) (*models.Membership, error) {
	existing, err := r.resolveMembership(ctx, userID, Hints{Slug: preferredSlug})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	return r.ProvisionWorkspace(ctx, userID, preferredName, preferredSlug)
}

// ProvisionWorkspace creates a fresh workspace owned by userID,
// deriving a name and a unique slug from what the caller supplied.
// Unlike EnsureWorkspace it always creates, so an explicit "new
// workspace" request works for users who already have one.
func (r *Resolver) ProvisionWorkspace(ctx context.Context, userID int64, preferredName, preferredSlug string) (*models.Membership, error) {
	user, err := r.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user for workspace provisioning: %w", err)
	}

	name := strings.TrimSpace(preferredName)
	if name == "" {
		if user != nil && user.Name != "" {
			name = user.Name + "'s Workspace"
		} else {
			name = "My Workspace"
		}
	}

	base := preferredSlug
	if base == "" && user != nil && user.Email != "" {
		base = strings.SplitN(user.Email, "@", 2)[0]
	}
	if base == "" {
		base = name
	}
	baseSlug := Slugify(base)

	slug := baseSlug
	for suffix := 2; ; suffix++ {
		exists, err := r.workspaces.SlugExists(ctx, slug)
		if err != nil {
			return nil, fmt.Errorf("check workspace slug: %w", err)
		}
		if !exists {
			break
		}
		if suffix > slugMaxAttempts {
			return nil, fmt.Errorf("unable to generate unique workspace slug from %q", baseSlug)
		}
		slug = fmt.Sprintf("%s-%d", baseSlug, suffix)
	}

	workspace, err := r.workspaces.CreateWithOwner(ctx, name, slug, userID)
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	r.log.Info("workspace provisioned",
		zap.Int64("workspace_id", workspace.ID),
		zap.Int64("owner_user_id", userID),
		zap.String("slug", workspace.Slug),
	)

	return &models.Membership{
		WorkspaceID:   workspace.ID,
		WorkspaceName: workspace.Name,
		Slug:          workspace.Slug,
		Role:          "owner",
	}, nil
}

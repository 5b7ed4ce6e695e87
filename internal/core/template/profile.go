// Package template selects and renders infrastructure templates for
// deployment. Part of the Functional Core - templates are embedded assets,
// no disk or network I/O happens here.
package template

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/fnship/fnship/internal/core/domain"
)

//go:embed templates/*.json
var templatesFS embed.FS

// =============================================================================
// Deployment Profiles
// =============================================================================

// Profile is a named, well-known infrastructure template shape.
type Profile string

const (
	ProfileConsumption Profile = "consumption"
	ProfilePremium     Profile = "premium"
	ProfileDedicated   Profile = "dedicated"
)

// DefaultProfile is used when no profile hint is given or the hint is not
// recognized.
const DefaultProfile = ProfileConsumption

// profileAssets maps each well-known profile to its embedded template asset.
var profileAssets = map[Profile]string{
	ProfileConsumption: "templates/consumption.json",
	ProfilePremium:     "templates/premium.json",
	ProfileDedicated:   "templates/dedicated.json",
}

// IsValid checks if the profile is a known well-known shape.
func (p Profile) IsValid() bool {
	_, ok := profileAssets[p]
	return ok
}

// ParseProfile maps a free-form hint to a Profile, falling back to the
// default profile when the hint is empty or unrecognized.
func ParseProfile(hint string) Profile {
	p := Profile(hint)
	if !p.IsValid() {
		return DefaultProfile
	}
	return p
}

// ForProfile renders the well-known template mapped to the given profile.
func ForProfile(p Profile) (domain.TemplateSpec, error) {
	asset, ok := profileAssets[p]
	if !ok {
		return domain.TemplateSpec{}, fmt.Errorf("profile %q: %w", string(p), domain.ErrUnknownProfile)
	}

	doc, err := templatesFS.ReadFile(asset)
	if err != nil {
		return domain.TemplateSpec{}, fmt.Errorf("failed to read template asset %s: %w", asset, err)
	}

	return domain.TemplateSpec{
		Template:   json.RawMessage(doc),
		Parameters: map[string]any{},
	}, nil
}

// =============================================================================
// Resolution
// =============================================================================

// Resolve produces the template spec for a deployment. An explicit
// user-supplied template always wins when present; otherwise the profile hint
// selects a well-known template, defaulting on an unrecognized hint.
func Resolve(explicit *domain.ExplicitTemplate, profileHint string) (domain.TemplateSpec, error) {
	if explicit != nil {
		params := explicit.Parameters
		if params == nil {
			params = map[string]any{}
		}
		return domain.TemplateSpec{
			Template:   explicit.Template,
			Parameters: params,
		}, nil
	}

	return ForProfile(ParseProfile(profileHint))
}

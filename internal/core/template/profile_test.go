package template

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fnship/fnship/internal/core/domain"
)

// =============================================================================
// ParseProfile Tests
// =============================================================================

func TestParseProfile_Recognized(t *testing.T) {
	assert.Equal(t, ProfileConsumption, ParseProfile("consumption"))
	assert.Equal(t, ProfilePremium, ParseProfile("premium"))
	assert.Equal(t, ProfileDedicated, ParseProfile("dedicated"))
}

func TestParseProfile_EmptyFallsBackToDefault(t *testing.T) {
	assert.Equal(t, DefaultProfile, ParseProfile(""))
}

func TestParseProfile_UnrecognizedFallsBackToDefault(t *testing.T) {
	assert.Equal(t, DefaultProfile, ParseProfile("mainframe"))
}

// =============================================================================
// ForProfile Tests
// =============================================================================

func TestForProfile_RendersEmbeddedTemplate(t *testing.T) {
	for _, profile := range []Profile{ProfileConsumption, ProfilePremium, ProfileDedicated} {
		spec, err := ForProfile(profile)
		require.NoError(t, err, "profile %s", profile)

		var doc map[string]any
		require.NoError(t, json.Unmarshal(spec.Template, &doc), "profile %s", profile)
		assert.Contains(t, doc, "resources", "profile %s", profile)
		assert.Empty(t, spec.Parameters)
		assert.NotNil(t, spec.Parameters)
	}
}

func TestForProfile_Unknown(t *testing.T) {
	_, err := ForProfile(Profile("mainframe"))
	assert.ErrorIs(t, err, domain.ErrUnknownProfile)
}

// =============================================================================
// Resolve Tests
// =============================================================================

func TestResolve_ExplicitTemplateWins(t *testing.T) {
	explicit := &domain.ExplicitTemplate{
		Template:   json.RawMessage(`{"resources":[]}`),
		Parameters: map[string]any{"location": "westeurope"},
	}

	// The profile hint must be ignored, even a recognized one.
	spec, err := Resolve(explicit, "premium")
	require.NoError(t, err)

	assert.Equal(t, json.RawMessage(`{"resources":[]}`), spec.Template)
	assert.Equal(t, map[string]any{"location": "westeurope"}, spec.Parameters)
}

func TestResolve_ExplicitTemplateNilParametersDefaultToEmpty(t *testing.T) {
	explicit := &domain.ExplicitTemplate{
		Template: json.RawMessage(`{"resources":[]}`),
	}

	spec, err := Resolve(explicit, "")
	require.NoError(t, err)

	assert.NotNil(t, spec.Parameters)
	assert.Empty(t, spec.Parameters)
}

func TestResolve_ProfileHintSelectsTemplate(t *testing.T) {
	premium, err := ForProfile(ProfilePremium)
	require.NoError(t, err)

	spec, err := Resolve(nil, "premium")
	require.NoError(t, err)

	assert.Equal(t, premium.Template, spec.Template)
}

func TestResolve_NoHintUsesDefaultProfile(t *testing.T) {
	consumption, err := ForProfile(ProfileConsumption)
	require.NoError(t, err)

	spec, err := Resolve(nil, "")
	require.NoError(t, err)

	assert.Equal(t, consumption.Template, spec.Template)
}

func TestResolve_UnrecognizedHintUsesDefaultProfile(t *testing.T) {
	consumption, err := ForProfile(ProfileConsumption)
	require.NoError(t, err)

	spec, err := Resolve(nil, "mainframe")
	require.NoError(t, err)

	assert.Equal(t, consumption.Template, spec.Template)
}

package domain

import "encoding/json"

// =============================================================================
// TemplateSpec
// =============================================================================

// TemplateSpec is a rendered infrastructure template plus its parameters,
// ready for submission to the control plane. Produced once per deployment
// and consumed exactly once.
type TemplateSpec struct {
	Template   json.RawMessage
	Parameters map[string]any
}

// ExplicitTemplate is a user-supplied template document. When present it
// overrides any well-known deployment profile.
type ExplicitTemplate struct {
	Template   json.RawMessage
	Parameters map[string]any
}

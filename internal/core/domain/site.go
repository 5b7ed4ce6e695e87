package domain

import (
	"strings"
)

// =============================================================================
// Site
// =============================================================================

// Site is the deployed function app's identity and runtime metadata as
// reported by the control plane.
type Site struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Location   string         `json:"location"`
	Properties SiteProperties `json:"properties"`
}

// SiteProperties holds the runtime metadata of a deployed site.
type SiteProperties struct {
	State            string   `json:"state"`
	DefaultHostName  string   `json:"defaultHostName"`
	EnabledHostNames []string `json:"enabledHostNames"`
}

// SCMHost returns the site's source-control-management hostname used for code
// upload. It scans the enabled hostnames for the one carrying the "scm" label,
// which also selects the isolated-environment variant when the site lives in a
// private environment with a custom SCM domain.
func (s *Site) SCMHost() (string, error) {
	for _, host := range s.Properties.EnabledHostNames {
		if strings.Contains(host, ".scm.") {
			return host, nil
		}
	}
	return "", ErrNoSCMHost
}

// =============================================================================
// FunctionEntry
// =============================================================================

// FunctionEntry is one routable function unit inside a deployed site.
type FunctionEntry struct {
	Name       string         `json:"name"`
	Properties map[string]any `json:"properties"`
}

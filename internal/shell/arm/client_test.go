package arm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fnship/fnship/internal/core/domain"
)

// staticTokens is a test double for the credential cache.
type staticTokens struct {
	token string
}

func (s staticTokens) Token(_ context.Context) (string, error) {
	return s.token, nil
}

func newTestClient(serverURL string) *Client {
	cfg := Config{
		ManagementURL:  serverURL,
		SubscriptionID: "sub1",
		ResourceGroup:  "rg1",
		Timeout:        5 * time.Second,
		RetryMax:       0,
		PollInterval:   time.Millisecond,
		MaxPolls:       5,
	}
	return NewClient(cfg, staticTokens{token: "test-token"}, nil)
}

// =============================================================================
// Deploy Tests
// =============================================================================

func TestDeploy_Success(t *testing.T) {
	var submitted deploymentRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/subscriptions/sub1/resourcegroups/rg1/providers/Microsoft.Resources/deployments/dep1", r.URL.Path)
		assert.Equal(t, "2018-05-01", r.URL.Query().Get("api-version"))
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		switch r.Method {
		case http.MethodPut:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&submitted))
			w.WriteHeader(http.StatusCreated)
		case http.MethodGet:
			w.Write([]byte(`{"properties": {"provisioningState": "Succeeded"}}`))
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	spec := domain.TemplateSpec{
		Template:   json.RawMessage(`{"resources":[]}`),
		Parameters: map[string]any{"location": map[string]any{"value": "westeurope"}},
	}

	err := client.Deploy(context.Background(), "dep1", spec)
	require.NoError(t, err)

	assert.Equal(t, "Incremental", submitted.Properties.Mode)
	assert.JSONEq(t, `{"resources":[]}`, string(submitted.Properties.Template))
	assert.Contains(t, submitted.Properties.Parameters, "location")
}

func TestDeploy_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"code": "InvalidTemplate", "message": "the template is malformed"}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.Deploy(context.Background(), "dep1", domain.TemplateSpec{Template: json.RawMessage(`{}`)})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDeploymentRejected)
	assert.Contains(t, err.Error(), "InvalidTemplate")
}

func TestDeploy_ProvisioningFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			w.WriteHeader(http.StatusCreated)
		case http.MethodGet:
			w.Write([]byte(`{"properties": {"provisioningState": "Failed"}}`))
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.Deploy(context.Background(), "dep1", domain.TemplateSpec{Template: json.RawMessage(`{}`)})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDeploymentRejected)
	assert.Contains(t, err.Error(), "Failed")
}

func TestDeploy_ProvisioningTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			w.WriteHeader(http.StatusCreated)
		case http.MethodGet:
			w.Write([]byte(`{"properties": {"provisioningState": "Running"}}`))
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.Deploy(context.Background(), "dep1", domain.TemplateSpec{Template: json.RawMessage(`{}`)})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

// =============================================================================
// GetSite Tests
// =============================================================================

func TestGetSite_Found(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/subscriptions/sub1/resourcegroups/rg1/providers/Microsoft.Web/sites/myapp", r.URL.Path)
		assert.Equal(t, "2016-08-01", r.URL.Query().Get("api-version"))

		w.Write([]byte(`{
			"id": "/subscriptions/sub1/resourceGroups/rg1/providers/Microsoft.Web/sites/myapp",
			"name": "myapp",
			"location": "westeurope",
			"properties": {
				"state": "Running",
				"defaultHostName": "myapp.azurewebsites.net",
				"enabledHostNames": ["myapp.azurewebsites.net", "myapp.scm.azurewebsites.net"]
			}
		}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	site, err := client.GetSite(context.Background(), "myapp")

	require.NoError(t, err)
	require.NotNil(t, site)
	assert.Equal(t, "myapp", site.Name)
	assert.Equal(t, "myapp.azurewebsites.net", site.Properties.DefaultHostName)
	assert.Len(t, site.Properties.EnabledHostNames, 2)
}

func TestGetSite_NotFoundIsAbsent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": {"code": "ResourceNotFound", "message": "site does not exist"}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	site, err := client.GetSite(context.Background(), "myapp")

	require.NoError(t, err)
	assert.Nil(t, site)
}

func TestGetSite_OtherErrorCodeIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error": {"code": "AuthorizationFailed", "message": "not allowed"}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.GetSite(context.Background(), "myapp")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSiteLookupFailed)
	assert.Contains(t, err.Error(), "AuthorizationFailed")
}

func TestGetSite_NotFoundWithoutEnvelopeIsFatal(t *testing.T) {
	// A bare 404 without the not-found error code must not be treated as
	// absent.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`gateway error`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.GetSite(context.Background(), "myapp")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSiteLookupFailed)
}

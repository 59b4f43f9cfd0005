package catalog_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphlite-db/graphlite/pkg/catalog"
	"github.com/graphlite-db/graphlite/pkg/catalog/providers"
	"github.com/graphlite-db/graphlite/pkg/storage"
)

func newTestManager(t *testing.T) *catalog.Manager {
	t.Helper()
	facade := storage.NewMemoryFacade()
	m, err := catalog.NewManager(facade, providers.NewSchemaProvider(), providers.NewGraphMetadataProvider(), providers.NewSecurityProvider())
	require.NoError(t, err)
	return m
}

func TestSchemaProviderBootstrapsMainAsDefault(t *testing.T) {
	m := newTestManager(t)
	resp, err := m.ExecuteReadOnly("schema", catalog.Operation{Kind: catalog.OpQuery, Name: "main"})
	require.NoError(t, err)
	require.Equal(t, catalog.RespQuery, resp.Kind)
	require.Equal(t, true, resp.Results[0]["is_default"])
}

func TestSchemaDropDefaultRequiresCascade(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Execute("schema", catalog.Operation{Kind: catalog.OpDrop, Name: "main"})
	require.Error(t, err)
	_, err = m.Execute("schema", catalog.Operation{Kind: catalog.OpDrop, Name: "main", Cascade: true})
	require.NoError(t, err)
}

func TestSecurityBootstrapsAdminWithBothRoles(t *testing.T) {
	m := newTestManager(t)
	resp, err := m.ExecuteReadOnly("security", catalog.Operation{Kind: catalog.OpQuery, EntityType: "user", Name: "admin"})
	require.NoError(t, err)
	roles := resp.Results[0]["roles"].([]string)
	require.Contains(t, roles, "admin")
	require.Contains(t, roles, "user")
}

func TestSecurityAuthenticateRequiresHashPrefixScheme(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Execute("security", catalog.Operation{
		Kind: catalog.OpUpdate, EntityType: "user", Name: "admin",
		Updates: map[string]any{"password": "s3cret"},
	})
	require.NoError(t, err)

	_, err = m.ExecuteReadOnly("security", catalog.Operation{
		Kind: catalog.OpQuery, EntityType: "authenticate", Name: "admin",
		Params: map[string]any{"password": "s3cret"},
	})
	require.NoError(t, err)

	_, err = m.ExecuteReadOnly("security", catalog.Operation{
		Kind: catalog.OpQuery, EntityType: "authenticate", Name: "admin",
		Params: map[string]any{"password": "wrong"},
	})
	require.Error(t, err)
}

func TestGraphMetadataDropGraphTypeRequiresCascadeWhenReferenced(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Execute("graph_metadata", catalog.Operation{Kind: catalog.OpCreate, EntityType: "graph_type", Name: "main/SocialType"})
	require.NoError(t, err)
	_, err = m.Execute("graph_metadata", catalog.Operation{
		Kind: catalog.OpCreate, EntityType: "graph", Name: "main/social",
		Params: map[string]any{"graph_type": "main/SocialType"},
	})
	require.NoError(t, err)

	_, err = m.Execute("graph_metadata", catalog.Operation{Kind: catalog.OpDrop, EntityType: "graph_type", Name: "main/SocialType"})
	require.Error(t, err)

	_, err = m.Execute("graph_metadata", catalog.Operation{Kind: catalog.OpDrop, EntityType: "graph_type", Name: "main/SocialType", Cascade: true})
	require.NoError(t, err)
}

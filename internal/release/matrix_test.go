package release

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_LastN(t *testing.T) {
	matrix := NewMatrix(newTestCatalog(t, nil))

	releases, err := matrix.Resolve(context.Background(), Selector{LastN: 2})
	require.NoError(t, err)

	require.Len(t, releases, 2)
	assert.Equal(t, "6.2.1", releases[0].Version.String())
	assert.Equal(t, "6.2", releases[1].Version.String())
}

func TestResolve_LastNDefaultsToOne(t *testing.T) {
	matrix := NewMatrix(newTestCatalog(t, nil))

	releases, err := matrix.Resolve(context.Background(), Selector{})
	require.NoError(t, err)
	require.Len(t, releases, 1)
	assert.Equal(t, "6.2.1", releases[0].Version.String())
}

func TestResolve_ExplicitVersionsKeepRequestedOrder(t *testing.T) {
	matrix := NewMatrix(newTestCatalog(t, nil))

	releases, err := matrix.Resolve(context.Background(), Selector{Versions: []string{"6.1.2", "6.2.1"}})
	require.NoError(t, err)

	require.Len(t, releases, 2)
	assert.Equal(t, "6.1.2", releases[0].Version.String())
	assert.Equal(t, "6.2.1", releases[1].Version.String())
}

func TestResolve_ExplicitVersionsWidenCatalogWindow(t *testing.T) {
	var perPage string
	matrix := NewMatrix(newTestCatalog(t, &perPage))

	_, err := matrix.Resolve(context.Background(), Selector{Versions: []string{"6.1.2"}})
	require.NoError(t, err)
	assert.Equal(t, "30", perPage)
}

func TestResolve_UnknownVersion(t *testing.T) {
	matrix := NewMatrix(newTestCatalog(t, nil))

	_, err := matrix.Resolve(context.Background(), Selector{Versions: []string{"5.0.0"}})
	require.Error(t, err)
	assert.True(t, IsUnknownVersion(err))
	assert.Contains(t, err.Error(), "5.0.0")
}

func TestResolve_ExplicitVersionBadSyntax(t *testing.T) {
	matrix := NewMatrix(newTestCatalog(t, nil))

	_, err := matrix.Resolve(context.Background(), Selector{Versions: []string{"6.x"}})
	require.Error(t, err)
	assert.False(t, IsUnknownVersion(err))
}

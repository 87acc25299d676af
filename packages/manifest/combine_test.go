package manifest

import (
	"testing"

	"github.com/abdul-hamid-achik/depspec/packages/core/descriptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombine(t *testing.T) {
	checkout := &Manifest{Path: "suites/checkout.yaml", Groups: []Group{
		{ID: "app.Checkout", DependsOn: []string{"app.Users"}, Tests: []Test{{Name: "Pay"}}},
	}}
	users := &Manifest{Path: "suites/users.yaml", Groups: []Group{
		{ID: "app.Users", Tests: []Test{{Name: "Create"}, {Name: "Login", DependsOn: []string{"Create"}}}},
	}}

	set, err := Combine(checkout, users)
	require.NoError(t, err)

	groups, tests := set.Descriptors()
	require.Len(t, groups, 2)
	assert.Equal(t, descriptor.GroupID("app.Checkout"), groups[0].ID)
	assert.Equal(t, descriptor.GroupID("app.Users"), groups[1].ID)
	assert.Len(t, tests, 3)

	owner, ok := set.Owner("app.Users")
	require.True(t, ok)
	assert.Same(t, users, owner)

	_, ok = set.Owner("app.Missing")
	assert.False(t, ok)

	again, err := Combine(users, users)
	require.NoError(t, err)
	assert.Len(t, again.Manifests, 1)
}

func TestCombine_DuplicateGroup(t *testing.T) {
	first := &Manifest{Path: "a.yaml", Groups: []Group{{ID: "app.Users"}}}
	second := &Manifest{Path: "b.yaml", Groups: []Group{{ID: "app.Users"}}}

	_, err := Combine(first, second)
	require.ErrorIs(t, err, ErrDuplicateGroup)
	assert.Contains(t, err.Error(), `"app.Users" in a.yaml and b.yaml`)
}

package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPermissionKeysRoundTrip(t *testing.T) {
	perms := []Permission{PermMealAdd, PermMealEdit, PermUserManagement}

	keys := permissionKeys(perms)
	assert.Equal(t, []string{"meal_add", "meal_edit", "user_management"}, keys)
	assert.Equal(t, perms, ParsePermissions(keys))
}

func TestParsePermissionsFiltersAndDedupes(t *testing.T) {
	parsed := ParsePermissions([]string{"meal_add", "not_a_permission", "meal_add", "report_view"})
	assert.Equal(t, []Permission{PermMealAdd, PermReportView}, parsed)
}

func TestAllKeysRegistered(t *testing.T) {
	for _, p := range All() {
		assert.True(t, p.Valid(), string(p))
	}
}

package authz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/messdesk/messdesk/internal/shared"
)

type memoryRoleStore struct {
	roles map[int64]Role
	err   error
}

func (s *memoryRoleStore) GetRole(ctx context.Context, roleID int64) (Role, error) {
	if s.err != nil {
		return Role{}, s.err
	}
	role, ok := s.roles[roleID]
	if !ok {
		return Role{}, shared.ErrNotFound
	}
	return role, nil
}

type memoryAudit struct {
	records []shared.AuditLog
}

func (a *memoryAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.records = append(a.records, log)
	return nil
}

type testScope struct {
	actorID int64
	messID  int64
	roleID  int64
	admin   bool
}

func (s testScope) ActorID() int64   { return s.actorID }
func (s testScope) MessID() int64    { return s.messID }
func (s testScope) ActorRole() int64 { return s.roleID }
func (s testScope) IsAdmin() bool    { return s.admin }

type testRecord struct {
	messID  int64
	ownerID int64
}

func (r testRecord) Attribute(name string) (any, bool) {
	switch name {
	case "mess_id":
		return r.messID, true
	case "user_id":
		return r.ownerID, true
	}
	return nil, false
}

func (r testRecord) TenantID() int64 { return r.messID }

func managerStore() *memoryRoleStore {
	return &memoryRoleStore{roles: map[int64]Role{
		10: {ID: 10, MessID: 1, Name: RoleManager, Permissions: []Permission{
			PermUserManagement, PermMealManagement, PermReportView,
		}},
		11: {ID: 11, MessID: 1, Name: RoleMember, Permissions: []Permission{
			PermMealAdd, PermReportView,
		}},
		20: {ID: 20, MessID: 2, Name: RoleManager, Permissions: []Permission{PermUserManagement}},
	}}
}

func TestCanRolePermissions(t *testing.T) {
	ev := NewEvaluator(managerStore(), nil, nil)
	ctx := context.Background()

	manager := testScope{actorID: 5, messID: 1, roleID: 10}
	assert.True(t, ev.Can(ctx, manager, PermUserManagement))
	assert.True(t, ev.Can(ctx, manager, PermReportView))
	assert.False(t, ev.Can(ctx, manager, PermPermissionManagement))

	member := testScope{actorID: 6, messID: 1, roleID: 11}
	assert.True(t, ev.Can(ctx, member, PermMealAdd))
	assert.False(t, ev.Can(ctx, member, PermMealDelete))
}

func TestCanAdminBypassesRole(t *testing.T) {
	// The admin's role need not exist in the store at all.
	ev := NewEvaluator(&memoryRoleStore{roles: map[int64]Role{}}, nil, nil)
	admin := testScope{actorID: 1, messID: 1, roleID: 999, admin: true}
	assert.True(t, ev.Can(context.Background(), admin, PermPermissionManagement))
}

func TestCanNilScopeDenied(t *testing.T) {
	ev := NewEvaluator(managerStore(), nil, nil)
	assert.False(t, ev.Can(context.Background(), nil, PermMealAdd))
	assert.False(t, ev.HasPermission(context.Background(), nil, PermMealAdd))
}

func TestCanStoreErrorDenied(t *testing.T) {
	ev := NewEvaluator(&memoryRoleStore{err: errors.New("db down")}, nil, nil)
	scope := testScope{actorID: 5, messID: 1, roleID: 10}
	assert.False(t, ev.Can(context.Background(), scope, PermMealAdd))
}

func TestCanRoleFromAnotherMessDenied(t *testing.T) {
	ev := NewEvaluator(managerStore(), nil, nil)
	// Role 20 belongs to mess 2; scope claims mess 1.
	scope := testScope{actorID: 5, messID: 1, roleID: 20}
	assert.False(t, ev.Can(context.Background(), scope, PermUserManagement))
}

func TestCanAllAndCanAnyEmptySets(t *testing.T) {
	ev := NewEvaluator(managerStore(), nil, nil)
	scope := testScope{actorID: 6, messID: 1, roleID: 11}
	assert.True(t, ev.CanAll(context.Background(), scope))
	assert.False(t, ev.CanAny(context.Background(), scope))
}

func TestCanAllCanAny(t *testing.T) {
	ev := NewEvaluator(managerStore(), nil, nil)
	ctx := context.Background()
	member := testScope{actorID: 6, messID: 1, roleID: 11}

	assert.True(t, ev.CanAll(ctx, member, PermMealAdd, PermReportView))
	assert.False(t, ev.CanAll(ctx, member, PermMealAdd, PermUserManagement))
	assert.True(t, ev.CanAny(ctx, member, PermUserManagement, PermMealAdd))
	assert.False(t, ev.CanAny(ctx, member, PermUserManagement, PermPermissionManagement))
}

func TestPermissionsErrorSurface(t *testing.T) {
	ev := NewEvaluator(&memoryRoleStore{err: errors.New("db down")}, nil, nil)
	scope := testScope{actorID: 5, messID: 1, roleID: 10}
	_, err := ev.Permissions(context.Background(), scope)
	require.Error(t, err)
}

func TestPermissionsAdminGetsAll(t *testing.T) {
	ev := NewEvaluator(&memoryRoleStore{roles: map[int64]Role{}}, nil, nil)
	scope := testScope{actorID: 1, messID: 1, roleID: 0, admin: true}
	perms, err := ev.Permissions(context.Background(), scope)
	require.NoError(t, err)
	assert.ElementsMatch(t, All(), perms)
}

func TestCanAccessModelTenantMismatchAudited(t *testing.T) {
	audit := &memoryAudit{}
	ev := NewEvaluator(managerStore(), audit, nil)
	scope := testScope{actorID: 5, messID: 1, roleID: 10}
	foreign := testRecord{messID: 2, ownerID: 5}

	assert.False(t, ev.CanAccessModel(context.Background(), scope, PermUserManagement, foreign))
	require.Len(t, audit.records, 1)
	assert.Equal(t, shared.AuditTenantMismatch, audit.records[0].Action)
	assert.Equal(t, int64(1), audit.records[0].MessID)
}

func TestCanAccessModelSameTenant(t *testing.T) {
	ev := NewEvaluator(managerStore(), nil, nil)
	scope := testScope{actorID: 5, messID: 1, roleID: 10}
	rec := testRecord{messID: 1, ownerID: 9}

	assert.True(t, ev.CanAccessModel(context.Background(), scope, PermUserManagement, rec))
	assert.False(t, ev.CanAccessModel(context.Background(), scope, PermPermissionManagement, rec))
	assert.False(t, ev.CanAccessModel(context.Background(), scope, PermUserManagement, nil))
}

func TestCanAccessOwnModel(t *testing.T) {
	ev := NewEvaluator(managerStore(), nil, nil)
	ctx := context.Background()
	member := testScope{actorID: 6, messID: 1, roleID: 11}

	own := testRecord{messID: 1, ownerID: 6}
	other := testRecord{messID: 1, ownerID: 7}
	assert.True(t, ev.CanAccessOwnModel(ctx, member, PermMealAdd, own, "user_id"))
	assert.False(t, ev.CanAccessOwnModel(ctx, member, PermMealAdd, other, "user_id"))
}

func TestCanAnyAccessModel(t *testing.T) {
	ev := NewEvaluator(managerStore(), nil, nil)
	scope := testScope{actorID: 6, messID: 1, roleID: 11}
	rec := testRecord{messID: 1, ownerID: 6}

	assert.True(t, ev.CanAnyAccessModel(context.Background(), scope,
		[]Permission{PermMealManagement, PermMealAdd}, rec))
	assert.False(t, ev.CanAnyAccessModel(context.Background(), scope,
		[]Permission{PermMealManagement, PermMealDelete}, rec))
}

package authz

// Permission is an opaque capability key. Keys are defined at compile time;
// roles reference them, they are never stored on their own.
type Permission string

// User management. The coarse user_management key and the fine-grained
// user_add/user_edit/user_remove keys are independent: holding the coarse
// key does not imply the fine ones, and vice versa. Role seeds grant both
// where a role is meant to manage members.
const (
	PermUserManagement Permission = "user_management"
	PermUserAdd        Permission = "user_add"
	PermUserEdit       Permission = "user_edit"
	PermUserRemove     Permission = "user_remove"
)

// Meals.
const (
	PermMealManagement Permission = "meal_management"
	PermMealAdd        Permission = "meal_add"
	PermMealEdit       Permission = "meal_edit"
	PermMealDelete     Permission = "meal_delete"
)

// Purchases and purchase requests.
const (
	PermPurchaseManagement     Permission = "purchase_management"
	PermPurchaseAdd            Permission = "purchase_add"
	PermPurchaseRequestCreate  Permission = "purchase_request_create"
	PermPurchaseRequestApprove Permission = "purchase_request_approve"
)

// Deposits.
const (
	PermDepositManagement Permission = "deposit_management"
	PermDepositAdd        Permission = "deposit_add"
)

// Reports and notices.
const (
	PermReportView       Permission = "report_view"
	PermReportGeneration Permission = "report_generation"
	PermNoticeManagement Permission = "notice_management"
)

// Role administration.
const (
	PermPermissionManagement Permission = "permission_management"
)

// Group bundles related permissions for catalogue display.
type Group struct {
	Name        string
	Permissions []Permission
}

// Groups returns the permission catalogue organised by functional area.
func Groups() []Group {
	return []Group{
		{Name: "user", Permissions: []Permission{PermUserManagement, PermUserAdd, PermUserEdit, PermUserRemove}},
		{Name: "meal", Permissions: []Permission{PermMealManagement, PermMealAdd, PermMealEdit, PermMealDelete}},
		{Name: "purchase", Permissions: []Permission{PermPurchaseManagement, PermPurchaseAdd}},
		{Name: "purchase_request", Permissions: []Permission{PermPurchaseRequestCreate, PermPurchaseRequestApprove}},
		{Name: "deposit", Permissions: []Permission{PermDepositManagement, PermDepositAdd}},
		{Name: "report", Permissions: []Permission{PermReportView, PermReportGeneration}},
		{Name: "notice", Permissions: []Permission{PermNoticeManagement}},
		{Name: "role", Permissions: []Permission{PermPermissionManagement}},
	}
}

// All returns every registered permission key.
func All() []Permission {
	var perms []Permission
	for _, g := range Groups() {
		perms = append(perms, g.Permissions...)
	}
	return perms
}

var registered = func() map[Permission]struct{} {
	set := make(map[Permission]struct{})
	for _, p := range All() {
		set[p] = struct{}{}
	}
	return set
}()

// Valid reports whether p is a registered permission key.
func (p Permission) Valid() bool {
	_, ok := registered[p]
	return ok
}

// ParsePermissions filters raw keys down to registered permissions,
// deduplicating while preserving order.
func ParsePermissions(raw []string) []Permission {
	seen := make(map[Permission]struct{}, len(raw))
	var perms []Permission
	for _, r := range raw {
		p := Permission(r)
		if !p.Valid() {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		perms = append(perms, p)
	}
	return perms
}

func permissionKeys(perms []Permission) []string {
	keys := make([]string, 0, len(perms))
	for _, p := range perms {
		keys = append(keys, string(p))
	}
	return keys
}

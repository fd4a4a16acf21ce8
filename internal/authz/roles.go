package authz

// DefaultRole describes a role seeded into every new mess. Admin roles hold
// every permission implicitly and cannot be deleted.
type DefaultRole struct {
	Name        string
	Admin       bool
	Permissions []Permission
}

// Seeded role names.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleMember  = "member"
)

// DefaultRoles returns the default role -> permission table applied at mess
// creation. Messes may customise their roles afterwards.
func DefaultRoles() []DefaultRole {
	return []DefaultRole{
		{
			Name:        RoleAdmin,
			Admin:       true,
			Permissions: All(),
		},
		{
			Name: RoleManager,
			Permissions: []Permission{
				PermUserManagement, PermUserAdd, PermUserEdit, PermUserRemove,
				PermMealManagement, PermMealAdd, PermMealEdit, PermMealDelete,
				PermPurchaseManagement, PermPurchaseAdd, PermPurchaseRequestApprove,
				PermDepositManagement, PermDepositAdd,
				PermReportView, PermReportGeneration,
				PermNoticeManagement,
			},
		},
		{
			Name: RoleMember,
			Permissions: []Permission{
				PermMealAdd,
				PermPurchaseRequestCreate,
				PermReportView,
			},
		},
	}
}

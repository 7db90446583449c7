package enum

// Role is a staff role within one tenant's restaurant. The set is closed:
// the CHECK constraint on role_passwords mirrors it.
type Role string

const (
	RoleChef      Role = "chef"
	RoleInventory Role = "inventory"
	RoleBilling   Role = "billing"
	RoleMenu      Role = "menu"
	RoleMaster    Role = "master"
)

// Area is a role-gated dashboard section.
type Area string

const (
	AreaKitchen   Area = "kitchen"
	AreaInventory Area = "inventory"
	AreaBilling   Area = "billing"
	AreaMenu      Area = "menu"
	AreaSettings  Area = "settings"
)

// rolePermissions maps each role to the areas it may open.
// Master is the owner-side role and opens everything.
var rolePermissions = map[Role][]Area{
	RoleChef:      {AreaKitchen},
	RoleInventory: {AreaInventory},
	RoleBilling:   {AreaBilling},
	RoleMenu:      {AreaMenu},
	RoleMaster:    {AreaKitchen, AreaInventory, AreaBilling, AreaMenu, AreaSettings},
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := rolePermissions[r]
	return ok
}

// Allows reports whether the role may open the given area.
func (r Role) Allows(a Area) bool {
	for _, area := range rolePermissions[r] {
		if area == a {
			return true
		}
	}
	return false
}

// Roles lists every role in a stable order.
func Roles() []Role {
	return []Role{RoleChef, RoleInventory, RoleBilling, RoleMenu, RoleMaster}
}

// OTP purposes. Each purpose has its own mail template and redis key space.
const (
	OtpPurposeLogin         = "login"
	OtpPurposeSignup        = "signup"
	OtpPurposeSecurity      = "security"
	OtpPurposeDeleteAccount = "delete_account"
)

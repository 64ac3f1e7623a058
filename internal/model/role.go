package model

// Role names carried in the access token's "role" claim.  Customers and
// restaurants live in separate tables, so a subject ID is only meaningful
// together with its role.
const (
	RoleCustomer   = "CUSTOMER"
	RoleRestaurant = "RESTAURANT"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r string) bool {
	return r == RoleCustomer || r == RoleRestaurant
}

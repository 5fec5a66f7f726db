package client

import "github.com/jmcleod/adventkey/accesscode"

// Category is the simplified session type reported to callers.
type Category string

const (
	CategoryChild  Category = "child"
	CategoryGuest  Category = "guest"
	CategoryNormal Category = "normal"
)

// Categorize maps a server user type to a Category. Unknown types are
// normal.
func Categorize(userType accesscode.UserType) Category {
	switch userType {
	case accesscode.UserTypeHarper:
		return CategoryChild
	case accesscode.UserTypeGuest:
		return CategoryGuest
	default:
		return CategoryNormal
	}
}

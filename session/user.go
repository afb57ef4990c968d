package session

// Role is the backend-assigned role of a signed-in user.
type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// UserRecord mirrors the user object returned by the login endpoint. Program
// and Group are optional and absent for admin accounts.
type UserRecord struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Role    Role    `json:"role"`
	Program *string `json:"program,omitempty"`
	Group   *string `json:"group,omitempty"`
}

// Session is the live authentication state: the bearer token plus the user it
// belongs to. Owned exclusively by Store; callers receive copies.
type Session struct {
	Token string
	User  UserRecord
}

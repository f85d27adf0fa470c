package model

import "time"

// Role is the RBAC role stored on a user row.
type Role string

const (
    RoleUser       Role = "user"
    RoleStaff      Role = "staff"
    RoleManager    Role = "manager"
    RoleAdmin      Role = "admin"
    RoleSuperAdmin Role = "super_admin"
    RoleClient     Role = "client"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
    switch r {
    case RoleUser, RoleStaff, RoleManager, RoleAdmin, RoleSuperAdmin, RoleClient:
        return true
    }
    return false
}

// SelfAssignable reports whether a role may be requested at public
// registration. Only the base role qualifies; every other role is granted
// by user management.
func (r Role) SelfAssignable() bool {
    return r == RoleUser
}

// User represents an application user record as stored in the
// `users` table. Each field corresponds to a column in the
// database. Handlers define separate response types with JSON tags.
//
// Invariants kept by the repository layer:
//  LockedUntil set implies FailedLoginAttempts >= lockout threshold.
//  ResetTokenHash and ResetTokenExpires are both set or both nil.
type User struct {
    ID                  uint64     // users.id
    Email               string     // users.email (lower-cased)
    PasswordHash        string     // users.password_hash (bcrypt)
    FirstName           string     // users.first_name
    LastName            string     // users.last_name
    Role                Role       // users.role
    IsActive            bool       // users.is_active
    FailedLoginAttempts int        // users.failed_login_attempts
    LockedUntil         *time.Time // users.locked_until
    LastLogin           *time.Time // users.last_login
    ResetTokenHash      *string    // users.reset_token_hash (sha256 hex)
    ResetTokenExpires   *time.Time // users.reset_token_expires
    CreatedAt           time.Time  // users.created_at
    UpdatedAt           time.Time  // users.updated_at
}

// NewUser carries the fields needed to insert a user row.
type NewUser struct {
    Email        string
    PasswordHash string
    FirstName    string
    LastName     string
    Role         Role
}

// AuthContext is the per-request identity built from a verified access
// token and a live read of the user row.
type AuthContext struct {
    UserID    uint64
    Email     string
    FirstName string
    LastName  string
    Role      Role
    LastLogin *time.Time
}

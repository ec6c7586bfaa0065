// internal/domain/account.go
package domain

import "time"

// Role tags what kind of wallet holder an account is.
type Role string

const (
	RoleClient   Role = "client"
	RoleProvider Role = "provider"
	RoleOperator Role = "operator"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleProvider, RoleOperator:
		return true
	}
	return false
}

// Account represents any wallet holder: client, provider (astrologer) or the operator.
type Account struct {
	ID        string    `db:"id" json:"id"`
	Role      Role      `db:"role" json:"role"`
	Name      string    `db:"display_name" json:"display_name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// NewAccount creates a new Account instance.
func NewAccount(id string, role Role, name string) *Account {
	return &Account{
		ID:        id,
		Role:      role,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
}

package types

import "time"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleCompany  Role = "company"
	RoleAdmin    Role = "admin"
)

// User is the profile record keyed by the identity provider's subject.
// Role lives here and only here; nothing infers it from other tables.
type User struct {
	ID        string    `db:"id"`
	Email     *string   `db:"email"`
	Name      *string   `db:"name"`
	Phone     *string   `db:"phone"`
	Role      Role      `db:"role"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type Company struct {
	ID        string    `db:"id"`
	OwnerID   string    `db:"owner_id"`
	Name      string    `db:"name"`
	Counties  []string  `db:"counties"` // text[]
	Approved  bool      `db:"approved"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

package domain

import "time"

// PrincipalKind tags which record backs an authenticated identity.
type PrincipalKind string

const (
	PrincipalCustomer PrincipalKind = "customer"
	PrincipalUser     PrincipalKind = "user"
)

// Customer is a storefront shopper. A record created during guest checkout
// has no password hash and no verification token history; registration may
// later upgrade it in place.
type Customer struct {
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	PasswordHash      string    `json:"-"`
	FirstName         string    `json:"firstName,omitempty"`
	LastName          string    `json:"lastName,omitempty"`
	IsVerified        bool      `json:"isVerified"`
	VerificationToken *string   `json:"-"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Guest reports whether the record may be upgraded in place at registration.
func (c Customer) Guest() bool {
	return c.PasswordHash == "" && !c.IsVerified && c.VerificationToken == nil
}

// SystemUser is a back-office account. SupervisorID is a weak reference,
// resolved by lookup when needed, never an embedded record.
type SystemUser struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	SupervisorID *string   `json:"supervisorId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Principal is the tagged union of the two identity record kinds. Exactly
// one of Customer/User is non-nil, matching Kind.
type Principal struct {
	Kind     PrincipalKind `json:"kind"`
	Customer *Customer     `json:"customer,omitempty"`
	User     *SystemUser   `json:"user,omitempty"`
}

// ID returns the identifier of whichever record backs the principal.
func (p Principal) ID() string {
	switch p.Kind {
	case PrincipalCustomer:
		if p.Customer != nil {
			return p.Customer.ID
		}
	case PrincipalUser:
		if p.User != nil {
			return p.User.ID
		}
	}
	return ""
}

// Email returns the login email of the backing record.
func (p Principal) Email() string {
	switch p.Kind {
	case PrincipalCustomer:
		if p.Customer != nil {
			return p.Customer.Email
		}
	case PrincipalUser:
		if p.User != nil {
			return p.User.Email
		}
	}
	return ""
}

// CartOwner maps the principal to the owner key of its carts.
func (p Principal) CartOwner() CartOwner {
	if p.Kind == PrincipalUser {
		return CartOwner{Type: OwnerUser, ID: p.ID()}
	}
	return CartOwner{Type: OwnerCustomer, ID: p.ID()}
}

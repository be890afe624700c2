// README: Actor (user) record: roles, verification state, running rating.
package actor

import (
	"time"

	"agrimatch/internal/types"
)

type Role string

const (
	RoleFarmer Role = "farmer"
	RoleBuyer  Role = "buyer"
	RoleDriver Role = "driver"
	RoleAdmin  Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleFarmer, RoleBuyer, RoleDriver, RoleAdmin:
		return true
	}
	return false
}

type Verification string

const (
	VerificationPending  Verification = "pending"
	VerificationApproved Verification = "approved"
	VerificationRejected Verification = "rejected"
)

func (v Verification) Valid() bool {
	switch v {
	case VerificationPending, VerificationApproved, VerificationRejected:
		return true
	}
	return false
}

type Actor struct {
	ID            types.ID       `json:"id"`
	ExternalID    string         `json:"-"`
	Name          string         `json:"name"`
	Phone         string         `json:"phone"`
	Roles         []Role         `json:"roles,omitempty"`
	PrimaryRole   Role           `json:"primary_role"`
	Verification  Verification   `json:"verification"`
	RatingAverage float64        `json:"rating_average"`
	RatingCount   int            `json:"rating_count"`
	Location      types.Location `json:"location"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func (a *Actor) HasRole(r Role) bool {
	for _, have := range a.Roles {
		if have == r {
			return true
		}
	}
	return false
}

func (a *Actor) IsAdmin() bool {
	return a.HasRole(RoleAdmin)
}

func (a *Actor) Verified() bool {
	return a.Verification == VerificationApproved
}

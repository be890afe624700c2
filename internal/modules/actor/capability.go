// README: Central authorisation policy; every entry point asks HasCapability once.
package actor

import (
	"fmt"

	"agrimatch/internal/types"
)

type Capability string

const (
	CapCreateListing      Capability = "create_listing"
	CapCreateDemand       Capability = "create_demand"
	CapCreateTransport    Capability = "create_transport_offer"
	CapInitiateMatch      Capability = "initiate_match"
	CapManageVerification Capability = "manage_verification"
	CapManageAnyEntity    Capability = "manage_any_entity"
	CapGrantAdmin         Capability = "grant_admin"
)

// HasCapability reports whether a may perform c. Admins hold every capability;
// creation capabilities additionally require an approved verification.
func HasCapability(a *Actor, c Capability) bool {
	if a == nil {
		return false
	}
	if a.IsAdmin() {
		return true
	}
	switch c {
	case CapCreateListing:
		return a.HasRole(RoleFarmer) && a.Verified()
	case CapCreateDemand:
		return a.HasRole(RoleBuyer) && a.Verified()
	case CapCreateTransport:
		return a.HasRole(RoleDriver) && a.Verified()
	case CapInitiateMatch:
		return (a.HasRole(RoleFarmer) || a.HasRole(RoleBuyer)) && a.Verified()
	}
	return false
}

// Require returns ErrUnauthorized when a lacks c.
func Require(a *Actor, c Capability) error {
	if HasCapability(a, c) {
		return nil
	}
	if a == nil {
		return fmt.Errorf("%w: unknown actor", types.ErrUnauthorized)
	}
	return fmt.Errorf("%w: actor %s lacks %s", types.ErrUnauthorized, a.ID, c)
}

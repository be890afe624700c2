// README: Partial profile updates with explicit absent/set/cleared fields.
package actor

import (
	"fmt"

	"agrimatch/internal/types"
)

type ProfileUpdate struct {
	Name        types.Optional[string]
	Phone       types.Optional[string]
	County      types.Optional[string]
	Point       types.Optional[types.Point]
	Roles       types.Optional[[]Role]
	PrimaryRole types.Optional[Role]
}

// ApplyRoles resolves the role list and primary role in two ordered steps:
// the list first, then the primary. The primary always ends up in the list.
func ApplyRoles(roles []Role, primary Role, u ProfileUpdate) ([]Role, Role, error) {
	nextRoles, err := applyRoleList(roles, u.Roles)
	if err != nil {
		return nil, "", err
	}
	nextPrimary, nextRoles, err := applyPrimary(primary, nextRoles, u.PrimaryRole)
	if err != nil {
		return nil, "", err
	}
	return nextRoles, nextPrimary, nil
}

func applyRoleList(current []Role, opt types.Optional[[]Role]) ([]Role, error) {
	if !opt.Set {
		return append([]Role(nil), current...), nil
	}
	if opt.Clear || len(opt.Value) == 0 {
		return nil, fmt.Errorf("%w: roles cannot be empty", types.ErrValidation)
	}
	seen := make(map[Role]bool, len(opt.Value))
	out := make([]Role, 0, len(opt.Value))
	for _, r := range opt.Value {
		if !r.Valid() {
			return nil, fmt.Errorf("%w: unknown role %q", types.ErrValidation, r)
		}
		if seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out, nil
}

func applyPrimary(current Role, roles []Role, opt types.Optional[Role]) (Role, []Role, error) {
	contains := func(r Role) bool {
		for _, have := range roles {
			if have == r {
				return true
			}
		}
		return false
	}
	if opt.Set && !opt.Clear {
		if !opt.Value.Valid() {
			return "", nil, fmt.Errorf("%w: unknown role %q", types.ErrValidation, opt.Value)
		}
		if !contains(opt.Value) {
			roles = append(roles, opt.Value)
		}
		return opt.Value, roles, nil
	}
	if current != "" && contains(current) && !opt.Clear {
		return current, roles, nil
	}
	if len(roles) == 0 {
		return "", roles, nil
	}
	return roles[0], roles, nil
}

// ApplyProfile returns a copy of a with u applied. Role precedence follows ApplyRoles.
func ApplyProfile(a Actor, u ProfileUpdate) (Actor, error) {
	out := a
	if u.Name.Set {
		if u.Name.Clear || u.Name.Value == "" {
			return Actor{}, fmt.Errorf("%w: name is required", types.ErrValidation)
		}
		out.Name = u.Name.Value
	}
	if u.Phone.Set {
		out.Phone = u.Phone.Value
		if u.Phone.Clear {
			out.Phone = ""
		}
	}
	if u.County.Set {
		out.Location.County = u.County.Value
		if u.County.Clear {
			out.Location.County = ""
		}
	}
	if u.Point.Set {
		out.Location.Point = u.Point.Value
		if u.Point.Clear {
			out.Location.Point = types.Point{}
		}
	}
	roles, primary, err := ApplyRoles(a.Roles, a.PrimaryRole, u)
	if err != nil {
		return Actor{}, err
	}
	out.Roles = roles
	out.PrimaryRole = primary
	return out, nil
}

// GrantsAdmin reports whether applying u would add the admin role to a.
func GrantsAdmin(a Actor, u ProfileUpdate) bool {
	if a.IsAdmin() {
		return false
	}
	if u.PrimaryRole.Set && u.PrimaryRole.Value == RoleAdmin {
		return true
	}
	if u.Roles.Set {
		for _, r := range u.Roles.Value {
			if r == RoleAdmin {
				return true
			}
		}
	}
	return false
}

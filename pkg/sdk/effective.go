package sdk

// identitySnapshot is the complete input set for effective-identity
// derivation. Derivation is a pure function of this snapshot so it can
// be replayed and table-tested without a live session.
type identitySnapshot struct {
	Base       *User
	ActiveRole Role
	SimRole    Role
	SimSipID   string
	SimUser    *User
}

// simulationActive reports whether the simulation overlay applies: the
// base identity must hold the operator role, and at least one selector
// must be set. The check runs against the base role, never the switched
// one, so role switching cannot grant simulation.
func (s identitySnapshot) simulationActive() bool {
	return s.Base != nil && s.Base.Role == RoleAdmin &&
		(s.SimRole != "" || s.SimSipID != "")
}

// deriveEffectiveUser computes the single identity the application
// renders as the current user. Precedence, first match wins:
//
//  1. no base user: nil
//  2. simulation overlay active: the simulated record (role overridden
//     by the simulated role when set), or the base record with only the
//     role overridden while the lookup is unresolved
//  3. active role set and different from the base role: base record
//     re-scoped to that role
//  4. otherwise: the base record unchanged
//
// Simulation wins outright over role switching; the role-switch
// re-scoping is never applied underneath an overlay.
func deriveEffectiveUser(s identitySnapshot) *User {
	if s.Base == nil {
		return nil
	}

	if s.simulationActive() {
		if s.SimUser != nil {
			u := s.SimUser.Clone()
			if s.SimRole != "" {
				u.Role = s.SimRole
			}
			return u
		}
		// Degraded but safe while the lookup is in flight or failed.
		u := s.Base.Clone()
		if s.SimRole != "" {
			u.Role = s.SimRole
		}
		return u
	}

	if s.ActiveRole != "" && s.ActiveRole != s.Base.Role {
		u := s.Base.Clone()
		u.Role = s.ActiveRole
		if id, ok := s.Base.SipIDs[s.ActiveRole]; ok && id != "" {
			u.SipID = id
		}
		return u
	}

	return s.Base.Clone()
}

package sdk

import (
	"encoding/json"
	"log/slog"
)

// Role is a SIP platform role name.
type Role string

// Platform roles. RoleAdmin is the top-level operator role; it alone
// unlocks identity simulation.
const (
	RoleAdmin       Role = "ADMIN"
	RoleClubManager Role = "CLUB_MANAGER"
	RoleCoach       Role = "COACH"
	RoleJudge       Role = "JUDGE"
	RoleAthlete     Role = "ATHLETE"
)

// User is the canonical authenticated user record as resolved from the
// backend, with the per-role side-channels already decoded into typed
// fields. A nil map or slice means the corresponding side-channel was
// absent or unparseable.
type User struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
	ClubID string `json:"clubId"`

	// SipID is the user's federation-wide external identifier for the
	// primary role. Role switching substitutes the per-role value.
	SipID string `json:"sipId"`

	// Optional profile fields.
	Phone     string `json:"phone,omitempty"`
	BirthDate string `json:"birthDate,omitempty"`

	// Roles is the set of roles the user is entitled to hold.
	Roles []Role `json:"roles,omitempty"`
	// SipIDs maps an entitled role to its role-specific external ID.
	SipIDs map[Role]string `json:"sipIds,omitempty"`
	// RoleStatuses maps an entitled role to its per-role status.
	RoleStatuses map[Role]string `json:"roleStatuses,omitempty"`
}

// HasRole reports whether the user's entitlement set contains role.
// The primary role counts even when the set is absent.
func (u *User) HasRole(role Role) bool {
	if u == nil {
		return false
	}
	if u.Role == role {
		return true
	}
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so overlays can be derived without aliasing
// the canonical record.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	if u.Roles != nil {
		out.Roles = append([]Role(nil), u.Roles...)
	}
	if u.SipIDs != nil {
		out.SipIDs = make(map[Role]string, len(u.SipIDs))
		for k, v := range u.SipIDs {
			out.SipIDs[k] = v
		}
	}
	if u.RoleStatuses != nil {
		out.RoleStatuses = make(map[Role]string, len(u.RoleStatuses))
		for k, v := range u.RoleStatuses {
			out.RoleStatuses[k] = v
		}
	}
	return &out
}

// userPayload is the wire shape of a user record. The backend encodes
// the three multi-role side-channels as serialized JSON strings on the
// same record; decoding happens here, at the boundary, so derivation
// logic never sees raw strings.
type userPayload struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Role         Role   `json:"role"`
	ClubID       string `json:"clubId"`
	SipID        string `json:"sipId"`
	Phone        string `json:"phone"`
	BirthDate    string `json:"birthDate"`
	Roles        string `json:"roles"`
	SipIDs       string `json:"sipIds"`
	RoleStatuses string `json:"roleStatuses"`
}

// toUser converts the wire payload to a typed record. A side-channel
// that fails to parse is logged and treated as absent; it must never
// take the session down.
func (p *userPayload) toUser(logger *slog.Logger) *User {
	if p == nil {
		return nil
	}
	u := &User{
		ID:        p.ID,
		Email:     p.Email,
		Name:      p.Name,
		Role:      p.Role,
		ClubID:    p.ClubID,
		SipID:     p.SipID,
		Phone:     p.Phone,
		BirthDate: p.BirthDate,
	}
	if p.Roles != "" {
		var roles []Role
		if err := json.Unmarshal([]byte(p.Roles), &roles); err != nil {
			logger.Warn("ignoring malformed roles field", "user", p.ID, "error", err)
		} else {
			u.Roles = roles
		}
	}
	if p.SipIDs != "" {
		var ids map[Role]string
		if err := json.Unmarshal([]byte(p.SipIDs), &ids); err != nil {
			logger.Warn("ignoring malformed sipIds field", "user", p.ID, "error", err)
		} else {
			u.SipIDs = ids
		}
	}
	if p.RoleStatuses != "" {
		var statuses map[Role]string
		if err := json.Unmarshal([]byte(p.RoleStatuses), &statuses); err != nil {
			logger.Warn("ignoring malformed roleStatuses field", "user", p.ID, "error", err)
		} else {
			u.RoleStatuses = statuses
		}
	}
	return u
}

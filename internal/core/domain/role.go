package domain

import "strings"

// Role is the closed set of staff roles a credential can carry.
type Role string

const (
	RoleAdmin  Role = "Admin"
	RoleDoctor Role = "Doctor"
	RoleNurse  Role = "Nurse"
	RoleClerk  Role = "Clerk"
)

// Roles lists every assignable role in display order.
var Roles = []Role{RoleAdmin, RoleDoctor, RoleNurse, RoleClerk}

// ParseRole maps a stored or user-supplied role name onto the closed set.
// Matching is case-insensitive; anything else is rejected.
func ParseRole(s string) (Role, bool) {
	s = strings.TrimSpace(s)
	for _, r := range Roles {
		if strings.EqualFold(string(r), s) {
			return r, true
		}
	}
	return "", false
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

// Capability names a permission gating a single UI or API action.
type Capability string

const (
	CapViewPatients       Capability = "ViewPatients"
	CapEditPatients       Capability = "EditPatients"
	CapCreatePatients     Capability = "CreatePatients"
	CapViewMedicalRecords Capability = "ViewMedicalRecords"
	CapEditMedicalRecords Capability = "EditMedicalRecords"
	CapViewAppointments   Capability = "ViewAppointments"
	CapCreateAppointments Capability = "CreateAppointments"
	CapViewInventory      Capability = "ViewInventory"
	CapUpdateInventory    Capability = "UpdateInventory"
	CapViewReports        Capability = "ViewReports"
	CapManageUsers        Capability = "ManageUsers"
	CapViewAuditLog       Capability = "ViewAuditLog"
)

// AllCapabilities is every capability known to the system.
var AllCapabilities = []Capability{
	CapViewPatients,
	CapEditPatients,
	CapCreatePatients,
	CapViewMedicalRecords,
	CapEditMedicalRecords,
	CapViewAppointments,
	CapCreateAppointments,
	CapViewInventory,
	CapUpdateInventory,
	CapViewReports,
	CapManageUsers,
	CapViewAuditLog,
}

// rolePermissions is fixed configuration. Admin is absent on purpose:
// it is granted everything in HasPermission.
var rolePermissions = map[Role]map[Capability]struct{}{
	RoleDoctor: capSet(
		CapViewPatients,
		CapEditPatients,
		CapViewMedicalRecords,
		CapEditMedicalRecords,
		CapViewAppointments,
		CapCreateAppointments,
	),
	RoleNurse: capSet(
		CapViewPatients,
		CapEditPatients,
		CapViewAppointments,
		CapViewInventory,
		CapUpdateInventory,
	),
	RoleClerk: capSet(
		CapViewPatients,
		CapCreatePatients,
		CapViewAppointments,
		CapCreateAppointments,
		CapViewReports,
	),
}

func capSet(caps ...Capability) map[Capability]struct{} {
	m := make(map[Capability]struct{}, len(caps))
	for _, c := range caps {
		m[c] = struct{}{}
	}
	return m
}

// HasPermission reports whether role may perform capability.
// Admin is always allowed; an unknown role is always denied.
func HasPermission(role Role, capability Capability) bool {
	r, ok := ParseRole(string(role))
	if !ok {
		return false
	}
	if r == RoleAdmin {
		return true
	}
	_, allowed := rolePermissions[r][capability]
	return allowed
}

// Capabilities returns the capabilities granted to role, in AllCapabilities order.
func Capabilities(role Role) []Capability {
	out := make([]Capability, 0, len(AllCapabilities))
	for _, c := range AllCapabilities {
		if HasPermission(role, c) {
			out = append(out, c)
		}
	}
	return out
}

package auth

import (
	"fmt"

	"github.com/labstack/echo/v4"

	"github.com/pacigest/pacigest/internal/platform/apperr"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleDoctor Role = "doctor"
	RoleStaff  Role = "staff"
)

func (r Role) Valid() bool {
	switch r {
	case RoleDoctor, RoleStaff:
		return true
	}
	return false
}

// Capability names one gated action.
type Capability string

const (
	CanViewPatients         Capability = "canViewPatients"
	CanEditPatients         Capability = "canEditPatients"
	CanScheduleAppointments Capability = "canScheduleAppointments"
	CanViewMedicalRecords   Capability = "canViewMedicalRecords"
	CanEditMedicalRecords   Capability = "canEditMedicalRecords"
	CanViewPrescriptions    Capability = "canViewPrescriptions"
	CanEditPrescriptions    Capability = "canEditPrescriptions"
	CanManageBilling        Capability = "canManageBilling"
	CanViewStats            Capability = "canViewStats"
	CanManageStaff          Capability = "canManageStaff"
)

// AllCapabilities lists every capability in a stable order.
var AllCapabilities = []Capability{
	CanViewPatients,
	CanEditPatients,
	CanScheduleAppointments,
	CanViewMedicalRecords,
	CanEditMedicalRecords,
	CanViewPrescriptions,
	CanEditPrescriptions,
	CanManageBilling,
	CanViewStats,
	CanManageStaff,
}

func (c Capability) Valid() bool {
	for _, known := range AllCapabilities {
		if c == known {
			return true
		}
	}
	return false
}

// roleAllows is the static capability table. Doctors hold everything; staff
// are capped at the front-desk set.
func roleAllows(r Role, c Capability) bool {
	switch r {
	case RoleDoctor:
		return c.Valid()
	case RoleStaff:
		switch c {
		case CanViewPatients, CanEditPatients, CanScheduleAppointments,
			CanViewMedicalRecords, CanViewPrescriptions, CanViewStats:
			return true
		}
		return false
	default:
		return false
	}
}

// Permissions are the per-user capability flags granted to a staff member.
// A missing flag is not granted.
type Permissions map[Capability]bool

// StaffCeiling returns the full set of flags a staff member may hold.
func StaffCeiling() Permissions {
	p := Permissions{}
	for _, c := range AllCapabilities {
		if roleAllows(RoleStaff, c) {
			p[c] = true
		}
	}
	return p
}

// Narrow drops every flag the staff role cannot hold and rejects unknown
// capability names.
func (p Permissions) Narrow() (Permissions, error) {
	out := Permissions{}
	for c, granted := range p {
		if !c.Valid() {
			return nil, fmt.Errorf("unknown capability %q", c)
		}
		if granted && roleAllows(RoleStaff, c) {
			out[c] = true
		}
	}
	return out, nil
}

// Has reports whether role r with flags p may perform c. Doctors ignore
// flags; staff need both the role ceiling and the flag.
func Has(r Role, p Permissions, c Capability) bool {
	if !roleAllows(r, c) {
		return false
	}
	if r == RoleDoctor {
		return true
	}
	return p[c]
}

// RequireCapability rejects requests whose session lacks c with a 403.
func RequireCapability(c Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			s, err := SessionFrom(ctx)
			if err != nil {
				return err
			}
			if !s.Can(c) {
				return apperr.Forbidden(fmt.Sprintf("missing permission: %s", c))
			}
			return next(ctx)
		}
	}
}

// RequireRole rejects requests whose session role is not one of roles.
func RequireRole(roles ...Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			s, err := SessionFrom(ctx)
			if err != nil {
				return err
			}
			for _, r := range roles {
				if s.Role == r {
					return next(ctx)
				}
			}
			return apperr.Forbidden("role not permitted")
		}
	}
}

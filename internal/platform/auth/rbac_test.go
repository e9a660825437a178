package auth

import (
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/pacigest/pacigest/internal/platform/apperr"
)

func TestHas_DoctorHoldsEverything(t *testing.T) {
	for _, c := range AllCapabilities {
		if !Has(RoleDoctor, nil, c) {
			t.Errorf("doctor should have %s", c)
		}
	}
}

func TestHas_StaffCeiling(t *testing.T) {
	full := Permissions{}
	for _, c := range AllCapabilities {
		full[c] = true
	}

	tests := []struct {
		cap  Capability
		want bool
	}{
		{CanViewPatients, true},
		{CanEditPatients, true},
		{CanScheduleAppointments, true},
		{CanViewMedicalRecords, true},
		{CanViewPrescriptions, true},
		{CanViewStats, true},
		{CanEditMedicalRecords, false},
		{CanEditPrescriptions, false},
		{CanManageBilling, false},
		{CanManageStaff, false},
	}
	for _, tt := range tests {
		if got := Has(RoleStaff, full, tt.cap); got != tt.want {
			t.Errorf("Has(staff, all flags, %s) = %v, want %v", tt.cap, got, tt.want)
		}
	}
}

func TestHas_FlagsOnlyNarrow(t *testing.T) {
	p := Permissions{CanViewPatients: true}
	if !Has(RoleStaff, p, CanViewPatients) {
		t.Error("expected granted flag to allow")
	}
	if Has(RoleStaff, p, CanScheduleAppointments) {
		t.Error("expected missing flag to deny")
	}
	if Has(Role("admin"), Permissions{CanViewPatients: true}, CanViewPatients) {
		t.Error("expected unknown role to deny")
	}
}

func TestPermissions_Narrow(t *testing.T) {
	got, err := Permissions{CanViewPatients: true, CanManageBilling: true, CanEditPatients: false}.Narrow()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || !got[CanViewPatients] {
		t.Errorf("expected only canViewPatients, got %v", got)
	}

	if _, err := (Permissions{"canFly": true}).Narrow(); err == nil {
		t.Error("expected error for unknown capability")
	}
}

func TestStaffCeiling(t *testing.T) {
	if len(StaffCeiling()) != 6 {
		t.Errorf("expected 6 staff capabilities, got %v", StaffCeiling())
	}
}

func TestRequireCapability(t *testing.T) {
	doctor := uuid.New()
	tests := []struct {
		name    string
		session *Session
		cap     Capability
		want    apperr.Kind
	}{
		{"doctor allowed", &Session{UserID: doctor, Role: RoleDoctor, DoctorID: doctor}, CanManageBilling, ""},
		{"staff allowed", &Session{UserID: uuid.New(), Role: RoleStaff, DoctorID: doctor, Permissions: StaffCeiling()}, CanScheduleAppointments, ""},
		{"staff denied by role", &Session{UserID: uuid.New(), Role: RoleStaff, DoctorID: doctor, Permissions: StaffCeiling()}, CanEditMedicalRecords, apperr.KindForbidden},
		{"staff denied by flag", &Session{UserID: uuid.New(), Role: RoleStaff, DoctorID: doctor, Permissions: Permissions{}}, CanViewPatients, apperr.KindForbidden},
		{"no session", nil, CanViewPatients, apperr.KindAuth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newTestContext("")
			if tt.session != nil {
				withSession(c, tt.session)
			}
			err := RequireCapability(tt.cap)(okHandler)(c)
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if rec.Code != http.StatusOK {
					t.Errorf("expected 200, got %d", rec.Code)
				}
				return
			}
			expectKind(t, err, tt.want)
		})
	}
}

func TestRequireRole(t *testing.T) {
	id := uuid.New()
	c, _ := newTestContext("")
	withSession(c, &Session{UserID: id, Role: RoleStaff, DoctorID: uuid.New()})
	expectKind(t, RequireRole(RoleDoctor)(okHandler)(c), apperr.KindForbidden)

	c, _ = newTestContext("")
	withSession(c, &Session{UserID: id, Role: RoleDoctor, DoctorID: id})
	if err := RequireRole(RoleDoctor)(okHandler)(c); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

package entities

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/zatekoja/medibook/pkg/errors"
)

var (
	patient7 = Identity{UserID: "u-7", Role: RolePatient, PatientID: 7}
	patient8 = Identity{UserID: "u-8", Role: RolePatient, PatientID: 8}
	doctor3  = Identity{UserID: "u-3", Role: RoleDoctor, DoctorID: 3}
	doctor4  = Identity{UserID: "u-4", Role: RoleDoctor, DoctorID: 4}
)

func newAppointment(status AppointmentStatus) *Appointment {
	return &Appointment{ID: 11, PatientID: 7, DoctorID: 3, Status: status}
}

func TestParseAppointmentStatus(t *testing.T) {
	cases := map[string]AppointmentStatus{
		"pendiente":  AppointmentStatusPending,
		"PENDIENTE":  AppointmentStatusPending,
		"confirmada": AppointmentStatusConfirmed,
		"aceptada":   AppointmentStatusConfirmed,
		"completada": AppointmentStatusCompleted,
		" cancelada": AppointmentStatusCancelled,
		"rechazada":  AppointmentStatusRejected,
		"cancelled":  AppointmentStatusCancelled,
	}
	for in, want := range cases {
		got, err := ParseAppointmentStatus(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseAppointmentStatus("archivada")
	assert.Error(t, err)
}

func TestAppointmentStatus_UnmarshalJSON(t *testing.T) {
	var payload struct {
		Status AppointmentStatus `json:"estado"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"estado":"aceptada"}`), &payload))
	assert.Equal(t, AppointmentStatusConfirmed, payload.Status)

	assert.Error(t, json.Unmarshal([]byte(`{"estado":"unknown"}`), &payload))
}

func TestAppointmentStatus_Wire(t *testing.T) {
	assert.Equal(t, "pendiente", AppointmentStatusPending.Wire())
	assert.Equal(t, "confirmada", AppointmentStatusConfirmed.Wire())
	assert.Equal(t, "rechazada", AppointmentStatusRejected.Wire())
}

func TestCheckTransition_AllowedMoves(t *testing.T) {
	tests := []struct {
		name  string
		from  AppointmentStatus
		to    AppointmentStatus
		actor Identity
	}{
		{"doctor confirms pending", AppointmentStatusPending, AppointmentStatusConfirmed, doctor3},
		{"doctor rejects pending", AppointmentStatusPending, AppointmentStatusRejected, doctor3},
		{"patient cancels pending", AppointmentStatusPending, AppointmentStatusCancelled, patient7},
		{"doctor cancels pending", AppointmentStatusPending, AppointmentStatusCancelled, doctor3},
		{"doctor completes confirmed", AppointmentStatusConfirmed, AppointmentStatusCompleted, doctor3},
		{"doctor cancels confirmed", AppointmentStatusConfirmed, AppointmentStatusCancelled, doctor3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, newAppointment(tt.from).CheckTransition(tt.to, tt.actor))
		})
	}
}

func TestCheckTransition_WrongRoleIsForbidden(t *testing.T) {
	tests := []struct {
		name  string
		from  AppointmentStatus
		to    AppointmentStatus
		actor Identity
	}{
		{"patient confirms", AppointmentStatusPending, AppointmentStatusConfirmed, patient7},
		{"patient rejects", AppointmentStatusPending, AppointmentStatusRejected, patient7},
		{"patient cancels confirmed", AppointmentStatusConfirmed, AppointmentStatusCancelled, patient7},
		{"patient completes", AppointmentStatusConfirmed, AppointmentStatusCompleted, patient7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newAppointment(tt.from).CheckTransition(tt.to, tt.actor)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeForbidden), "got %v", err)
		})
	}
}

func TestCheckTransition_NotOwnerIsForbidden(t *testing.T) {
	err := newAppointment(AppointmentStatusPending).CheckTransition(AppointmentStatusCancelled, patient8)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeForbidden))

	err = newAppointment(AppointmentStatusPending).CheckTransition(AppointmentStatusConfirmed, doctor4)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeForbidden))
}

func TestCheckTransition_UndefinedMoveIsValidationError(t *testing.T) {
	err := newAppointment(AppointmentStatusPending).CheckTransition(AppointmentStatusCompleted, doctor3)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	err = newAppointment(AppointmentStatusConfirmed).CheckTransition(AppointmentStatusRejected, doctor3)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestCheckTransition_TerminalStatesRejectEverything(t *testing.T) {
	actors := []Identity{patient7, doctor3}
	for _, from := range AppointmentStatuses {
		if !from.IsTerminal() {
			continue
		}
		for _, to := range AppointmentStatuses {
			for _, actor := range actors {
				err := newAppointment(from).CheckTransition(to, actor)
				assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation),
					"%s -> %s by %s should be a validation error, got %v", from, to, actor.Role, err)
			}
		}
	}
}

func TestCheckReasonEdit(t *testing.T) {
	assert.NoError(t, newAppointment(AppointmentStatusPending).CheckReasonEdit(patient7))

	err := newAppointment(AppointmentStatusConfirmed).CheckReasonEdit(patient7)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	err = newAppointment(AppointmentStatusPending).CheckReasonEdit(patient8)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeForbidden))

	err = newAppointment(AppointmentStatusPending).CheckReasonEdit(doctor3)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeForbidden))
}

func TestBookingRequest_Validate(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.Local)
	valid := BookingRequest{DoctorID: 3, Date: "2026-03-10", Slot: TimeSlot{Start: "09:00", End: "09:30"}}
	assert.NoError(t, valid.Validate(now))

	past := valid
	past.Date = "2026-03-09"
	assert.True(t, apperrors.IsType(past.Validate(now), apperrors.ErrorTypeValidation))

	noSlot := valid
	noSlot.Slot = TimeSlot{}
	assert.True(t, apperrors.IsType(noSlot.Validate(now), apperrors.ErrorTypeValidation))

	badDate := valid
	badDate.Date = "10/03/2026"
	assert.True(t, apperrors.IsType(badDate.Validate(now), apperrors.ErrorTypeValidation))

	noDoctor := valid
	noDoctor.DoctorID = 0
	assert.True(t, apperrors.IsType(noDoctor.Validate(now), apperrors.ErrorTypeValidation))
}

func TestAppointment_DateAndSlot(t *testing.T) {
	a := &Appointment{
		Start: time.Date(2026, 5, 2, 9, 30, 0, 0, time.Local),
		End:   time.Date(2026, 5, 2, 10, 0, 0, 0, time.Local),
	}
	assert.Equal(t, "2026-05-02", a.Date())
	assert.Equal(t, TimeSlot{Start: "09:30", End: "10:00"}, a.Slot())
}

func TestNewAppointmentEvent(t *testing.T) {
	a := newAppointment(AppointmentStatusConfirmed)
	ev := NewAppointmentEvent(AppointmentEventTransitioned, a)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, int64(11), ev.AppointmentID)
	assert.Equal(t, int64(3), ev.DoctorID)
	assert.Equal(t, AppointmentStatusConfirmed, ev.Status)

	other := NewAppointmentEvent(AppointmentEventTransitioned, a)
	assert.NotEqual(t, ev.ID, other.ID)
}

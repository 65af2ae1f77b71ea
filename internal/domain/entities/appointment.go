package entities

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/zatekoja/medibook/pkg/errors"
)

// AppointmentStatus is the closed set of appointment states.
//
//	pending → confirmed → completed
//	pending → cancelled | rejected
//	confirmed → cancelled
type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusRejected  AppointmentStatus = "rejected"
)

// AppointmentStatuses lists every state in display order
var AppointmentStatuses = []AppointmentStatus{
	AppointmentStatusPending,
	AppointmentStatusConfirmed,
	AppointmentStatusCompleted,
	AppointmentStatusCancelled,
	AppointmentStatusRejected,
}

var statusAliases = map[string]AppointmentStatus{
	"pendiente":  AppointmentStatusPending,
	"pending":    AppointmentStatusPending,
	"confirmada": AppointmentStatusConfirmed,
	"aceptada":   AppointmentStatusConfirmed,
	"confirmed":  AppointmentStatusConfirmed,
	"accepted":   AppointmentStatusConfirmed,
	"completada": AppointmentStatusCompleted,
	"completed":  AppointmentStatusCompleted,
	"cancelada":  AppointmentStatusCancelled,
	"cancelled":  AppointmentStatusCancelled,
	"canceled":   AppointmentStatusCancelled,
	"rechazada":  AppointmentStatusRejected,
	"rejected":   AppointmentStatusRejected,
}

var statusWire = map[AppointmentStatus]string{
	AppointmentStatusPending:   "pendiente",
	AppointmentStatusConfirmed: "confirmada",
	AppointmentStatusCompleted: "completada",
	AppointmentStatusCancelled: "cancelada",
	AppointmentStatusRejected:  "rechazada",
}

// ParseAppointmentStatus maps any backend spelling onto the closed set
func ParseAppointmentStatus(s string) (AppointmentStatus, error) {
	status, ok := statusAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("unknown appointment status %q", s)
	}
	return status, nil
}

// UnmarshalText lets JSON decoding accept backend spellings
func (s *AppointmentStatus) UnmarshalText(b []byte) error {
	status, err := ParseAppointmentStatus(string(b))
	if err != nil {
		return err
	}
	*s = status
	return nil
}

// Wire returns the backend's spelling of the status
func (s AppointmentStatus) Wire() string {
	return statusWire[s]
}

// IsTerminal reports whether no transition can leave the status
func (s AppointmentStatus) IsTerminal() bool {
	switch s {
	case AppointmentStatusCancelled, AppointmentStatusCompleted, AppointmentStatusRejected:
		return true
	}
	return false
}

// allowedTransitions is keyed by source then target, valued by the roles allowed to move it
var allowedTransitions = map[AppointmentStatus]map[AppointmentStatus][]Role{
	AppointmentStatusPending: {
		AppointmentStatusConfirmed: {RoleDoctor},
		AppointmentStatusCancelled: {RolePatient, RoleDoctor},
		AppointmentStatusRejected:  {RoleDoctor},
	},
	AppointmentStatusConfirmed: {
		AppointmentStatusCompleted: {RoleDoctor},
		AppointmentStatusCancelled: {RoleDoctor},
	},
}

// PatientSummary is the patient block embedded in doctor-side listings
type PatientSummary struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// Appointment is a booked consultation between a patient and a doctor
type Appointment struct {
	ID            int64             `json:"id"`
	PatientID     int64             `json:"patient_id"`
	DoctorID      int64             `json:"doctor_id"`
	Start         time.Time         `json:"start"`
	End           time.Time         `json:"end"`
	Status        AppointmentStatus `json:"status"`
	Reason        string            `json:"reason,omitempty"`
	DoctorComment string            `json:"doctor_comment,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	Doctor        *Doctor           `json:"doctor,omitempty"`
	Patient       *PatientSummary   `json:"patient,omitempty"`
}

// Date returns the calendar date of the appointment
func (a *Appointment) Date() string {
	return a.Start.Format(DateLayout)
}

// Slot returns the wall-clock window of the appointment
func (a *Appointment) Slot() TimeSlot {
	slot := TimeSlot{Start: a.Start.Format(ClockLayout)}
	if !a.End.IsZero() {
		slot.End = a.End.Format(ClockLayout)
	}
	return slot
}

// CanTransitionTo reports whether role may move the appointment to status,
// ignoring ownership
func (a *Appointment) CanTransitionTo(status AppointmentStatus, role Role) bool {
	for _, r := range allowedTransitions[a.Status][status] {
		if r == role {
			return true
		}
	}
	return false
}

// CheckTransition validates a transition request by actor against the
// transition table and ownership. It never contacts the backend.
func (a *Appointment) CheckTransition(to AppointmentStatus, actor Identity) error {
	if a.Status.IsTerminal() {
		return apperrors.NewValidationError(fmt.Sprintf("appointment %d is %s and can no longer change", a.ID, a.Status))
	}
	roles, ok := allowedTransitions[a.Status][to]
	if !ok {
		return apperrors.NewValidationError(fmt.Sprintf("appointment %d cannot go from %s to %s", a.ID, a.Status, to))
	}
	if !a.CanTransitionTo(to, actor.Role) {
		return apperrors.NewForbiddenError(fmt.Sprintf("a %s cannot move an appointment to %s (allowed: %v)", actor.Role, to, roles))
	}
	return a.checkOwnership(actor)
}

// CheckReasonEdit validates that actor may change the reason
func (a *Appointment) CheckReasonEdit(actor Identity) error {
	if !actor.IsPatient() {
		return apperrors.NewForbiddenError("only the patient can edit the reason")
	}
	if err := a.checkOwnership(actor); err != nil {
		return err
	}
	if a.Status != AppointmentStatusPending {
		return apperrors.NewValidationError(fmt.Sprintf("appointment %d is %s; the reason can only change while pending", a.ID, a.Status))
	}
	return nil
}

func (a *Appointment) checkOwnership(actor Identity) error {
	switch actor.Role {
	case RolePatient:
		if a.PatientID != actor.PatientID {
			return apperrors.NewForbiddenError(fmt.Sprintf("appointment %d belongs to another patient", a.ID))
		}
	case RoleDoctor:
		if a.DoctorID != actor.DoctorID {
			return apperrors.NewForbiddenError(fmt.Sprintf("appointment %d is assigned to another doctor", a.ID))
		}
	default:
		return apperrors.NewForbiddenError("unknown role")
	}
	return nil
}

// BookingRequest is the canonical create-appointment command
type BookingRequest struct {
	DoctorID int64
	Date     string
	Slot     TimeSlot
	Reason   string
}

// Validate checks the request without contacting the backend
func (r BookingRequest) Validate(now time.Time) error {
	if r.DoctorID <= 0 {
		return apperrors.NewValidationError("a doctor must be selected")
	}
	if r.Date == "" {
		return apperrors.NewValidationError("a date must be selected")
	}
	if _, err := ParseDate(r.Date); err != nil {
		return apperrors.NewValidationError(err.Error())
	}
	if IsPastDate(r.Date, now) {
		return apperrors.NewValidationError("appointments cannot be booked in the past")
	}
	if r.Slot.Start == "" || r.Slot.End == "" {
		return apperrors.NewValidationError("a time slot must be selected")
	}
	return nil
}

// AppointmentFilter narrows appointment listings
type AppointmentFilter struct {
	Status AppointmentStatus
	From   string
	To     string
}

package entities

import (
	"time"

	"github.com/google/uuid"
)

// AppointmentEventType names what happened to an appointment or a doctor's availability
type AppointmentEventType string

const (
	AppointmentEventCreated      AppointmentEventType = "appointment_created"
	AppointmentEventTransitioned AppointmentEventType = "appointment_transitioned"
	AppointmentEventReasonEdited AppointmentEventType = "appointment_reason_edited"
	AppointmentEventStale        AppointmentEventType = "appointment_stale"
	AvailabilityEventBlocked     AppointmentEventType = "availability_blocked"
	AvailabilityEventUnblocked   AppointmentEventType = "availability_unblocked"
)

// AppointmentEvent signals that a mutation completed and dependent views should refetch.
// It carries identifiers only, never state to apply.
type AppointmentEvent struct {
	ID            string               `json:"id"`
	Type          AppointmentEventType `json:"type"`
	AppointmentID int64                `json:"appointment_id,omitempty"`
	PatientID     int64                `json:"patient_id,omitempty"`
	DoctorID      int64                `json:"doctor_id,omitempty"`
	Status        AppointmentStatus    `json:"status,omitempty"`
	Timestamp     time.Time            `json:"timestamp"`
}

// NewAppointmentEvent creates an event for appointment a
func NewAppointmentEvent(eventType AppointmentEventType, a *Appointment) *AppointmentEvent {
	ev := &AppointmentEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now(),
	}
	if a != nil {
		ev.AppointmentID = a.ID
		ev.PatientID = a.PatientID
		ev.DoctorID = a.DoctorID
		ev.Status = a.Status
	}
	return ev
}

// NewAvailabilityEvent creates an event for a change to doctorID's blocked days
func NewAvailabilityEvent(eventType AppointmentEventType, doctorID int64) *AppointmentEvent {
	return &AppointmentEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		DoctorID:  doctorID,
		Timestamp: time.Now(),
	}
}

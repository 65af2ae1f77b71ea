package providers

import (
	"context"
	"time"

	"github.com/zatekoja/medibook/internal/domain/entities"
)

// AuthAPI issues and inspects sessions on the remote backend
type AuthAPI interface {
	// Login exchanges credentials for a session
	Login(ctx context.Context, creds entities.Credentials) (*entities.Session, error)

	// RegisterPatient creates a patient account and returns its session
	RegisterPatient(ctx context.Context, reg entities.PatientRegistration) (*entities.Session, error)

	// RegisterDoctor creates a doctor account and returns its session
	RegisterDoctor(ctx context.Context, reg entities.DoctorRegistration) (*entities.Session, error)

	// Me returns the identity bound to the current token
	Me(ctx context.Context) (*entities.Identity, error)
}

// DoctorAPI reads and edits doctor profiles
type DoctorAPI interface {
	// ListDoctors returns doctors, filtered server-side when specialty is not empty
	ListDoctors(ctx context.Context, specialty string) ([]entities.Doctor, error)

	GetDoctor(ctx context.Context, id int64) (*entities.Doctor, error)

	UpdateDoctor(ctx context.Context, id int64, update entities.DoctorProfileUpdate) (*entities.Doctor, error)
}

// AvailabilityAPI covers slot queries and the doctor's blocked days
type AvailabilityAPI interface {
	// DayAvailability returns the bookable slots of doctorID on date
	DayAvailability(ctx context.Context, doctorID int64, date string) (*entities.DayAvailability, error)

	BlockDay(ctx context.Context, doctorID int64, date string) error
	BlockRange(ctx context.Context, doctorID int64, start, end string) error
	UnblockDay(ctx context.Context, intervalID int64) error
	UnblockRange(ctx context.Context, doctorID int64, start, end string) error

	// ListBlocked returns blocked intervals, optionally bounded by from/to
	ListBlocked(ctx context.Context, doctorID int64, from, to string) ([]entities.BlockedInterval, error)

	// MonthCalendar returns the backend-computed calendar of one month
	MonthCalendar(ctx context.Context, doctorID int64, year int, month time.Month) (*entities.MonthCalendar, error)
}

// AppointmentAPI performs appointment reads and mutations. Every mutation
// returns the backend's view of the appointment afterwards.
type AppointmentAPI interface {
	CreateAppointment(ctx context.Context, req entities.BookingRequest) (*entities.Appointment, error)
	GetAppointment(ctx context.Context, id int64) (*entities.Appointment, error)
	CancelAppointment(ctx context.Context, id int64) (*entities.Appointment, error)

	// UpdateReason edits the free-text reason of a pending appointment
	UpdateReason(ctx context.Context, id int64, reason string) (*entities.Appointment, error)

	// SetStatus is the doctor-side transition endpoint
	SetStatus(ctx context.Context, id int64, status entities.AppointmentStatus) (*entities.Appointment, error)

	ListPatientAppointments(ctx context.Context, patientID int64, filter entities.AppointmentFilter) ([]entities.Appointment, error)
	ListDoctorAppointments(ctx context.Context, doctorID int64, filter entities.AppointmentFilter) ([]entities.Appointment, error)
}

// Backend is the full remote surface the client depends on
type Backend interface {
	AuthAPI
	DoctorAPI
	AvailabilityAPI
	AppointmentAPI
}

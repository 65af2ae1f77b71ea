package providers

import (
	"context"

	"github.com/zatekoja/medibook/internal/domain/entities"
)

// SessionStore persists the single active session between runs
type SessionStore interface {
	// Load returns the stored session, or nil when none is stored
	Load(ctx context.Context) (*entities.Session, error)

	// Save replaces the stored session
	Save(ctx context.Context, session *entities.Session) error

	// Clear removes the stored session. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}

// Route names a destination the navigator can be sent to
type Route string

const (
	RouteLogin               Route = "login"
	RoutePatientAppointments Route = "patient_appointments"
	RouteDoctorAgenda        Route = "doctor_agenda"
)

// Navigator moves the user to another screen. Terminal front-ends print a hint.
type Navigator interface {
	Navigate(route Route)
}

// NavigatorFunc adapts a function to Navigator
type NavigatorFunc func(route Route)

// Navigate calls f(route)
func (f NavigatorFunc) Navigate(route Route) { f(route) }

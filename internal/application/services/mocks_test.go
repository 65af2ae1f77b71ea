package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/medibook/internal/adapters/session"
	"github.com/zatekoja/medibook/internal/application/services"
	"github.com/zatekoja/medibook/internal/domain/entities"
	"github.com/zatekoja/medibook/internal/domain/providers"
)

// Mocks

type MockBackend struct {
	mock.Mock
}

var _ providers.Backend = (*MockBackend)(nil)

func (m *MockBackend) Login(ctx context.Context, creds entities.Credentials) (*entities.Session, error) {
	args := m.Called(ctx, creds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Session), args.Error(1)
}

func (m *MockBackend) RegisterPatient(ctx context.Context, reg entities.PatientRegistration) (*entities.Session, error) {
	args := m.Called(ctx, reg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Session), args.Error(1)
}

func (m *MockBackend) RegisterDoctor(ctx context.Context, reg entities.DoctorRegistration) (*entities.Session, error) {
	args := m.Called(ctx, reg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Session), args.Error(1)
}

func (m *MockBackend) Me(ctx context.Context) (*entities.Identity, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Identity), args.Error(1)
}

func (m *MockBackend) ListDoctors(ctx context.Context, specialty string) ([]entities.Doctor, error) {
	args := m.Called(ctx, specialty)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.Doctor), args.Error(1)
}

func (m *MockBackend) GetDoctor(ctx context.Context, id int64) (*entities.Doctor, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Doctor), args.Error(1)
}

func (m *MockBackend) UpdateDoctor(ctx context.Context, id int64, update entities.DoctorProfileUpdate) (*entities.Doctor, error) {
	args := m.Called(ctx, id, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Doctor), args.Error(1)
}

func (m *MockBackend) DayAvailability(ctx context.Context, doctorID int64, date string) (*entities.DayAvailability, error) {
	args := m.Called(ctx, doctorID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.DayAvailability), args.Error(1)
}

func (m *MockBackend) BlockDay(ctx context.Context, doctorID int64, date string) error {
	return m.Called(ctx, doctorID, date).Error(0)
}

func (m *MockBackend) BlockRange(ctx context.Context, doctorID int64, start, end string) error {
	return m.Called(ctx, doctorID, start, end).Error(0)
}

func (m *MockBackend) UnblockDay(ctx context.Context, intervalID int64) error {
	return m.Called(ctx, intervalID).Error(0)
}

func (m *MockBackend) UnblockRange(ctx context.Context, doctorID int64, start, end string) error {
	return m.Called(ctx, doctorID, start, end).Error(0)
}

func (m *MockBackend) ListBlocked(ctx context.Context, doctorID int64, from, to string) ([]entities.BlockedInterval, error) {
	args := m.Called(ctx, doctorID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.BlockedInterval), args.Error(1)
}

func (m *MockBackend) MonthCalendar(ctx context.Context, doctorID int64, year int, month time.Month) (*entities.MonthCalendar, error) {
	args := m.Called(ctx, doctorID, year, month)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.MonthCalendar), args.Error(1)
}

func (m *MockBackend) CreateAppointment(ctx context.Context, req entities.BookingRequest) (*entities.Appointment, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Appointment), args.Error(1)
}

func (m *MockBackend) GetAppointment(ctx context.Context, id int64) (*entities.Appointment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Appointment), args.Error(1)
}

func (m *MockBackend) CancelAppointment(ctx context.Context, id int64) (*entities.Appointment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Appointment), args.Error(1)
}

func (m *MockBackend) UpdateReason(ctx context.Context, id int64, reason string) (*entities.Appointment, error) {
	args := m.Called(ctx, id, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Appointment), args.Error(1)
}

func (m *MockBackend) SetStatus(ctx context.Context, id int64, status entities.AppointmentStatus) (*entities.Appointment, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Appointment), args.Error(1)
}

func (m *MockBackend) ListPatientAppointments(ctx context.Context, patientID int64, filter entities.AppointmentFilter) ([]entities.Appointment, error) {
	args := m.Called(ctx, patientID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.Appointment), args.Error(1)
}

func (m *MockBackend) ListDoctorAppointments(ctx context.Context, doctorID int64, filter entities.AppointmentFilter) ([]entities.Appointment, error) {
	args := m.Called(ctx, doctorID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.Appointment), args.Error(1)
}

// recordingNavigator remembers every route it was sent to
type recordingNavigator struct {
	mu     sync.Mutex
	routes []providers.Route
}

func (n *recordingNavigator) Navigate(route providers.Route) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.routes = append(n.routes, route)
}

func (n *recordingNavigator) Routes() []providers.Route {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]providers.Route(nil), n.routes...)
}

// Fixtures

// today is fixed so past-date checks are deterministic
var today = time.Date(2030, 6, 1, 10, 0, 0, 0, time.Local)

func fixedClock() time.Time { return today }

var (
	patientIdentity = entities.Identity{UserID: "10", Email: "carla@example.com", Role: entities.RolePatient, PatientID: 7, FirstName: "Carla"}
	doctorIdentity  = entities.Identity{UserID: "20", Email: "ana@example.com", Role: entities.RoleDoctor, DoctorID: 3, FirstName: "Ana", Specialty: "Cardiología"}
)

func loggedIn(t *testing.T, identity entities.Identity) (*services.SessionService, *session.MemoryStore, *recordingNavigator) {
	t.Helper()
	store := session.NewMemoryStore(&entities.Session{Token: "tok-" + identity.UserID, Identity: identity})
	nav := &recordingNavigator{}
	svc := services.NewSessionService(store, nav, 3, time.Millisecond)
	backend := new(MockBackend)
	backend.On("Me", mock.Anything).Return(&identity, nil).Once()
	svc.BindAuth(backend)
	_, err := svc.Bootstrap(context.Background())
	require.NoError(t, err)
	return svc, store, nav
}

func appointmentFor(id int64, status entities.AppointmentStatus) *entities.Appointment {
	start := time.Date(2030, 6, 10, 9, 0, 0, 0, time.Local)
	return &entities.Appointment{
		ID:        id,
		PatientID: patientIdentity.PatientID,
		DoctorID:  doctorIdentity.DoctorID,
		Start:     start,
		End:       start.Add(30 * time.Minute),
		Status:    status,
	}
}

func withStatus(a *entities.Appointment, status entities.AppointmentStatus) *entities.Appointment {
	cp := *a
	cp.Status = status
	return &cp
}

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/medibook/internal/domain/entities"
	"github.com/zatekoja/medibook/internal/domain/providers"
	"github.com/zatekoja/medibook/internal/infrastructure/clients/citasapi"
	apperrors "github.com/zatekoja/medibook/pkg/errors"
)

const (
	dayStart     = 9 * time.Hour
	dayEnd       = 13 * time.Hour
	slotDuration = 30 * time.Minute

	blockedReason = "The doctor is not available on this day"
	noSlotsReason = "There are no free time slots on this day"
)

type mockUser struct {
	Password string            `json:"password"`
	Identity entities.Identity `json:"identity"`
}

// mockState is everything the mock backend owns. It is serialized as-is when a state path is set.
type mockState struct {
	NextID       int64                               `json:"next_id"`
	Users        map[string]*mockUser                `json:"users"`
	Tokens       map[string]string                   `json:"tokens"`
	Doctors      map[int64]*entities.Doctor          `json:"doctors"`
	Patients     map[int64]*entities.PatientSummary  `json:"patients"`
	Appointments map[int64]*entities.Appointment     `json:"appointments"`
	Blocked      map[int64]*entities.BlockedInterval `json:"blocked"`
}

// MockBackend is an in-memory stand-in for the remote API, for local
// development and tests. It enforces the same rules the real backend does:
// bearer tokens, slot generation, blocked days and appointment transitions.
type MockBackend struct {
	mu             sync.Mutex
	state          *mockState
	tokens         citasapi.TokenSource
	onUnauthorized citasapi.UnauthorizedHandler
	statePath      string
	now            func() time.Time
}

var _ providers.Backend = (*MockBackend)(nil)

// MockOption configures a MockBackend
type MockOption func(*MockBackend)

// WithMockTokenSource sets where the caller's bearer token is read from
func WithMockTokenSource(ts citasapi.TokenSource) MockOption {
	return func(m *MockBackend) { m.tokens = ts }
}

// WithMockUnauthorizedHandler sets the hook run when a token is rejected
func WithMockUnauthorizedHandler(h citasapi.UnauthorizedHandler) MockOption {
	return func(m *MockBackend) { m.onUnauthorized = h }
}

// WithStatePath persists the mock state to a JSON file after every mutation
func WithStatePath(path string) MockOption {
	return func(m *MockBackend) { m.statePath = path }
}

// WithClock overrides the clock used for past-date checks
func WithClock(now func() time.Time) MockOption {
	return func(m *MockBackend) { m.now = now }
}

// NewMockBackend creates a mock backend seeded with demo doctors and accounts
func NewMockBackend(opts ...MockOption) (*MockBackend, error) {
	m := &MockBackend{now: time.Now}
	for _, opt := range opts {
		opt(m)
	}

	if m.statePath != "" {
		state, err := loadState(m.statePath)
		if err != nil {
			return nil, err
		}
		m.state = state
	}
	if m.state == nil {
		m.state = seedState()
	}
	return m, nil
}

// DemoPassword is the password of every seeded account
const DemoPassword = "demo123"

const (
	DemoPatientEmail = "paciente@medibook.local"
	DemoDoctorEmail  = "medico@medibook.local"
)

func seedState() *mockState {
	s := &mockState{
		NextID:       100,
		Users:        make(map[string]*mockUser),
		Tokens:       make(map[string]string),
		Doctors:      make(map[int64]*entities.Doctor),
		Patients:     make(map[int64]*entities.PatientSummary),
		Appointments: make(map[int64]*entities.Appointment),
		Blocked:      make(map[int64]*entities.BlockedInterval),
	}

	doctors := []entities.Doctor{
		{ID: 1, FirstName: "Ana", LastName: "Ruiz", Specialty: "Cardiología", Description: "Adult cardiology and check-ups", Email: DemoDoctorEmail, Active: true},
		{ID: 2, FirstName: "Luis", LastName: "Paz", Specialty: "Pediatría", Description: "Children from 0 to 14", Email: "luis.paz@medibook.local", Active: true},
		{ID: 3, FirstName: "Marta", LastName: "Gil", Specialty: "Dermatología", Email: "marta.gil@medibook.local", Active: true},
		{ID: 4, FirstName: "Jorge", LastName: "León", Specialty: "Cardiología", Email: "jorge.leon@medibook.local", Active: true},
	}
	for i := range doctors {
		d := doctors[i]
		s.Doctors[d.ID] = &d
	}

	s.Patients[1] = &entities.PatientSummary{ID: 1, FirstName: "Carla", LastName: "Soto", Email: DemoPatientEmail}

	s.Users[DemoPatientEmail] = &mockUser{
		Password: DemoPassword,
		Identity: entities.Identity{UserID: "1", Email: DemoPatientEmail, Role: entities.RolePatient, PatientID: 1, FirstName: "Carla", LastName: "Soto"},
	}
	s.Users[DemoDoctorEmail] = &mockUser{
		Password: DemoPassword,
		Identity: entities.Identity{UserID: "2", Email: DemoDoctorEmail, Role: entities.RoleDoctor, DoctorID: 1, FirstName: "Ana", LastName: "Ruiz", Specialty: "Cardiología"},
	}
	return s
}

func loadState(path string) (*mockState, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read mock state: %w", err)
	}
	var state mockState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode mock state %s: %w", path, err)
	}
	return &state, nil
}

// persist writes the state when a path is configured. Callers hold m.mu.
func (m *MockBackend) persist() {
	if m.statePath == "" {
		return
	}
	data, err := json.MarshalIndent(m.state, "", "  ")
	if err != nil {
		log.Warn().Err(err).Msg("Failed to encode mock state")
		return
	}
	if err := os.MkdirAll(filepath.Dir(m.statePath), 0o700); err != nil {
		log.Warn().Err(err).Msg("Failed to create mock state directory")
		return
	}
	if err := os.WriteFile(m.statePath, data, 0o600); err != nil {
		log.Warn().Err(err).Str("path", m.statePath).Msg("Failed to write mock state")
	}
}

func (m *MockBackend) nextID() int64 {
	m.state.NextID++
	return m.state.NextID
}

// caller resolves the bearer token. Callers hold m.mu.
func (m *MockBackend) caller(ctx context.Context) (entities.Identity, error) {
	token := ""
	if m.tokens != nil {
		token = m.tokens.Token()
	}
	if email, ok := m.state.Tokens[token]; ok && token != "" {
		if u, ok := m.state.Users[email]; ok {
			return u.Identity, nil
		}
	}
	if m.onUnauthorized != nil {
		// the hook may touch the session, which never calls back into the backend
		m.mu.Unlock()
		m.onUnauthorized(ctx)
		m.mu.Lock()
	}
	return entities.Identity{}, apperrors.NewUnauthorizedError("invalid or expired token")
}

func forbidden(msg string) error {
	return apperrors.NewRejectedError(http.StatusForbidden, msg)
}

func badRequest(msg string) error {
	return apperrors.NewRejectedError(http.StatusBadRequest, msg)
}

func (m *MockBackend) issueSession(email string) *entities.Session {
	token := "mock-" + uuid.NewString()
	m.state.Tokens[token] = email
	return &entities.Session{Token: token, Identity: m.state.Users[email].Identity}
}

// Login exchanges credentials for a session
func (m *MockBackend) Login(_ context.Context, creds entities.Credentials) (*entities.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(creds.Email))
	u, ok := m.state.Users[email]
	if !ok || u.Password != creds.Password {
		return nil, apperrors.NewUnauthorizedError("invalid email or password")
	}
	session := m.issueSession(email)
	m.persist()
	return session, nil
}

func (m *MockBackend) checkNewAccount(email, password, firstName string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return "", badRequest("a valid email is required")
	}
	if len(password) < 6 {
		return "", badRequest("the password must have at least 6 characters")
	}
	if strings.TrimSpace(firstName) == "" {
		return "", badRequest("the name is required")
	}
	if _, exists := m.state.Users[email]; exists {
		return "", apperrors.NewRejectedError(http.StatusConflict, "the email is already registered")
	}
	return email, nil
}

// RegisterPatient creates a patient account
func (m *MockBackend) RegisterPatient(_ context.Context, reg entities.PatientRegistration) (*entities.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	email, err := m.checkNewAccount(reg.Email, reg.Password, reg.FirstName)
	if err != nil {
		return nil, err
	}
	patientID := m.nextID()
	m.state.Patients[patientID] = &entities.PatientSummary{
		ID: patientID, FirstName: reg.FirstName, LastName: reg.LastName, Email: email, Phone: reg.Phone,
	}
	m.state.Users[email] = &mockUser{
		Password: reg.Password,
		Identity: entities.Identity{
			UserID:    fmt.Sprintf("%d", m.nextID()),
			Email:     email,
			Role:      entities.RolePatient,
			PatientID: patientID,
			FirstName: reg.FirstName,
			LastName:  reg.LastName,
			Phone:     reg.Phone,
		},
	}
	session := m.issueSession(email)
	m.persist()
	return session, nil
}

// RegisterDoctor creates a doctor account and its public profile
func (m *MockBackend) RegisterDoctor(_ context.Context, reg entities.DoctorRegistration) (*entities.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	email, err := m.checkNewAccount(reg.Email, reg.Password, reg.FirstName)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(reg.Specialty) == "" {
		return nil, badRequest("the specialty is required")
	}
	doctorID := m.nextID()
	m.state.Doctors[doctorID] = &entities.Doctor{
		ID: doctorID, FirstName: reg.FirstName, LastName: reg.LastName, Specialty: reg.Specialty,
		Description: reg.Description, Phone: reg.Phone, Email: email, Active: true,
	}
	m.state.Users[email] = &mockUser{
		Password: reg.Password,
		Identity: entities.Identity{
			UserID:    fmt.Sprintf("%d", m.nextID()),
			Email:     email,
			Role:      entities.RoleDoctor,
			DoctorID:  doctorID,
			FirstName: reg.FirstName,
			LastName:  reg.LastName,
			Phone:     reg.Phone,
			Specialty: reg.Specialty,
		},
	}
	session := m.issueSession(email)
	m.persist()
	return session, nil
}

// Me returns the caller's identity
func (m *MockBackend) Me(ctx context.Context) (*entities.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, err := m.caller(ctx)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// ListDoctors returns active doctors ordered by id
func (m *MockBackend) ListDoctors(_ context.Context, specialty string) ([]entities.Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]entities.Doctor, 0, len(m.state.Doctors))
	for _, d := range m.state.Doctors {
		if !d.Active {
			continue
		}
		if specialty != "" && !strings.EqualFold(d.Specialty, specialty) {
			continue
		}
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetDoctor returns one doctor
func (m *MockBackend) GetDoctor(_ context.Context, id int64) (*entities.Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.state.Doctors[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("doctor not found")
	}
	cp := *d
	return &cp, nil
}

// UpdateDoctor edits the caller's own profile
func (m *MockBackend) UpdateDoctor(ctx context.Context, id int64, update entities.DoctorProfileUpdate) (*entities.Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	caller, err := m.caller(ctx)
	if err != nil {
		return nil, err
	}
	d, ok := m.state.Doctors[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("doctor not found")
	}
	if !caller.IsDoctor() || caller.DoctorID != id {
		return nil, forbidden("you can only edit your own profile")
	}

	if update.FirstName != nil {
		d.FirstName = *update.FirstName
	}
	if update.LastName != nil {
		d.LastName = *update.LastName
	}
	if update.Specialty != nil {
		d.Specialty = *update.Specialty
	}
	if update.Description != nil {
		d.Description = *update.Description
	}
	if update.Phone != nil {
		d.Phone = *update.Phone
	}
	if update.Email != nil {
		d.Email = *update.Email
	}
	m.persist()
	cp := *d
	return &cp, nil
}

// blockedOn returns the interval blocking doctorID on date. Callers hold m.mu.
func (m *MockBackend) blockedOn(doctorID int64, date string) (*entities.BlockedInterval, bool) {
	for _, b := range m.state.Blocked {
		if b.DoctorID == doctorID && b.Covers(date) {
			return b, true
		}
	}
	return nil, false
}

// freeSlots generates the bookable slots of a day. Callers hold m.mu.
func (m *MockBackend) freeSlots(doctorID int64, date string) ([]entities.TimeSlot, error) {
	day, err := entities.ParseDate(date)
	if err != nil {
		return nil, badRequest(err.Error())
	}
	taken := make(map[string]bool)
	for _, a := range m.state.Appointments {
		if a.DoctorID != doctorID || a.Date() != date {
			continue
		}
		if a.Status == entities.AppointmentStatusPending || a.Status == entities.AppointmentStatusConfirmed {
			taken[a.Slot().Start] = true
		}
	}

	now := m.now()
	slots := make([]entities.TimeSlot, 0)
	for offset := dayStart; offset+slotDuration <= dayEnd; offset += slotDuration {
		start := day.Add(offset)
		if !start.After(now) {
			continue
		}
		slot := entities.TimeSlot{
			Start: start.Format(entities.ClockLayout),
			End:   start.Add(slotDuration).Format(entities.ClockLayout),
		}
		if taken[slot.Start] {
			continue
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

// DayAvailability generates slots every 30 minutes from 09:00 to 13:00,
// minus booked and past ones. Blocked days, and days left with no slot,
// report a reason instead.
func (m *MockBackend) DayAvailability(_ context.Context, doctorID int64, date string) (*entities.DayAvailability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.state.Doctors[doctorID]; !ok {
		return nil, apperrors.NewNotFoundError("doctor not found")
	}
	day := &entities.DayAvailability{DoctorID: doctorID, Date: date}
	if _, blocked := m.blockedOn(doctorID, date); blocked {
		day.Reason = blockedReason
		return day, nil
	}
	slots, err := m.freeSlots(doctorID, date)
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		day.Reason = noSlotsReason
		return day, nil
	}
	day.Available = true
	day.Slots = slots
	return day, nil
}

// ownDoctor checks that the caller is doctorID. Callers hold m.mu.
func (m *MockBackend) ownDoctor(ctx context.Context, doctorID int64) error {
	caller, err := m.caller(ctx)
	if err != nil {
		return err
	}
	if !caller.IsDoctor() || caller.DoctorID != doctorID {
		return forbidden("you can only manage your own availability")
	}
	return nil
}

// BlockDay marks date unavailable
func (m *MockBackend) BlockDay(ctx context.Context, doctorID int64, date string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ownDoctor(ctx, doctorID); err != nil {
		return err
	}
	if _, err := entities.ParseDate(date); err != nil {
		return badRequest(err.Error())
	}
	if _, blocked := m.blockedOn(doctorID, date); blocked {
		return badRequest("the day is already marked as unavailable")
	}
	id := m.nextID()
	m.state.Blocked[id] = &entities.BlockedInterval{ID: id, DoctorID: doctorID, Start: date, End: date, CreatedAt: m.now()}
	m.persist()
	return nil
}

// BlockRange blocks every not-yet-blocked day in [start, end], one record per day
func (m *MockBackend) BlockRange(ctx context.Context, doctorID int64, start, end string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ownDoctor(ctx, doctorID); err != nil {
		return err
	}
	if err := entities.ValidateRange(start, end); err != nil {
		return badRequest(err.Error())
	}
	for _, date := range datesBetween(start, end) {
		if _, blocked := m.blockedOn(doctorID, date); blocked {
			continue
		}
		id := m.nextID()
		m.state.Blocked[id] = &entities.BlockedInterval{ID: id, DoctorID: doctorID, Start: date, End: date, CreatedAt: m.now()}
	}
	m.persist()
	return nil
}

// UnblockDay removes one record
func (m *MockBackend) UnblockDay(ctx context.Context, intervalID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.state.Blocked[intervalID]
	if !ok {
		return apperrors.NewNotFoundError("availability record not found")
	}
	if err := m.ownDoctor(ctx, b.DoctorID); err != nil {
		return err
	}
	delete(m.state.Blocked, intervalID)
	m.persist()
	return nil
}

// UnblockRange removes every record falling inside [start, end]
func (m *MockBackend) UnblockRange(ctx context.Context, doctorID int64, start, end string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ownDoctor(ctx, doctorID); err != nil {
		return err
	}
	if err := entities.ValidateRange(start, end); err != nil {
		return badRequest(err.Error())
	}
	for id, b := range m.state.Blocked {
		if b.DoctorID == doctorID && b.Start >= start && b.End <= end {
			delete(m.state.Blocked, id)
		}
	}
	m.persist()
	return nil
}

// ListBlocked returns the doctor's records overlapping [from, to], ordered by date
func (m *MockBackend) ListBlocked(_ context.Context, doctorID int64, from, to string) ([]entities.BlockedInterval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listBlocked(doctorID, from, to), nil
}

func (m *MockBackend) listBlocked(doctorID int64, from, to string) []entities.BlockedInterval {
	out := make([]entities.BlockedInterval, 0)
	for _, b := range m.state.Blocked {
		if b.DoctorID != doctorID {
			continue
		}
		if from != "" && b.End < from {
			continue
		}
		if to != "" && b.Start > to {
			continue
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start == out[j].Start {
			return out[i].ID < out[j].ID
		}
		return out[i].Start < out[j].Start
	})
	return out
}

// MonthCalendar derives the calendar from the blocked records
func (m *MockBackend) MonthCalendar(_ context.Context, doctorID int64, year int, month time.Month) (*entities.MonthCalendar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.state.Doctors[doctorID]; !ok {
		return nil, apperrors.NewNotFoundError("doctor not found")
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.Local)
	last := first.AddDate(0, 1, -1)
	intervals := m.listBlocked(doctorID, first.Format(entities.DateLayout), last.Format(entities.DateLayout))
	cal := entities.BuildMonthCalendar(doctorID, year, month, intervals)
	return &cal, nil
}

// CreateAppointment books a free slot for the calling patient
func (m *MockBackend) CreateAppointment(ctx context.Context, req entities.BookingRequest) (*entities.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	caller, err := m.caller(ctx)
	if err != nil {
		return nil, err
	}
	if !caller.IsPatient() {
		return nil, forbidden("only patients can book appointments")
	}
	if err := req.Validate(m.now()); err != nil {
		return nil, badRequest(apperrors.UserMessage(err))
	}
	doctor, ok := m.state.Doctors[req.DoctorID]
	if !ok || !doctor.Active {
		return nil, apperrors.NewNotFoundError("doctor not found")
	}
	if _, blocked := m.blockedOn(req.DoctorID, req.Date); blocked {
		return nil, badRequest(blockedReason)
	}
	free, err := m.freeSlots(req.DoctorID, req.Date)
	if err != nil {
		return nil, err
	}
	if !(entities.DayAvailability{Slots: free}).HasSlot(req.Slot) {
		return nil, badRequest("the selected time slot is no longer available")
	}

	start, _ := time.ParseInLocation(entities.DateLayout+" "+entities.ClockLayout, req.Date+" "+req.Slot.Start, time.Local)
	end, _ := time.ParseInLocation(entities.DateLayout+" "+entities.ClockLayout, req.Date+" "+req.Slot.End, time.Local)

	appt := &entities.Appointment{
		ID:        m.nextID(),
		PatientID: caller.PatientID,
		DoctorID:  req.DoctorID,
		Start:     start,
		End:       end,
		Status:    entities.AppointmentStatusPending,
		Reason:    req.Reason,
		CreatedAt: m.now(),
	}
	m.state.Appointments[appt.ID] = appt
	m.persist()
	return m.view(appt), nil
}

// view returns a copy with the doctor and patient blocks attached. Callers hold m.mu.
func (m *MockBackend) view(a *entities.Appointment) *entities.Appointment {
	cp := *a
	if d, ok := m.state.Doctors[a.DoctorID]; ok {
		doc := *d
		cp.Doctor = &doc
	}
	if p, ok := m.state.Patients[a.PatientID]; ok {
		pat := *p
		cp.Patient = &pat
	}
	return &cp
}

// visible loads an appointment the caller is a party to. Callers hold m.mu.
func (m *MockBackend) visible(ctx context.Context, id int64) (*entities.Appointment, entities.Identity, error) {
	caller, err := m.caller(ctx)
	if err != nil {
		return nil, caller, err
	}
	a, ok := m.state.Appointments[id]
	if !ok {
		return nil, caller, apperrors.NewNotFoundError("appointment not found")
	}
	if (caller.IsPatient() && a.PatientID != caller.PatientID) || (caller.IsDoctor() && a.DoctorID != caller.DoctorID) {
		return nil, caller, forbidden("the appointment belongs to someone else")
	}
	return a, caller, nil
}

// ruleError turns a rule violation into the status the API would send:
// a state precondition that no longer holds is a conflict
func ruleError(err error) error {
	if apperrors.IsType(err, apperrors.ErrorTypeValidation) {
		return apperrors.NewConflictError(apperrors.UserMessage(err))
	}
	return forbidden(apperrors.UserMessage(err))
}

// GetAppointment returns one appointment of the caller
func (m *MockBackend) GetAppointment(ctx context.Context, id int64) (*entities.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, _, err := m.visible(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.view(a), nil
}

// CancelAppointment cancels on behalf of the patient or the doctor
func (m *MockBackend) CancelAppointment(ctx context.Context, id int64) (*entities.Appointment, error) {
	return m.transition(ctx, id, entities.AppointmentStatusCancelled)
}

// SetStatus applies a doctor-side transition
func (m *MockBackend) SetStatus(ctx context.Context, id int64, status entities.AppointmentStatus) (*entities.Appointment, error) {
	return m.transition(ctx, id, status)
}

func (m *MockBackend) transition(ctx context.Context, id int64, to entities.AppointmentStatus) (*entities.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, caller, err := m.visible(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := a.CheckTransition(to, caller); err != nil {
		return nil, ruleError(err)
	}
	a.Status = to
	m.persist()
	return m.view(a), nil
}

// UpdateReason edits the reason of a pending appointment
func (m *MockBackend) UpdateReason(ctx context.Context, id int64, reason string) (*entities.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, caller, err := m.visible(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := a.CheckReasonEdit(caller); err != nil {
		return nil, ruleError(err)
	}
	a.Reason = reason
	m.persist()
	return m.view(a), nil
}

func (m *MockBackend) list(match func(*entities.Appointment) bool, filter entities.AppointmentFilter) []entities.Appointment {
	out := make([]entities.Appointment, 0)
	for _, a := range m.state.Appointments {
		if !match(a) {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.From != "" && a.Date() < filter.From {
			continue
		}
		if filter.To != "" && a.Date() > filter.To {
			continue
		}
		out = append(out, *m.view(a))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].ID < out[j].ID
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

// ListPatientAppointments returns the calling patient's appointments
func (m *MockBackend) ListPatientAppointments(ctx context.Context, patientID int64, filter entities.AppointmentFilter) ([]entities.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	caller, err := m.caller(ctx)
	if err != nil {
		return nil, err
	}
	if !caller.IsPatient() || caller.PatientID != patientID {
		return nil, forbidden("you can only list your own appointments")
	}
	return m.list(func(a *entities.Appointment) bool { return a.PatientID == patientID }, filter), nil
}

// ListDoctorAppointments returns the calling doctor's agenda
func (m *MockBackend) ListDoctorAppointments(ctx context.Context, doctorID int64, filter entities.AppointmentFilter) ([]entities.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	caller, err := m.caller(ctx)
	if err != nil {
		return nil, err
	}
	if !caller.IsDoctor() || caller.DoctorID != doctorID {
		return nil, forbidden("you can only list your own agenda")
	}
	return m.list(func(a *entities.Appointment) bool { return a.DoctorID == doctorID }, filter), nil
}

// datesBetween lists every ISO date in [start, end]; both must be valid
func datesBetween(start, end string) []string {
	s, _ := entities.ParseDate(start)
	e, _ := entities.ParseDate(end)
	var out []string
	for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
		out = append(out, d.Format(entities.DateLayout))
	}
	return out
}

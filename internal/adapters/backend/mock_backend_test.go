package backend

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/medibook/internal/domain/entities"
	"github.com/zatekoja/medibook/internal/infrastructure/clients/citasapi"
	apperrors "github.com/zatekoja/medibook/pkg/errors"
)

var fixedNow = time.Date(2030, 3, 4, 8, 0, 0, 0, time.Local)

type harness struct {
	backend *MockBackend
	token   string
}

func (h *harness) Token() string { return h.token }

func newHarness(t *testing.T, opts ...MockOption) *harness {
	t.Helper()
	h := &harness{}
	opts = append([]MockOption{WithMockTokenSource(h), WithClock(func() time.Time { return fixedNow })}, opts...)
	b, err := NewMockBackend(opts...)
	require.NoError(t, err)
	h.backend = b
	return h
}

func (h *harness) loginAs(t *testing.T, email string) *entities.Session {
	t.Helper()
	session, err := h.backend.Login(context.Background(), entities.Credentials{Email: email, Password: DemoPassword})
	require.NoError(t, err)
	h.token = session.Token
	return session
}

func TestMockBackend_LoginAndMe(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.backend.Login(ctx, entities.Credentials{Email: DemoPatientEmail, Password: "wrong"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnauthorized))

	session := h.loginAs(t, DemoPatientEmail)
	assert.Equal(t, entities.RolePatient, session.Identity.Role)

	me, err := h.backend.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), me.PatientID)
}

func TestMockBackend_UnknownTokenInvokesHook(t *testing.T) {
	var calls int32
	h := newHarness(t, WithMockUnauthorizedHandler(func(context.Context) { atomic.AddInt32(&calls, 1) }))
	h.token = "stale"

	_, err := h.backend.Me(context.Background())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnauthorized))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestMockBackend_RegisterPatientRejectsDuplicateEmail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	session, err := h.backend.RegisterPatient(ctx, entities.PatientRegistration{Email: "new@example.com", Password: "secret1", FirstName: "Nina"})
	require.NoError(t, err)
	assert.NotZero(t, session.Identity.PatientID)

	_, err = h.backend.RegisterPatient(ctx, entities.PatientRegistration{Email: "NEW@example.com", Password: "secret1", FirstName: "Nina"})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeRejected))
}

func TestMockBackend_ListDoctorsFiltersBySpecialty(t *testing.T) {
	h := newHarness(t)
	all, err := h.backend.ListDoctors(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	cardio, err := h.backend.ListDoctors(context.Background(), "cardiología")
	require.NoError(t, err)
	require.Len(t, cardio, 2)
	assert.Equal(t, int64(1), cardio[0].ID)
	assert.Equal(t, int64(4), cardio[1].ID)
}

func TestMockBackend_OpenDayGeneratesSlots(t *testing.T) {
	h := newHarness(t)
	day, err := h.backend.DayAvailability(context.Background(), 2, "2030-03-05")
	require.NoError(t, err)
	assert.True(t, day.Available)
	require.Len(t, day.Slots, 8)
	assert.Equal(t, entities.TimeSlot{Start: "09:00", End: "09:30"}, day.Slots[0])
	assert.Equal(t, entities.TimeSlot{Start: "12:30", End: "13:00"}, day.Slots[7])
}

// A doctor blocks a date; a patient asking for that date sees it unavailable with the reason.
func TestMockBackend_BlockedDateIsUnavailable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.loginAs(t, DemoDoctorEmail)
	require.NoError(t, h.backend.BlockDay(ctx, 1, "2030-03-10"))

	h.loginAs(t, DemoPatientEmail)
	day, err := h.backend.DayAvailability(ctx, 1, "2030-03-10")
	require.NoError(t, err)
	assert.False(t, day.Available)
	assert.Equal(t, blockedReason, day.Reason)
	assert.Empty(t, day.Slots)

	_, err = h.backend.CreateAppointment(ctx, entities.BookingRequest{DoctorID: 1, Date: "2030-03-10", Slot: entities.TimeSlot{Start: "09:00", End: "09:30"}})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeRejected))
}

// Removing a blocked record gives the date back its normal slots.
func TestMockBackend_UnblockRestoresSlots(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	const date = "2030-03-10"

	h.loginAs(t, DemoPatientEmail)
	before, err := h.backend.DayAvailability(ctx, 1, date)
	require.NoError(t, err)
	require.True(t, before.Available)
	require.NotEmpty(t, before.Slots)

	h.loginAs(t, DemoDoctorEmail)
	require.NoError(t, h.backend.BlockDay(ctx, 1, date))

	h.loginAs(t, DemoPatientEmail)
	blocked, err := h.backend.DayAvailability(ctx, 1, date)
	require.NoError(t, err)
	assert.False(t, blocked.Available)
	assert.Empty(t, blocked.Slots)

	h.loginAs(t, DemoDoctorEmail)
	records, err := h.backend.ListBlocked(ctx, 1, date, date)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NoError(t, h.backend.UnblockDay(ctx, records[0].ID))

	h.loginAs(t, DemoPatientEmail)
	after, err := h.backend.DayAvailability(ctx, 1, date)
	require.NoError(t, err)
	assert.True(t, after.Available)
	assert.Empty(t, after.Reason)
	assert.Equal(t, before.Slots, after.Slots)
}

func TestMockBackend_FullyBookedDayIsUnavailable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	const date = "2030-03-07"

	h.loginAs(t, DemoPatientEmail)
	day, err := h.backend.DayAvailability(ctx, 2, date)
	require.NoError(t, err)
	require.Len(t, day.Slots, 8)
	for _, slot := range day.Slots {
		_, err := h.backend.CreateAppointment(ctx, entities.BookingRequest{DoctorID: 2, Date: date, Slot: slot})
		require.NoError(t, err)
	}

	day, err = h.backend.DayAvailability(ctx, 2, date)
	require.NoError(t, err)
	assert.False(t, day.Available)
	assert.Equal(t, noSlotsReason, day.Reason)
	assert.Empty(t, day.Slots)
}

func TestMockBackend_TodayAfterHoursIsUnavailable(t *testing.T) {
	afternoon := time.Date(2030, 3, 4, 14, 0, 0, 0, time.Local)
	h := newHarness(t, WithClock(func() time.Time { return afternoon }))

	day, err := h.backend.DayAvailability(context.Background(), 1, "2030-03-04")
	require.NoError(t, err)
	assert.False(t, day.Available)
	assert.Equal(t, noSlotsReason, day.Reason)
}

// Two patients race for the same slot; the second gets a rejection and the slot disappears.
func TestMockBackend_DoubleBookingRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	req := entities.BookingRequest{DoctorID: 2, Date: "2030-03-05", Slot: entities.TimeSlot{Start: "10:00", End: "10:30"}, Reason: "fever"}

	h.loginAs(t, DemoPatientEmail)
	appt, err := h.backend.CreateAppointment(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, entities.AppointmentStatusPending, appt.Status)
	require.NotNil(t, appt.Doctor)
	assert.Equal(t, "Luis", appt.Doctor.FirstName)

	other, err := h.backend.RegisterPatient(ctx, entities.PatientRegistration{Email: "other@example.com", Password: "secret1", FirstName: "Otto"})
	require.NoError(t, err)
	h.token = other.Token

	_, err = h.backend.CreateAppointment(ctx, req)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeRejected))

	day, err := h.backend.DayAvailability(ctx, 2, "2030-03-05")
	require.NoError(t, err)
	assert.False(t, day.HasSlot(req.Slot))
	assert.Len(t, day.Slots, 7)
}

// The doctor confirms while the patient's cancel is in flight: the patient's request conflicts.
func TestMockBackend_ConcurrentTransitionConflicts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.loginAs(t, DemoPatientEmail)
	appt, err := h.backend.CreateAppointment(ctx, entities.BookingRequest{DoctorID: 1, Date: "2030-03-05", Slot: entities.TimeSlot{Start: "09:00", End: "09:30"}})
	require.NoError(t, err)
	patientToken := h.token

	h.loginAs(t, DemoDoctorEmail)
	confirmed, err := h.backend.SetStatus(ctx, appt.ID, entities.AppointmentStatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, entities.AppointmentStatusConfirmed, confirmed.Status)

	h.token = patientToken
	_, err = h.backend.CancelAppointment(ctx, appt.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeRejected), "patient may not cancel a confirmed appointment: %v", err)

	h.loginAs(t, DemoDoctorEmail)
	_, err = h.backend.SetStatus(ctx, appt.ID, entities.AppointmentStatusCompleted)
	require.NoError(t, err)
	_, err = h.backend.SetStatus(ctx, appt.ID, entities.AppointmentStatusCancelled)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
}

func TestMockBackend_ReasonEditOnlyWhilePending(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.loginAs(t, DemoPatientEmail)
	appt, err := h.backend.CreateAppointment(ctx, entities.BookingRequest{DoctorID: 1, Date: "2030-03-05", Slot: entities.TimeSlot{Start: "11:00", End: "11:30"}})
	require.NoError(t, err)

	updated, err := h.backend.UpdateReason(ctx, appt.ID, "follow-up")
	require.NoError(t, err)
	assert.Equal(t, "follow-up", updated.Reason)

	_, err = h.backend.CancelAppointment(ctx, appt.ID)
	require.NoError(t, err)

	_, err = h.backend.UpdateReason(ctx, appt.ID, "again")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
}

func TestMockBackend_BlockRangeAndCalendar(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.loginAs(t, DemoDoctorEmail)

	require.NoError(t, h.backend.BlockRange(ctx, 1, "2030-03-10", "2030-03-12"))
	require.NoError(t, h.backend.BlockDay(ctx, 1, "2030-03-20"))

	blocked, err := h.backend.ListBlocked(ctx, 1, "", "")
	require.NoError(t, err)
	require.Len(t, blocked, 4)
	assert.Equal(t, "2030-03-10", blocked[0].Start)

	cal, err := h.backend.MonthCalendar(ctx, 1, 2030, time.March)
	require.NoError(t, err)
	assert.Equal(t, 31, cal.DaysTotal)
	assert.Equal(t, 4, cal.BlockedTotal)

	require.NoError(t, h.backend.UnblockRange(ctx, 1, "2030-03-10", "2030-03-11"))
	require.NoError(t, h.backend.UnblockDay(ctx, blocked[3].ID))

	cal, err = h.backend.MonthCalendar(ctx, 1, 2030, time.March)
	require.NoError(t, err)
	assert.Equal(t, 1, cal.BlockedTotal)
	day12, _ := cal.Day(12)
	assert.False(t, day12.Available)
}

func TestMockBackend_DoctorCannotManageOthersAvailability(t *testing.T) {
	h := newHarness(t)
	h.loginAs(t, DemoDoctorEmail)
	err := h.backend.BlockDay(context.Background(), 2, "2030-03-10")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeRejected))
}

func TestMockBackend_StatePersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mock.json")
	h := newHarness(t, WithStatePath(path))
	session := h.loginAs(t, DemoPatientEmail)
	_, err := h.backend.CreateAppointment(context.Background(), entities.BookingRequest{DoctorID: 3, Date: "2030-03-06", Slot: entities.TimeSlot{Start: "09:30", End: "10:00"}})
	require.NoError(t, err)

	again := &harness{token: session.Token}
	b, err := NewMockBackend(WithStatePath(path), WithMockTokenSource(citasapi.TokenFunc(again.Token)), WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)

	list, err := b.ListPatientAppointments(context.Background(), 1, entities.AppointmentFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, entities.AppointmentStatusPending, list[0].Status)
	assert.Equal(t, "09:30", list[0].Slot().Start)
}

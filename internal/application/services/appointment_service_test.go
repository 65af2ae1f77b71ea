package services_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/medibook/internal/adapters/events"
	"github.com/zatekoja/medibook/internal/application/services"
	"github.com/zatekoja/medibook/internal/domain/entities"
	"github.com/zatekoja/medibook/internal/domain/providers"
	apperrors "github.com/zatekoja/medibook/pkg/errors"
)

func newAppointmentService(t *testing.T, identity entities.Identity) (*services.AppointmentService, *MockBackend) {
	t.Helper()
	sess, _, _ := loggedIn(t, identity)
	api := new(MockBackend)
	svc := services.NewAppointmentService(api, sess, nil)
	svc.SetClock(fixedClock)
	return svc, api
}

func TestAppointmentService_Book(t *testing.T) {
	req := entities.BookingRequest{DoctorID: 3, Date: "2030-06-10", Slot: entities.TimeSlot{Start: "09:00", End: "09:30"}, Reason: "chest pain"}

	t.Run("creates a pending appointment", func(t *testing.T) {
		svc, api := newAppointmentService(t, patientIdentity)
		api.On("CreateAppointment", mock.Anything, req).Return(appointmentFor(50, entities.AppointmentStatusPending), nil)

		appt, err := svc.Book(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, entities.AppointmentStatusPending, appt.Status)
		api.AssertExpectations(t)
	})

	t.Run("past date is rejected locally", func(t *testing.T) {
		svc, api := newAppointmentService(t, patientIdentity)
		past := req
		past.Date = "2030-05-01"

		_, err := svc.Book(context.Background(), past)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
		api.AssertNotCalled(t, "CreateAppointment", mock.Anything, mock.Anything)
	})

	t.Run("doctors cannot book", func(t *testing.T) {
		svc, api := newAppointmentService(t, doctorIdentity)
		_, err := svc.Book(context.Background(), req)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeForbidden))
		api.AssertNotCalled(t, "CreateAppointment", mock.Anything, mock.Anything)
	})

	t.Run("backend rejection is surfaced verbatim", func(t *testing.T) {
		svc, api := newAppointmentService(t, patientIdentity)
		api.On("CreateAppointment", mock.Anything, req).Return(nil, apperrors.NewRejectedError(http.StatusBadRequest, "El horario ya no está disponible"))

		_, err := svc.Book(context.Background(), req)
		assert.Equal(t, "El horario ya no está disponible", apperrors.UserMessage(err))
	})
}

// A patient cancels a pending appointment; cancelling again is refused without a call.
func TestAppointmentService_PatientCancelTwice(t *testing.T) {
	svc, api := newAppointmentService(t, patientIdentity)
	pending := appointmentFor(51, entities.AppointmentStatusPending)
	api.On("CancelAppointment", mock.Anything, int64(51)).Return(withStatus(pending, entities.AppointmentStatusCancelled), nil).Once()

	cancelled, err := svc.Cancel(context.Background(), pending)
	require.NoError(t, err)
	assert.Equal(t, entities.AppointmentStatusCancelled, cancelled.Status)

	_, err = svc.Cancel(context.Background(), cancelled)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	api.AssertNumberOfCalls(t, "CancelAppointment", 1)
}

// A doctor confirms and completes, then cancelling the completed appointment is refused.
func TestAppointmentService_DoctorLifecycle(t *testing.T) {
	svc, api := newAppointmentService(t, doctorIdentity)
	pending := appointmentFor(52, entities.AppointmentStatusPending)
	api.On("SetStatus", mock.Anything, int64(52), entities.AppointmentStatusConfirmed).Return(withStatus(pending, entities.AppointmentStatusConfirmed), nil)
	api.On("SetStatus", mock.Anything, int64(52), entities.AppointmentStatusCompleted).Return(withStatus(pending, entities.AppointmentStatusCompleted), nil)

	confirmed, err := svc.Confirm(context.Background(), pending)
	require.NoError(t, err)
	completed, err := svc.Complete(context.Background(), confirmed)
	require.NoError(t, err)
	assert.Equal(t, entities.AppointmentStatusCompleted, completed.Status)

	_, err = svc.Cancel(context.Background(), completed)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	api.AssertNotCalled(t, "SetStatus", mock.Anything, int64(52), entities.AppointmentStatusCancelled)
}

func TestAppointmentService_TerminalStatesRefuseEveryone(t *testing.T) {
	for _, identity := range []entities.Identity{patientIdentity, doctorIdentity} {
		svc, api := newAppointmentService(t, identity)
		for _, from := range []entities.AppointmentStatus{entities.AppointmentStatusCancelled, entities.AppointmentStatusCompleted, entities.AppointmentStatusRejected} {
			for _, to := range entities.AppointmentStatuses {
				_, err := svc.Transition(context.Background(), appointmentFor(60, from), to)
				assert.Error(t, err, "%s: %s -> %s", identity.Role, from, to)
			}
		}
		api.AssertNotCalled(t, "SetStatus", mock.Anything, mock.Anything, mock.Anything)
		api.AssertNotCalled(t, "CancelAppointment", mock.Anything, mock.Anything)
	}
}

func TestAppointmentService_DoctorCancelsThroughStatusEndpoint(t *testing.T) {
	svc, api := newAppointmentService(t, doctorIdentity)
	confirmed := appointmentFor(53, entities.AppointmentStatusConfirmed)
	api.On("SetStatus", mock.Anything, int64(53), entities.AppointmentStatusCancelled).Return(withStatus(confirmed, entities.AppointmentStatusCancelled), nil)

	_, err := svc.Cancel(context.Background(), confirmed)
	require.NoError(t, err)
	api.AssertNotCalled(t, "CancelAppointment", mock.Anything, mock.Anything)
}

func TestAppointmentService_OtherDoctorIsForbidden(t *testing.T) {
	svc, api := newAppointmentService(t, doctorIdentity)
	foreign := appointmentFor(54, entities.AppointmentStatusPending)
	foreign.DoctorID = 99

	_, err := svc.Confirm(context.Background(), foreign)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeForbidden))
	api.AssertNotCalled(t, "SetStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestAppointmentService_StaleState(t *testing.T) {
	t.Run("409 is a conflict", func(t *testing.T) {
		svc, api := newAppointmentService(t, patientIdentity)
		pending := appointmentFor(55, entities.AppointmentStatusPending)
		api.On("CancelAppointment", mock.Anything, int64(55)).Return(nil, apperrors.NewConflictError("changed"))

		_, err := svc.Cancel(context.Background(), pending)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
		api.AssertNotCalled(t, "GetAppointment", mock.Anything, mock.Anything)
	})

	t.Run("rejection with a changed status becomes a conflict", func(t *testing.T) {
		svc, api := newAppointmentService(t, patientIdentity)
		pending := appointmentFor(56, entities.AppointmentStatusPending)
		api.On("CancelAppointment", mock.Anything, int64(56)).Return(nil, apperrors.NewRejectedError(http.StatusBadRequest, "Solo se pueden cancelar citas pendientes"))
		api.On("GetAppointment", mock.Anything, int64(56)).Return(withStatus(pending, entities.AppointmentStatusConfirmed), nil)

		_, err := svc.Cancel(context.Background(), pending)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
	})

	t.Run("rejection with an unchanged status stays a rejection", func(t *testing.T) {
		svc, api := newAppointmentService(t, patientIdentity)
		pending := appointmentFor(57, entities.AppointmentStatusPending)
		api.On("UpdateReason", mock.Anything, int64(57), "x").Return(nil, apperrors.NewRejectedError(http.StatusBadRequest, "motivo demasiado largo"))
		api.On("GetAppointment", mock.Anything, int64(57)).Return(pending, nil)

		_, err := svc.EditReason(context.Background(), pending, "x")
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeRejected))
		assert.Equal(t, "motivo demasiado largo", apperrors.UserMessage(err))
	})
}

func TestAppointmentService_ReasonEditOnlyWhilePending(t *testing.T) {
	svc, api := newAppointmentService(t, patientIdentity)
	for _, status := range entities.AppointmentStatuses {
		if status == entities.AppointmentStatusPending {
			continue
		}
		_, err := svc.EditReason(context.Background(), appointmentFor(58, status), "new")
		assert.Error(t, err, status)
	}
	api.AssertNotCalled(t, "UpdateReason", mock.Anything, mock.Anything, mock.Anything)
}

func TestAppointmentService_PublishesEvents(t *testing.T) {
	sess, _, _ := loggedIn(t, doctorIdentity)
	api := new(MockBackend)
	bus := events.NewMemoryEventBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub, err := bus.Subscribe(ctx, providers.GetPatientChannel(patientIdentity.PatientID))
	require.NoError(t, err)

	svc := services.NewAppointmentService(api, sess, bus)
	pending := appointmentFor(59, entities.AppointmentStatusPending)
	api.On("SetStatus", mock.Anything, int64(59), entities.AppointmentStatusRejected).Return(withStatus(pending, entities.AppointmentStatusRejected), nil)

	_, err = svc.Reject(context.Background(), pending)
	require.NoError(t, err)

	select {
	case ev := <-sub:
		assert.Equal(t, entities.AppointmentEventTransitioned, ev.Type)
		assert.Equal(t, int64(59), ev.AppointmentID)
		assert.Equal(t, entities.AppointmentStatusRejected, ev.Status)
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}
}

func TestAppointmentService_Lists(t *testing.T) {
	svc, api := newAppointmentService(t, patientIdentity)
	filter := entities.AppointmentFilter{Status: entities.AppointmentStatusPending}
	api.On("ListPatientAppointments", mock.Anything, int64(7), filter).Return([]entities.Appointment{*appointmentFor(1, entities.AppointmentStatusPending)}, nil)

	items, err := svc.ListForPatient(context.Background(), filter)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, err = svc.ListForDoctor(context.Background(), entities.AppointmentFilter{})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeForbidden))
}

package services

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/zatekoja/medibook/internal/domain/entities"
	"github.com/zatekoja/medibook/internal/domain/providers"
	"github.com/zatekoja/medibook/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/medibook/pkg/errors"
)

// AppointmentService drives appointment transitions. Every rule is checked
// locally first, so a violation never reaches the backend; the backend stays
// authoritative and its answer replaces the local copy.
type AppointmentService struct {
	api     providers.AppointmentAPI
	session *SessionService
	events  providers.EventBus
	now     func() time.Time
}

// NewAppointmentService creates a new appointment service. events may be nil.
func NewAppointmentService(api providers.AppointmentAPI, session *SessionService, events providers.EventBus) *AppointmentService {
	return &AppointmentService{
		api:     api,
		session: session,
		events:  events,
		now:     time.Now,
	}
}

// SetClock overrides the clock used for past-date checks
func (s *AppointmentService) SetClock(now func() time.Time) {
	s.now = now
}

// Book creates a pending appointment for the logged-in patient
func (s *AppointmentService) Book(ctx context.Context, req entities.BookingRequest) (*entities.Appointment, error) {
	if _, err := s.session.RequirePatient(); err != nil {
		return nil, err
	}
	if err := req.Validate(s.now()); err != nil {
		return nil, err
	}

	ctx, span := observability.StartSpan(ctx, "appointment.book")
	defer span.End()
	observability.SetSpanAttributes(span,
		attribute.Int64("doctor_id", req.DoctorID),
		attribute.String("date", req.Date),
		attribute.String("slot", req.Slot.String()),
	)

	appt, err := s.api.CreateAppointment(ctx, req)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	observability.LoggerFromContext(ctx).Info().
		Int64("appointment_id", appt.ID).
		Int64("doctor_id", req.DoctorID).
		Str("date", req.Date).
		Msg("Appointment booked")
	s.publish(ctx, entities.NewAppointmentEvent(entities.AppointmentEventCreated, appt))
	return appt, nil
}

// Get fetches one appointment
func (s *AppointmentService) Get(ctx context.Context, id int64) (*entities.Appointment, error) {
	if _, err := s.session.RequireIdentity(); err != nil {
		return nil, err
	}
	return s.api.GetAppointment(ctx, id)
}

// ListForPatient lists the logged-in patient's appointments
func (s *AppointmentService) ListForPatient(ctx context.Context, filter entities.AppointmentFilter) ([]entities.Appointment, error) {
	id, err := s.session.RequirePatient()
	if err != nil {
		return nil, err
	}
	return s.api.ListPatientAppointments(ctx, id.PatientID, filter)
}

// ListForDoctor lists the logged-in doctor's agenda
func (s *AppointmentService) ListForDoctor(ctx context.Context, filter entities.AppointmentFilter) ([]entities.Appointment, error) {
	id, err := s.session.RequireDoctor()
	if err != nil {
		return nil, err
	}
	return s.api.ListDoctorAppointments(ctx, id.DoctorID, filter)
}

// Cancel cancels appt on behalf of its patient or its doctor
func (s *AppointmentService) Cancel(ctx context.Context, appt *entities.Appointment) (*entities.Appointment, error) {
	return s.Transition(ctx, appt, entities.AppointmentStatusCancelled)
}

// Confirm accepts a pending appointment
func (s *AppointmentService) Confirm(ctx context.Context, appt *entities.Appointment) (*entities.Appointment, error) {
	return s.Transition(ctx, appt, entities.AppointmentStatusConfirmed)
}

// Reject declines a pending appointment
func (s *AppointmentService) Reject(ctx context.Context, appt *entities.Appointment) (*entities.Appointment, error) {
	return s.Transition(ctx, appt, entities.AppointmentStatusRejected)
}

// Complete closes a confirmed appointment
func (s *AppointmentService) Complete(ctx context.Context, appt *entities.Appointment) (*entities.Appointment, error) {
	return s.Transition(ctx, appt, entities.AppointmentStatusCompleted)
}

// Transition moves appt to status. appt is the caller's last known copy;
// its status is the expected source state.
func (s *AppointmentService) Transition(ctx context.Context, appt *entities.Appointment, to entities.AppointmentStatus) (*entities.Appointment, error) {
	actor, err := s.session.RequireIdentity()
	if err != nil {
		return nil, err
	}
	if err := appt.CheckTransition(to, actor); err != nil {
		return nil, err
	}

	ctx, span := observability.StartSpan(ctx, "appointment.transition")
	defer span.End()
	observability.SetSpanAttributes(span,
		attribute.Int64("appointment_id", appt.ID),
		attribute.String("from", string(appt.Status)),
		attribute.String("to", string(to)),
	)

	var updated *entities.Appointment
	// cancel has its own endpoint for both roles; the doctor endpoint sets every other status
	if to == entities.AppointmentStatusCancelled && actor.IsPatient() {
		updated, err = s.api.CancelAppointment(ctx, appt.ID)
	} else {
		updated, err = s.api.SetStatus(ctx, appt.ID, to)
	}
	if err != nil {
		err = s.detectStale(ctx, appt, err)
		observability.RecordError(span, err)
		return nil, err
	}

	observability.LoggerFromContext(ctx).Info().
		Int64("appointment_id", appt.ID).
		Str("from", string(appt.Status)).
		Str("to", string(updated.Status)).
		Msg("Appointment transitioned")
	s.publish(ctx, entities.NewAppointmentEvent(entities.AppointmentEventTransitioned, updated))
	return updated, nil
}

// EditReason changes the reason of a pending appointment owned by the patient
func (s *AppointmentService) EditReason(ctx context.Context, appt *entities.Appointment, reason string) (*entities.Appointment, error) {
	actor, err := s.session.RequireIdentity()
	if err != nil {
		return nil, err
	}
	if err := appt.CheckReasonEdit(actor); err != nil {
		return nil, err
	}

	updated, err := s.api.UpdateReason(ctx, appt.ID, reason)
	if err != nil {
		return nil, s.detectStale(ctx, appt, err)
	}
	s.publish(ctx, entities.NewAppointmentEvent(entities.AppointmentEventReasonEdited, updated))
	return updated, nil
}

// detectStale turns a failed mutation into a conflict when the appointment
// is no longer in the state the caller saw. A 409 is a conflict outright;
// any other rejection is checked by refetching.
func (s *AppointmentService) detectStale(ctx context.Context, expected *entities.Appointment, err error) error {
	if apperrors.IsType(err, apperrors.ErrorTypeConflict) {
		s.publishStale(ctx, expected)
		return err
	}
	if !apperrors.IsType(err, apperrors.ErrorTypeRejected) {
		return err
	}

	current, getErr := s.api.GetAppointment(ctx, expected.ID)
	if getErr != nil {
		observability.LoggerFromContext(ctx).Debug().Err(getErr).Int64("appointment_id", expected.ID).Msg("Could not refetch appointment after rejection")
		return err
	}
	if current.Status == expected.Status {
		return err
	}

	s.publishStale(ctx, current)
	return &apperrors.AppError{
		Type:    apperrors.ErrorTypeConflict,
		Message: fmt.Sprintf("appointment %d is now %s", expected.ID, current.Status),
		Err:     err,
	}
}

func (s *AppointmentService) publishStale(ctx context.Context, appt *entities.Appointment) {
	observability.LoggerFromContext(ctx).Info().Int64("appointment_id", appt.ID).Msg("Appointment changed on the server")
	s.publish(ctx, entities.NewAppointmentEvent(entities.AppointmentEventStale, appt))
}

func (s *AppointmentService) publish(ctx context.Context, event *entities.AppointmentEvent) {
	publishEvent(ctx, s.events, event)
}

// publishEvent fans event out to every channel it belongs on. Failures are logged only.
func publishEvent(ctx context.Context, bus providers.EventBus, event *entities.AppointmentEvent) {
	if bus == nil {
		return
	}
	for _, channel := range providers.ChannelsFor(event) {
		if err := bus.Publish(ctx, channel, event); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).
				Str("channel", channel).
				Str("event_type", string(event.Type)).
				Msg("Failed to publish event")
		}
	}
}

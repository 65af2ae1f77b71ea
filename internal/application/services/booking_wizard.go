package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/zatekoja/medibook/internal/domain/entities"
	"github.com/zatekoja/medibook/internal/domain/providers"
	apperrors "github.com/zatekoja/medibook/pkg/errors"
)

// WizardStep is the position in the booking flow
type WizardStep int

const (
	StepSelectDoctor   WizardStep = 1
	StepSelectDateTime WizardStep = 2
	StepConfirm        WizardStep = 3
)

func (s WizardStep) String() string {
	switch s {
	case StepSelectDoctor:
		return "select doctor"
	case StepSelectDateTime:
		return "select date and time"
	case StepConfirm:
		return "confirm"
	default:
		return "unknown"
	}
}

// WizardState is a snapshot of the booking wizard
type WizardState struct {
	Step         WizardStep
	Doctor       *entities.Doctor
	Date         string
	Slot         *entities.TimeSlot
	Reason       string
	Availability AvailabilityState
	Submitting   bool
	Err          error
}

// BookingWizard holds the transient selection of the three-step booking
// flow: doctor, then date and slot, then confirmation. A slot is only ever
// held for the date it was offered on.
type BookingWizard struct {
	resolver     *AvailabilityResolver
	appointments *AppointmentService
	navigator    providers.Navigator

	mu         sync.Mutex
	step       WizardStep
	doctor     *entities.Doctor
	date       string
	slot       *entities.TimeSlot
	reason     string
	submitting bool
	err        error
}

// NewBookingWizard creates a wizard at the doctor selection step
func NewBookingWizard(resolver *AvailabilityResolver, appointments *AppointmentService, navigator providers.Navigator) *BookingWizard {
	return &BookingWizard{
		resolver:     resolver,
		appointments: appointments,
		navigator:    navigator,
		step:         StepSelectDoctor,
	}
}

// State returns a snapshot of the wizard
func (w *BookingWizard) State() WizardState {
	w.mu.Lock()
	defer w.mu.Unlock()

	st := WizardState{
		Step:         w.step,
		Date:         w.date,
		Reason:       w.reason,
		Availability: w.resolver.Current(),
		Submitting:   w.submitting,
		Err:          w.err,
	}
	if w.doctor != nil {
		d := *w.doctor
		st.Doctor = &d
	}
	if w.slot != nil {
		s := *w.slot
		st.Slot = &s
	}
	return st
}

// SelectDoctor picks the doctor and moves to date selection.
// Picking a doctor always discards the previous date and slot.
func (w *BookingWizard) SelectDoctor(doctor entities.Doctor) error {
	if doctor.ID <= 0 {
		return apperrors.NewValidationError("a doctor must be selected")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.submitting {
		return apperrors.NewValidationError("a booking is being submitted")
	}

	w.doctor = &doctor
	w.date = ""
	w.slot = nil
	w.err = nil
	w.step = StepSelectDateTime
	w.resolver.Clear()
	return nil
}

// SelectDate picks the date, drops any slot chosen for the previous date and
// asks the resolver for the new date's slots.
func (w *BookingWizard) SelectDate(ctx context.Context, date string) (AvailabilityState, error) {
	w.mu.Lock()
	if w.step != StepSelectDateTime || w.doctor == nil {
		w.mu.Unlock()
		return AvailabilityState{}, apperrors.NewValidationError("select a doctor first")
	}
	date = strings.TrimSpace(date)
	w.date = date
	w.slot = nil
	w.err = nil
	doctorID := w.doctor.ID
	w.mu.Unlock()

	state, err := w.resolver.Resolve(ctx, doctorID, date)
	if err != nil && !errors.Is(err, ErrSuperseded) {
		w.mu.Lock()
		if w.date == date {
			w.err = err
		}
		w.mu.Unlock()
	}
	return state, err
}

// SelectSlot picks a slot offered for the current doctor and date and moves to confirmation
func (w *BookingWizard) SelectSlot(slot entities.TimeSlot) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.step != StepSelectDateTime || w.doctor == nil {
		return apperrors.NewValidationError("select a doctor first")
	}
	if w.date == "" {
		return apperrors.NewValidationError("a date must be selected")
	}
	if !w.resolver.Offers(w.doctor.ID, w.date, slot) {
		return apperrors.NewValidationError("the time slot " + slot.String() + " is not offered on " + w.date)
	}

	w.slot = &slot
	w.err = nil
	w.step = StepConfirm
	return nil
}

// SetReason sets the optional reason sent with the booking
func (w *BookingWizard) SetReason(reason string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reason = strings.TrimSpace(reason)
}

// Back steps back once. Leaving confirmation drops the slot only;
// leaving date selection drops doctor, date and slot.
func (w *BookingWizard) Back() WizardStep {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.submitting {
		return w.step
	}
	switch w.step {
	case StepConfirm:
		w.slot = nil
		w.step = StepSelectDateTime
	case StepSelectDateTime:
		w.doctor = nil
		w.date = ""
		w.slot = nil
		w.step = StepSelectDoctor
		w.resolver.Clear()
	}
	w.err = nil
	return w.step
}

// Reset returns the wizard to its initial state
func (w *BookingWizard) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resetLocked()
}

func (w *BookingWizard) resetLocked() {
	w.step = StepSelectDoctor
	w.doctor = nil
	w.date = ""
	w.slot = nil
	w.reason = ""
	w.err = nil
	w.resolver.Clear()
}

// Submit books the selection. On success the wizard is reset and the user
// is sent to their appointments; on failure everything is kept for a retry.
func (w *BookingWizard) Submit(ctx context.Context) (*entities.Appointment, error) {
	w.mu.Lock()
	if w.submitting {
		w.mu.Unlock()
		return nil, apperrors.NewValidationError("a booking is already being submitted")
	}
	if w.step != StepConfirm || w.doctor == nil || w.date == "" || w.slot == nil {
		w.mu.Unlock()
		return nil, apperrors.NewValidationError("select a doctor, a date and a time slot first")
	}
	req := entities.BookingRequest{
		DoctorID: w.doctor.ID,
		Date:     w.date,
		Slot:     *w.slot,
		Reason:   w.reason,
	}
	w.submitting = true
	w.err = nil
	w.mu.Unlock()

	appt, err := w.appointments.Book(ctx, req)

	w.mu.Lock()
	w.submitting = false
	if err != nil {
		w.err = err
		w.mu.Unlock()
		return nil, err
	}
	w.resetLocked()
	w.mu.Unlock()

	if w.navigator != nil {
		w.navigator.Navigate(providers.RoutePatientAppointments)
	}
	return appt, nil
}

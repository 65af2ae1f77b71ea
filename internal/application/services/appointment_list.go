package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/zatekoja/medibook/internal/domain/entities"
	"github.com/zatekoja/medibook/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/medibook/pkg/errors"
)

// NoticeListRefreshed is shown after a stale-state conflict forced a reload
const NoticeListRefreshed = "the appointment changed in the meantime, the list was refreshed"

type listFetcher func(ctx context.Context, filter entities.AppointmentFilter) ([]entities.Appointment, error)

// appointmentList is the state shared by the patient and doctor lists
type appointmentList struct {
	name    string
	fetch   listFetcher
	service *AppointmentService
	metrics *observability.Metrics

	mu       sync.Mutex
	gen      uint64
	filter   entities.AppointmentFilter
	items    []entities.Appointment
	loaded   bool
	loading  bool
	mutating map[int64]bool
	err      error
	notice   string
}

func newAppointmentList(name string, service *AppointmentService, fetch listFetcher) *appointmentList {
	return &appointmentList{
		name:     name,
		fetch:    fetch,
		service:  service,
		mutating: make(map[int64]bool),
	}
}

// Load fetches the list for the current filter
func (l *appointmentList) Load(ctx context.Context) error {
	l.mu.Lock()
	l.gen++
	gen := l.gen
	filter := l.filter
	l.loading = true
	l.err = nil
	l.mu.Unlock()

	items, err := l.fetch(ctx, filter)

	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen {
		observability.RecordStaleResponse(ctx, l.metrics, l.name)
		return ErrSuperseded
	}
	l.loading = false
	if err != nil {
		l.err = err
		return err
	}
	l.items = items
	l.loaded = true
	return nil
}

// Invalidate refetches with the current filter; the current items stay until the response arrives
func (l *appointmentList) Invalidate(ctx context.Context) error {
	return l.Load(ctx)
}

// SetFilter changes the filter and refetches
func (l *appointmentList) SetFilter(ctx context.Context, filter entities.AppointmentFilter) error {
	if filter.From != "" {
		if _, err := entities.ParseDate(filter.From); err != nil {
			return apperrors.NewValidationError(err.Error())
		}
	}
	if filter.To != "" {
		if _, err := entities.ParseDate(filter.To); err != nil {
			return apperrors.NewValidationError(err.Error())
		}
	}
	if filter.From != "" && filter.To != "" && filter.To < filter.From {
		return apperrors.NewValidationError("the end of the range is before its start")
	}

	l.mu.Lock()
	l.filter = filter
	l.mu.Unlock()
	return l.Load(ctx)
}

// Filter returns the current filter
func (l *appointmentList) Filter() entities.AppointmentFilter {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.filter
}

// Items returns the loaded appointments
func (l *appointmentList) Items() []entities.Appointment {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]entities.Appointment(nil), l.items...)
}

// Find returns the loaded appointment with id
func (l *appointmentList) Find(id int64) (entities.Appointment, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, a := range l.items {
		if a.ID == id {
			return a, true
		}
	}
	return entities.Appointment{}, false
}

func (l *appointmentList) Loading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loading
}

// Mutating reports whether a change to appointment id is in flight
func (l *appointmentList) Mutating(id int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mutating[id]
}

func (l *appointmentList) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Notice returns the last informational message, such as a forced refresh
func (l *appointmentList) Notice() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.notice
}

// mutate runs fn on the loaded copy of appointment id. The backend's answer
// replaces the item and the list is refetched. A stale-state conflict
// reloads the list instead of guessing the new state.
func (l *appointmentList) mutate(ctx context.Context, id int64, fn func(context.Context, *entities.Appointment) (*entities.Appointment, error)) (*entities.Appointment, error) {
	l.mu.Lock()
	if !l.loaded {
		l.mu.Unlock()
		if err := l.Load(ctx); err != nil {
			return nil, err
		}
		l.mu.Lock()
	}
	var current *entities.Appointment
	for i := range l.items {
		if l.items[i].ID == id {
			cp := l.items[i]
			current = &cp
			break
		}
	}
	if current == nil {
		l.mu.Unlock()
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("appointment %d is not in the list", id))
	}
	if l.mutating[id] {
		l.mu.Unlock()
		return nil, apperrors.NewValidationError(fmt.Sprintf("appointment %d is already being updated", id))
	}
	l.mutating[id] = true
	l.notice = ""
	l.err = nil
	l.mu.Unlock()

	updated, err := fn(ctx, current)

	l.mu.Lock()
	delete(l.mutating, id)
	if err != nil {
		l.err = err
		stale := apperrors.IsType(err, apperrors.ErrorTypeConflict)
		if stale {
			l.notice = NoticeListRefreshed
		}
		l.mu.Unlock()

		if stale {
			if reloadErr := l.Load(ctx); reloadErr != nil && !errors.Is(reloadErr, ErrSuperseded) {
				observability.LoggerFromContext(ctx).Warn().Err(reloadErr).Str("list", l.name).Msg("Failed to reload list after conflict")
			}
			l.mu.Lock()
			l.err = err
			l.mu.Unlock()
		}
		return nil, err
	}
	for i := range l.items {
		if l.items[i].ID == id {
			l.items[i] = *updated
		}
	}
	l.mu.Unlock()

	if reloadErr := l.Invalidate(ctx); reloadErr != nil && !errors.Is(reloadErr, ErrSuperseded) {
		observability.LoggerFromContext(ctx).Warn().Err(reloadErr).Str("list", l.name).Msg("Failed to refresh list after update")
	}
	return updated, nil
}

// PatientAppointments is the logged-in patient's appointment list
type PatientAppointments struct {
	*appointmentList
}

// NewPatientAppointments creates the patient's list
func NewPatientAppointments(service *AppointmentService, metrics *observability.Metrics) *PatientAppointments {
	l := newAppointmentList("patient_appointments", service, service.ListForPatient)
	l.metrics = metrics
	return &PatientAppointments{appointmentList: l}
}

// Cancel cancels one of the patient's appointments
func (p *PatientAppointments) Cancel(ctx context.Context, id int64) (*entities.Appointment, error) {
	return p.mutate(ctx, id, p.service.Cancel)
}

// EditReason changes the reason of a pending appointment
func (p *PatientAppointments) EditReason(ctx context.Context, id int64, reason string) (*entities.Appointment, error) {
	return p.mutate(ctx, id, func(ctx context.Context, a *entities.Appointment) (*entities.Appointment, error) {
		return p.service.EditReason(ctx, a, reason)
	})
}

// DoctorAppointments is the logged-in doctor's agenda
type DoctorAppointments struct {
	*appointmentList
}

// NewDoctorAppointments creates the doctor's agenda
func NewDoctorAppointments(service *AppointmentService, metrics *observability.Metrics) *DoctorAppointments {
	l := newAppointmentList("doctor_appointments", service, service.ListForDoctor)
	l.metrics = metrics
	return &DoctorAppointments{appointmentList: l}
}

func (d *DoctorAppointments) Confirm(ctx context.Context, id int64) (*entities.Appointment, error) {
	return d.mutate(ctx, id, d.service.Confirm)
}

func (d *DoctorAppointments) Reject(ctx context.Context, id int64) (*entities.Appointment, error) {
	return d.mutate(ctx, id, d.service.Reject)
}

func (d *DoctorAppointments) Complete(ctx context.Context, id int64) (*entities.Appointment, error) {
	return d.mutate(ctx, id, d.service.Complete)
}

func (d *DoctorAppointments) Cancel(ctx context.Context, id int64) (*entities.Appointment, error) {
	return d.mutate(ctx, id, d.service.Cancel)
}

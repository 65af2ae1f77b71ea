package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/zatekoja/medibook/internal/domain/entities"
	"github.com/zatekoja/medibook/internal/domain/providers"
	"github.com/zatekoja/medibook/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/medibook/pkg/errors"
)

// ErrSuperseded is returned to a caller whose selection was replaced by a
// newer one before its result arrived. The result was discarded.
var ErrSuperseded = errors.New("availability query superseded by a newer selection")

// AvailabilityState is a snapshot of the resolver for the current selection
type AvailabilityState struct {
	DoctorID  int64
	Date      string
	Loading   bool
	Available bool
	Reason    string
	Slots     []entities.TimeSlot
	Err       error
}

// HasSelection reports whether both a doctor and a date are selected
func (s AvailabilityState) HasSelection() bool {
	return s.DoctorID != 0 && s.Date != ""
}

// AvailabilityResolver answers which slots can be booked with a doctor on a
// date. Slot generation belongs to the backend; the resolver only guards the
// selection and drops results for selections that are no longer current.
type AvailabilityResolver struct {
	api      providers.AvailabilityAPI
	debounce time.Duration
	now      func() time.Time
	metrics  *observability.Metrics

	mu    sync.Mutex
	gen   uint64
	state AvailabilityState
}

// ResolverOption configures an AvailabilityResolver
type ResolverOption func(*AvailabilityResolver)

// WithDebounce waits d before querying, abandoning the query if a newer selection arrives meanwhile
func WithDebounce(d time.Duration) ResolverOption {
	return func(r *AvailabilityResolver) { r.debounce = d }
}

// WithResolverClock overrides the clock used to reject past dates
func WithResolverClock(now func() time.Time) ResolverOption {
	return func(r *AvailabilityResolver) { r.now = now }
}

// WithResolverMetrics counts discarded responses
func WithResolverMetrics(m *observability.Metrics) ResolverOption {
	return func(r *AvailabilityResolver) { r.metrics = m }
}

// NewAvailabilityResolver creates a resolver over the availability API
func NewAvailabilityResolver(api providers.AvailabilityAPI, opts ...ResolverOption) *AvailabilityResolver {
	r := &AvailabilityResolver{api: api, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve selects doctorID and date and fetches the day's slots.
// An unset doctor or date clears the state without a call. A past date is
// rejected locally. Only the latest selection's result is ever applied.
func (r *AvailabilityResolver) Resolve(ctx context.Context, doctorID int64, date string) (AvailabilityState, error) {
	r.mu.Lock()
	r.gen++
	gen := r.gen

	if doctorID == 0 || date == "" {
		r.state = AvailabilityState{DoctorID: doctorID, Date: date}
		snapshot := r.snapshotLocked()
		r.mu.Unlock()
		return snapshot, nil
	}

	if err := validateBookableDate(date, r.now()); err != nil {
		r.state = AvailabilityState{DoctorID: doctorID, Date: date, Err: err}
		snapshot := r.snapshotLocked()
		r.mu.Unlock()
		return snapshot, err
	}

	r.state = AvailabilityState{DoctorID: doctorID, Date: date, Loading: true}
	r.mu.Unlock()

	if r.debounce > 0 {
		timer := time.NewTimer(r.debounce)
		select {
		case <-ctx.Done():
			timer.Stop()
			return r.finish(gen, nil, ctx.Err())
		case <-timer.C:
		}
		if !r.isCurrent(gen) {
			return AvailabilityState{}, ErrSuperseded
		}
	}

	ctx, span := observability.StartSpan(ctx, "availability.resolve")
	defer span.End()
	observability.SetSpanAttributes(span,
		attribute.Int64("doctor_id", doctorID),
		attribute.String("date", date),
	)

	day, err := r.api.DayAvailability(ctx, doctorID, date)
	if err != nil {
		observability.RecordError(span, err)
	}
	return r.finish(gen, day, err)
}

// finish applies a result when gen is still the current selection
func (r *AvailabilityResolver) finish(gen uint64, day *entities.DayAvailability, err error) (AvailabilityState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if gen != r.gen {
		observability.RecordStaleResponse(context.Background(), r.metrics, "day_availability")
		return AvailabilityState{}, ErrSuperseded
	}

	doctorID, date := r.state.DoctorID, r.state.Date
	if err != nil {
		r.state = AvailabilityState{DoctorID: doctorID, Date: date, Err: err}
		return r.snapshotLocked(), err
	}

	r.state = AvailabilityState{
		DoctorID:  doctorID,
		Date:      date,
		Available: day.Available,
		Reason:    day.Reason,
		Slots:     day.Slots,
	}
	return r.snapshotLocked(), nil
}

func (r *AvailabilityResolver) isCurrent(gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return gen == r.gen
}

// Current returns a snapshot of the current selection
func (r *AvailabilityResolver) Current() AvailabilityState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Offers reports whether slot was offered for exactly doctorID and date
func (r *AvailabilityResolver) Offers(doctorID int64, date string, slot entities.TimeSlot) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.state
	if s.Loading || s.Err != nil || !s.Available {
		return false
	}
	if s.DoctorID != doctorID || s.Date != date {
		return false
	}
	return entities.DayAvailability{Slots: s.Slots}.HasSlot(slot)
}

// Clear forgets the selection; results still in flight are discarded
func (r *AvailabilityResolver) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	r.state = AvailabilityState{}
}

func (r *AvailabilityResolver) snapshotLocked() AvailabilityState {
	s := r.state
	if s.Slots != nil {
		s.Slots = append([]entities.TimeSlot(nil), s.Slots...)
	}
	return s
}

func validateBookableDate(date string, now time.Time) error {
	if _, err := entities.ParseDate(date); err != nil {
		return apperrors.NewValidationError(err.Error())
	}
	if entities.IsPastDate(date, now) {
		return apperrors.NewValidationError("the date cannot be in the past")
	}
	return nil
}

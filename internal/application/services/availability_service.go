package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/zatekoja/medibook/internal/domain/entities"
	"github.com/zatekoja/medibook/internal/domain/providers"
	"github.com/zatekoja/medibook/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/medibook/pkg/errors"
)

const (
	availabilityVersionKey = "medibook:availability:version:%d"
	calendarCacheKey       = "medibook:calendar:%d:%s:%04d-%02d"
	blockedCacheKey        = "medibook:blocked:%d:%s:%s:%s"

	availabilityCacheTTL = 5 * time.Minute
)

// AvailabilityService lets a doctor manage their own blocked days and view
// the derived month calendar. Reads are cached; every mutation invalidates
// the doctor's cached calendar and blocked lists by bumping a per-doctor
// version stamp, so every process sharing the cache sees the change.
type AvailabilityService struct {
	api     providers.AvailabilityAPI
	session *SessionService
	cache   providers.CacheProvider
	events  providers.EventBus
	now     func() time.Time
}

// NewAvailabilityService creates an availability service. cache and events may be nil.
func NewAvailabilityService(api providers.AvailabilityAPI, session *SessionService, cache providers.CacheProvider, events providers.EventBus) *AvailabilityService {
	return &AvailabilityService{
		api:     api,
		session: session,
		cache:   cache,
		events:  events,
		now:     time.Now,
	}
}

// SetClock overrides the clock used to reject past dates
func (s *AvailabilityService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *AvailabilityService) doctorID() (int64, error) {
	id, err := s.session.RequireDoctor()
	if err != nil {
		return 0, err
	}
	return id.DoctorID, nil
}

func (s *AvailabilityService) checkDate(date string) error {
	if _, err := entities.ParseDate(date); err != nil {
		return apperrors.NewValidationError(err.Error())
	}
	if entities.IsPastDate(date, s.now()) {
		return apperrors.NewValidationError("past days cannot be blocked")
	}
	return nil
}

// BlockDay marks one day unavailable
func (s *AvailabilityService) BlockDay(ctx context.Context, date string) error {
	doctorID, err := s.doctorID()
	if err != nil {
		return err
	}
	if err := s.checkDate(date); err != nil {
		return err
	}
	if err := s.api.BlockDay(ctx, doctorID, date); err != nil {
		return err
	}
	s.changed(ctx, doctorID, entities.AvailabilityEventBlocked)
	return nil
}

// BlockRange marks every day of [start, end] unavailable
func (s *AvailabilityService) BlockRange(ctx context.Context, start, end string) error {
	doctorID, err := s.doctorID()
	if err != nil {
		return err
	}
	if err := entities.ValidateRange(start, end); err != nil {
		return apperrors.NewValidationError(err.Error())
	}
	if err := s.checkDate(start); err != nil {
		return err
	}
	if err := s.api.BlockRange(ctx, doctorID, start, end); err != nil {
		return err
	}
	s.changed(ctx, doctorID, entities.AvailabilityEventBlocked)
	return nil
}

// UnblockDay deletes one blocked record
func (s *AvailabilityService) UnblockDay(ctx context.Context, intervalID int64) error {
	doctorID, err := s.doctorID()
	if err != nil {
		return err
	}
	if intervalID <= 0 {
		return apperrors.NewValidationError("an availability record must be selected")
	}
	if err := s.api.UnblockDay(ctx, intervalID); err != nil {
		return err
	}
	s.changed(ctx, doctorID, entities.AvailabilityEventUnblocked)
	return nil
}

// UnblockRange deletes the blocked records inside [start, end]
func (s *AvailabilityService) UnblockRange(ctx context.Context, start, end string) error {
	doctorID, err := s.doctorID()
	if err != nil {
		return err
	}
	if err := entities.ValidateRange(start, end); err != nil {
		return apperrors.NewValidationError(err.Error())
	}
	if err := s.api.UnblockRange(ctx, doctorID, start, end); err != nil {
		return err
	}
	s.changed(ctx, doctorID, entities.AvailabilityEventUnblocked)
	return nil
}

// ListBlocked returns the doctor's blocked records overlapping [from, to]. Either bound may be empty.
func (s *AvailabilityService) ListBlocked(ctx context.Context, from, to string) ([]entities.BlockedInterval, error) {
	doctorID, err := s.doctorID()
	if err != nil {
		return nil, err
	}
	if from != "" && to != "" {
		if err := entities.ValidateRange(from, to); err != nil {
			return nil, apperrors.NewValidationError(err.Error())
		}
	}

	key := fmt.Sprintf(blockedCacheKey, doctorID, s.version(ctx, doctorID), from, to)
	var cached []entities.BlockedInterval
	if s.getCached(ctx, key, &cached) {
		return cached, nil
	}

	intervals, err := s.api.ListBlocked(ctx, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	s.setCached(ctx, key, intervals)
	return intervals, nil
}

// Calendar returns the doctor's calendar for month of year
func (s *AvailabilityService) Calendar(ctx context.Context, year int, month time.Month) (*entities.MonthCalendar, error) {
	doctorID, err := s.doctorID()
	if err != nil {
		return nil, err
	}
	return s.CalendarFor(ctx, doctorID, year, month)
}

// CalendarFor returns any doctor's calendar for month of year; patients use it to pick a date
func (s *AvailabilityService) CalendarFor(ctx context.Context, doctorID int64, year int, month time.Month) (*entities.MonthCalendar, error) {
	if month < time.January || month > time.December {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid month %d", month))
	}
	if year < 1 {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid year %d", year))
	}

	key := fmt.Sprintf(calendarCacheKey, doctorID, s.version(ctx, doctorID), year, int(month))
	var cached entities.MonthCalendar
	if s.getCached(ctx, key, &cached) {
		return &cached, nil
	}

	cal, err := s.api.MonthCalendar(ctx, doctorID, year, month)
	if err != nil {
		return nil, err
	}
	s.setCached(ctx, key, cal)
	return cal, nil
}

// Invalidate drops every cached calendar and blocked list of doctorID.
// Old entries are left to expire.
func (s *AvailabilityService) Invalidate(ctx context.Context, doctorID int64) {
	if s.cache == nil {
		return
	}
	key := fmt.Sprintf(availabilityVersionKey, doctorID)
	stamp := strconv.FormatInt(time.Now().UnixNano(), 36)
	if err := s.cache.Set(ctx, key, []byte(stamp), 0); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Int64("doctor_id", doctorID).Msg("Failed to invalidate availability cache")
	}
}

// version returns the current cache stamp of doctorID, "0" when none was set
func (s *AvailabilityService) version(ctx context.Context, doctorID int64) string {
	if s.cache == nil {
		return "0"
	}
	data, err := s.cache.Get(ctx, fmt.Sprintf(availabilityVersionKey, doctorID))
	if err != nil || len(data) == 0 {
		return "0"
	}
	return string(data)
}

func (s *AvailabilityService) changed(ctx context.Context, doctorID int64, eventType entities.AppointmentEventType) {
	s.Invalidate(ctx, doctorID)
	publishEvent(ctx, s.events, entities.NewAvailabilityEvent(eventType, doctorID))
}

func (s *AvailabilityService) getCached(ctx context.Context, key string, out interface{}) bool {
	if s.cache == nil {
		return false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, providers.ErrCacheMiss) {
			observability.LoggerFromContext(ctx).Debug().Err(err).Str("key", key).Msg("Availability cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false
	}
	return true
}

func (s *AvailabilityService) setCached(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, availabilityCacheTTL); err != nil {
		observability.LoggerFromContext(ctx).Debug().Err(err).Str("key", key).Msg("Availability cache write failed")
	}
}

package entities

import (
	"fmt"
	"time"
)

// DateLayout is the ISO calendar date format used on the wire and in selections
const DateLayout = "2006-01-02"

// ClockLayout is the wall-clock format of slot boundaries
const ClockLayout = "15:04"

// ParseDate parses an ISO calendar date in the local time zone
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// IsPastDate reports whether date lies strictly before the calendar day of now.
// date must already be a valid ISO date.
func IsPastDate(date string, now time.Time) bool {
	return date < now.Format(DateLayout)
}

// TimeSlot is a bookable wall-clock window produced by the backend
type TimeSlot struct {
	Start string `json:"inicio"`
	End   string `json:"fin"`
}

// String renders the slot as "HH:MM-HH:MM"
func (s TimeSlot) String() string {
	return s.Start + "-" + s.End
}

// DayAvailability answers "what can be booked with doctor D on date X"
type DayAvailability struct {
	DoctorID  int64      `json:"doctor_id"`
	Date      string     `json:"date"`
	Available bool       `json:"available"`
	Reason    string     `json:"reason,omitempty"`
	Slots     []TimeSlot `json:"slots"`
}

// HasSlot reports whether slot is one of the offered slots
func (a DayAvailability) HasSlot(slot TimeSlot) bool {
	for _, s := range a.Slots {
		if s == slot {
			return true
		}
	}
	return false
}

// BlockedInterval marks a doctor unavailable from Start to End inclusive.
// A single blocked day has Start == End.
type BlockedInterval struct {
	ID        int64     `json:"id"`
	DoctorID  int64     `json:"doctor_id"`
	Start     string    `json:"start"`
	End       string    `json:"end"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Covers reports whether date falls inside the interval
func (b BlockedInterval) Covers(date string) bool {
	return b.Start <= date && date <= b.End
}

// IsSingleDay reports whether the interval spans one date
func (b BlockedInterval) IsSingleDay() bool {
	return b.Start == b.End
}

// BlockingInterval returns the first interval covering date, if any
func BlockingInterval(intervals []BlockedInterval, date string) (BlockedInterval, bool) {
	for _, b := range intervals {
		if b.Covers(date) {
			return b, true
		}
	}
	return BlockedInterval{}, false
}

// ValidateRange checks both dates and their order
func ValidateRange(start, end string) error {
	s, err := ParseDate(start)
	if err != nil {
		return err
	}
	e, err := ParseDate(end)
	if err != nil {
		return err
	}
	if e.Before(s) {
		return fmt.Errorf("range end %s is before start %s", end, start)
	}
	return nil
}

// CalendarDay is one derived cell of a doctor's month calendar
type CalendarDay struct {
	Date              string       `json:"date"`
	Weekday           time.Weekday `json:"weekday"`
	Available         bool         `json:"available"`
	BlockedIntervalID *int64       `json:"blocked_interval_id,omitempty"`
}

// MonthCalendar is the availability of a doctor over one month
type MonthCalendar struct {
	DoctorID       int64         `json:"doctor_id"`
	Year           int           `json:"year"`
	Month          time.Month    `json:"month"`
	Days           []CalendarDay `json:"days"`
	DaysTotal      int           `json:"days_total"`
	AvailableTotal int           `json:"available_total"`
	BlockedTotal   int           `json:"blocked_total"`
}

// Day returns the cell for day-of-month n (1-based)
func (c MonthCalendar) Day(n int) (CalendarDay, bool) {
	if n < 1 || n > len(c.Days) {
		return CalendarDay{}, false
	}
	return c.Days[n-1], true
}

// BuildMonthCalendar merges a doctor's blocked intervals over every date of the month
func BuildMonthCalendar(doctorID int64, year int, month time.Month, intervals []BlockedInterval) MonthCalendar {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.Local)
	daysInMonth := first.AddDate(0, 1, -1).Day()

	cal := MonthCalendar{
		DoctorID:  doctorID,
		Year:      year,
		Month:     month,
		Days:      make([]CalendarDay, 0, daysInMonth),
		DaysTotal: daysInMonth,
	}

	for d := 0; d < daysInMonth; d++ {
		day := first.AddDate(0, 0, d)
		date := day.Format(DateLayout)
		cell := CalendarDay{Date: date, Weekday: day.Weekday(), Available: true}
		if b, ok := BlockingInterval(intervals, date); ok {
			id := b.ID
			cell.Available = false
			cell.BlockedIntervalID = &id
			cal.BlockedTotal++
		} else {
			cal.AvailableTotal++
		}
		cal.Days = append(cal.Days, cell)
	}

	return cal
}

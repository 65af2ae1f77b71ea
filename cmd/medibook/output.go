package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/zatekoja/medibook/internal/domain/entities"
	apperrors "github.com/zatekoja/medibook/pkg/errors"
)

func newTable(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
}

func printDoctors(out io.Writer, doctors []entities.Doctor) {
	if len(doctors) == 0 {
		fmt.Fprintln(out, "No doctors found.")
		return
	}
	w := newTable(out)
	fmt.Fprintln(w, "ID\tNAME\tSPECIALTY")
	for _, d := range doctors {
		fmt.Fprintf(w, "%d\t%s\t%s\n", d.ID, d.FullName(), d.Specialty)
	}
	w.Flush()
}

func printDoctor(out io.Writer, d *entities.Doctor) {
	fmt.Fprintf(out, "Dr. %s (#%d)\n", d.FullName(), d.ID)
	fmt.Fprintf(out, "specialty: %s\n", d.Specialty)
	if d.Description != "" {
		fmt.Fprintf(out, "about: %s\n", d.Description)
	}
	if d.Phone != "" {
		fmt.Fprintf(out, "phone: %s\n", d.Phone)
	}
	if d.Email != "" {
		fmt.Fprintf(out, "email: %s\n", d.Email)
	}
}

func printSlots(out io.Writer, date string, day *entities.DayAvailability) {
	if !day.Available {
		reason := day.Reason
		if reason == "" {
			reason = "not available"
		}
		fmt.Fprintf(out, "%s: %s\n", date, reason)
		return
	}
	if len(day.Slots) == 0 {
		fmt.Fprintf(out, "%s: no free slots\n", date)
		return
	}
	fmt.Fprintf(out, "%s:\n", date)
	for _, s := range day.Slots {
		fmt.Fprintf(out, "  %s\n", s)
	}
}

// printAppointments renders a list; counterpart names the doctor for patients and the patient for doctors
func printAppointments(out io.Writer, appts []entities.Appointment, forDoctor bool) {
	if len(appts) == 0 {
		fmt.Fprintln(out, "No appointments.")
		return
	}
	w := newTable(out)
	if forDoctor {
		fmt.Fprintln(w, "ID\tDATE\tTIME\tSTATUS\tPATIENT\tREASON")
	} else {
		fmt.Fprintln(w, "ID\tDATE\tTIME\tSTATUS\tDOCTOR\tREASON")
	}
	for i := range appts {
		a := &appts[i]
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", a.ID, a.Date(), a.Slot(), a.Status, counterpart(a, forDoctor), a.Reason)
	}
	w.Flush()
}

func counterpart(a *entities.Appointment, forDoctor bool) string {
	if forDoctor {
		if a.Patient != nil {
			return strings.TrimSpace(a.Patient.FirstName + " " + a.Patient.LastName)
		}
		return "#" + strconv.FormatInt(a.PatientID, 10)
	}
	if a.Doctor != nil {
		return a.Doctor.FullName()
	}
	return "#" + strconv.FormatInt(a.DoctorID, 10)
}

func printAppointment(out io.Writer, a *entities.Appointment) {
	fmt.Fprintf(out, "Appointment #%d on %s at %s is %s\n", a.ID, a.Date(), a.Slot(), a.Status)
}

func printBlocked(out io.Writer, intervals []entities.BlockedInterval) {
	if len(intervals) == 0 {
		fmt.Fprintln(out, "No blocked days.")
		return
	}
	w := newTable(out)
	fmt.Fprintln(w, "ID\tFROM\tTO")
	for _, b := range intervals {
		fmt.Fprintf(w, "%d\t%s\t%s\n", b.ID, b.Start, b.End)
	}
	w.Flush()
}

// printCalendar draws a Monday-first month grid; blocked days are marked with x
func printCalendar(out io.Writer, cal *entities.MonthCalendar) {
	fmt.Fprintf(out, "%s %d  (%d available, %d blocked)\n", cal.Month, cal.Year, cal.AvailableTotal, cal.BlockedTotal)
	fmt.Fprintln(out, " Mo  Tu  We  Th  Fr  Sa  Su")
	if len(cal.Days) == 0 {
		return
	}
	offset := (int(cal.Days[0].Weekday) + 6) % 7
	var line strings.Builder
	line.WriteString(strings.Repeat("    ", offset))
	for i, day := range cal.Days {
		mark := " "
		if !day.Available {
			mark = "x"
		}
		fmt.Fprintf(&line, "%3d%s", i+1, mark)
		if day.Weekday == time.Sunday {
			fmt.Fprintln(out, strings.TrimRight(line.String(), " "))
			line.Reset()
		}
	}
	if line.Len() > 0 {
		fmt.Fprintln(out, strings.TrimRight(line.String(), " "))
	}
}

// parseID reads a positive numeric identifier argument
func parseID(arg, what string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(arg, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError(fmt.Sprintf("%q is not a valid %s id", arg, what))
	}
	return id, nil
}

// parseMonth reads YYYY-MM, defaulting to the month of now
func parseMonth(arg string, now time.Time) (int, time.Month, error) {
	if arg == "" {
		return now.Year(), now.Month(), nil
	}
	t, err := time.Parse("2006-01", arg)
	if err != nil {
		return 0, 0, apperrors.NewValidationError(fmt.Sprintf("%q is not a month, expected YYYY-MM", arg))
	}
	return t.Year(), t.Month(), nil
}

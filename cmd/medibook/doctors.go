package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/zatekoja/medibook/internal/domain/entities"
	apperrors "github.com/zatekoja/medibook/pkg/errors"
)

func (c *cli) doctorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctors",
		Short: "List doctors, optionally by specialty",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			specialty, _ := cmd.Flags().GetString("specialty")
			dir := c.app.directory
			if specialty != "" {
				if err := dir.SetSpecialty(cmd.Context(), specialty); err != nil {
					return err
				}
			} else if err := dir.Load(cmd.Context()); err != nil {
				return err
			}

			printDoctors(c.out, dir.Doctors())
			if specialty == "" {
				fmt.Fprintf(c.out, "\nSpecialties: %s\n", strings.Join(dir.Specialties(), ", "))
			}
			return nil
		},
	}
	cmd.Flags().String("specialty", "", "Only show doctors of this specialty")
	return cmd
}

func (c *cli) doctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Doctor details",
	}

	showCmd := &cobra.Command{
		Use:   "show <doctor-id>",
		Short: "Show a doctor's profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "doctor")
			if err != nil {
				return err
			}
			doctor, err := c.app.directory.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			printDoctor(c.out, doctor)
			return nil
		},
	}

	calendarCmd := &cobra.Command{
		Use:   "calendar <doctor-id> [YYYY-MM]",
		Short: "Show which days of a month a doctor is available",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "doctor")
			if err != nil {
				return err
			}
			month := ""
			if len(args) == 2 {
				month = args[1]
			}
			year, m, err := parseMonth(month, time.Now())
			if err != nil {
				return err
			}
			cal, err := c.app.availability.CalendarFor(cmd.Context(), id, year, m)
			if err != nil {
				return err
			}
			printCalendar(c.out, cal)
			return nil
		},
	}

	cmd.AddCommand(showCmd, calendarCmd)
	return cmd
}

func (c *cli) slotsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "slots <doctor-id> <YYYY-MM-DD>",
		Short: "Show a doctor's free time slots on a date",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "doctor")
			if err != nil {
				return err
			}
			state, err := c.app.resolver.Resolve(cmd.Context(), id, args[1])
			if err != nil {
				return err
			}
			printSlots(c.out, state.Date, &entities.DayAvailability{
				DoctorID:  state.DoctorID,
				Date:      state.Date,
				Available: state.Available,
				Reason:    state.Reason,
				Slots:     state.Slots,
			})
			return nil
		},
	}
}

// matchSlot finds the offered slot named by arg, either "HH:MM" or "HH:MM-HH:MM"
func matchSlot(arg string, offered []entities.TimeSlot) (entities.TimeSlot, bool) {
	arg = strings.TrimSpace(arg)
	for _, s := range offered {
		if arg == s.Start || arg == s.String() {
			return s, true
		}
	}
	return entities.TimeSlot{}, false
}

func (c *cli) bookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Book an appointment with a doctor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := c.app.session.RequirePatient(); err != nil {
				return err
			}
			doctorID, _ := cmd.Flags().GetInt64("doctor")
			date, _ := cmd.Flags().GetString("date")
			slotArg, _ := cmd.Flags().GetString("slot")
			reason, _ := cmd.Flags().GetString("reason")

			if doctorID <= 0 {
				return apperrors.NewValidationError("--doctor is required")
			}
			doctor, err := c.app.directory.Get(ctx, doctorID)
			if err != nil {
				return err
			}

			wizard := c.app.wizard
			if err := wizard.SelectDoctor(*doctor); err != nil {
				return err
			}
			state, err := wizard.SelectDate(ctx, date)
			if err != nil {
				return err
			}
			if !state.Available {
				return apperrors.NewValidationError(fmt.Sprintf("Dr. %s is not available on %s: %s", doctor.FullName(), date, state.Reason))
			}
			slot, ok := matchSlot(slotArg, state.Slots)
			if !ok {
				printSlots(c.out, date, &entities.DayAvailability{Available: true, Slots: state.Slots})
				return apperrors.NewValidationError(fmt.Sprintf("%q is not one of the free slots", slotArg))
			}
			if err := wizard.SelectSlot(slot); err != nil {
				return err
			}
			wizard.SetReason(reason)

			appt, err := wizard.Submit(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Booked appointment #%d with Dr. %s on %s at %s (%s)\n",
				appt.ID, doctor.FullName(), appt.Date(), appt.Slot(), appt.Status)
			return nil
		},
	}
	cmd.Flags().Int64("doctor", 0, "Doctor id")
	cmd.Flags().String("date", "", "Date, YYYY-MM-DD")
	cmd.Flags().String("slot", "", "Start time of a free slot, HH:MM")
	cmd.Flags().String("reason", "", "Reason for the visit")
	return cmd
}

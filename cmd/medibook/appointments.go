package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zatekoja/medibook/internal/domain/entities"
	apperrors "github.com/zatekoja/medibook/pkg/errors"
)

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("status", "", "Only this status: pending, confirmed, completed, cancelled, rejected")
	cmd.Flags().String("from", "", "Earliest date, YYYY-MM-DD")
	cmd.Flags().String("to", "", "Latest date, YYYY-MM-DD")
}

func filterFromFlags(cmd *cobra.Command) (entities.AppointmentFilter, error) {
	status, _ := cmd.Flags().GetString("status")
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")

	filter := entities.AppointmentFilter{From: from, To: to}
	if status != "" {
		s, err := entities.ParseAppointmentStatus(status)
		if err != nil {
			return filter, apperrors.NewValidationError(err.Error())
		}
		filter.Status = s
	}
	return filter, nil
}

// listView is what the appointment commands need from a patient or doctor list
type listView interface {
	SetFilter(ctx context.Context, filter entities.AppointmentFilter) error
	Items() []entities.Appointment
	Notice() string
}

// mutation runs one list operation on the appointment named by the single argument
func (c *cli) mutation(use, short string, list func() listView, op func(cmd *cobra.Command, id int64) (*entities.Appointment, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <appointment-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "appointment")
			if err != nil {
				return err
			}
			appt, err := op(cmd, id)
			if err != nil {
				if notice := list().Notice(); notice != "" {
					fmt.Fprintln(c.out, notice)
				}
				return err
			}
			printAppointment(c.out, appt)
			return nil
		},
	}
}

func (c *cli) listCmd(use, short string, forDoctor bool, list func() listView) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := filterFromFlags(cmd)
			if err != nil {
				return err
			}
			l := list()
			if err := l.SetFilter(cmd.Context(), filter); err != nil {
				return err
			}
			printAppointments(c.out, l.Items(), forDoctor)
			return nil
		},
	}
	addFilterFlags(cmd)
	return cmd
}

func (c *cli) appointmentsCmd() *cobra.Command {
	patientList := func() listView { return c.app.patientList }
	cmd := c.listCmd("appointments", "List your appointments", false, patientList)

	cancelCmd := c.mutation("cancel", "Cancel a pending appointment", patientList, func(cmd *cobra.Command, id int64) (*entities.Appointment, error) {
		return c.app.patientList.Cancel(cmd.Context(), id)
	})

	editCmd := c.mutation("edit", "Change the reason of a pending appointment", patientList, func(cmd *cobra.Command, id int64) (*entities.Appointment, error) {
		reason, _ := cmd.Flags().GetString("reason")
		return c.app.patientList.EditReason(cmd.Context(), id, reason)
	})
	editCmd.Flags().String("reason", "", "New reason for the visit")

	cmd.AddCommand(cancelCmd, editCmd)
	return cmd
}

func (c *cli) agendaCmd() *cobra.Command {
	agenda := func() listView { return c.app.agenda }
	cmd := c.listCmd("agenda", "List the appointments booked with you", true, agenda)

	cmd.AddCommand(
		c.mutation("confirm", "Accept a pending appointment", agenda, func(cmd *cobra.Command, id int64) (*entities.Appointment, error) {
			return c.app.agenda.Confirm(cmd.Context(), id)
		}),
		c.mutation("reject", "Decline a pending appointment", agenda, func(cmd *cobra.Command, id int64) (*entities.Appointment, error) {
			return c.app.agenda.Reject(cmd.Context(), id)
		}),
		c.mutation("complete", "Mark a confirmed appointment as held", agenda, func(cmd *cobra.Command, id int64) (*entities.Appointment, error) {
			return c.app.agenda.Complete(cmd.Context(), id)
		}),
		c.mutation("cancel", "Cancel a pending or confirmed appointment", agenda, func(cmd *cobra.Command, id int64) (*entities.Appointment, error) {
			return c.app.agenda.Cancel(cmd.Context(), id)
		}),
	)
	return cmd
}

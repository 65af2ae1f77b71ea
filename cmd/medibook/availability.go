package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zatekoja/medibook/internal/domain/entities"
	apperrors "github.com/zatekoja/medibook/pkg/errors"
)

func (c *cli) availabilityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "availability",
		Short: "Manage the days you do not see patients",
	}

	blockCmd := &cobra.Command{
		Use:   "block <YYYY-MM-DD>",
		Short: "Block one day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.availability.BlockDay(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Blocked %s\n", args[0])
			return nil
		},
	}

	blockRangeCmd := &cobra.Command{
		Use:   "block-range <from> <to>",
		Short: "Block every day of a date range",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.availability.BlockRange(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Blocked %s to %s\n", args[0], args[1])
			return nil
		},
	}

	unblockCmd := &cobra.Command{
		Use:   "unblock <record-id>",
		Short: "Remove one blocked record, as listed by `availability list`",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "availability record")
			if err != nil {
				return err
			}
			if err := c.app.availability.UnblockDay(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Removed blocked record #%d\n", id)
			return nil
		},
	}

	unblockRangeCmd := &cobra.Command{
		Use:   "unblock-range <from> <to>",
		Short: "Remove the blocked records inside a date range",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.availability.UnblockRange(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Unblocked %s to %s\n", args[0], args[1])
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List your blocked days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, _ := cmd.Flags().GetString("from")
			to, _ := cmd.Flags().GetString("to")
			intervals, err := c.app.availability.ListBlocked(cmd.Context(), from, to)
			if err != nil {
				return err
			}
			printBlocked(c.out, intervals)
			return nil
		},
	}
	listCmd.Flags().String("from", "", "Earliest date, YYYY-MM-DD")
	listCmd.Flags().String("to", "", "Latest date, YYYY-MM-DD")

	calendarCmd := &cobra.Command{
		Use:   "calendar [YYYY-MM]",
		Short: "Show your month calendar",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			month := ""
			if len(args) == 1 {
				month = args[0]
			}
			year, m, err := parseMonth(month, time.Now())
			if err != nil {
				return err
			}
			cal, err := c.app.availability.Calendar(cmd.Context(), year, m)
			if err != nil {
				return err
			}
			printCalendar(c.out, cal)
			return nil
		},
	}

	cmd.AddCommand(blockCmd, blockRangeCmd, unblockCmd, unblockRangeCmd, listCmd, calendarCmd)
	return cmd
}

func (c *cli) profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show your doctor profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doctor, err := c.app.profile.Get(cmd.Context())
			if err != nil {
				return err
			}
			printDoctor(c.out, doctor)
			return nil
		},
	}

	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Change your public profile; only the flags given are updated",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var update entities.DoctorProfileUpdate
			for flag, field := range map[string]**string{
				"first-name":  &update.FirstName,
				"last-name":   &update.LastName,
				"specialty":   &update.Specialty,
				"description": &update.Description,
				"phone":       &update.Phone,
				"email":       &update.Email,
			} {
				if cmd.Flags().Changed(flag) {
					v, _ := cmd.Flags().GetString(flag)
					*field = &v
				}
			}
			if update.IsEmpty() {
				return apperrors.NewValidationError("give at least one field to change")
			}

			doctor, err := c.app.profile.Update(cmd.Context(), update)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, "Profile updated.")
			printDoctor(c.out, doctor)
			return nil
		},
	}
	updateCmd.Flags().String("first-name", "", "First name")
	updateCmd.Flags().String("last-name", "", "Last name")
	updateCmd.Flags().String("specialty", "", "Medical specialty")
	updateCmd.Flags().String("description", "", "Short public description")
	updateCmd.Flags().String("phone", "", "Phone number")
	updateCmd.Flags().String("email", "", "Contact email")

	cmd.AddCommand(updateCmd)
	return cmd
}

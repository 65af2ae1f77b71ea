package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zatekoja/medibook/internal/domain/entities"
)

// passwordFlag reads --password, falling back to MEDIBOOK_PASSWORD
func passwordFlag(cmd *cobra.Command) string {
	password, _ := cmd.Flags().GetString("password")
	if password == "" {
		password = os.Getenv("MEDIBOOK_PASSWORD")
	}
	return password
}

func (c *cli) loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in as a patient or a doctor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			id, err := c.app.session.Login(cmd.Context(), entities.Credentials{
				Email:    email,
				Password: passwordFlag(cmd),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Logged in as %s (%s)\n", id.DisplayName(), id.Role)
			c.app.navigate(c.app.session.HomeRoute())
			return nil
		},
	}
	cmd.Flags().String("email", "", "Account email")
	cmd.Flags().String("password", "", "Account password (or MEDIBOOK_PASSWORD)")
	return cmd
}

func (c *cli) registerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a new account",
	}
	cmd.PersistentFlags().String("email", "", "Account email")
	cmd.PersistentFlags().String("password", "", "Account password, at least 6 characters (or MEDIBOOK_PASSWORD)")
	cmd.PersistentFlags().String("first-name", "", "First name")
	cmd.PersistentFlags().String("last-name", "", "Last name")
	cmd.PersistentFlags().String("phone", "", "Phone number")

	patientCmd := &cobra.Command{
		Use:   "patient",
		Short: "Register as a patient",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			firstName, _ := cmd.Flags().GetString("first-name")
			lastName, _ := cmd.Flags().GetString("last-name")
			phone, _ := cmd.Flags().GetString("phone")

			id, err := c.app.session.RegisterPatient(cmd.Context(), entities.PatientRegistration{
				Email:     email,
				Password:  passwordFlag(cmd),
				FirstName: firstName,
				LastName:  lastName,
				Phone:     phone,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Welcome, %s. Your patient account is ready.\n", id.DisplayName())
			return nil
		},
	}

	doctorCmd := &cobra.Command{
		Use:   "doctor",
		Short: "Register as a doctor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			firstName, _ := cmd.Flags().GetString("first-name")
			lastName, _ := cmd.Flags().GetString("last-name")
			phone, _ := cmd.Flags().GetString("phone")
			specialty, _ := cmd.Flags().GetString("specialty")
			description, _ := cmd.Flags().GetString("description")

			id, err := c.app.session.RegisterDoctor(cmd.Context(), entities.DoctorRegistration{
				Email:       email,
				Password:    passwordFlag(cmd),
				FirstName:   firstName,
				LastName:    lastName,
				Phone:       phone,
				Specialty:   specialty,
				Description: description,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Welcome, Dr. %s. Your %s practice is ready.\n", id.DisplayName(), id.Specialty)
			return nil
		},
	}
	doctorCmd.Flags().String("specialty", "", "Medical specialty")
	doctorCmd.Flags().String("description", "", "Short public description")

	cmd.AddCommand(patientCmd, doctorCmd)
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.session.Logout(cmd.Context())
		},
	}
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := c.app.session.RequireIdentity()
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "%s <%s>\nrole: %s\n", id.DisplayName(), id.Email, id.Role)
			switch {
			case id.IsPatient():
				fmt.Fprintf(c.out, "patient id: %d\n", id.PatientID)
			case id.IsDoctor():
				fmt.Fprintf(c.out, "doctor id: %d\nspecialty: %s\n", id.DoctorID, id.Specialty)
			}
			return nil
		},
	}
}

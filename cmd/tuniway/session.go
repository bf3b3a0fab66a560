package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tuniway/tuniway-web/token"
	"github.com/tuniway/tuniway-web/users"
)

// readPassword takes the flag, then TUNIWAY_PASSWORD, then a line of stdin.
func readPassword(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if env := os.Getenv("TUNIWAY_PASSWORD"); env != "" {
		return env, nil
	}
	fmt.Fprint(os.Stderr, "Password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func loginCmd(load func() (*app, error)) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "login <username|email>",
		Short: "Sign in and store the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPassword(password)
			if err != nil {
				return err
			}

			a, err := load()
			if err != nil {
				return err
			}
			defer a.Close()

			record, err := a.manager.Login(cmd.Context(), users.Credentials{Username: args[0], Password: pw})
			if err != nil {
				return err
			}
			success("Logged in as %s (%s)", record.Username, record.Role)
			info("Landing view: %s", record.Role.LandingPath())
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when empty)")

	return cmd
}

func registerCmd(load func() (*app, error)) *cobra.Command {
	var (
		email    string
		password string
		role     string
	)

	cmd := &cobra.Command{
		Use:   "register <username>",
		Short: "Create an account and store the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := users.Registration{Username: args[0], Email: email}
			if role != "" {
				r, err := users.ParseRole(role)
				if err != nil {
					return err
				}
				reg.Role = r
			}

			pw, err := readPassword(password)
			if err != nil {
				return err
			}
			if err := users.ValidatePassword(pw); err != nil {
				return err
			}
			reg.Password = pw

			a, err := load()
			if err != nil {
				return err
			}
			defer a.Close()

			record, err := a.manager.Register(cmd.Context(), reg)
			if err != nil {
				return err
			}
			success("Registered %s (id %d, %s)", record.Username, record.ID, record.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when empty)")
	cmd.Flags().StringVar(&role, "role", "", "CLIENT or GUIDE (default CLIENT)")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func logoutCmd(load func() (*app, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.manager.Logout(); err != nil {
				return err
			}
			success("Logged out")
			return nil
		},
	}
}

func whoamiCmd(load func() (*app, error)) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			defer a.Close()

			record, ok := a.manager.Current()
			if !ok {
				warn("Not logged in")
				return nil
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(record)
			}

			success("%s <%s>", record.Username, record.Email)
			info("ID:    %d", record.ID)
			info("Role:  %s", record.Role)
			if record.ProfilePicture != nil {
				info("Photo: %s", *record.ProfilePicture)
			}

			raw, _ := a.manager.Token()
			claims, err := token.Inspect(raw)
			switch {
			case errors.Is(err, token.ErrEmptyToken):
				warn("No token stored")
			case err != nil:
				info("Token: opaque")
			default:
				describeExpiry(claims, time.Now())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the stored record as JSON")

	return cmd
}

func describeExpiry(claims token.Claims, now time.Time) {
	left, ok := claims.Remaining(now)
	switch {
	case !ok:
		info("Token: no expiry")
	case left == 0:
		warn("Token expired at %s, log in again", claims.ExpiresAt.Format(time.RFC3339))
	default:
		info("Token: expires in %s", left.Round(time.Minute))
	}
}

func profileCmd(load func() (*app, error)) *cobra.Command {
	var (
		username string
		email    string
		picture  string
	)

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Update the profile of the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch users.Patch
			if cmd.Flags().Changed("username") {
				patch.Username = &username
			}
			if cmd.Flags().Changed("email") {
				patch.Email = &email
			}
			if cmd.Flags().Changed("picture") {
				patch.ProfilePicture = &picture
			}
			if patch.Empty() {
				return errors.New("nothing to update: pass --username, --email or --picture")
			}

			a, err := load()
			if err != nil {
				return err
			}
			defer a.Close()

			record, ok := a.manager.Current()
			if !ok {
				return errors.New("not logged in")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), a.config.GetBackendTimeout())
			defer cancel()
			saved, err := a.backend.UpdateProfile(ctx, record.ID, patch)
			if err != nil {
				return err
			}
			updated, ok, err := a.manager.UpdateCurrentFor(record.ID, users.PatchFrom(saved))
			if err != nil {
				return err
			}
			if !ok {
				warn("Profile saved, but the session changed before it could be updated")
				return nil
			}
			success("Profile updated for %s", updated.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "new username")
	cmd.Flags().StringVar(&email, "email", "", "new email")
	cmd.Flags().StringVar(&picture, "picture", "", "profile picture URL, empty to remove")

	return cmd
}

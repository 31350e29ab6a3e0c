package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"myday/backend"
)

type userResponse struct {
	Action string        `json:"action"`
	User   *backend.User `json:"user,omitempty"`
	Result string        `json:"result"`
}

// newSignupCmd creates the 'signup' command
func newSignupCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signup <username>",
		Short: "Create an account and sign in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			email, _ := cmd.Flags().GetString("email")
			name, _ := cmd.Flags().GetString("name")
			user, err := a.session.SignUp(context.Background(), backend.User{
				Username: args[0],
				Email:    email,
				FullName: name,
			})
			if err != nil {
				return err
			}
			return a.userDone("signup", user, "Signed up and signed in as "+user.Username)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Flags().String("email", "", "Email address")
	cmd.Flags().String("name", "", "Full name")
	return cmd
}

// newLoginCmd creates the 'login' command
func newLoginCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "login <username>",
		Short: "Sign in as an existing user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			user, err := a.session.SignIn(context.Background(), args[0])
			if err != nil {
				return err
			}
			return a.userDone("login", user, "Signed in as "+user.Username)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// newLogoutCmd creates the 'logout' command
func newLogoutCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.session.SignOut(); err != nil {
				return err
			}
			return a.userDone("logout", nil, "Signed out")
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// newWhoamiCmd creates the 'whoami' command
func newWhoamiCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if _, ok := a.session.Identity(); !ok {
				if a.jsonOutput() {
					return writeJSON(a.stdout, userResponse{Action: "whoami", Result: ResultInfoOnly})
				}
				_, _ = fmt.Fprintln(a.stdout, "Not signed in")
				a.printResult(ResultInfoOnly)
				return nil
			}

			user, err := a.session.User(context.Background())
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return writeJSON(a.stdout, userResponse{Action: "whoami", User: user, Result: ResultInfoOnly})
			}
			line := user.Username
			if user.FullName != "" {
				line += " (" + user.FullName + ")"
			}
			if user.Email != "" {
				line += " <" + user.Email + ">"
			}
			_, _ = fmt.Fprintln(a.stdout, line)
			a.printResult(ResultInfoOnly)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

func (a *app) userDone(action string, user *backend.User, message string) error {
	if a.jsonOutput() {
		return writeJSON(a.stdout, userResponse{Action: action, User: user, Result: ResultActionCompleted})
	}
	_, _ = fmt.Fprintln(a.stdout, message)
	a.printResult(ResultActionCompleted)
	return nil
}

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"go-fintrack/internal/model"
	"go-fintrack/internal/session"
	"go-fintrack/pkg/apierror"
)

func (a *cliApp) loginCommand() *cobra.Command {
	var (
		req      model.LoginRequest
		remember bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if !a.signedOut(ctx, out) {
				return nil
			}

			if req.Password == "" {
				password, err := prompt(cmd, "Password: ")
				if err != nil {
					return err
				}
				req.Password = password
			}
			req.Remember = remember

			resp, err := a.env.Session.Login(ctx, req)
			if err != nil {
				if userID, ok := apierror.UnverifiedUserID(err); ok {
					fmt.Fprintf(out, "Email not verified. Check your inbox, then run:\n  fintrack verify --user-id %d --otp <code>\n", userID)
				}
				return err
			}

			printSignedIn(out, resp, remember)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Email, "email", "", "account email")
	cmd.Flags().StringVar(&req.Password, "password", "", "account password (prompted when omitted)")
	cmd.Flags().BoolVar(&remember, "remember", false, "keep the session after this login ends")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *cliApp) googleLoginCommand() *cobra.Command {
	var remember, noBrowser bool

	cmd := &cobra.Command{
		Use:   "google-login",
		Short: "Sign in with a Google account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if a.env.Federated == nil {
				return errors.New("google sign-in is not configured; set GOOGLE_CLIENT_ID")
			}
			if !a.signedOut(ctx, out) {
				return nil
			}

			provider, err := a.env.Federated(ctx)
			if err != nil {
				return err
			}

			open := func(url string) error {
				fmt.Fprintf(out, "Open this URL to continue:\n  %s\n", url)
				if noBrowser {
					return nil
				}
				if err := openBrowser(url); err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), "could not open a browser:", err)
				}
				return nil
			}

			identity, err := provider.Login(ctx, open)
			if err != nil {
				return err
			}

			resp, err := a.env.Session.FederatedLogin(ctx, identity.RawIDToken, remember)
			if err != nil {
				return err
			}

			printSignedIn(out, resp, remember)
			return nil
		},
	}

	cmd.Flags().BoolVar(&remember, "remember", false, "keep the session after this login ends")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "print the sign-in URL instead of opening a browser")
	return cmd
}

func (a *cliApp) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a.env.Session.Initialize(ctx)
			a.env.Session.Logout(ctx)
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func (a *cliApp) whoamiCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "whoami",
		Aliases: []string{"status"},
		Short:   "Show the current session",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			state := a.env.Session.Initialize(cmd.Context())
			out := cmd.OutOrStdout()

			if asJSON {
				return writeJSON(out, state)
			}

			fmt.Fprintf(out, "Session:  %s\n", state.Phase)
			if state.User != nil {
				fmt.Fprintf(out, "User:     %s <%s>\n", state.User.Name, state.User.Email)
				fmt.Fprintf(out, "Verified: %t\n", state.User.IsVerified)
			}
			fmt.Fprintf(out, "Protected commands: %s\n", session.Gate(state, session.Protected))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the session state as JSON")
	return cmd
}

func (a *cliApp) registerCommand() *cobra.Command {
	var req model.RegisterRequest

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if !a.signedOut(ctx, out) {
				return nil
			}

			if req.Password == "" {
				password, err := prompt(cmd, "Password: ")
				if err != nil {
					return err
				}
				req.Password = password
			}
			if req.ConfirmPassword == "" {
				req.ConfirmPassword = req.Password
			}

			resp, err := a.env.Session.Register(ctx, req)
			if err != nil {
				return err
			}

			fmt.Fprintln(out, resp.Message)
			fmt.Fprintf(out, "Enter the code we emailed you:\n  fintrack verify --user-id %d --otp <code>\n", resp.UserID)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "display name")
	cmd.Flags().StringVar(&req.Email, "email", "", "account email")
	cmd.Flags().StringVar(&req.Password, "password", "", "password (prompted when omitted)")
	cmd.Flags().StringVar(&req.ConfirmPassword, "confirm-password", "", "password confirmation (defaults to --password)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *cliApp) verifyCommand() *cobra.Command {
	var (
		req      model.VerifyEmailRequest
		remember bool
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify your email with the emailed code and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := a.env.Session.VerifyEmail(cmd.Context(), req, remember)
			if err != nil {
				return err
			}
			printSignedIn(cmd.OutOrStdout(), resp, remember)
			return nil
		},
	}

	cmd.Flags().Int64Var(&req.UserID, "user-id", 0, "user id printed by register")
	cmd.Flags().StringVar(&req.OTP, "otp", "", "6-digit verification code")
	cmd.Flags().BoolVar(&remember, "remember", true, "keep the session after this login ends")
	_ = cmd.MarkFlagRequired("user-id")
	_ = cmd.MarkFlagRequired("otp")
	return cmd
}

func (a *cliApp) resendOTPCommand() *cobra.Command {
	var userID int64

	cmd := &cobra.Command{
		Use:   "resend-otp",
		Short: "Send a new verification code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := a.env.Session.ResendOTP(cmd.Context(), userID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			return nil
		},
	}

	cmd.Flags().Int64Var(&userID, "user-id", 0, "user id printed by register")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func (a *cliApp) forgotPasswordCommand() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "forgot-password",
		Short: "Email a password reset link",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := a.env.Session.ForgotPassword(cmd.Context(), email)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *cliApp) verifyResetCommand() *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "verify-reset",
		Short: "Check that a password reset token is still valid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := a.env.Session.VerifyResetToken(cmd.Context(), token)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "reset token from the email")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func (a *cliApp) resetPasswordCommand() *cobra.Command {
	var req model.ResetPasswordRequest

	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password with a reset token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if req.NewPassword == "" {
				password, err := prompt(cmd, "New password: ")
				if err != nil {
					return err
				}
				req.NewPassword = password
			}
			if req.ConfirmPassword == "" {
				req.ConfirmPassword = req.NewPassword
			}

			resp, err := a.env.Session.ResetPassword(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Token, "token", "", "reset token from the email")
	cmd.Flags().StringVar(&req.NewPassword, "password", "", "new password (prompted when omitted)")
	cmd.Flags().StringVar(&req.ConfirmPassword, "confirm-password", "", "password confirmation (defaults to --password)")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func printSignedIn(out io.Writer, resp model.AuthResponse, remember bool) {
	name := "you"
	if resp.User != nil {
		name = resp.User.Email
	}
	scope := "until this login session ends"
	if remember {
		scope = "on this machine"
	}
	fmt.Fprintf(out, "Signed in as %s (remembered %s).\n", name, scope)
}

// prompt reads one line from the command's input.
func prompt(cmd *cobra.Command, label string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), label)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

// Package cli is the fintrack command line: the view layer over the session
// manager and the expense service.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"go-fintrack/internal/config"
	"go-fintrack/internal/logger"
	"go-fintrack/internal/session"
	"go-fintrack/internal/validation"
	"go-fintrack/pkg/apierror"
)

var errNotSignedIn = errors.New("not signed in; run `fintrack login` first")

type cliApp struct {
	build BuildFunc
	env   *Env

	profile     string
	apiURL      string
	logLevel    string
	showMetrics bool
}

// Execute runs the command line once and releases everything Build opened.
func Execute(ctx context.Context, build BuildFunc, args []string, stdout io.Writer, stderr io.Writer) error {
	a := &cliApp{build: build}
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)

	if a.showMetrics && a.env != nil && a.env.Registry != nil {
		writeMetrics(stderr, a.env)
	}
	a.env.Close()

	return err
}

func (a *cliApp) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "fintrack",
		Short:         "Track expenses and income from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.profile, "profile", "", "credential profile (overrides PROFILE)")
	flags.StringVar(&a.apiURL, "api-url", "", "API base URL (overrides API_BASE_URL)")
	flags.StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
	flags.BoolVar(&a.showMetrics, "metrics", false, "print client request metrics to stderr on exit")

	root.AddCommand(
		a.loginCommand(),
		a.googleLoginCommand(),
		a.logoutCommand(),
		a.whoamiCommand(),
		a.registerCommand(),
		a.verifyCommand(),
		a.resendOTPCommand(),
		a.forgotPasswordCommand(),
		a.verifyResetCommand(),
		a.resetPasswordCommand(),
		a.txCommand(),
		a.categoriesCommand(),
		a.summaryCommand(),
	)

	return root
}

func (a *cliApp) setup(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if a.profile != "" {
		cfg.Profile = a.profile
	}
	if a.apiURL != "" {
		cfg.APIBaseURL = strings.TrimRight(a.apiURL, "/")
	}
	if a.logLevel != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(a.logLevel)); err != nil {
			return fmt.Errorf("invalid --log-level %q", a.logLevel)
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger.Setup(cmd.ErrOrStderr(), cfg.LogLevel)

	env, err := a.build(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	a.env = env
	return nil
}

// signedIn resolves the session and refuses to continue when anonymous.
func (a *cliApp) signedIn(ctx context.Context) (session.State, error) {
	state := a.env.Session.Initialize(ctx)
	if session.Gate(state, session.Protected) == session.RedirectLogin {
		return state, errNotSignedIn
	}
	return state, nil
}

// signedOut reports whether a public-only command may proceed. When a session
// is already active it tells the user and returns false.
func (a *cliApp) signedOut(ctx context.Context, out io.Writer) bool {
	state := a.env.Session.Initialize(ctx)
	if session.Gate(state, session.PublicOnly) == session.RedirectDashboard {
		fmt.Fprintf(out, "Already signed in as %s. Run `fintrack logout` to switch accounts.\n", state.User.Email)
		return false
	}
	return true
}

// Describe renders err for a terminal user.
func Describe(err error) string {
	var vErr *validation.Error
	var netErr *apierror.NetworkError

	switch {
	case errors.As(err, &vErr):
		lines := make([]string, 0, len(vErr.Fields))
		for _, f := range vErr.Fields {
			lines = append(lines, fmt.Sprintf("  %s: %s", f.Field, f.Message))
		}
		return "invalid input:\n" + strings.Join(lines, "\n")
	case errors.As(err, &netErr):
		return "could not reach the fintrack API: " + netErr.Err.Error()
	}

	if apiErr, ok := apierror.AsAPIError(err); ok {
		return apiErr.Message
	}
	return err.Error()
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeMetrics(out io.Writer, env *Env) {
	families, err := env.Registry.Gather()
	if err != nil {
		slog.Warn("gather metrics failed", "error", err)
		return
	}

	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
			}
			sort.Strings(labels)

			switch {
			case m.GetCounter() != nil:
				fmt.Fprintf(out, "%s{%s} %g\n", mf.GetName(), strings.Join(labels, ","), m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				fmt.Fprintf(out, "%s{%s} count=%d sum=%.3fs\n", mf.GetName(), strings.Join(labels, ","), h.GetSampleCount(), h.GetSampleSum())
			}
		}
	}
}

// Package cli is an interactive terminal front end for the login flow.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	"life-auth/internal/mobile/actions"
	"life-auth/internal/mobile/api"
	"life-auth/internal/util"
)

// Remote is the server surface the CLI needs.
type Remote interface {
	actions.RemoteClient
	GetUser(ctx context.Context, id string) (*api.User, error)
	Health(ctx context.Context) (*api.HealthResponse, error)
}

// readSecret is a test seam for term.ReadPassword.
var readSecret = term.ReadPassword

type App struct {
	remote     Remote
	actions    *actions.Actions
	controller *actions.LoginController
	reader     *bufio.Reader
	out        io.Writer
	logger     *zap.Logger

	// interactive is true when input is a terminal; codes are then read
	// without echo.
	interactive bool
	fd          int
}

func NewApp(remote Remote, a *actions.Actions, controller *actions.LoginController, in io.Reader, out io.Writer) *App {
	interactive, fd := false, -1
	if f, ok := in.(*os.File); ok {
		fd = int(f.Fd())
		interactive = term.IsTerminal(fd)
	}
	return &App{
		remote:      remote,
		actions:     a,
		controller:  controller,
		reader:      bufio.NewReader(in),
		out:         out,
		logger:      util.Named("cli"),
		interactive: interactive,
		fd:          fd,
	}
}

// Run restores any saved session and then reads commands until exit or
// end of input.
func (a *App) Run(ctx context.Context) {
	if a.actions.RestoreSession(ctx) {
		a.printf("Welcome back, %s\n", a.userLabel())
	}
	runREPL(ctx, a, a.status, a.reader, a.out)
}

func (a *App) isLoggedIn() bool {
	return a.actions.IsAuthenticated()
}

func (a *App) status() string {
	if a.isLoggedIn() {
		return a.userLabel()
	}
	return "logged out"
}

func (a *App) userLabel() string {
	u := a.actions.CurrentUser()
	if u == nil {
		return "unknown"
	}
	return util.MaskPhone(u.PhoneNumber)
}

// SendCode asks for a code to be delivered to phone, prompting for the
// number when it was not given.
func (a *App) SendCode(ctx context.Context, phone string) error {
	if phone == "" {
		var err error
		if phone, err = a.prompt("Phone number"); err != nil {
			return err
		}
	}

	res, err := a.controller.SendCode(ctx, phone)
	if err != nil {
		if errors.Is(err, actions.ErrCooldownActive) {
			a.printf("Please wait %ds before requesting another code\n", a.controller.Cooldown().Seconds())
			return err
		}
		a.println(actions.FailureMessage(err))
		return err
	}

	a.println(res.Message)
	if res.Code != "" {
		a.printf("Development code: %s\n", res.Code)
	}
	return nil
}

// Login verifies a code for phone and stores the session.
func (a *App) Login(ctx context.Context, phone string) error {
	if phone == "" {
		var err error
		if phone, err = a.prompt("Phone number"); err != nil {
			return err
		}
	}
	code, err := a.readCode()
	if err != nil {
		return err
	}

	res, err := a.controller.Login(ctx, phone, code)
	if err != nil {
		a.println(actions.FailureMessage(err))
		return err
	}
	if !a.isLoggedIn() {
		a.println(res.Message)
		return nil
	}
	a.printf("%s as %s\n", res.Message, a.userLabel())
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.actions.Logout(ctx); err != nil {
		a.logger.Warn("Logout could not be persisted", zap.Error(err))
	}
	a.println("Logged out")
	return nil
}

// Me prints the current user as the server knows it.
func (a *App) Me(ctx context.Context) error {
	u := a.actions.CurrentUser()
	if u == nil {
		a.println("Not logged in")
		return nil
	}
	user, err := a.remote.GetUser(ctx, u.ID)
	if err != nil {
		a.println(actions.FailureMessage(err))
		return err
	}
	a.printf("id: %s\nphone: %s\ncreated: %s\n", user.ID, util.MaskPhone(user.PhoneNumber), user.CreatedAt.Format("2006-01-02 15:04:05"))
	return nil
}

func (a *App) Health(ctx context.Context) error {
	h, err := a.remote.Health(ctx)
	if err != nil {
		a.println(actions.FailureMessage(err))
		return err
	}
	a.printf("server %s at %s\n", h.Status, h.Timestamp)
	return nil
}

func (a *App) readCode() (string, error) {
	if !a.interactive {
		return a.prompt("Verification code")
	}
	a.printf("Verification code: ")
	b, err := readSecret(a.fd)
	a.println()
	if err != nil {
		return "", fmt.Errorf("failed to read code: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func (a *App) prompt(label string) (string, error) {
	return GetSimpleText(a.reader, label, a.out)
}

func (a *App) println(args ...any) {
	_, _ = fmt.Fprintln(a.out, args...)
}

func (a *App) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(a.out, format, args...)
}

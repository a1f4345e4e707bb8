package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// commands is the surface the loop dispatches to. App satisfies it.
type commands interface {
	isLoggedIn() bool
	SendCode(ctx context.Context, phone string) error
	Login(ctx context.Context, phone string) error
	Logout(ctx context.Context) error
	Me(ctx context.Context) error
	Health(ctx context.Context) error
}

// runREPL reads one command per line and dispatches it. Handlers report
// their own errors, so the loop ignores them. It returns on EOF, exit or
// quit, or when ctx ends.
func runREPL(ctx context.Context, c commands, statusFn func() string, reader *bufio.Reader, w io.Writer) {
	for {
		if ctx.Err() != nil {
			return
		}
		fmt.Fprintf(w, "life [%s]> ", statusFn())

		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(w)
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		arg := ""
		if len(parts) > 1 {
			arg = strings.Join(parts[1:], "")
		}

		switch parts[0] {
		case "help":
			if c.isLoggedIn() {
				fmt.Fprintln(w, "Available commands: me, logout, health, exit")
			} else {
				fmt.Fprintln(w, "Available commands: send [phone], login [phone], health, exit")
			}
		case "send":
			_ = c.SendCode(ctx, arg)
		case "login":
			_ = c.Login(ctx, arg)
		case "logout":
			_ = c.Logout(ctx)
		case "me":
			_ = c.Me(ctx)
		case "health":
			_ = c.Health(ctx)
		case "exit", "quit":
			fmt.Fprintln(w, "Bye!")
			return
		default:
			fmt.Fprintln(w, "Unknown command:", parts[0])
		}
	}
}

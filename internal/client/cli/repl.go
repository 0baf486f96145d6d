package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Signup(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	ForgotPassword(ctx context.Context) error
	ResetPassword(ctx context.Context) error
	Status(ctx context.Context) error
	Get(ctx context.Context, path string) error
	RPC(ctx context.Context, method string) error
	Refresh(ctx context.Context) error
	Resume(ctx context.Context) error
}

// runREPL reads commands from scanner and dispatches them to a until EOF,
// "exit"/"quit", or ctx being done.
//
//	Not logged in:
//	  - help, signup, login, forgot, reset, status, exit | quit
//
//	Logged in:
//	  - help, get <path>, rpc <method>, status, refresh, resume, logout, exit | quit
//
// Errors returned by command handlers are ignored here; handlers report
// their own errors.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("tk %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: get <path>, rpc <method>, status, refresh, resume, logout, exit")
			} else {
				printlnFn("Available commands: signup, login, forgot, reset, status, exit")
			}

		case "signup":
			_ = a.Signup(ctx)

		case "login":
			_ = a.Login(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "forgot":
			_ = a.ForgotPassword(ctx)

		case "reset":
			_ = a.ResetPassword(ctx)

		case "status":
			_ = a.Status(ctx)

		case "get":
			if len(args) == 0 {
				printlnFn("Usage: get <path>")
				continue
			}
			_ = a.Get(ctx, args[0])

		case "rpc":
			if len(args) == 0 {
				printlnFn("Usage: rpc </package.Service/Method>")
				continue
			}
			_ = a.RPC(ctx, args[0])

		case "refresh":
			_ = a.Refresh(ctx)

		case "resume":
			_ = a.Resume(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}

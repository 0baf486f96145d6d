package cli

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
)

// Prompt seams, replaced in tests.
var (
	promptText     = Prompt
	promptPassword = PromptPassword
)

func (a *App) ask(label string, mandatory bool) (string, error) {
	v, err := promptText(a.reader, label, a.out)
	if err != nil {
		return "", err
	}
	if mandatory {
		if err := required(label, v); err != nil {
			return "", err
		}
	}
	return v, nil
}

// Signup prompts for email, an optional display name and a password, and
// creates an account. The password is wiped before returning.
func (a *App) Signup(ctx context.Context) error {
	email, err := a.ask("Email", true)
	if err != nil {
		return err
	}
	name, err := a.ask("Display name (optional)", false)
	if err != nil {
		return err
	}
	password, err := promptPassword(a.reader, "Password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.authService.Signup(ctx, email, password, name); err != nil {
		a.printf("Signup failed: %v\n", err)
		return err
	}
	a.printf("Account created, you can log in now.\n")
	return nil
}

// Login prompts for credentials and starts a session.
func (a *App) Login(ctx context.Context) error {
	email, err := a.ask("Email", true)
	if err != nil {
		return err
	}
	password, err := promptPassword(a.reader, "Password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.authService.Login(ctx, email, password); err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) {
			a.printf("Invalid email or password.\n")
		} else {
			a.printf("Login failed: %v\n", err)
		}
		return err
	}
	a.printf("Login successful.\n")
	return nil
}

// Logout ends the session.
func (a *App) Logout(ctx context.Context) error {
	if err := a.authService.Logout(ctx); err != nil {
		return err
	}
	a.printf("Logged out.\n")
	return nil
}

func (a *App) ForgotPassword(ctx context.Context) error {
	email, err := a.ask("Email", true)
	if err != nil {
		return err
	}
	if err := a.authService.ForgotPassword(ctx, email); err != nil {
		a.printf("Request failed: %v\n", err)
		return err
	}
	a.printf("If the account exists, a reset code is on its way.\n")
	return nil
}

func (a *App) ResetPassword(ctx context.Context) error {
	code, err := a.ask("Reset code", true)
	if err != nil {
		return err
	}
	password, err := promptPassword(a.reader, "New password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.authService.ResetPassword(ctx, code, password); err != nil {
		a.printf("Reset failed: %v\n", err)
		return err
	}
	a.printf("Password changed.\n")
	return nil
}

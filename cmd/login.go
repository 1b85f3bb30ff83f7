package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/eventory/internal/login"
	"github.com/desertthunder/eventory/internal/routes"
	"github.com/desertthunder/eventory/internal/services"
	"github.com/desertthunder/eventory/internal/shared"
	"github.com/desertthunder/eventory/internal/ui"
)

// Login runs the sign-in flow in the terminal UI and stores the resulting session.
func (r *Runner) Login(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.ValidateLogin(); err != nil {
		return err
	}

	redirectTo := cmd.String("redirect-to")
	if redirectTo == "" {
		redirectTo = r.config.Login.RedirectTo
	}

	// Logs go to a file so they do not interfere with TUI rendering
	fileLogger, f, err := shared.NewFileLogger(r.config.Login.LogPath)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer f.Close()

	auth := services.NewGoogleAuthenticator(r.config.Credentials.Google, fileLogger)
	caps := services.NewLoginCapabilities(auth, r.youtube, r.api, fileLogger)

	model := ui.NewLoginModel()
	p := tea.NewProgram(model, tea.WithContext(ctx))

	machine := login.New(caps, ui.Hooks(p.Send), login.Options{
		Logger:     fileLogger,
		RedirectTo: redirectTo,
		Context:    ctx,
	})
	defer machine.Stop()
	model.Attach(machine)

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("error running TUI: %w", err)
	}

	target, ok := model.Redirect()
	if !ok {
		if msg := machine.Snapshot().Context.LastError; msg != "" {
			return fmt.Errorf("%w: %s", shared.ErrAuthFailed, msg)
		}
		r.writePlain("Sign-in cancelled\n")
		return nil
	}

	identity := caps.Identity()
	stored := services.StoredSession{
		Token:     caps.SessionToken(),
		UID:       identity.UID,
		Email:     identity.Email,
		Redirect:  target,
		CreatedAt: time.Now().UTC(),
	}
	if user := model.User(); user != nil {
		stored.Role = user.Role.String()
	}

	if err := r.sessionFile().Save(stored); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	fileLogger.Info("session saved", "uid", stored.UID, "path", r.config.Login.SessionPath)

	r.writePlain("✓ Signed in as %s\n", stored.Email)
	if ch := model.Channel(); ch != nil {
		r.writePlain("YouTube channel: %s (%s)\n", ch.Title, ch.URL())
	}
	if msg := model.Snapshot().Context.LastError; msg != "" {
		r.writePlain("Warning: %s\n", msg)
	}
	r.writePlain("Continue at %s%s\n", r.config.Server.PublicURL, routes.SafeRedirect(target))
	return nil
}

// Logout ends the gateway session and removes the stored one.
func (r *Runner) Logout(ctx context.Context, cmd *cli.Command) error {
	file := r.sessionFile()

	stored, err := file.Load()
	if errors.Is(err, shared.ErrNotAuthenticated) {
		return r.writePlain("Not signed in\n")
	} else if err != nil {
		return err
	}

	if err := r.api.DeleteSession(ctx, stored.Token); err != nil {
		r.logger.Warn("failed to end gateway session", "error", err)
	}

	if err := file.Clear(); err != nil {
		return err
	}
	return r.writePlain("✓ Signed out %s\n", stored.Email)
}

// Status reports the stored session and whether the gateway still accepts it.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	stored, err := r.sessionFile().Load()
	if err != nil {
		return err
	}

	session, err := r.api.Session(ctx, stored.Token)
	if err != nil && !errors.Is(err, shared.ErrNotAuthenticated) {
		return fmt.Errorf("failed to check session: %w", err)
	}
	active := err == nil

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{
			"uid":     stored.UID,
			"email":   stored.Email,
			"role":    stored.Role,
			"active":  active,
			"session": session,
		}, true)
	}

	r.writePlainHeader("eventory session")
	r.writePlain("User:     %s\n", stored.UID)
	r.writePlain("Email:    %s\n", stored.Email)
	if stored.Role != "" {
		r.writePlain("Role:     %s\n", stored.Role)
	}
	if active {
		r.writePlain("Session:  active until %s\n", session.ExpiresAt.Local().Format(time.RFC1123))
	} else {
		r.writePlain("Session:  expired, run 'eventory login' again\n")
	}
	return nil
}

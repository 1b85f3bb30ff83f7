package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/eventory/internal/formatter"
	"github.com/desertthunder/eventory/internal/models"
	"github.com/desertthunder/eventory/internal/repositories"
	"github.com/desertthunder/eventory/internal/shared"
)

// UsersList renders the stored user records.
func (r *Runner) UsersList(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	criteria := map[string]any{}
	if role := models.Role(cmd.String("role")); role != "" {
		if !role.Valid() {
			return fmt.Errorf("%w: unknown role %q", shared.ErrInvalidFlag, role)
		}
		criteria["role"] = role
	}

	db, err := r.database()
	if err != nil {
		return err
	}

	users, err := repositories.NewUserRepository(db).List(ctx, criteria)
	if err != nil {
		return err
	}

	data, err := formatter.RenderUsers(format, users)
	if err != nil {
		return err
	}
	return r.writeRendered(cmd.String("output"), data)
}

// UsersShow renders one user record and its linked channel.
func (r *Runner) UsersShow(ctx context.Context, cmd *cli.Command) error {
	uid := cmd.Args().First()
	if uid == "" {
		return fmt.Errorf("%w: uid is required", shared.ErrMissingArgument)
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	db, err := r.database()
	if err != nil {
		return err
	}

	user, err := repositories.NewUserRepository(db).Get(ctx, uid)
	if err != nil {
		return err
	}

	channel, err := repositories.NewChannelRepository(db).Get(ctx, uid)
	if errors.Is(err, shared.ErrChannelNotFound) {
		channel = nil
	} else if err != nil {
		return err
	}

	data, err := formatter.RenderUser(format, user, channel)
	if err != nil {
		return err
	}
	return r.writeRendered(cmd.String("output"), data)
}

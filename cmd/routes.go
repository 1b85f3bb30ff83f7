package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/eventory/internal/formatter"
	"github.com/desertthunder/eventory/internal/routes"
	"github.com/desertthunder/eventory/internal/shared"
)

// RoutesList renders the route catalog.
func (r *Runner) RoutesList(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	data, err := formatter.RenderRoutes(format, formatter.RouteRows(routes.Catalog()))
	if err != nil {
		return err
	}
	return r.writeRendered(cmd.String("output"), data)
}

// RoutesResolve resolves the template named by the first argument with the remaining arguments as segments.
func (r *Runner) RoutesResolve(ctx context.Context, cmd *cli.Command) error {
	name := cmd.Args().First()
	if name == "" {
		return fmt.Errorf("%w: template is required", shared.ErrMissingArgument)
	}

	template, ok := routes.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %w %q", shared.ErrInvalidArgument, routes.ErrUnknownTemplate, name)
	}

	params, err := parseParams(cmd.StringSlice("param"))
	if err != nil {
		return err
	}

	url, err := routes.Navigate(template, params, cmd.Args().Tail()...)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrInvalidArgument, err)
	}
	return r.writePlain("%s\n", url)
}

// parseParams turns key=value pairs into query params. Repeated keys become lists.
func parseParams(pairs []string) (routes.Params, error) {
	params := routes.Params{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: param %q is not key=value", shared.ErrInvalidFlag, pair)
		}

		switch existing := params[key].(type) {
		case nil:
			params[key] = value
		case string:
			params[key] = []string{existing, value}
		case []string:
			params[key] = append(existing, value)
		}
	}
	return params, nil
}

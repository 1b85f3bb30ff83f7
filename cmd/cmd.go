// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format (json, csv, markdown, txt)",
		Value:   "txt",
	}
}

func outputFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Output file path (default: stdout)",
	}
}

// setupCommand handles setup operations for configuration and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config file from the built-in template",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// loginCommand runs the interactive sign-in flow.
func loginCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "login",
		Aliases: []string{"signin"},
		Usage:   "Sign in with Google, signing up on first use",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "redirect-to",
				Usage: "Page to continue to after signing in (default: login.redirect_to)",
			},
		},
		Action: r.Login,
	}
}

// logoutCommand ends the stored session.
func logoutCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "logout",
		Aliases: []string{"signout"},
		Usage:   "End the current session",
		Action:  r.Logout,
	}
}

// statusCommand reports the stored session.
func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "status",
		Aliases: []string{"whoami"},
		Usage:   "Show the signed-in account and check the session with the gateway",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Status,
	}
}

// serveCommand runs the HTTP gateway.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the eventory gateway (session, user and channel APIs, auth gate)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Interface to listen on (default: server.host)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on (default: server.port)",
			},
			&cli.StringFlag{
				Name:  "upstream",
				Usage: "Page renderer to proxy non-API routes to (default: server.upstream_url)",
			},
		},
		Action: r.Serve,
	}
}

// routesCommand inspects the route catalog.
func routesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "routes",
		Usage: "Inspect and resolve route templates",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List every route template with its parameters",
				Flags:  []cli.Flag{formatFlag(), outputFlag()},
				Action: r.RoutesList,
			},
			{
				Name:      "resolve",
				Usage:     "Resolve a template to a concrete URL",
				ArgsUsage: "<template> [segment...]",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "param",
						Aliases: []string{"q"},
						Usage:   "Query parameter as key=value (repeatable)",
					},
				},
				Action: r.RoutesResolve,
			},
		},
	}
}

// usersCommand inspects stored user records.
func usersCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "Inspect user records in the database",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List users",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "role",
						Usage: "Only list users with this role (participant, influencer)",
					},
					formatFlag(),
					outputFlag(),
				},
				Action: r.UsersList,
			},
			{
				Name:      "show",
				Usage:     "Show a user and its linked YouTube channel",
				ArgsUsage: "<uid>",
				Flags:     []cli.Flag{formatFlag(), outputFlag()},
				Action:    r.UsersShow,
			},
		},
	}
}

// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create config.toml and prepare session storage",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Action: r.Setup,
	}
}

// authCommand handles session operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Sign in, sign out and inspect the saved session",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Sign in with email and password",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "email",
						Aliases:  []string{"e"},
						Usage:    "Account email",
						Sources:  cli.EnvVars("REELX_EMAIL"),
						Required: true,
					},
					&cli.StringFlag{
						Name:     "password",
						Aliases:  []string{"p"},
						Usage:    "Account password",
						Sources:  cli.EnvVars("REELX_PASSWORD"),
						Required: true,
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:  "confirm",
				Usage: "Confirm a registration and sign in",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "token",
						Aliases:  []string{"t"},
						Usage:    "Confirmation token from the registration email",
						Required: true,
					},
				},
				Action: r.AuthConfirm,
			},
			{
				Name:   "logout",
				Usage:  "Sign out on the server and forget the saved session",
				Action: r.AuthLogout,
			},
			{
				Name:  "status",
				Usage: "Show the saved session",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output JSON",
					},
					&cli.BoolFlag{
						Name:  "remote",
						Usage: "Also fetch the current user from the server",
					},
				},
				Action: r.AuthStatus,
			},
			{
				Name:   "refresh",
				Usage:  "Exchange the refresh token for a new access token",
				Action: r.AuthRefresh,
			},
		},
	}
}

// notificationsCommand handles the notification inbox
func notificationsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "notifications",
		Aliases: []string{"notif", "n"},
		Usage:   "List, read and follow notifications",
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List notifications",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "page",
						Usage: "Page number",
						Value: 1,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Page size (defaults to notifications.page_size)",
					},
					&cli.BoolFlag{
						Name:  "unread",
						Usage: "Only unread notifications",
					},
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Walk every page",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: text, markdown, csv or json",
						Value:   "text",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Shorthand for --format json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write to a file instead of stdout",
					},
				},
				Action: r.NotificationsList,
			},
			{
				Name:  "unread",
				Usage: "Print the unread count",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output JSON",
					},
				},
				Action: r.NotificationsUnread,
			},
			{
				Name:  "read",
				Usage: "Mark one notification as read",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.NotificationsRead,
			},
			{
				Name:   "read-all",
				Usage:  "Mark every notification as read",
				Action: r.NotificationsReadAll,
			},
			{
				Name:  "prefs",
				Usage: "Show or update delivery preferences",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "set",
						Usage: "key=value, where key is email, push, inApp or a notification type",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output JSON",
					},
				},
				Action: r.NotificationsPrefs,
			},
			{
				Name:  "watch",
				Usage: "Open the real-time channel and print notifications as they arrive",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "duration",
						Usage: "Stop after this long (default: until interrupted)",
					},
				},
				Action: r.NotificationsWatch,
			},
		},
	}
}

func devServerCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "dev-server",
		Usage: "Run the in-memory development backend",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (defaults to devserver.addr)",
			},
			&cli.StringFlag{
				Name:  "seed-email",
				Usage: "Email of the seeded account",
				Value: "creator@example.com",
			},
			&cli.StringFlag{
				Name:  "seed-password",
				Usage: "Password of the seeded account",
				Value: "password123",
			},
			&cli.IntFlag{
				Name:  "seed-notifications",
				Usage: "Number of sample notifications for the seeded account",
				Value: 3,
			},
		},
		Action: r.DevServer,
	}
}

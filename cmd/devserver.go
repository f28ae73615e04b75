package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/reelx/internal/devserver"
	"github.com/desertthunder/reelx/internal/models"
)

var sampleNotifications = []models.Notification{
	{Type: models.NotificationVideoProcessed, Title: "Your upload finished processing", Message: "It is ready to publish."},
	{Type: models.NotificationNewFollower, Title: "New follower", Message: "Someone started following your channel."},
	{Type: models.NotificationNewComment, Title: "New comment", Message: "Great edit on the intro."},
	{Type: models.NotificationVideoLiked, Title: "Your video got a like"},
	{Type: models.NotificationPayout, Title: "Payout scheduled"},
}

// DevServer runs the development backend with one seeded account until interrupted.
func (r *Runner) DevServer(ctx context.Context, cmd *cli.Command) error {
	cfg := devserver.ConfigFrom(r.config.DevServer)
	if addr := cmd.String("addr"); addr != "" {
		cfg.Addr = addr
	}
	cfg.Logger = r.logger

	srv, err := devserver.New(cfg)
	if err != nil {
		return err
	}

	email := cmd.String("seed-email")
	user, err := srv.AddUser(email, cmd.String("seed-password"), "Demo Creator", models.RoleCreator)
	if err != nil {
		return fmt.Errorf("failed to seed account: %w", err)
	}
	for i := range cmd.Int("seed-notifications") {
		srv.Notify(user.ID, sampleNotifications[i%len(sampleNotifications)])
	}

	if err := r.writePlain("%s http://%s/api\n%s %s / %s\n",
		r.palette.Title("dev server"), srv.Addr(),
		r.palette.Help("account:"), email, cmd.String("seed-password")); err != nil {
		return err
	}

	return srv.Start(ctx)
}

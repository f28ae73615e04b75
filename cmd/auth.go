package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/reelx/internal/formatter"
	"github.com/desertthunder/reelx/internal/models"
)

// AuthLogin signs in and persists the session.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	s, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer closeQuietly(r, s)

	res, err := s.auth.Login(ctx, cmd.String("email"), cmd.String("password"))
	if err != nil {
		return err
	}
	return r.signedIn(res)
}

// AuthConfirm redeems a registration token, which also signs the user in.
func (r *Runner) AuthConfirm(ctx context.Context, cmd *cli.Command) error {
	s, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer closeQuietly(r, s)

	res, err := s.auth.ConfirmRegistration(ctx, cmd.String("token"))
	if err != nil {
		return err
	}
	return r.signedIn(res)
}

func (r *Runner) signedIn(res *models.LoginResult) error {
	r.logger.Info("signed in", "user", res.User.ID)
	return r.writePlain("%s Signed in as %s <%s>\n", r.palette.OK("✓"), res.User.Name, res.User.Email)
}

// AuthLogout signs out on the server. The saved session is cleared even when
// the server call fails.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	s, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer closeQuietly(r, s)

	if !s.store.IsAuthenticated() {
		return r.writePlain("Already signed out\n")
	}

	if err := s.auth.Logout(ctx); err != nil {
		r.logger.Warn("server logout failed, local session cleared", "error", err)
	}
	return r.writePlain("%s Signed out\n", r.palette.OK("✓"))
}

// AuthStatus prints the restored session without contacting the server unless --remote is set.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	s, err := r.open(ctx)
	if err != nil {
		return err
	}
	defer closeQuietly(r, s)

	if cmd.Bool("remote") && s.store.IsAuthenticated() {
		if _, err := s.auth.Me(ctx); err != nil {
			return err
		}
	}

	st := s.store.State()
	status := formatter.Status{
		Hydrated:      s.store.IsHydrated(),
		Authenticated: st.IsAuthenticated,
		User:          st.User,
		ExpiresAt:     st.ExpiresAt,
		HasRefresh:    st.RefreshToken != "",
		Storage:       storageLabel(r.config),
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, true)
	}
	return r.write(formatter.StatusToText(status, r.now()))
}

// AuthRefresh forces a refresh cycle.
func (r *Runner) AuthRefresh(ctx context.Context, cmd *cli.Command) error {
	s, err := r.openAuthenticated(ctx)
	if err != nil {
		return err
	}
	defer closeQuietly(r, s)

	if _, err := s.client.Refresh(ctx); err != nil {
		return err
	}

	expires := s.store.State().ExpiresAt
	if expires.IsZero() {
		return r.writePlain("%s Access token refreshed\n", r.palette.OK("✓"))
	}
	return r.writePlain("%s Access token refreshed, valid until %s\n", r.palette.OK("✓"), expires.Local().Format("2006-01-02 15:04:05"))
}

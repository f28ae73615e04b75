package main

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/reelx/internal/formatter"
	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/notifications"
	"github.com/desertthunder/reelx/internal/realtime"
	"github.com/desertthunder/reelx/internal/shared"
)

// NotificationsList prints one page, or every page with --all.
func (r *Runner) NotificationsList(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		format = formatter.FormatJSON
	}

	limit := cmd.Int("limit")
	if limit <= 0 {
		limit = r.config.Notifications.PageSize
	}
	unreadOnly := cmd.Bool("unread")

	s, err := r.openAuthenticated(ctx)
	if err != nil {
		return err
	}
	defer closeQuietly(r, s)

	var page *models.NotificationPage
	if cmd.Bool("all") {
		list, err := s.notes.FetchAll(ctx, limit, unreadOnly)
		if err != nil {
			return err
		}
		unread := s.inbox.UnreadCount()
		page = &models.NotificationPage{
			Notifications: list,
			Page:          1,
			Limit:         len(list),
			Total:         len(list),
			TotalPages:    1,
			UnreadCount:   &unread,
		}
	} else {
		page, err = s.notes.FetchPage(ctx, cmd.Int("page"), limit, unreadOnly)
		if err != nil {
			return err
		}
	}

	if out := cmd.String("output"); out != "" {
		path, err := formatter.WriteExport(page, format, out)
		if err != nil {
			return err
		}
		return r.writePlain("%s Wrote %d notifications to %s\n", r.palette.OK("✓"), len(page.Notifications), path)
	}
	return formatter.Render(r.output, format, page)
}

// NotificationsUnread prints the unread count from a single-item page.
func (r *Runner) NotificationsUnread(ctx context.Context, cmd *cli.Command) error {
	s, err := r.openAuthenticated(ctx)
	if err != nil {
		return err
	}
	defer closeQuietly(r, s)

	count, err := s.notes.FetchUnreadCountOnly(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]int{"unreadCount": count}, false)
	}
	return r.writePlain("%d\n", count)
}

// NotificationsRead marks one notification read.
func (r *Runner) NotificationsRead(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: notification id", shared.ErrMissingArgument)
	}

	s, err := r.openAuthenticated(ctx)
	if err != nil {
		return err
	}
	defer closeQuietly(r, s)

	if err := s.notes.MarkOneAsRead(ctx, id); err != nil {
		return err
	}
	return r.writePlain("%s Marked %s as read\n", r.palette.OK("✓"), id)
}

// NotificationsReadAll marks every notification read.
func (r *Runner) NotificationsReadAll(ctx context.Context, cmd *cli.Command) error {
	s, err := r.openAuthenticated(ctx)
	if err != nil {
		return err
	}
	defer closeQuietly(r, s)

	if err := s.notes.MarkAllAsRead(ctx); err != nil {
		return err
	}
	return r.writePlain("%s All notifications marked as read\n", r.palette.OK("✓"))
}

// NotificationsPrefs prints preferences, applying any --set pairs first.
func (r *Runner) NotificationsPrefs(ctx context.Context, cmd *cli.Command) error {
	s, err := r.openAuthenticated(ctx)
	if err != nil {
		return err
	}
	defer closeQuietly(r, s)

	prefs, err := s.notes.FetchPreferences(ctx)
	if err != nil {
		return err
	}

	if sets := cmd.StringSlice("set"); len(sets) > 0 {
		if err := applyPreferences(prefs, sets); err != nil {
			return err
		}
		if prefs, err = s.notes.UpdatePreferences(ctx, *prefs); err != nil {
			return err
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(prefs, true)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", r.palette.Title("Delivery"))
	fmt.Fprintf(&b, "  email: %t\n  push:  %t\n  inApp: %t\n", prefs.Email, prefs.Push, prefs.InApp)
	if len(prefs.Types) > 0 {
		fmt.Fprintf(&b, "%s\n", r.palette.Title("Types"))
		for _, t := range sortedTypes(prefs.Types) {
			fmt.Fprintf(&b, "  %s: %t\n", t, prefs.Types[t])
		}
	}
	return r.write([]byte(b.String()))
}

func applyPreferences(p *models.Preferences, pairs []string) error {
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("%w: %q is not key=value", shared.ErrInvalidFlag, pair)
		}
		v, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("%w: %q is not a boolean", shared.ErrInvalidFlag, raw)
		}

		switch key = strings.TrimSpace(key); strings.ToLower(key) {
		case "email":
			p.Email = v
		case "push":
			p.Push = v
		case "inapp", "in-app", "in_app":
			p.InApp = v
		default:
			if p.Types == nil {
				p.Types = make(map[models.NotificationType]bool)
			}
			p.Types[models.NotificationType(key)] = v
		}
	}
	return nil
}

func sortedTypes(m map[models.NotificationType]bool) []models.NotificationType {
	keys := make([]models.NotificationType, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// NotificationsWatch holds the real-time channel open and prints each new
// notification until interrupted or --duration elapses.
func (r *Runner) NotificationsWatch(ctx context.Context, cmd *cli.Command) error {
	s, err := r.openAuthenticated(ctx)
	if err != nil {
		return err
	}
	defer closeQuietly(r, s)

	if d := cmd.Duration("duration"); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	if _, err := s.notes.PrimeUnreadCount(ctx); err != nil {
		r.logger.Warn("could not prime unread count", "error", err)
	}

	manager, err := realtime.NewManager(realtime.Options{
		URL:         r.config.Realtime.URL,
		Session:     s.store,
		Inbox:       s.inbox,
		Invalidator: s.notes,
		MaxAttempts: r.config.Realtime.MaxAttempts,
		BaseDelay:   time.Duration(r.config.Realtime.BaseDelayMS) * time.Millisecond,
		MaxDelay:    time.Duration(r.config.Realtime.MaxDelayMS) * time.Millisecond,
		Logger:      r.logger,
	})
	if err != nil {
		return err
	}

	printer := newEventPrinter(r, s.inbox.Snapshot())
	unsubscribe := s.inbox.Subscribe(printer.observe)
	defer unsubscribe()

	if err := r.writePlain("%s %s, %d unread\n", r.palette.Title("Watching"), r.config.Realtime.URL, s.inbox.UnreadCount()); err != nil {
		return err
	}

	stop := manager.Start(ctx)
	<-ctx.Done()
	unread := s.inbox.UnreadCount()
	stop()

	return r.writePlain("%s %d new, %d unread\n", r.palette.Help("stopped:"), printer.count(), unread)
}

// eventPrinter writes inbox changes to the runner output.
type eventPrinter struct {
	r         *Runner
	mu        sync.Mutex
	seen      map[string]bool
	connected bool
	printed   int
}

func newEventPrinter(r *Runner, initial notifications.State) *eventPrinter {
	p := &eventPrinter{r: r, seen: make(map[string]bool), connected: initial.IsConnected}
	for _, n := range initial.Notifications {
		p.seen[n.ID] = true
	}
	return p
}

func (p *eventPrinter) observe(st notifications.State) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if st.IsConnected != p.connected {
		p.connected = st.IsConnected
		p.print(p.r.palette.Connection(st.IsConnected))
	}

	for i := len(st.Notifications) - 1; i >= 0; i-- {
		n := st.Notifications[i]
		if p.seen[n.ID] {
			continue
		}
		p.seen[n.ID] = true
		p.printed++
		p.print(p.r.palette.Event(n))
	}
}

// print writes one line. Observers cannot return errors, so failures are logged.
func (p *eventPrinter) print(line string) {
	if err := p.r.writePlain("%s\n", line); err != nil {
		p.r.logger.Warn("failed to print event", "error", err)
	}
}

func (p *eventPrinter) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.printed
}

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/reelx/internal/cache"
	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/notifications"
	"github.com/desertthunder/reelx/internal/shared"
)

const (
	NotificationsPath = "/notifications"
	ReadAllPath       = "/notifications/read-all"
	PreferencesPath   = "/notifications/preferences"

	DefaultPageSize      = 20
	DefaultPrimeInterval = 30 * time.Second
)

var (
	listPrefix     = cache.Key("notifications", "list")
	preferencesKey = cache.Key("notifications", "preferences")
)

// PageQuery identifies one page of the notification list.
type PageQuery struct {
	Page       int
	Limit      int
	UnreadOnly bool
}

func (q PageQuery) key() string {
	return cache.Key(listPrefix,
		"unread="+strconv.FormatBool(q.UnreadOnly),
		"limit="+strconv.Itoa(q.Limit),
		"page="+strconv.Itoa(q.Page),
	)
}

func (q PageQuery) path() string {
	v := url.Values{}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("limit", strconv.Itoa(q.Limit))
	if q.UnreadOnly {
		v.Set("unreadOnly", "true")
	}
	return NotificationsPath + "?" + v.Encode()
}

// NotificationOptions configures [NewNotificationService].
type NotificationOptions struct {
	PageSize      int
	PrimeInterval time.Duration
	Cache         *cache.Cache
	Logger        *log.Logger
}

// NotificationService is the notification data-access layer. It reads through
// the query cache, applies optimistic read-state changes to the inbox and the
// cached pages, and reconciles them by invalidation and refetch.
type NotificationService struct {
	client   *Client
	inbox    *notifications.Store
	cache    *cache.Cache
	limiter  *rate.Limiter
	pageSize int
	logger   *log.Logger

	mu     sync.Mutex
	active map[string]PageQuery
	epoch  uint64
}

func NewNotificationService(client *Client, inbox *notifications.Store, opts NotificationOptions) *NotificationService {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.PrimeInterval <= 0 {
		opts.PrimeInterval = DefaultPrimeInterval
	}
	if opts.Cache == nil {
		opts.Cache = cache.New(0)
	}
	logger := opts.Logger
	if logger == nil {
		logger = client.logger
	}

	return &NotificationService{
		client:   client,
		inbox:    inbox,
		cache:    opts.Cache,
		limiter:  rate.NewLimiter(rate.Every(opts.PrimeInterval), 1),
		pageSize: opts.PageSize,
		logger:   logger.With("component", "notifications"),
		active:   make(map[string]PageQuery),
		epoch:    client.session.Epoch(),
	}
}

// scope drops cached results and tracked queries left by a previous session.
func (s *NotificationService) scope() {
	epoch := s.client.session.Epoch()

	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch == s.epoch {
		return
	}
	s.epoch = epoch
	clear(s.active)
	if n := s.cache.Remove(cache.Key("notifications")); n > 0 {
		s.logger.Debug("session changed, cache cleared", "entries", n)
	}
}

// Cache exposes the query cache backing the service.
func (s *NotificationService) Cache() *cache.Cache { return s.cache }

// FetchPage returns one page, from cache when fresh. A server-reported unread
// count overwrites the inbox counter.
func (s *NotificationService) FetchPage(ctx context.Context, page, limit int, unreadOnly bool) (*models.NotificationPage, error) {
	q := PageQuery{Page: max(page, 1), Limit: limit, UnreadOnly: unreadOnly}
	if q.Limit <= 0 {
		q.Limit = s.pageSize
	}

	s.scope()
	s.mu.Lock()
	s.active[q.key()] = q
	s.mu.Unlock()

	if cached, ok := cache.Lookup[*models.NotificationPage](s.cache, q.key()); ok {
		return clonePage(cached), nil
	}
	return s.fetch(ctx, q)
}

func (s *NotificationService) fetch(ctx context.Context, q PageQuery) (*models.NotificationPage, error) {
	var page models.NotificationPage
	if err := s.client.Do(ctx, http.MethodGet, q.path(), nil, &page); err != nil {
		return nil, err
	}

	s.cache.Set(q.key(), clonePage(&page))
	if page.UnreadCount != nil {
		s.inbox.SetUnreadCount(*page.UnreadCount)
	}
	s.inbox.Sync(page.Notifications)
	return &page, nil
}

// FetchAll walks every page until the server reports no continuation.
func (s *NotificationService) FetchAll(ctx context.Context, limit int, unreadOnly bool) ([]models.Notification, error) {
	var all []models.Notification
	page := 1
	for {
		p, err := s.FetchPage(ctx, page, limit, unreadOnly)
		if err != nil {
			return all, err
		}
		all = append(all, p.Notifications...)

		next, ok := p.NextPage()
		if !ok {
			return all, nil
		}
		page = next
	}
}

// MarkOneAsRead flips the notification to read locally before calling the
// backend. The unread counter is decremented unless the notification is known
// to be read already.
func (s *NotificationService) MarkOneAsRead(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: notification id", shared.ErrMissingArgument)
	}

	held := slices.IndexFunc(s.inbox.Notifications(), func(n models.Notification) bool { return n.ID == id }) >= 0
	flippedInbox := s.inbox.MarkAsRead(id)
	seen, flippedCache := s.markCachedRead(id)

	if flippedInbox || flippedCache || (!held && !seen) {
		s.inbox.DecrementUnread()
	}

	err := s.client.Do(ctx, http.MethodPatch, NotificationsPath+"/"+url.PathEscape(id)+"/read", nil, nil)
	if err != nil && StatusCode(err) == http.StatusNotFound {
		err = fmt.Errorf("%w: %s: %w", shared.ErrNotificationNotFound, id, err)
	}
	return s.reconcile(ctx, "mark read", err)
}

// MarkAllAsRead marks every held notification read and zeroes the counter
// before calling the backend.
func (s *NotificationService) MarkAllAsRead(ctx context.Context) error {
	s.inbox.MarkAllAsRead()
	zero := 0
	s.cache.Update(listPrefix, func(_ string, v any) any {
		page, ok := v.(*models.NotificationPage)
		if !ok {
			return v
		}
		c := clonePage(page)
		for i := range c.Notifications {
			c.Notifications[i].Read = true
		}
		if c.UnreadCount != nil {
			c.UnreadCount = &zero
		}
		return c
	})

	err := s.client.Do(ctx, http.MethodPatch, ReadAllPath, nil, nil)
	return s.reconcile(ctx, "mark all read", err)
}

// reconcile invalidates the list caches after a mutation. On failure the
// active queries are refetched immediately so the optimistic state is
// overwritten by the server's.
func (s *NotificationService) reconcile(ctx context.Context, op string, err error) error {
	s.cache.Invalidate(listPrefix)
	if err == nil {
		return nil
	}

	s.logger.Warn("mutation failed, refetching", "op", op, "error", err)
	s.refetchActive(ctx)
	return err
}

func (s *NotificationService) refetchActive(ctx context.Context) {
	s.mu.Lock()
	queries := make([]PageQuery, 0, len(s.active))
	for _, q := range s.active {
		queries = append(queries, q)
	}
	s.mu.Unlock()

	slices.SortFunc(queries, func(a, b PageQuery) int { return a.Page - b.Page })
	for _, q := range queries {
		if !s.cache.IsStale(q.key()) {
			continue
		}
		if _, err := s.fetch(ctx, q); err != nil {
			s.logger.Warn("refetch failed", "page", q.Page, "error", err)
		}
	}
}

// markCachedRead flips id to read in every cached page. seen reports whether any
// page held it, flipped whether any copy was unread.
func (s *NotificationService) markCachedRead(id string) (seen, flipped bool) {
	s.cache.Update(listPrefix, func(_ string, v any) any {
		page, ok := v.(*models.NotificationPage)
		if !ok {
			return v
		}
		i := slices.IndexFunc(page.Notifications, func(n models.Notification) bool { return n.ID == id })
		if i < 0 {
			return v
		}
		seen = true

		c := clonePage(page)
		if !c.Notifications[i].Read {
			flipped = true
			c.Notifications[i].Read = true
			if c.UnreadCount != nil {
				n := max(*c.UnreadCount-1, 0)
				c.UnreadCount = &n
			}
		}
		return c
	})
	return seen, flipped
}

// FetchPreferences returns the user's delivery preferences, from cache when fresh.
func (s *NotificationService) FetchPreferences(ctx context.Context) (*models.Preferences, error) {
	s.scope()
	if cached, ok := cache.Lookup[models.Preferences](s.cache, preferencesKey); ok {
		return &cached, nil
	}

	var prefs models.Preferences
	if err := s.client.Do(ctx, http.MethodGet, PreferencesPath, nil, &prefs); err != nil {
		if errors.Is(err, shared.ErrServiceUnavailable) || StatusCode(err) == http.StatusNotFound {
			return nil, fmt.Errorf("%w: preferences: %w", shared.ErrServiceUnavailable, err)
		}
		return nil, err
	}
	s.cache.Set(preferencesKey, prefs)
	return &prefs, nil
}

// UpdatePreferences saves prefs and invalidates the cached copy.
func (s *NotificationService) UpdatePreferences(ctx context.Context, prefs models.Preferences) (*models.Preferences, error) {
	var updated models.Preferences
	if err := s.client.Do(ctx, http.MethodPut, PreferencesPath, prefs, &updated); err != nil {
		return nil, err
	}
	s.cache.Invalidate(preferencesKey)
	return &updated, nil
}

// FetchUnreadCountOnly primes the counter with a single-item page.
func (s *NotificationService) FetchUnreadCountOnly(ctx context.Context) (int, error) {
	q := PageQuery{Page: 1, Limit: 1, UnreadOnly: true}

	var page models.NotificationPage
	if err := s.client.Do(ctx, http.MethodGet, q.path(), nil, &page); err != nil {
		return 0, err
	}

	count := page.Total
	if page.UnreadCount != nil {
		count = *page.UnreadCount
	}
	s.inbox.SetUnreadCount(count)
	return count, nil
}

// PrimeUnreadCount runs [NotificationService.FetchUnreadCountOnly] at most once
// per prime interval. It reports whether a fetch was made.
func (s *NotificationService) PrimeUnreadCount(ctx context.Context) (bool, error) {
	if !s.limiter.Allow() {
		return false, nil
	}
	_, err := s.FetchUnreadCountOnly(ctx)
	return true, err
}

// InvalidateNotifications marks every cached list page stale. The real-time
// channel calls it on each push.
func (s *NotificationService) InvalidateNotifications() {
	n := s.cache.Invalidate(listPrefix)
	s.logger.Debug("notification caches invalidated", "entries", n)
}

func clonePage(p *models.NotificationPage) *models.NotificationPage {
	c := *p
	c.Notifications = slices.Clone(p.Notifications)
	if p.UnreadCount != nil {
		n := *p.UnreadCount
		c.UnreadCount = &n
	}
	return &c
}

package devserver

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/shared"
)

type account struct {
	user     models.User
	password []byte
}

// state is the in-memory backing store. Notifications are kept newest first.
type state struct {
	mu            sync.Mutex
	accounts      map[string]*account // by lowercase email
	byID          map[string]*account
	pending       map[string]string // confirmation token -> user id
	refresh       map[string]string // refresh jti -> user id
	notifications map[string][]models.Notification
	prefs         map[string]models.Preferences
	generation    int
	refreshes     int
}

func newState() *state {
	return &state{
		accounts:      make(map[string]*account),
		byID:          make(map[string]*account),
		pending:       make(map[string]string),
		refresh:       make(map[string]string),
		notifications: make(map[string][]models.Notification),
		prefs:         make(map[string]models.Preferences),
	}
}

func defaultPreferences() models.Preferences {
	return models.Preferences{Email: true, Push: true, InApp: true}
}

func (s *state) addAccount(u models.User, password string) (models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(u.Email)
	if _, ok := s.accounts[key]; ok {
		return models.User{}, fmt.Errorf("%w: %s is already registered", shared.ErrInvalidInput, u.Email)
	}
	if u.ID == "" {
		u.ID = shared.GenerateID()
	}
	if u.Role == "" {
		u.Role = models.RoleUser
	}

	a := &account{user: u, password: hash}
	s.accounts[key] = a
	s.byID[u.ID] = a
	s.prefs[u.ID] = defaultPreferences()
	return u, nil
}

func (s *state) authenticate(email, password string) (models.User, error) {
	s.mu.Lock()
	a, ok := s.accounts[strings.ToLower(email)]
	s.mu.Unlock()

	if !ok || bcrypt.CompareHashAndPassword(a.password, []byte(password)) != nil {
		return models.User{}, fmt.Errorf("%w: invalid email or password", shared.ErrAuthFailed)
	}
	if !a.user.IsVerified {
		return models.User{}, fmt.Errorf("%w: account is not confirmed", shared.ErrAuthFailed)
	}
	return a.user, nil
}

func (s *state) user(id string) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return models.User{}, false
	}
	return a.user, true
}

func (s *state) userIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.byID))
	for id := range s.byID {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (s *state) addPending(userID string) string {
	token := shared.GenerateID()
	s.mu.Lock()
	s.pending[token] = userID
	s.mu.Unlock()
	return token
}

func (s *state) confirm(token string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.pending[token]
	if !ok {
		return models.User{}, fmt.Errorf("%w: unknown or used confirmation token", shared.ErrAuthFailed)
	}
	delete(s.pending, token)

	a := s.byID[id]
	a.user.IsVerified = true
	return a.user, nil
}

func (s *state) currentGeneration() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

func (s *state) expireAccess() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	return s.generation
}

func (s *state) storeRefresh(jti, userID string) {
	s.mu.Lock()
	s.refresh[jti] = userID
	s.mu.Unlock()
}

// rotateRefresh consumes jti. It fails when jti was already used or revoked.
func (s *state) rotateRefresh(jti string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.refresh[jti]
	if !ok {
		return "", fmt.Errorf("%w: refresh token revoked", shared.ErrUnauthorized)
	}
	delete(s.refresh, jti)
	s.refreshes++
	return id, nil
}

func (s *state) revokeRefresh(jti string) {
	s.mu.Lock()
	delete(s.refresh, jti)
	s.mu.Unlock()
}

func (s *state) addNotification(userID string, n models.Notification) models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.ID == "" {
		n.ID = shared.GenerateID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	s.notifications[userID] = append([]models.Notification{n}, s.notifications[userID]...)
	return n
}

func (s *state) page(userID string, page, limit int, unreadOnly bool) models.NotificationPage {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.notifications[userID]
	unread := 0
	var filtered []models.Notification
	for _, n := range all {
		if !n.Read {
			unread++
		}
		if unreadOnly && n.Read {
			continue
		}
		filtered = append(filtered, n)
	}

	total := len(filtered)
	start := min((page-1)*limit, total)
	end := min(start+limit, total)

	return models.NotificationPage{
		Notifications: slices.Clone(filtered[start:end]),
		Page:          page,
		Limit:         limit,
		Total:         total,
		TotalPages:    (total + limit - 1) / limit,
		UnreadCount:   &unread,
	}
}

func (s *state) markRead(userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.notifications[userID]
	i := slices.IndexFunc(list, func(n models.Notification) bool { return n.ID == id })
	if i < 0 {
		return fmt.Errorf("%w: %s", shared.ErrNotificationNotFound, id)
	}
	list[i].Read = true
	return nil
}

func (s *state) markAllRead(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := 0
	for i := range s.notifications[userID] {
		if !s.notifications[userID][i].Read {
			s.notifications[userID][i].Read = true
			changed++
		}
	}
	return changed
}

func (s *state) preferences(userID string) models.Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prefs[userID]
	if !ok {
		return defaultPreferences()
	}
	return p
}

func (s *state) setPreferences(userID string, p models.Preferences) {
	s.mu.Lock()
	s.prefs[userID] = p
	s.mu.Unlock()
}

func (s *state) userByEmail(email string) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[strings.ToLower(email)]
	if !ok {
		return models.User{}, false
	}
	return a.user, true
}

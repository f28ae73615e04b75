// Package notifications holds the in-memory notification inbox.
//
// The [Store] is process-wide and never persisted. It is fed by the real-time
// channel and by the data-access layer's optimistic updates, and is reset on logout.
package notifications

import (
	"slices"
	"sync"

	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/shared"
)

// State is a snapshot of the inbox.
type State struct {
	UnreadCount   int
	Notifications []models.Notification
	IsConnected   bool
}

// Store is the notification inbox. The zero value is an empty, disconnected inbox.
type Store struct {
	mu        sync.Mutex
	state     State
	observers shared.Observers[State]
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) SetUnreadCount(n int) {
	s.mutate(func(st *State) { st.UnreadCount = max(n, 0) })
}

func (s *Store) IncrementUnread() {
	s.mutate(func(st *State) { st.UnreadCount++ })
}

// DecrementUnread lowers the unread count by one, never below zero.
func (s *Store) DecrementUnread() {
	s.mutate(func(st *State) { st.UnreadCount = max(st.UnreadCount-1, 0) })
}

func (s *Store) ResetUnread() {
	s.mutate(func(st *State) { st.UnreadCount = 0 })
}

// Add prepends n unless a notification with the same ID is already held.
// It reports whether n was added.
func (s *Store) Add(n models.Notification) bool {
	added := false
	s.mutate(func(st *State) {
		if slices.ContainsFunc(st.Notifications, func(e models.Notification) bool { return e.ID == n.ID }) {
			return
		}
		st.Notifications = append([]models.Notification{n}, st.Notifications...)
		added = true
	})
	return added
}

// SetNotifications replaces the list, keeping the first occurrence of each ID.
func (s *Store) SetNotifications(list []models.Notification) {
	seen := make(map[string]struct{}, len(list))
	out := make([]models.Notification, 0, len(list))
	for _, n := range list {
		if _, ok := seen[n.ID]; ok {
			continue
		}
		seen[n.ID] = struct{}{}
		out = append(out, n)
	}
	s.mutate(func(st *State) { st.Notifications = out })
}

// MarkAsRead flags a held notification as read. It reports whether the
// notification was held and previously unread; the unread count is not changed.
func (s *Store) MarkAsRead(id string) bool {
	changed := false
	s.mutate(func(st *State) {
		for i := range st.Notifications {
			if st.Notifications[i].ID == id {
				changed = !st.Notifications[i].Read
				st.Notifications[i].Read = true
				return
			}
		}
	})
	return changed
}

// Sync copies the read flag from authoritative copies onto held notifications
// with the same ID. Notifications not already held are ignored.
func (s *Store) Sync(list []models.Notification) {
	if len(list) == 0 {
		return
	}
	read := make(map[string]bool, len(list))
	for _, n := range list {
		read[n.ID] = n.Read
	}
	s.mutate(func(st *State) {
		for i := range st.Notifications {
			if r, ok := read[st.Notifications[i].ID]; ok {
				st.Notifications[i].Read = r
			}
		}
	})
}

// MarkAllAsRead flags every held notification as read and zeroes the unread count.
func (s *Store) MarkAllAsRead() {
	s.mutate(func(st *State) {
		for i := range st.Notifications {
			st.Notifications[i].Read = true
		}
		st.UnreadCount = 0
	})
}

func (s *Store) SetConnected(v bool) {
	s.mutate(func(st *State) { st.IsConnected = v })
}

// Reset returns the store to its initial empty state.
func (s *Store) Reset() {
	s.mutate(func(st *State) { *st = State{} })
}

func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.UnreadCount
}

// Notifications returns a copy of the held list, newest first.
func (s *Store) Notifications() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.state.Notifications)
}

func (s *Store) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.IsConnected
}

// Snapshot returns a copy of the whole state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyState()
}

// Subscribe registers fn to run after every mutation. The returned function detaches it.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	return s.observers.Add(fn)
}

func (s *Store) mutate(fn func(*State)) {
	s.mu.Lock()
	fn(&s.state)
	st := s.copyState()
	s.mu.Unlock()

	s.observers.Notify(st)
}

func (s *Store) copyState() State {
	st := s.state
	st.Notifications = slices.Clone(s.state.Notifications)
	return st
}

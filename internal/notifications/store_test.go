package notifications

import (
	"sync"
	"testing"

	"github.com/desertthunder/reelx/internal/models"
)

func note(id string, read bool) models.Notification {
	return models.Notification{ID: id, Type: models.NotificationNewComment, Title: "t-" + id, Read: read}
}

func TestStore_Unread(t *testing.T) {
	t.Run("Floor At Zero", func(t *testing.T) {
		s := NewStore()
		s.DecrementUnread()
		s.DecrementUnread()

		if got := s.UnreadCount(); got != 0 {
			t.Errorf("expected 0, got %d", got)
		}
	})

	t.Run("Increment And Decrement", func(t *testing.T) {
		s := NewStore()
		s.SetUnreadCount(2)
		s.IncrementUnread()
		s.DecrementUnread()

		if got := s.UnreadCount(); got != 2 {
			t.Errorf("expected 2, got %d", got)
		}
	})

	t.Run("Negative Set Clamped", func(t *testing.T) {
		s := NewStore()
		s.SetUnreadCount(-4)
		if got := s.UnreadCount(); got != 0 {
			t.Errorf("expected 0, got %d", got)
		}
	})

	t.Run("Reset", func(t *testing.T) {
		s := NewStore()
		s.SetUnreadCount(7)
		s.ResetUnread()
		if got := s.UnreadCount(); got != 0 {
			t.Errorf("expected 0, got %d", got)
		}
	})

	t.Run("Concurrent Decrements", func(t *testing.T) {
		s := NewStore()
		s.SetUnreadCount(10)

		var wg sync.WaitGroup
		for range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.DecrementUnread()
			}()
		}
		wg.Wait()

		if got := s.UnreadCount(); got != 0 {
			t.Errorf("expected 0, got %d", got)
		}
	})
}

func TestStore_Notifications(t *testing.T) {
	t.Run("Dedupe", func(t *testing.T) {
		s := NewStore()
		if !s.Add(note("a", false)) {
			t.Fatal("first Add should report added")
		}
		if s.Add(note("a", true)) {
			t.Error("second Add with same ID should report not added")
		}

		list := s.Notifications()
		if len(list) != 1 {
			t.Fatalf("expected 1 notification, got %d", len(list))
		}
		if list[0].Read {
			t.Error("duplicate should not overwrite the held entry")
		}
	})

	t.Run("Prepend", func(t *testing.T) {
		s := NewStore()
		s.Add(note("a", false))
		s.Add(note("b", false))

		list := s.Notifications()
		if list[0].ID != "b" || list[1].ID != "a" {
			t.Errorf("expected newest first, got %s, %s", list[0].ID, list[1].ID)
		}
	})

	t.Run("SetNotifications Dedupes", func(t *testing.T) {
		s := NewStore()
		s.SetNotifications([]models.Notification{note("a", false), note("b", false), note("a", true)})

		list := s.Notifications()
		if len(list) != 2 {
			t.Fatalf("expected 2 notifications, got %d", len(list))
		}
	})

	t.Run("MarkAsRead", func(t *testing.T) {
		s := NewStore()
		s.Add(note("a", false))
		s.SetUnreadCount(1)

		if !s.MarkAsRead("a") {
			t.Error("expected MarkAsRead to report a change")
		}
		if s.MarkAsRead("a") {
			t.Error("second MarkAsRead should report no change")
		}
		if s.MarkAsRead("missing") {
			t.Error("missing ID should report no change")
		}
		if !s.Notifications()[0].Read {
			t.Error("expected notification to be read")
		}
		if s.UnreadCount() != 1 {
			t.Error("MarkAsRead should not touch the unread count")
		}
	})

	t.Run("MarkAllAsRead", func(t *testing.T) {
		s := NewStore()
		for _, id := range []string{"a", "b", "c", "d", "e"} {
			s.Add(note(id, false))
		}
		s.SetUnreadCount(5)

		s.MarkAllAsRead()

		if s.UnreadCount() != 0 {
			t.Errorf("expected unread 0, got %d", s.UnreadCount())
		}
		for _, n := range s.Notifications() {
			if !n.Read {
				t.Errorf("notification %s should be read", n.ID)
			}
		}
	})

	t.Run("Sync", func(t *testing.T) {
		s := NewStore()
		s.Add(note("a", true))
		s.Add(note("b", true))

		s.Sync([]models.Notification{note("a", false), note("z", false)})

		list := s.Notifications()
		if len(list) != 2 {
			t.Fatalf("Sync must not add notifications, got %d", len(list))
		}
		for _, n := range list {
			if n.ID == "a" && n.Read {
				t.Error("a should be unread after sync")
			}
			if n.ID == "b" && !n.Read {
				t.Error("b should be untouched")
			}
		}
	})

	t.Run("Returned List Is A Copy", func(t *testing.T) {
		s := NewStore()
		s.Add(note("a", false))

		list := s.Notifications()
		list[0].Read = true

		if s.Notifications()[0].Read {
			t.Error("mutating the returned slice should not affect the store")
		}
	})
}

func TestStore_Reset(t *testing.T) {
	s := NewStore()
	s.Add(note("a", false))
	s.SetUnreadCount(3)
	s.SetConnected(true)

	s.Reset()

	st := s.Snapshot()
	if st.UnreadCount != 0 || len(st.Notifications) != 0 || st.IsConnected {
		t.Errorf("expected initial state, got %+v", st)
	}
}

func TestStore_Subscribe(t *testing.T) {
	s := NewStore()
	var seen []State
	unsubscribe := s.Subscribe(func(st State) { seen = append(seen, st) })

	s.SetConnected(true)
	s.IncrementUnread()
	unsubscribe()
	s.IncrementUnread()

	if len(seen) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(seen))
	}
	if !seen[0].IsConnected || seen[1].UnreadCount != 1 {
		t.Errorf("unexpected states %+v", seen)
	}
}

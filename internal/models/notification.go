package models

import (
	"encoding/json"
	"time"
)

// NotificationType is the enumerated category of a notification.
type NotificationType string

const (
	NotificationNewComment     NotificationType = "new_comment"
	NotificationNewFollower    NotificationType = "new_follower"
	NotificationVideoPublished NotificationType = "video_published"
	NotificationVideoProcessed NotificationType = "video_processed"
	NotificationVideoLiked     NotificationType = "video_liked"
	NotificationPayout         NotificationType = "payout"
	NotificationSystem         NotificationType = "system"
)

// Notification is the client-side projection of a backend notification.
//
// The backend has shipped two spellings for some fields. Message and Read are
// canonical; decoding also accepts "body", "isRead" and "payload", and encoding
// writes both "read" and "isRead".
type Notification struct {
	ID        string           `json:"_id" validate:"required"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Data      map[string]any   `json:"data,omitempty"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"createdAt"`
}

type notificationWire struct {
	ID        string           `json:"_id"`
	AltID     string           `json:"id,omitempty"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message,omitempty"`
	Body      string           `json:"body,omitempty"`
	Data      map[string]any   `json:"data,omitempty"`
	Payload   map[string]any   `json:"payload,omitempty"`
	Read      *bool            `json:"read,omitempty"`
	IsRead    *bool            `json:"isRead,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// UnmarshalJSON maps legacy field names onto the canonical ones.
func (n *Notification) UnmarshalJSON(data []byte) error {
	var w notificationWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*n = Notification{
		ID:        w.ID,
		Type:      w.Type,
		Title:     w.Title,
		Message:   w.Message,
		Data:      w.Data,
		CreatedAt: w.CreatedAt,
	}
	if n.ID == "" {
		n.ID = w.AltID
	}
	if n.Message == "" {
		n.Message = w.Body
	}
	if n.Data == nil {
		n.Data = w.Payload
	}
	switch {
	case w.Read != nil:
		n.Read = *w.Read
	case w.IsRead != nil:
		n.Read = *w.IsRead
	}
	return nil
}

// MarshalJSON writes the canonical fields plus the legacy read flag.
func (n Notification) MarshalJSON() ([]byte, error) {
	read := n.Read
	return json.Marshal(notificationWire{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Data:      n.Data,
		Read:      &read,
		IsRead:    &read,
		CreatedAt: n.CreatedAt,
	})
}

// NotificationPage is one page of the paginated list endpoint.
//
// UnreadCount is nil when the server did not report one.
type NotificationPage struct {
	Notifications []Notification `json:"notifications"`
	Page          int            `json:"page"`
	Limit         int            `json:"limit"`
	Total         int            `json:"total"`
	TotalPages    int            `json:"totalPages"`
	UnreadCount   *int           `json:"unreadCount,omitempty"`
}

// NextPage returns the continuation page number, or false when this is the last page.
func (p *NotificationPage) NextPage() (int, bool) {
	if p == nil || p.Page >= p.TotalPages {
		return 0, false
	}
	return p.Page + 1, true
}

// Preferences are the user's notification delivery settings.
type Preferences struct {
	Email bool                      `json:"email"`
	Push  bool                      `json:"push"`
	InApp bool                      `json:"inApp"`
	Types map[NotificationType]bool `json:"types,omitempty"`
}

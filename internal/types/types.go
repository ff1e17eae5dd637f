package types

import (
	"time"
)

// Message lifecycle statuses. Transitions only move forward:
// sent -> delivered -> read.
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
)

const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeFile  = "file"
	MessageTypeVoice = "voice"
	MessageTypeVideo = "video"
)

type User struct {
	Id        int       `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	IsOnline  bool      `json:"is_online,omitempty"`
	LastSeen  time.Time `json:"last_seen,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

type Room struct {
	Id          string    `json:"id"`
	OtherUser   User      `json:"other_user"`
	UnreadCount int       `json:"unread_count"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

type Message struct {
	Id          string           `json:"id"`
	RoomId      string           `json:"room_id"`
	Sender      User             `json:"sender"`
	MessageType string           `json:"message_type"`
	Content     string           `json:"content"`
	File        string           `json:"file,omitempty"`
	Status      string           `json:"status"`
	IsRead      bool             `json:"is_read"`
	ReplyTo     string           `json:"reply_to,omitempty"`
	Reactions   map[string][]int `json:"reactions,omitempty"`
	DeliveredAt *time.Time       `json:"delivered_at,omitempty"`
	ReadAt      *time.Time       `json:"read_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

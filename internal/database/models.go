package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type Account struct {
	Id           int
	Username     string
	EmailAddress string
	PasswordHash string
	IsOnline     bool
	LastSeen     time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Connection is a mutual-acceptance relationship between two users. The pair
// is stored normalized, lower id first.
type Connection struct {
	Id        int
	User1Id   int
	User2Id   int
	CreatedAt time.Time
}

// Room is a one-to-one chat channel between two connected users. ExternalId
// is the opaque, non-sequential identifier exposed on the wire. UpdatedAt is
// the room's last-activity timestamp, touched on every message insert.
type Room struct {
	Id         int
	ExternalId string
	User1Id    int
	User2Id    int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// HasParticipant reports whether userId is one of the room's two
// participants. Both the websocket gate and every room-scoped REST handler
// authorize through this predicate.
func (r Room) HasParticipant(userId int) bool {
	return userId == r.User1Id || userId == r.User2Id
}

// OtherParticipant returns the participant that is not userId.
func (r Room) OtherParticipant(userId int) int {
	if userId == r.User1Id {
		return r.User2Id
	}
	return r.User1Id
}

// NormalizePair orders a user pair lower id first so a lookup by either
// ordering resolves to the same row.
func NormalizePair(a, b int) (int, int) {
	if a > b {
		return b, a
	}
	return a, b
}

// ReactionSet maps a reaction symbol to the ids of the users who reacted.
// It round-trips through a jsonb column.
type ReactionSet map[string][]int

func (r ReactionSet) Value() (driver.Value, error) {
	if r == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r)
}

func (r *ReactionSet) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*r = ReactionSet{}
		return nil
	case []byte:
		return json.Unmarshal(v, r)
	case string:
		return json.Unmarshal([]byte(v), r)
	default:
		return fmt.Errorf("cannot scan %T into ReactionSet", src)
	}
}

type Message struct {
	Id             string
	RoomId         int
	RoomExternalId string
	SenderId       int
	SenderUsername string
	MessageType    string
	Content        string
	FilePath       string
	Status         string
	IsRead         bool
	DeliveredAt    *time.Time
	ReadAt         *time.Time
	ReplyToId      string
	Reactions      ReactionSet
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type CreateAccountParams struct {
	Username     string
	EmailAddress string
	PasswordHash string
}

type CreateMessageParams struct {
	RoomId      int
	SenderId    int
	MessageType string
	Content     string
	FilePath    string
	ReplyToId   string
}

// RoomListEntry is one row of a user's room list: the room, the other
// participant and the number of messages the user has not read yet.
type RoomListEntry struct {
	Room        Room
	OtherUser   Account
	UnreadCount int
}

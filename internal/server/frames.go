package server

import (
	"time"

	"github.com/campusconnect/campus-chat/internal/database"
	"github.com/campusconnect/campus-chat/internal/types"
)

// Inbound frame types. The type tag drives dispatch in Room.handleFrame.
const (
	FrameChatMessage      = "chat_message"
	FrameTyping           = "typing"
	FrameMarkRead         = "mark_read"
	FrameMessageDelivered = "message_delivered"
	FrameMessageRead      = "message_read"
)

// Outbound frame types.
const (
	FrameTypingIndicator = "typing_indicator"
	FrameError           = "error"
)

// ClientFrame is a single inbound websocket frame.
type ClientFrame struct {
	Type      string `json:"type"`
	Content   string `json:"content,omitempty"`
	IsTyping  bool   `json:"is_typing,omitempty"`
	MessageId string `json:"message_id,omitempty"`

	session *Session
}

// ServerFrame is a single outbound websocket frame.
type ServerFrame struct {
	Type      string         `json:"type"`
	Message   *types.Message `json:"message,omitempty"`
	User      string         `json:"user,omitempty"`
	IsTyping  *bool          `json:"is_typing,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`

	// originUserId suppresses the echo of a frame to the user who caused
	// it. The filter matches on the event's declared origin user, not the
	// session, so a user connected from two sessions is suppressed on both.
	originUserId int
	skipOrigin   bool
}

func ChatMessageFrame(msg *types.Message) *ServerFrame {
	return &ServerFrame{
		Type:    FrameChatMessage,
		Message: msg,
	}
}

func TypingIndicatorFrame(user types.User, isTyping bool) *ServerFrame {
	return &ServerFrame{
		Type:         FrameTypingIndicator,
		User:         user.Username,
		IsTyping:     &isTyping,
		originUserId: user.Id,
		skipOrigin:   true,
	}
}

// ErrFrame builds an error frame with a client-safe reason. Internal detail
// never travels on the wire.
func ErrFrame(reason string) *ServerFrame {
	return &ServerFrame{
		Type:  FrameError,
		Error: reason,
	}
}

// toWireMessage converts a stored message to its wire representation.
func toWireMessage(msg database.Message) *types.Message {
	return &types.Message{
		Id:     msg.Id,
		RoomId: msg.RoomExternalId,
		Sender: types.User{
			Id:       msg.SenderId,
			Username: msg.SenderUsername,
		},
		MessageType: msg.MessageType,
		Content:     msg.Content,
		File:        msg.FilePath,
		Status:      msg.Status,
		IsRead:      msg.IsRead,
		ReplyTo:     msg.ReplyToId,
		Reactions:   msg.Reactions,
		DeliveredAt: msg.DeliveredAt,
		ReadAt:      msg.ReadAt,
		CreatedAt:   msg.CreatedAt,
	}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}

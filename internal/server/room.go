package server

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/campusconnect/campus-chat/internal/database"
	"github.com/campusconnect/campus-chat/internal/types"
)

var idleRoomTimeout = time.Second * 30

// Room is the broadcast group for one chat room. A single goroutine owns the
// session set and serializes join, leave and frame handling, so membership
// never changes mid-broadcast.
type Room struct {
	id         int
	externalId string
	cs         *ChatServer
	joinChan   chan *Session
	leaveChan  chan *Session
	frameChan  chan *ClientFrame
	sessions   map[*Session]struct{}
	log        *log.Logger
	// killTimer unloads the room once the last session leaves
	killTimer *time.Timer
	exit      chan struct{}
	done      chan struct{}
}

func newRoom(dbRoom database.Room, cs *ChatServer) *Room {
	return &Room{
		id:         dbRoom.Id,
		externalId: dbRoom.ExternalId,
		cs:         cs,
		joinChan:   make(chan *Session, 256),
		leaveChan:  make(chan *Session, 256),
		frameChan:  make(chan *ClientFrame, 256),
		sessions:   make(map[*Session]struct{}),
		log:        cs.log,
		exit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (r *Room) start() {
	r.log.Printf("starting room %q", r.externalId)
	r.killTimer = time.NewTimer(idleRoomTimeout)
	r.killTimer.Stop()

	for {
		select {
		case s := <-r.joinChan:
			r.handleJoin(s)
		case s := <-r.leaveChan:
			r.handleLeave(s)
		case frame := <-r.frameChan:
			r.handleFrame(frame)
		case <-r.killTimer.C:
			// A join buffered before the timer fired repopulates the
			// room on the next iteration.
			if len(r.sessions) > 0 || len(r.joinChan) > 0 {
				continue
			}

			req := &unloadReq{externalId: r.externalId, ok: make(chan bool)}
			select {
			case r.cs.unloadRoomChan <- req:
				if <-req.ok {
					r.log.Printf("room %q idle, unloaded", r.externalId)
					close(r.done)
					return
				}
			case <-r.exit:
				r.handleRoomExit()
				return
			}
		case <-r.exit:
			r.handleRoomExit()
			return
		}
	}
}

// handleJoin adds a session to the broadcast group. Idempotent per session.
func (r *Room) handleJoin(s *Session) {
	r.killTimer.Stop()

	if _, ok := r.sessions[s]; ok {
		return
	}

	r.sessions[s] = struct{}{}
	s.attachRoom(r)
	r.log.Printf("session for %q joined room %q", s.user.Username, r.externalId)
}

// handleLeave removes a session. Leaving a room the session never joined is
// a no-op, which covers teardown racing a failed join.
func (r *Room) handleLeave(s *Session) {
	if _, ok := r.sessions[s]; !ok {
		return
	}

	delete(r.sessions, s)
	s.detachRoom()
	r.log.Printf("session for %q left room %q", s.user.Username, r.externalId)

	if len(r.sessions) == 0 {
		r.killTimer.Reset(idleRoomTimeout)
	}
}

func (r *Room) handleRoomExit() {
	r.log.Printf("room %q is exiting", r.externalId)
	for s := range r.sessions {
		s.detachRoom()
	}

	close(r.done)
}

// handleFrame dispatches one inbound frame. A fault while handling a single
// frame is contained: the session gets a generic error frame and stays
// joined.
func (r *Room) handleFrame(frame *ClientFrame) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Printf("panic handling %q frame in room %q: %v", frame.Type, r.externalId, rec)
			frame.session.queueFrame(ErrFrame("internal server error"))
		}
	}()

	switch frame.Type {
	case FrameChatMessage:
		r.saveAndBroadcast(frame)
	case FrameTyping:
		r.broadcast(TypingIndicatorFrame(frame.session.user, frame.IsTyping))
	case FrameMarkRead:
		if _, err := r.cs.db.MarkRoomRead(r.id, frame.session.user.Id); err != nil {
			r.log.Println("MarkRoomRead:", err)
			frame.session.queueFrame(ErrFrame("internal server error"))
		}
	case FrameMessageDelivered:
		r.updateStatus(frame, types.StatusDelivered)
	case FrameMessageRead:
		r.updateStatus(frame, types.StatusRead)
	default:
		frame.session.queueFrame(ErrFrame("unsupported message type"))
	}
}

// saveAndBroadcast persists an inbound chat message and fans it out to the
// room. The message is durably stored before any session sees it, so a
// history read issued right after a broadcast always includes it.
func (r *Room) saveAndBroadcast(frame *ClientFrame) {
	msg, err := r.cs.db.CreateMessage(database.CreateMessageParams{
		RoomId:      r.id,
		SenderId:    frame.session.user.Id,
		MessageType: types.MessageTypeText,
		Content:     strings.TrimSpace(frame.Content),
	})
	if err != nil {
		if database.IsValidation(err) {
			frame.session.queueFrame(ErrFrame("message content is required"))
			return
		}

		r.log.Println("error saving message:", err)
		frame.session.queueFrame(ErrFrame("internal server error"))
		return
	}

	r.cs.stats.Incr(StatTotalMessages)
	r.broadcast(ChatMessageFrame(toWireMessage(msg)))
}

func (r *Room) updateStatus(frame *ClientFrame, status string) {
	if frame.MessageId == "" {
		frame.session.queueFrame(ErrFrame("message_id is required"))
		return
	}

	if err := r.cs.db.UpdateMessageStatus(frame.MessageId, status); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			frame.session.queueFrame(ErrFrame("message not found"))
			return
		}

		r.log.Println("UpdateMessageStatus:", err)
		frame.session.queueFrame(ErrFrame("internal server error"))
	}
}

func (r *Room) broadcast(frame *ServerFrame) {
	frame.Timestamp = Now()

	for s := range r.sessions {
		if frame.skipOrigin && s.user.Id == frame.originUserId {
			continue
		}

		s.queueFrame(frame)
	}

	r.cs.stats.Incr(StatTotalBroadcasts)
}

package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/campusconnect/campus-chat/internal/types"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendQueueSize  = 256
)

// Session is one live websocket connection, bound to one user and one room.
// By the time a Session exists the connection has already been
// authenticated and authorized; the session only runs the Joined state.
type Session struct {
	conn      *websocket.Conn
	cs        *ChatServer
	log       *log.Logger
	user      types.User
	room      *Room
	roomLock  sync.RWMutex
	send      chan *ServerFrame
	stop      chan struct{}
	closeOnce sync.Once
}

func NewSession(user types.User, conn *websocket.Conn, cs *ChatServer, l *log.Logger) *Session {
	return &Session{
		conn: conn,
		cs:   cs,
		log:  l,
		user: user,
		send: make(chan *ServerFrame, sendQueueSize),
		stop: make(chan struct{}),
	}
}

func (s *Session) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-s.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(frame)
			if err != nil {
				s.log.Println("failed to serialize frame:", err)
				continue
			}

			if !s.writeMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-s.stop:
			return
		case <-ticker.C:
			if !s.writeMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (s *Session) ReadPump() {
	defer func() {
		s.conn.Close()
		s.teardown()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error { s.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.log.Printf("ws: read: %v", err)
			}
			break
		}

		var frame ClientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			s.log.Println("error parsing frame:", err)
			s.queueFrame(ErrFrame("invalid message format"))
			continue
		}

		frame.session = s

		room := s.getRoom()
		if room == nil {
			s.queueFrame(ErrFrame("room not available"))
			continue
		}

		select {
		case room.frameChan <- &frame:
		default:
			s.log.Printf("frame channel full for room %q", room.externalId)
			s.queueFrame(ErrFrame("service unavailable"))
		}
	}
}

// queueFrame delivers a frame to the session's outbound queue without
// blocking. A backed-up session drops frames rather than stalling the
// broadcaster.
func (s *Session) queueFrame(frame *ServerFrame) bool {
	select {
	case s.send <- frame:
	default:
		s.log.Printf("dropping frame for %q, send queue full", s.user.Username)
		return false
	}

	return true
}

func (s *Session) writeMessage(msgType int, data []byte) bool {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := s.conn.WriteMessage(msgType, data); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			s.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

// teardown runs exactly once no matter how many disconnect paths fire
// concurrently: it leaves the room, deregisters from the chat server and
// stops the write pump.
func (s *Session) teardown() {
	s.closeOnce.Do(func() {
		s.conn.Close()

		if room := s.getRoom(); room != nil {
			select {
			case room.leaveChan <- s:
			default:
				s.log.Printf("leave channel full for room %q", room.externalId)
			}
		}

		select {
		case s.cs.deRegisterChan <- s:
		case <-s.cs.done:
		}

		close(s.stop)
	})
}

func (s *Session) attachRoom(r *Room) {
	s.roomLock.Lock()
	defer s.roomLock.Unlock()
	s.room = r
}

func (s *Session) detachRoom() {
	s.roomLock.Lock()
	defer s.roomLock.Unlock()
	s.room = nil
}

func (s *Session) getRoom() *Room {
	s.roomLock.RLock()
	defer s.roomLock.RUnlock()
	return s.room
}

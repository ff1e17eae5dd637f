package server

import (
	"context"
	"log"
	"sync"

	"github.com/campusconnect/campus-chat/internal/database"
	"github.com/campusconnect/campus-chat/internal/stats"
)

// Metric names registered with the stats provider.
const (
	StatActiveSessions  = "ActiveSessions"
	StatActiveRooms     = "ActiveRooms"
	StatTotalMessages   = "TotalMessages"
	StatTotalBroadcasts = "TotalBroadcasts"
)

type joinReq struct {
	room    database.Room
	session *Session
}

// unloadReq is an idle room asking to be removed from the room table. The
// run loop answers on ok; a pending join declines the unload and the room
// keeps running.
type unloadReq struct {
	externalId string
	ok         chan bool
}

// ChatServer is the session manager and broadcast fabric. Its run loop owns
// the room table; each room serializes its own membership and frames in a
// dedicated goroutine. The fabric holds no durable state, durability lives
// in the message store.
type ChatServer struct {
	log            *log.Logger
	db             database.ChatRepository
	stats          stats.StatsProvider
	sessions       map[*Session]struct{}
	sessionsLock   sync.Mutex
	joinChan       chan *joinReq
	registerChan   chan *Session
	deRegisterChan chan *Session
	unloadRoomChan chan *unloadReq
	rooms          map[string]*Room
	stop           chan struct{}
	done           chan struct{}
}

func NewChatServer(logger *log.Logger, db database.ChatRepository, sp stats.StatsProvider) (*ChatServer, error) {
	cs := &ChatServer{
		log:            logger,
		db:             db,
		stats:          sp,
		sessions:       make(map[*Session]struct{}),
		joinChan:       make(chan *joinReq, 256),
		registerChan:   make(chan *Session),
		deRegisterChan: make(chan *Session),
		unloadRoomChan: make(chan *unloadReq),
		rooms:          make(map[string]*Room),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}

	for _, name := range []string{StatActiveSessions, StatActiveRooms, StatTotalMessages, StatTotalBroadcasts} {
		sp.RegisterMetric(name)
	}

	return cs, nil
}

func (cs *ChatServer) Run() {
	for {
		select {
		case req := <-cs.joinChan:
			room, ok := cs.rooms[req.room.ExternalId]
			if !ok {
				room = newRoom(req.room, cs)
				cs.rooms[room.externalId] = room
				go room.start()
				cs.stats.Incr(StatActiveRooms)
			}

			select {
			case room.joinChan <- req.session:
			default:
				cs.log.Printf("join channel full on room %q", room.externalId)
				req.session.queueFrame(ErrFrame("service unavailable"))
			}
		case s := <-cs.registerChan:
			cs.log.Printf("adding session for %q", s.user.Username)
			cs.addSession(s)
			if err := cs.db.SetAccountOnline(s.user.Id, true); err != nil {
				cs.log.Println("SetAccountOnline:", err)
			}
			cs.stats.Incr(StatActiveSessions)
		case s := <-cs.deRegisterChan:
			cs.log.Printf("removing session for %q", s.user.Username)
			cs.removeSession(s)
			// Another live session for the same user keeps it online.
			if cs.sessionCountFor(s.user.Id) == 0 {
				if err := cs.db.SetAccountOnline(s.user.Id, false); err != nil {
					cs.log.Println("SetAccountOnline:", err)
				}
			}
			cs.stats.Decr(StatActiveSessions)
		case req := <-cs.unloadRoomChan:
			room, ok := cs.rooms[req.externalId]
			if !ok || len(room.joinChan) > 0 {
				// A join raced the idle timer; it wins over the unload.
				req.ok <- false
				continue
			}

			cs.log.Printf("unloading room %q", req.externalId)
			delete(cs.rooms, req.externalId)
			req.ok <- true
			cs.stats.Decr(StatActiveRooms)
		case <-cs.stop:
			cs.log.Println("shutting down rooms")
			for _, room := range cs.rooms {
				close(room.exit)
				<-room.done
			}

			close(cs.done)
			return
		}
	}
}

// Join places the session in the room's broadcast group. The room goroutine
// is started lazily on its first member.
func (cs *ChatServer) Join(room database.Room, s *Session) {
	select {
	case cs.joinChan <- &joinReq{room: room, session: s}:
	case <-cs.done:
	}
}

// RegisterSession adds a freshly-upgraded session to the server and marks
// its user online.
func (cs *ChatServer) RegisterSession(s *Session) {
	select {
	case cs.registerChan <- s:
	case <-cs.done:
	}
}

func (cs *ChatServer) addSession(s *Session) {
	cs.sessionsLock.Lock()
	defer cs.sessionsLock.Unlock()
	cs.sessions[s] = struct{}{}
}

func (cs *ChatServer) removeSession(s *Session) {
	cs.sessionsLock.Lock()
	defer cs.sessionsLock.Unlock()
	delete(cs.sessions, s)
}

func (cs *ChatServer) sessionCountFor(userId int) int {
	cs.sessionsLock.Lock()
	defer cs.sessionsLock.Unlock()

	var n int
	for s := range cs.sessions {
		if s.user.Id == userId {
			n++
		}
	}

	return n
}

// Shutdown tears down all sessions, drains the room goroutines and stops the
// run loop.
func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.log.Println("received shutdown signal")

	cs.sessionsLock.Lock()
	open := make([]*Session, 0, len(cs.sessions))
	for s := range cs.sessions {
		open = append(open, s)
	}
	cs.sessionsLock.Unlock()

	for _, s := range open {
		s.teardown()
	}

	close(cs.stop)

	select {
	case <-cs.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

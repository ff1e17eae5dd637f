package api

import (
	"net/http"
	"slices"

	"github.com/campusconnect/campus-chat/internal/server"
	"github.com/gorilla/websocket"
)

const loggedTokenLen = 20

// serveWs upgrades the connection and places the session in its room. All
// authorization happens before the upgrade so a rejected client gets a
// plain HTTP status rather than a websocket close frame.
func (s *ChatApp) serveWs(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	user, err := s.auth.Authenticate(token)
	if err != nil {
		s.log.Printf("websocket auth failed (token %q): %v", truncateToken(token), err)
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// An unknown room and a room the caller does not belong to are
	// indistinguishable to the client.
	room, err := s.db.GetRoomByExternalId(r.PathValue("room_id"))
	if err != nil {
		s.log.Printf("websocket room lookup for user %d: %v", user.Id, err)
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !room.HasParticipant(user.Id) {
		s.log.Printf("user %d is not a participant of room %s", user.Id, room.ExternalId)
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(s.allowedOrigins, origin)
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("websocket upgrade:", err)
		return
	}

	sess := server.NewSession(user, conn, s.cs, s.log)
	s.cs.RegisterSession(sess)
	s.cs.Join(room, sess)

	go sess.WritePump()
	go sess.ReadPump()
}

func truncateToken(token string) string {
	if len(token) <= loggedTokenLen {
		return token
	}

	return token[:loggedTokenLen] + "..."
}

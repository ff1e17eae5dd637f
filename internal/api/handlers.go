package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/campusconnect/campus-chat/internal/auth"
	"github.com/campusconnect/campus-chat/internal/database"
	"github.com/campusconnect/campus-chat/internal/types"
	"github.com/google/uuid"
	"github.com/teris-io/shortid"
)

const maxUploadSize = 32 << 20

type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

type MarkReadResponse struct {
	Marked int64 `json:"marked"`
}

func (s *ChatApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *ChatApp) healthCheck(w http.ResponseWriter, _ *http.Request) {
	if err := s.db.Ping(); err != nil {
		s.log.Println("health check:", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *ChatApp) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.Username == "" || req.Email == "" || req.Password == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	pwdHash, err := auth.HashPassword(req.Password)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	newAcct, err := s.db.CreateAccount(database.CreateAccountParams{
		Username:     req.Username,
		EmailAddress: req.Email,
		PasswordHash: pwdHash,
	})
	if err != nil {
		errResp := apiErrorFor(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, types.User{
		Id:        newAcct.Id,
		Username:  newAcct.Username,
		Email:     newAcct.EmailAddress,
		CreatedAt: newAcct.CreatedAt,
		UpdatedAt: newAcct.UpdatedAt,
	})
}

func (s *ChatApp) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.Email == "" || req.Password == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	acct, err := s.db.GetAccountByEmail(req.Email)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, database.ErrNotFound) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !auth.VerifyPassword(acct.PasswordHash, req.Password) {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user := types.User{
		Id:        acct.Id,
		Username:  acct.Username,
		Email:     acct.EmailAddress,
		CreatedAt: acct.CreatedAt,
		UpdatedAt: acct.UpdatedAt,
	}

	token, err := s.auth.Issue(user, auth.DefaultTokenExpiration)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, LoginResponse{Token: token, User: user})
}

func (s *ChatApp) session(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, user)
}

func (s *ChatApp) listRooms(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	entries, err := s.db.ListRooms(user.Id)
	if err != nil {
		s.log.Println("list rooms:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	rooms := make([]types.Room, 0, len(entries))
	for _, e := range entries {
		rooms = append(rooms, types.Room{
			Id: e.Room.ExternalId,
			OtherUser: types.User{
				Id:       e.OtherUser.Id,
				Username: e.OtherUser.Username,
				IsOnline: e.OtherUser.IsOnline,
				LastSeen: e.OtherUser.LastSeen,
			},
			UnreadCount: e.UnreadCount,
			CreatedAt:   e.Room.CreatedAt,
			UpdatedAt:   e.Room.UpdatedAt,
		})
	}

	s.writeJson(w, http.StatusOK, rooms)
}

// getOrCreateRoom returns the caller's room with another user, creating it
// on first use. A room only exists between connected users.
func (s *ChatApp) getOrCreateRoom(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	otherId, err := strconv.Atoi(r.PathValue("user_id"))
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if otherId == user.Id {
		errResp := NewBadRequestReason("cannot create chat room with yourself")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	other, err := s.db.GetAccountById(otherId)
	if err != nil {
		errResp := apiErrorFor(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	connected, err := s.db.ConnectionExists(user.Id, other.Id)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	if !connected {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	sid, err := shortid.Generate()
	if err != nil {
		s.log.Println("generate shortid:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	room, created, err := s.db.GetOrCreateRoom(user.Id, other.Id, sid)
	if err != nil {
		errResp := apiErrorFor(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	statusCode := http.StatusOK
	if created {
		statusCode = http.StatusCreated
	}

	s.writeJson(w, statusCode, types.Room{
		Id: room.ExternalId,
		OtherUser: types.User{
			Id:       other.Id,
			Username: other.Username,
			IsOnline: other.IsOnline,
			LastSeen: other.LastSeen,
		},
		CreatedAt: room.CreatedAt,
		UpdatedAt: room.UpdatedAt,
	})
}

// roomForParticipant loads a room and authorizes the caller against it. The
// predicate is the same one the websocket gate uses, so the two surfaces
// can never disagree about membership.
func (s *ChatApp) roomForParticipant(externalId string, userId int) (database.Room, *ApiError) {
	room, err := s.db.GetRoomByExternalId(externalId)
	if err != nil {
		return database.Room{}, apiErrorFor(err)
	}

	if !room.HasParticipant(userId) {
		return database.Room{}, NewForbiddenError()
	}

	return room, nil
}

func (s *ChatApp) getMessages(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	room, errResp := s.roomForParticipant(r.PathValue("room_id"), user.Id)
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var page, pageSize int
	var err error

	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		if page, err = strconv.Atoi(pageStr); err != nil {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	if sizeStr := r.URL.Query().Get("page_size"); sizeStr != "" {
		if pageSize, err = strconv.Atoi(sizeStr); err != nil {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	messages, err := s.db.GetMessages(room.Id, page, pageSize)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, toApiMessages(messages))
}

func (s *ChatApp) sendMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	room, errResp := s.roomForParticipant(r.PathValue("room_id"), user.Id)
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	} else if err := r.ParseForm(); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	params := database.CreateMessageParams{
		RoomId:      room.Id,
		SenderId:    user.Id,
		MessageType: r.FormValue("message_type"),
		Content:     strings.TrimSpace(r.FormValue("content")),
		ReplyToId:   r.FormValue("reply_to"),
	}

	if file, header, err := r.FormFile("file"); err == nil {
		defer file.Close()

		path, err := s.saveUpload(file, header.Filename)
		if err != nil {
			s.log.Println("save upload:", err)
			errResp := NewInternalServerError(err)
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
		params.FilePath = path
	}

	msg, err := s.db.CreateMessage(params)
	if err != nil {
		errResp := apiErrorFor(err)
		if errResp.StatusCode == http.StatusInternalServerError {
			s.log.Println("create message:", err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, toApiMessage(msg))
}

func (s *ChatApp) saveUpload(file io.Reader, origName string) (string, error) {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", err
	}

	name := uuid.NewString() + filepath.Ext(origName)
	path := filepath.Join(s.uploadDir, name)

	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(path)
		return "", err
	}

	return path, nil
}

func (s *ChatApp) markRoomRead(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	room, errResp := s.roomForParticipant(r.PathValue("room_id"), user.Id)
	if errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	marked, err := s.db.MarkRoomRead(room.Id, user.Id)
	if err != nil {
		s.log.Println("mark room read:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, MarkReadResponse{Marked: marked})
}

func (s *ChatApp) getMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	msg, err := s.db.GetMessageById(r.PathValue("message_id"))
	if err != nil {
		errResp := apiErrorFor(err)
		if errResp.StatusCode == http.StatusInternalServerError {
			s.log.Println("get message:", err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if _, errResp := s.roomForParticipant(msg.RoomExternalId, user.Id); errResp != nil {
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, toApiMessage(msg))
}

func (s *ChatApp) deleteMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	messageId := r.PathValue("message_id")
	if err := s.db.DeleteMessage(messageId, user.Id); err != nil {
		errResp := apiErrorFor(err)
		if errResp.StatusCode == http.StatusInternalServerError {
			s.log.Println("delete message:", err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusNoContent, nil)
}

func (s *ChatApp) searchMessages(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		errResp := NewBadRequestReason("query parameter q is required")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var limit int
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		var err error
		if limit, err = strconv.Atoi(limitStr); err != nil {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	messages, err := s.db.SearchMessages(user.Id, query, limit)
	if err != nil {
		s.log.Println("search messages:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, toApiMessages(messages))
}

func toApiMessage(msg database.Message) types.Message {
	return types.Message{
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

func toApiMessages(msgs []database.Message) []types.Message {
	out := make([]types.Message, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, toApiMessage(msg))
	}

	return out
}

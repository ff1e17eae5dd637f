package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/campusconnect/campus-chat/internal/auth"
	"github.com/campusconnect/campus-chat/internal/config"
	"github.com/campusconnect/campus-chat/internal/database"
	"github.com/campusconnect/campus-chat/internal/server"
	"github.com/gorilla/handlers"
)

type ChatApp struct {
	log            *log.Logger
	db             database.ChatRepository
	mux            *http.Server
	cs             *server.ChatServer
	auth           *auth.TokenAuthenticator
	uploadDir      string
	allowedOrigins []string
}

func NewChatApp(mux *http.ServeMux, logger *log.Logger, cs *server.ChatServer, db database.ChatRepository, ta *auth.TokenAuthenticator, cfg *config.Config) *ChatApp {
	s := &ChatApp{
		log:            logger,
		db:             db,
		cs:             cs,
		auth:           ta,
		uploadDir:      cfg.UploadDir,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("POST /api/auth/register", s.register)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.HandleFunc("GET /api/chat/rooms", s.authMiddleware(s.listRooms))
	mux.HandleFunc("GET /api/chat/rooms/user/{user_id}", s.authMiddleware(s.getOrCreateRoom))
	mux.HandleFunc("GET /api/chat/rooms/{room_id}/messages", s.authMiddleware(s.getMessages))
	mux.HandleFunc("POST /api/chat/rooms/{room_id}/messages", s.authMiddleware(s.sendMessage))
	mux.HandleFunc("PUT /api/chat/rooms/{room_id}/read", s.authMiddleware(s.markRoomRead))
	mux.HandleFunc("GET /api/chat/messages/{message_id}", s.authMiddleware(s.getMessage))
	mux.HandleFunc("DELETE /api/chat/messages/{message_id}", s.authMiddleware(s.deleteMessage))
	mux.HandleFunc("GET /api/chat/messages/search", s.authMiddleware(s.searchMessages))
	mux.HandleFunc("GET /ws/chat/{room_id}", s.serveWs)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *ChatApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *ChatApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}

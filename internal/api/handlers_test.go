package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/campusconnect/campus-chat/internal/auth"
	"github.com/campusconnect/campus-chat/internal/database"
	"github.com/campusconnect/campus-chat/internal/testutil"
	"github.com/campusconnect/campus-chat/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// authedRequest stamps an authenticated user onto the request, as
// authMiddleware would after validating a token.
func authedRequest(req *http.Request, user types.User) *http.Request {
	return req.WithContext(WithUser(req.Context(), user))
}

func decodeApiError(t *testing.T, rr *httptest.ResponseRecorder) ApiError {
	t.Helper()
	var apiErr ApiError
	if err := json.NewDecoder(rr.Body).Decode(&apiErr); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return apiErr
}

func Test_healthCheck(t *testing.T) {
	tcases := []struct {
		name    string
		mockErr error
	}{
		{
			name:    "successful health check",
			mockErr: nil,
		},
		{
			name:    "failed health check",
			mockErr: errors.New("db error"),
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockChatRepository{}
			defer mockRepo.AssertExpectations(t)
			mockRepo.On("Ping").Return(tc.mockErr).Once()

			app := &ChatApp{log: testutil.TestLogger(t), db: mockRepo}
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			app.healthCheck(rr, req)

			if tc.mockErr != nil {
				assert.Equal(t, http.StatusInternalServerError, rr.Code, "expected status code to be 500")
			} else {
				assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200")
				assert.Equal(t, "OK", rr.Body.String(), "expected response body to be 'OK'")
			}
		})
	}
}

func Test_register(t *testing.T) {
	expectedAcct := database.Account{
		Id:           1,
		Username:     "newuser",
		EmailAddress: "newuser@example.com",
		PasswordHash: "hashedpassword",
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	tcases := []struct {
		name        string
		body        any
		success     bool
		mockAcct    database.Account
		mockErr     error
		expectedErr *ApiError
	}{
		{
			name: "successfully registers a new account",
			body: RegisterRequest{
				Username: expectedAcct.Username,
				Email:    expectedAcct.EmailAddress,
				Password: "password",
			},
			success:  true,
			mockAcct: expectedAcct,
		},
		{
			name:        "fails with invalid json body",
			body:        "invalid json",
			expectedErr: NewBadRequestError(),
		},
		{
			name: "fails with missing username",
			body: RegisterRequest{
				Email:    expectedAcct.EmailAddress,
				Password: "password",
			},
			expectedErr: NewBadRequestError(),
		},
		{
			name: "fails with missing email",
			body: RegisterRequest{
				Username: expectedAcct.Username,
				Password: "password",
			},
			expectedErr: NewBadRequestError(),
		},
		{
			name: "fails with missing password",
			body: RegisterRequest{
				Username: expectedAcct.Username,
				Email:    expectedAcct.EmailAddress,
			},
			expectedErr: NewBadRequestError(),
		},
		{
			name: "fails with duplicate username or email",
			body: RegisterRequest{
				Username: expectedAcct.Username,
				Email:    expectedAcct.EmailAddress,
				Password: "password",
			},
			mockErr:     database.ErrDuplicate,
			expectedErr: NewConflictError("username or email already in use"),
		},
		{
			name: "fails with db error",
			body: RegisterRequest{
				Username: expectedAcct.Username,
				Email:    expectedAcct.EmailAddress,
				Password: "password",
			},
			mockErr:     errors.New("db error"),
			expectedErr: NewInternalServerError(nil),
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockChatRepository{}
			defer mockRepo.AssertExpectations(t)

			if tc.mockAcct != (database.Account{}) || tc.mockErr != nil {
				regReq := tc.body.(RegisterRequest)
				mockRepo.On("CreateAccount", mock.MatchedBy(func(params database.CreateAccountParams) bool {
					return params.Username == regReq.Username &&
						params.EmailAddress == regReq.Email &&
						auth.VerifyPassword(params.PasswordHash, regReq.Password)
				})).Return(tc.mockAcct, tc.mockErr).Once()
			}

			app := &ChatApp{log: testutil.TestLogger(t), db: mockRepo}

			var req *http.Request
			switch v := tc.body.(type) {
			case string:
				req = httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(v))
			case RegisterRequest:
				body, err := json.Marshal(v)
				assert.NoError(t, err, "failed to marshal request body")
				req = httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBuffer(body))
			default:
				t.Fatalf("unsupported request body type: %T", v)
			}

			rr := httptest.NewRecorder()
			app.register(rr, req)

			if tc.success {
				assert.Equal(t, http.StatusCreated, rr.Code)

				var user types.User
				err := json.NewDecoder(rr.Body).Decode(&user)
				assert.NoError(t, err, "failed to decode response")
				assert.Equal(t, expectedAcct.Id, user.Id)
				assert.Equal(t, expectedAcct.Username, user.Username)
				assert.Equal(t, expectedAcct.EmailAddress, user.Email)
			} else {
				apiErr := decodeApiError(t, rr)
				assert.Equal(t, tc.expectedErr.StatusCode, rr.Code, "expected status code to match")
				assert.Equal(t, *tc.expectedErr, apiErr, "expected ApiError response")
			}
		})
	}
}

func Test_login(t *testing.T) {
	passwordHash, err := auth.HashPassword("password")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	acct := database.Account{
		Id:           1,
		Username:     "testuser",
		EmailAddress: "testuser@example.com",
		PasswordHash: passwordHash,
	}

	tcases := []struct {
		name        string
		body        LoginRequest
		mockAcct    database.Account
		mockErr     error
		expectedErr *ApiError
	}{
		{
			name:     "successful login",
			body:     LoginRequest{Email: acct.EmailAddress, Password: "password"},
			mockAcct: acct,
		},
		{
			name:        "missing email",
			body:        LoginRequest{Password: "password"},
			expectedErr: NewBadRequestError(),
		},
		{
			name:        "unknown email",
			body:        LoginRequest{Email: "nobody@example.com", Password: "password"},
			mockErr:     database.ErrNotFound,
			expectedErr: NewNotFoundError(),
		},
		{
			name:        "wrong password",
			body:        LoginRequest{Email: acct.EmailAddress, Password: "wrong"},
			mockAcct:    acct,
			expectedErr: NewUnauthorizedError(),
		},
		{
			name:        "db error",
			body:        LoginRequest{Email: acct.EmailAddress, Password: "password"},
			mockErr:     errors.New("db error"),
			expectedErr: NewInternalServerError(nil),
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockChatRepository{}
			defer mockRepo.AssertExpectations(t)

			if tc.mockAcct != (database.Account{}) || tc.mockErr != nil {
				mockRepo.On("GetAccountByEmail", tc.body.Email).Return(tc.mockAcct, tc.mockErr).Once()
			}

			app := &ChatApp{
				log:  testutil.TestLogger(t),
				db:   mockRepo,
				auth: auth.NewTokenAuthenticator([]byte("test-signing-key"), mockRepo),
			}

			body, err := json.Marshal(tc.body)
			assert.NoError(t, err, "failed to marshal request body")

			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBuffer(body))
			app.login(rr, req)

			if tc.expectedErr != nil {
				apiErr := decodeApiError(t, rr)
				assert.Equal(t, tc.expectedErr.StatusCode, rr.Code, "expected status code to match")
				assert.Equal(t, *tc.expectedErr, apiErr, "expected ApiError response")
				return
			}

			assert.Equal(t, http.StatusOK, rr.Code)

			var resp LoginResponse
			assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp), "failed to decode response")
			assert.NotEmpty(t, resp.Token, "expected a token in the response")
			assert.Equal(t, acct.Id, resp.User.Id, "expected user id in the response")
			assert.Equal(t, acct.Username, resp.User.Username, "expected username in the response")
		})
	}
}

func Test_session(t *testing.T) {
	app := &ChatApp{log: testutil.TestLogger(t)}

	t.Run("authenticated", func(t *testing.T) {
		user := types.User{Id: 1, Username: "testuser"}
		rr := httptest.NewRecorder()
		req := authedRequest(httptest.NewRequest(http.MethodGet, "/api/auth/session", nil), user)
		app.session(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var got types.User
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&got), "failed to decode response")
		assert.Equal(t, user.Id, got.Id, "expected user id to match")
	})

	t.Run("unauthenticated", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
		app.session(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func Test_listRooms(t *testing.T) {
	user := types.User{Id: 1, Username: "testuser"}

	t.Run("returns the caller's rooms", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)

		entries := []database.RoomListEntry{
			{
				Room:        database.Room{Id: 10, ExternalId: "room-a", User1Id: 1, User2Id: 2},
				OtherUser:   database.Account{Id: 2, Username: "userb", IsOnline: true},
				UnreadCount: 3,
			},
		}
		mockRepo.On("ListRooms", user.Id).Return(entries, nil).Once()

		app := &ChatApp{log: testutil.TestLogger(t), db: mockRepo}
		rr := httptest.NewRecorder()
		req := authedRequest(httptest.NewRequest(http.MethodGet, "/api/chat/rooms", nil), user)
		app.listRooms(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var rooms []types.Room
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&rooms), "failed to decode response")
		assert.Len(t, rooms, 1, "expected one room")
		assert.Equal(t, "room-a", rooms[0].Id, "expected external room id")
		assert.Equal(t, 2, rooms[0].OtherUser.Id, "expected other user id")
		assert.True(t, rooms[0].OtherUser.IsOnline, "expected other user online flag")
		assert.Equal(t, 3, rooms[0].UnreadCount, "expected unread count")
	})

	t.Run("db error", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("ListRooms", user.Id).Return([]database.RoomListEntry(nil), errors.New("db error")).Once()

		app := &ChatApp{log: testutil.TestLogger(t), db: mockRepo}
		rr := httptest.NewRecorder()
		req := authedRequest(httptest.NewRequest(http.MethodGet, "/api/chat/rooms", nil), user)
		app.listRooms(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func Test_getOrCreateRoom(t *testing.T) {
	user := types.User{Id: 1, Username: "testuser"}
	other := database.Account{Id: 2, Username: "userb"}
	room := database.Room{Id: 10, ExternalId: "room-a", User1Id: 1, User2Id: 2}

	tcases := []struct {
		name         string
		userIdPath   string
		setupMock    func(m *database.MockChatRepository)
		expectedCode int
	}{
		{
			name:       "creates a new room",
			userIdPath: "2",
			setupMock: func(m *database.MockChatRepository) {
				m.On("GetAccountById", other.Id).Return(other, nil).Once()
				m.On("ConnectionExists", user.Id, other.Id).Return(true, nil).Once()
				m.On("GetOrCreateRoom", user.Id, other.Id, mock.AnythingOfType("string")).Return(room, true, nil).Once()
			},
			expectedCode: http.StatusCreated,
		},
		{
			name:       "returns an existing room",
			userIdPath: "2",
			setupMock: func(m *database.MockChatRepository) {
				m.On("GetAccountById", other.Id).Return(other, nil).Once()
				m.On("ConnectionExists", user.Id, other.Id).Return(true, nil).Once()
				m.On("GetOrCreateRoom", user.Id, other.Id, mock.AnythingOfType("string")).Return(room, false, nil).Once()
			},
			expectedCode: http.StatusOK,
		},
		{
			name:         "rejects a non-numeric user id",
			userIdPath:   "abc",
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "rejects a room with yourself",
			userIdPath:   "1",
			expectedCode: http.StatusBadRequest,
		},
		{
			name:       "unknown user",
			userIdPath: "2",
			setupMock: func(m *database.MockChatRepository) {
				m.On("GetAccountById", other.Id).Return(database.Account{}, database.ErrNotFound).Once()
			},
			expectedCode: http.StatusNotFound,
		},
		{
			name:       "users are not connected",
			userIdPath: "2",
			setupMock: func(m *database.MockChatRepository) {
				m.On("GetAccountById", other.Id).Return(other, nil).Once()
				m.On("ConnectionExists", user.Id, other.Id).Return(false, nil).Once()
			},
			expectedCode: http.StatusForbidden,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockChatRepository{}
			defer mockRepo.AssertExpectations(t)
			if tc.setupMock != nil {
				tc.setupMock(mockRepo)
			}

			app := &ChatApp{log: testutil.TestLogger(t), db: mockRepo}

			req := authedRequest(httptest.NewRequest(http.MethodGet, "/api/chat/rooms/user/"+tc.userIdPath, nil), user)
			req.SetPathValue("user_id", tc.userIdPath)

			rr := httptest.NewRecorder()
			app.getOrCreateRoom(rr, req)

			assert.Equal(t, tc.expectedCode, rr.Code, "expected status code to match")

			if tc.expectedCode == http.StatusCreated || tc.expectedCode == http.StatusOK {
				var got types.Room
				assert.NoError(t, json.NewDecoder(rr.Body).Decode(&got), "failed to decode response")
				assert.Equal(t, room.ExternalId, got.Id, "expected external room id")
				assert.Equal(t, other.Id, got.OtherUser.Id, "expected other user in the response")
			}
		})
	}
}

func Test_getMessages(t *testing.T) {
	user := types.User{Id: 1, Username: "testuser"}
	room := database.Room{Id: 10, ExternalId: "room-a", User1Id: 1, User2Id: 2}

	t.Run("returns newest-first history", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)

		mockRepo.On("GetRoomByExternalId", room.ExternalId).Return(room, nil).Once()
		mockRepo.On("GetMessages", room.Id, 2, 50).Return([]database.Message{
			{Id: "m2", RoomExternalId: room.ExternalId, SenderId: 2, Content: "second"},
			{Id: "m1", RoomExternalId: room.ExternalId, SenderId: 1, Content: "first"},
		}, nil).Once()

		app := &ChatApp{log: testutil.TestLogger(t), db: mockRepo}

		req := authedRequest(httptest.NewRequest(http.MethodGet, "/api/chat/rooms/room-a/messages?page=2&page_size=50", nil), user)
		req.SetPathValue("room_id", room.ExternalId)

		rr := httptest.NewRecorder()
		app.getMessages(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var messages []types.Message
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&messages), "failed to decode response")
		assert.Len(t, messages, 2, "expected two messages")
		assert.Equal(t, "m2", messages[0].Id, "expected newest message first")
	})

	t.Run("unknown room", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetRoomByExternalId", "missing").Return(database.Room{}, database.ErrNotFound).Once()

		app := &ChatApp{log: testutil.TestLogger(t), db: mockRepo}

		req := authedRequest(httptest.NewRequest(http.MethodGet, "/api/chat/rooms/missing/messages", nil), user)
		req.SetPathValue("room_id", "missing")

		rr := httptest.NewRecorder()
		app.getMessages(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("caller is not a participant", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetRoomByExternalId", room.ExternalId).Return(room, nil).Once()

		app := &ChatApp{log: testutil.TestLogger(t), db: mockRepo}

		outsider := types.User{Id: 9, Username: "outsider"}
		req := authedRequest(httptest.NewRequest(http.MethodGet, "/api/chat/rooms/room-a/messages", nil), outsider)
		req.SetPathValue("room_id", room.ExternalId)

		rr := httptest.NewRecorder()
		app.getMessages(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("invalid page parameter", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetRoomByExternalId", room.ExternalId).Return(room, nil).Once()

		app := &ChatApp{log: testutil.TestLogger(t), db: mockRepo}

		req := authedRequest(httptest.NewRequest(http.MethodGet, "/api/chat/rooms/room-a/messages?page=two", nil), user)
		req.SetPathValue("room_id", room.ExternalId)

		rr := httptest.NewRecorder()
		app.getMessages(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func Test_sendMessage(t *testing.T) {
	user := types.User{Id: 1, Username: "testuser"}
	room := database.Room{Id: 10, ExternalId: "room-a", User1Id: 1, User2Id: 2}

	t.Run("persists without broadcasting", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)

		stored := database.Message{
			Id:             "m1",
			RoomId:         room.Id,
			RoomExternalId: room.ExternalId,
			SenderId:       user.Id,
			SenderUsername: user.Username,
			MessageType:    types.MessageTypeText,
			Content:        "hello",
			Status:         types.StatusSent,
		}
		mockRepo.On("GetRoomByExternalId", room.ExternalId).Return(room, nil).Once()
		mockRepo.On("CreateMessage", database.CreateMessageParams{
			RoomId:      room.Id,
			SenderId:    user.Id,
			MessageType: types.MessageTypeText,
			Content:     "hello",
		}).Return(stored, nil).Once()

		app := &ChatApp{log: testutil.TestLogger(t), db: mockRepo}

		form := url.Values{"content": {"  hello  "}, "message_type": {types.MessageTypeText}}
		req := httptest.NewRequest(http.MethodPost, "/api/chat/rooms/room-a/messages", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req = authedRequest(req, user)
		req.SetPathValue("room_id", room.ExternalId)

		rr := httptest.NewRecorder()
		app.sendMessage(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)

		var msg types.Message
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&msg), "failed to decode response")
		assert.Equal(t, stored.Id, msg.Id, "expected stored message id")
		assert.Equal(t, types.StatusSent, msg.Status, "expected status sent")
	})

	t.Run("empty content is rejected", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)

		mockRepo.On("GetRoomByExternalId", room.ExternalId).Return(room, nil).Once()
		mockRepo.On("CreateMessage", mock.Anything).
			Return(database.Message{}, database.NewValidationError("message content is required")).Once()

		app := &ChatApp{log: testutil.TestLogger(t), db: mockRepo}

		form := url.Values{"content": {"   "}}
		req := httptest.NewRequest(http.MethodPost, "/api/chat/rooms/room-a/messages", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req = authedRequest(req, user)
		req.SetPathValue("room_id", room.ExternalId)

		rr := httptest.NewRecorder()
		app.sendMessage(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		apiErr := decodeApiError(t, rr)
		assert.Equal(t, "message content is required", apiErr.Message, "expected validation reason")
	})
}

func Test_markRoomRead(t *testing.T) {
	user := types.User{Id: 1, Username: "testuser"}
	room := database.Room{Id: 10, ExternalId: "room-a", User1Id: 1, User2Id: 2}

	mockRepo := &database.MockChatRepository{}
	defer mockRepo.AssertExpectations(t)
	mockRepo.On("GetRoomByExternalId", room.ExternalId).Return(room, nil).Once()
	mockRepo.On("MarkRoomRead", room.Id, user.Id).Return(int64(4), nil).Once()

	app := &ChatApp{log: testutil.TestLogger(t), db: mockRepo}

	req := authedRequest(httptest.NewRequest(http.MethodPut, "/api/chat/rooms/room-a/read", nil), user)
	req.SetPathValue("room_id", room.ExternalId)

	rr := httptest.NewRecorder()
	app.markRoomRead(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp MarkReadResponse
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp), "failed to decode response")
	assert.Equal(t, int64(4), resp.Marked, "expected marked count")
}

func Test_getMessage(t *testing.T) {
	user := types.User{Id: 1, Username: "testuser"}
	room := database.Room{Id: 10, ExternalId: "room-a", User1Id: 1, User2Id: 2}
	stored := database.Message{
		Id:             "m1",
		RoomId:         room.Id,
		RoomExternalId: room.ExternalId,
		SenderId:       2,
		SenderUsername: "userb",
		MessageType:    types.MessageTypeText,
		Content:        "hello",
		Status:         types.StatusDelivered,
	}

	t.Run("returns the message to a participant", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetMessageById", stored.Id).Return(stored, nil).Once()
		mockRepo.On("GetRoomByExternalId", room.ExternalId).Return(room, nil).Once()

		app := &ChatApp{log: testutil.TestLogger(t), db: mockRepo}

		req := authedRequest(httptest.NewRequest(http.MethodGet, "/api/chat/messages/m1", nil), user)
		req.SetPathValue("message_id", stored.Id)

		rr := httptest.NewRecorder()
		app.getMessage(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var msg types.Message
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&msg), "failed to decode response")
		assert.Equal(t, stored.Id, msg.Id, "expected message id")
		assert.Equal(t, stored.Status, msg.Status, "expected message status")
	})

	t.Run("unknown message", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetMessageById", "missing").Return(database.Message{}, database.ErrNotFound).Once()

		app := &ChatApp{log: testutil.TestLogger(t), db: mockRepo}

		req := authedRequest(httptest.NewRequest(http.MethodGet, "/api/chat/messages/missing", nil), user)
		req.SetPathValue("message_id", "missing")

		rr := httptest.NewRecorder()
		app.getMessage(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("caller is not a participant", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetMessageById", stored.Id).Return(stored, nil).Once()
		mockRepo.On("GetRoomByExternalId", room.ExternalId).Return(room, nil).Once()

		app := &ChatApp{log: testutil.TestLogger(t), db: mockRepo}

		outsider := types.User{Id: 9, Username: "outsider"}
		req := authedRequest(httptest.NewRequest(http.MethodGet, "/api/chat/messages/m1", nil), outsider)
		req.SetPathValue("message_id", stored.Id)

		rr := httptest.NewRecorder()
		app.getMessage(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}

func Test_deleteMessage(t *testing.T) {
	user := types.User{Id: 1, Username: "testuser"}

	tcases := []struct {
		name         string
		mockErr      error
		expectedCode int
	}{
		{
			name:         "deletes own message",
			expectedCode: http.StatusNoContent,
		},
		{
			name:         "unknown message",
			mockErr:      database.ErrNotFound,
			expectedCode: http.StatusNotFound,
		},
		{
			name:         "not the sender",
			mockErr:      database.ErrPermissionDenied,
			expectedCode: http.StatusForbidden,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			mockRepo := &database.MockChatRepository{}
			defer mockRepo.AssertExpectations(t)
			mockRepo.On("DeleteMessage", "m1", user.Id).Return(tc.mockErr).Once()

			app := &ChatApp{log: testutil.TestLogger(t), db: mockRepo}

			req := authedRequest(httptest.NewRequest(http.MethodDelete, "/api/chat/messages/m1", nil), user)
			req.SetPathValue("message_id", "m1")

			rr := httptest.NewRecorder()
			app.deleteMessage(rr, req)

			assert.Equal(t, tc.expectedCode, rr.Code, "expected status code to match")
		})
	}
}

func Test_searchMessages(t *testing.T) {
	user := types.User{Id: 1, Username: "testuser"}

	t.Run("searches only the caller's rooms", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)

		mockRepo.On("SearchMessages", user.Id, "hello", 0).Return([]database.Message{
			{Id: "m1", RoomExternalId: "room-a", SenderId: 1, Content: "hello there"},
		}, nil).Once()

		app := &ChatApp{log: testutil.TestLogger(t), db: mockRepo}

		req := authedRequest(httptest.NewRequest(http.MethodGet, "/api/chat/messages/search?q=hello", nil), user)
		rr := httptest.NewRecorder()
		app.searchMessages(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var messages []types.Message
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&messages), "failed to decode response")
		assert.Len(t, messages, 1, "expected one match")
		assert.Equal(t, "m1", messages[0].Id, "expected matching message id")
	})

	t.Run("missing query", func(t *testing.T) {
		app := &ChatApp{log: testutil.TestLogger(t)}

		req := authedRequest(httptest.NewRequest(http.MethodGet, "/api/chat/messages/search", nil), user)
		rr := httptest.NewRecorder()
		app.searchMessages(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

package database

import (
	"github.com/stretchr/testify/mock"
)

type MockChatRepository struct {
	mock.Mock
}

func (m *MockChatRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockChatRepository) CreateAccount(params CreateAccountParams) (Account, error) {
	args := m.Called(params)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockChatRepository) GetAccountById(accountId int) (Account, error) {
	args := m.Called(accountId)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockChatRepository) GetAccountByEmail(email string) (Account, error) {
	args := m.Called(email)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockChatRepository) SetAccountOnline(accountId int, online bool) error {
	args := m.Called(accountId, online)
	return args.Error(0)
}
func (m *MockChatRepository) CreateConnection(userA, userB int) (Connection, error) {
	args := m.Called(userA, userB)
	return args.Get(0).(Connection), args.Error(1)
}
func (m *MockChatRepository) ConnectionExists(userA, userB int) (bool, error) {
	args := m.Called(userA, userB)
	return args.Bool(0), args.Error(1)
}
func (m *MockChatRepository) GetOrCreateRoom(userA, userB int, externalId string) (Room, bool, error) {
	args := m.Called(userA, userB, externalId)
	return args.Get(0).(Room), args.Bool(1), args.Error(2)
}
func (m *MockChatRepository) GetRoomByExternalId(externalId string) (Room, error) {
	args := m.Called(externalId)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockChatRepository) ListRooms(accountId int) ([]RoomListEntry, error) {
	args := m.Called(accountId)
	return args.Get(0).([]RoomListEntry), args.Error(1)
}
func (m *MockChatRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockChatRepository) GetMessageById(messageId string) (Message, error) {
	args := m.Called(messageId)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockChatRepository) GetMessages(roomId, page, pageSize int) ([]Message, error) {
	args := m.Called(roomId, page, pageSize)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockChatRepository) UpdateMessageStatus(messageId, status string) error {
	args := m.Called(messageId, status)
	return args.Error(0)
}
func (m *MockChatRepository) MarkRoomRead(roomId, readerId int) (int64, error) {
	args := m.Called(roomId, readerId)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockChatRepository) DeleteMessage(messageId string, requesterId int) error {
	args := m.Called(messageId, requesterId)
	return args.Error(0)
}
func (m *MockChatRepository) SearchMessages(accountId int, query string, limit int) ([]Message, error) {
	args := m.Called(accountId, query, limit)
	return args.Get(0).([]Message), args.Error(1)
}

package database

type ChatRepository interface {
	Ping() error
	CreateAccount(params CreateAccountParams) (Account, error)
	GetAccountById(accountId int) (Account, error)
	GetAccountByEmail(email string) (Account, error)
	SetAccountOnline(accountId int, online bool) error
	CreateConnection(userA, userB int) (Connection, error)
	ConnectionExists(userA, userB int) (bool, error)
	GetOrCreateRoom(userA, userB int, externalId string) (Room, bool, error)
	GetRoomByExternalId(externalId string) (Room, error)
	ListRooms(accountId int) ([]RoomListEntry, error)
	CreateMessage(params CreateMessageParams) (Message, error)
	GetMessageById(messageId string) (Message, error)
	GetMessages(roomId, page, pageSize int) ([]Message, error)
	UpdateMessageStatus(messageId, status string) error
	MarkRoomRead(roomId, readerId int) (int64, error)
	DeleteMessage(messageId string, requesterId int) error
	SearchMessages(accountId int, query string, limit int) ([]Message, error)
}

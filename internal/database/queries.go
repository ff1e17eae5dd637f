package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/campusconnect/campus-chat/internal/types"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const messageColumns = "m.id, m.room_id, r.external_id, m.sender_id, a.username, " +
	"m.message_type, m.content, m.file_path, m.status, m.is_read, " +
	"m.delivered_at, m.read_at, m.reply_to_id, m.reactions, m.created_at, m.updated_at"

func (db *PgChatRepository) CreateAccount(params CreateAccountParams) (Account, error) {
	res := db.conn.QueryRow(
		"INSERT INTO accounts (username, email, password_hash, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $4) RETURNING id, username, email, created_at, updated_at",
		params.Username,
		params.EmailAddress,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var a Account
	err := res.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return Account{}, fmt.Errorf("account %q: %w", params.Username, ErrDuplicate)
	}

	return a, err
}

func (db *PgChatRepository) GetAccountById(accountId int) (Account, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, is_online, last_seen, created_at, updated_at "+
			"FROM accounts WHERE id = $1 LIMIT 1",
		accountId,
	)

	return scanAccount(row)
}

func (db *PgChatRepository) GetAccountByEmail(email string) (Account, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, password_hash, is_online, last_seen, created_at, updated_at "+
			"FROM accounts WHERE email = $1 LIMIT 1",
		email,
	)

	var a Account
	var lastSeen sql.NullTime
	err := row.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
		&a.PasswordHash,
		&a.IsOnline,
		&lastSeen,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, fmt.Errorf("account %q: %w", email, ErrNotFound)
	}
	a.LastSeen = lastSeen.Time

	return a, err
}

func scanAccount(row *sql.Row) (Account, error) {
	var a Account
	var lastSeen sql.NullTime
	err := row.Scan(
		&a.Id,
		&a.Username,
		&a.EmailAddress,
		&a.IsOnline,
		&lastSeen,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, fmt.Errorf("account: %w", ErrNotFound)
	}
	a.LastSeen = lastSeen.Time

	return a, err
}

func (db *PgChatRepository) SetAccountOnline(accountId int, online bool) error {
	_, err := db.conn.Exec(
		"UPDATE accounts SET is_online = $2, last_seen = $3 WHERE id = $1",
		accountId,
		online,
		time.Now().UTC(),
	)

	return err
}

func (db *PgChatRepository) CreateConnection(userA, userB int) (Connection, error) {
	if userA == userB {
		return Connection{}, NewValidationError("cannot create connection with yourself")
	}
	u1, u2 := NormalizePair(userA, userB)

	res := db.conn.QueryRow(
		"INSERT INTO connections (user1_id, user2_id, created_at) "+
			"VALUES ($1, $2, $3) RETURNING id, user1_id, user2_id, created_at",
		u1,
		u2,
		time.Now().UTC(),
	)

	var c Connection
	err := res.Scan(&c.Id, &c.User1Id, &c.User2Id, &c.CreatedAt)

	return c, err
}

func (db *PgChatRepository) ConnectionExists(userA, userB int) (bool, error) {
	u1, u2 := NormalizePair(userA, userB)

	var id int
	err := db.conn.QueryRow(
		"SELECT id FROM connections WHERE user1_id = $1 AND user2_id = $2 LIMIT 1",
		u1,
		u2,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}

	return err == nil, err
}

// GetOrCreateRoom returns the room for the normalized user pair, creating it
// with externalId if it does not exist yet. The second return value reports
// whether a new room was created.
func (db *PgChatRepository) GetOrCreateRoom(userA, userB int, externalId string) (Room, bool, error) {
	if userA == userB {
		return Room{}, false, NewValidationError("cannot create chat room with yourself")
	}
	u1, u2 := NormalizePair(userA, userB)

	tx, err := db.conn.Begin()
	if err != nil {
		return Room{}, false, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var room Room
	err = tx.QueryRow(
		"SELECT id, external_id, user1_id, user2_id, created_at, updated_at "+
			"FROM chat_rooms WHERE user1_id = $1 AND user2_id = $2 LIMIT 1",
		u1,
		u2,
	).Scan(&room.Id, &room.ExternalId, &room.User1Id, &room.User2Id, &room.CreatedAt, &room.UpdatedAt)
	if err == nil {
		return room, false, tx.Commit()
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Room{}, false, err
	}

	err = tx.QueryRow(
		"INSERT INTO chat_rooms (external_id, user1_id, user2_id, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $4) RETURNING id, external_id, user1_id, user2_id, created_at, updated_at",
		externalId,
		u1,
		u2,
		time.Now().UTC(),
	).Scan(&room.Id, &room.ExternalId, &room.User1Id, &room.User2Id, &room.CreatedAt, &room.UpdatedAt)
	if err != nil {
		return Room{}, false, err
	}

	if err = tx.Commit(); err != nil {
		return Room{}, false, err
	}

	return room, true, nil
}

func (db *PgChatRepository) GetRoomByExternalId(externalId string) (Room, error) {
	row := db.conn.QueryRow(
		"SELECT id, external_id, user1_id, user2_id, created_at, updated_at "+
			"FROM chat_rooms WHERE external_id = $1 LIMIT 1",
		externalId,
	)

	var room Room
	err := row.Scan(
		&room.Id,
		&room.ExternalId,
		&room.User1Id,
		&room.User2Id,
		&room.CreatedAt,
		&room.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Room{}, fmt.Errorf("room %q: %w", externalId, ErrNotFound)
	}

	return room, err
}

func (db *PgChatRepository) ListRooms(accountId int) ([]RoomListEntry, error) {
	rows, err := db.conn.Query(
		"SELECT r.id, r.external_id, r.user1_id, r.user2_id, r.created_at, r.updated_at, "+
			"a.id, a.username, a.is_online, a.last_seen, "+
			"(SELECT COUNT(*) FROM messages m WHERE m.room_id = r.id AND m.is_read = FALSE AND m.sender_id <> $1) "+
			"FROM chat_rooms r "+
			"JOIN accounts a ON a.id = CASE WHEN r.user1_id = $1 THEN r.user2_id ELSE r.user1_id END "+
			"WHERE r.user1_id = $1 OR r.user2_id = $1 "+
			"ORDER BY r.updated_at DESC",
		accountId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries = make([]RoomListEntry, 0)
	for rows.Next() {
		var e RoomListEntry
		var lastSeen sql.NullTime
		if err = rows.Scan(
			&e.Room.Id,
			&e.Room.ExternalId,
			&e.Room.User1Id,
			&e.Room.User2Id,
			&e.Room.CreatedAt,
			&e.Room.UpdatedAt,
			&e.OtherUser.Id,
			&e.OtherUser.Username,
			&e.OtherUser.IsOnline,
			&lastSeen,
			&e.UnreadCount,
		); err != nil {
			return nil, err
		}
		e.OtherUser.LastSeen = lastSeen.Time

		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// CreateMessage validates and persists a new message, touching the room's
// last-activity timestamp in the same transaction. The message starts in
// status "sent".
func (db *PgChatRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	if err := validateMessageParams(&params); err != nil {
		return Message{}, err
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return Message{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var room Room
	err = tx.QueryRow(
		"SELECT id, external_id, user1_id, user2_id FROM chat_rooms WHERE id = $1 LIMIT 1",
		params.RoomId,
	).Scan(&room.Id, &room.ExternalId, &room.User1Id, &room.User2Id)
	if errors.Is(err, sql.ErrNoRows) {
		return Message{}, fmt.Errorf("room %d: %w", params.RoomId, ErrNotFound)
	}
	if err != nil {
		return Message{}, err
	}

	if !room.HasParticipant(params.SenderId) {
		err = fmt.Errorf("sender %d in room %q: %w", params.SenderId, room.ExternalId, ErrNotParticipant)
		return Message{}, err
	}

	if params.ReplyToId != "" {
		var replyRoomId int
		err = tx.QueryRow("SELECT room_id FROM messages WHERE id = $1 LIMIT 1", params.ReplyToId).Scan(&replyRoomId)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && replyRoomId != room.Id) {
			err = NewValidationError("reply_to must reference a message in the same room")
			return Message{}, err
		}
		if err != nil {
			return Message{}, err
		}
	}

	msg := Message{
		Id:             uuid.NewString(),
		RoomId:         room.Id,
		RoomExternalId: room.ExternalId,
		SenderId:       params.SenderId,
		MessageType:    params.MessageType,
		Content:        params.Content,
		FilePath:       params.FilePath,
		Status:         types.StatusSent,
		ReplyToId:      params.ReplyToId,
		Reactions:      ReactionSet{},
	}

	err = tx.QueryRow(
		"INSERT INTO messages (id, room_id, sender_id, message_type, content, file_path, status, is_read, reply_to_id, reactions, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, FALSE, NULLIF($8, ''), $9, $10, $10) "+
			"RETURNING created_at, updated_at",
		msg.Id,
		msg.RoomId,
		msg.SenderId,
		msg.MessageType,
		msg.Content,
		msg.FilePath,
		msg.Status,
		msg.ReplyToId,
		msg.Reactions,
		time.Now().UTC(),
	).Scan(&msg.CreatedAt, &msg.UpdatedAt)
	if err != nil {
		return Message{}, err
	}

	_, err = tx.Exec("UPDATE chat_rooms SET updated_at = $2 WHERE id = $1", room.Id, msg.CreatedAt)
	if err != nil {
		return Message{}, err
	}

	err = tx.QueryRow("SELECT username FROM accounts WHERE id = $1", msg.SenderId).Scan(&msg.SenderUsername)
	if err != nil {
		return Message{}, err
	}

	if err = tx.Commit(); err != nil {
		return Message{}, err
	}

	return msg, nil
}

func validateMessageParams(params *CreateMessageParams) error {
	if params.MessageType == "" {
		params.MessageType = types.MessageTypeText
	}

	switch params.MessageType {
	case types.MessageTypeText:
		if strings.TrimSpace(params.Content) == "" {
			return NewValidationError("message content is required")
		}
	case types.MessageTypeImage, types.MessageTypeFile, types.MessageTypeVoice, types.MessageTypeVideo:
		if params.FilePath == "" {
			return NewValidationError("file is required for this message type")
		}
	default:
		return NewValidationError("unknown message type " + params.MessageType)
	}

	return nil
}

func (db *PgChatRepository) GetMessageById(messageId string) (Message, error) {
	row := db.conn.QueryRow(
		"SELECT "+messageColumns+" FROM messages m "+
			"JOIN chat_rooms r ON r.id = m.room_id "+
			"JOIN accounts a ON a.id = m.sender_id "+
			"WHERE m.id = $1 LIMIT 1",
		messageId,
	)

	msg, err := scanMessage(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Message{}, fmt.Errorf("message %q: %w", messageId, ErrNotFound)
	}

	return msg, err
}

func (db *PgChatRepository) GetMessages(roomId, page, pageSize int) ([]Message, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	rows, err := db.conn.Query(
		"SELECT "+messageColumns+" FROM messages m "+
			"JOIN chat_rooms r ON r.id = m.room_id "+
			"JOIN accounts a ON a.id = m.sender_id "+
			"WHERE m.room_id = $1 ORDER BY m.created_at DESC LIMIT $2 OFFSET $3",
		roomId,
		pageSize,
		(page-1)*pageSize,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectMessages(rows, pageSize)
}

// UpdateMessageStatus applies a monotonic forward-only lifecycle transition.
// An already-reached-or-passed status is a no-op, never an error; the is_read
// flag is kept in lockstep with status = read.
func (db *PgChatRepository) UpdateMessageStatus(messageId, status string) error {
	res, err := db.conn.Exec(
		"UPDATE messages SET "+
			"status = $2, "+
			"is_read = CASE WHEN $2 = 'read' THEN TRUE ELSE is_read END, "+
			"delivered_at = CASE WHEN $2 = 'delivered' AND delivered_at IS NULL THEN $3 ELSE delivered_at END, "+
			"read_at = CASE WHEN $2 = 'read' AND read_at IS NULL THEN $3 ELSE read_at END, "+
			"updated_at = $3 "+
			"WHERE id = $1 AND "+
			"CASE status WHEN 'sent' THEN 0 WHEN 'delivered' THEN 1 ELSE 2 END < "+
			"CASE $2 WHEN 'delivered' THEN 1 WHEN 'read' THEN 2 ELSE 0 END",
		messageId,
		status,
		time.Now().UTC(),
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	// Either the transition was a no-op or the message does not exist.
	var exists bool
	err = db.conn.QueryRow("SELECT EXISTS (SELECT 1 FROM messages WHERE id = $1)", messageId).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("message %q: %w", messageId, ErrNotFound)
	}

	return nil
}

// MarkRoomRead bulk-transitions every unread message in the room not sent by
// readerId to read, returning the number of messages affected.
func (db *PgChatRepository) MarkRoomRead(roomId, readerId int) (int64, error) {
	res, err := db.conn.Exec(
		"UPDATE messages SET status = 'read', is_read = TRUE, "+
			"read_at = COALESCE(read_at, $3), updated_at = $3 "+
			"WHERE room_id = $1 AND sender_id <> $2 AND is_read = FALSE",
		roomId,
		readerId,
		time.Now().UTC(),
	)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

func (db *PgChatRepository) DeleteMessage(messageId string, requesterId int) error {
	var senderId int
	err := db.conn.QueryRow("SELECT sender_id FROM messages WHERE id = $1 LIMIT 1", messageId).Scan(&senderId)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("message %q: %w", messageId, ErrNotFound)
	}
	if err != nil {
		return err
	}

	if senderId != requesterId {
		return fmt.Errorf("delete message %q: %w", messageId, ErrPermissionDenied)
	}

	_, err = db.conn.Exec("DELETE FROM messages WHERE id = $1", messageId)

	return err
}

// likeEscaper neutralizes LIKE metacharacters in user-supplied search text so
// the query matches as a literal substring.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchMessages returns messages containing query, restricted to rooms where
// accountId is a participant. The room scope is always derived from the
// caller's identity, never from caller-supplied room ids.
func (db *PgChatRepository) SearchMessages(accountId int, query string, limit int) ([]Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	rows, err := db.conn.Query(
		"SELECT "+messageColumns+" FROM messages m "+
			"JOIN chat_rooms r ON r.id = m.room_id "+
			"JOIN accounts a ON a.id = m.sender_id "+
			"WHERE (r.user1_id = $1 OR r.user2_id = $1) AND m.content ILIKE '%' || $2 || '%' ESCAPE '\\' "+
			"ORDER BY m.created_at DESC LIMIT $3",
		accountId,
		likeEscaper.Replace(query),
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectMessages(rows, limit)
}

func collectMessages(rows *sql.Rows, capacity int) ([]Message, error) {
	var messages = make([]Message, 0, capacity)
	for rows.Next() {
		msg, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, err
		}

		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

func scanMessage(scan func(dest ...any) error) (Message, error) {
	var (
		msg         Message
		filePath    sql.NullString
		deliveredAt sql.NullTime
		readAt      sql.NullTime
		replyToId   sql.NullString
	)

	err := scan(
		&msg.Id,
		&msg.RoomId,
		&msg.RoomExternalId,
		&msg.SenderId,
		&msg.SenderUsername,
		&msg.MessageType,
		&msg.Content,
		&filePath,
		&msg.Status,
		&msg.IsRead,
		&deliveredAt,
		&readAt,
		&replyToId,
		&msg.Reactions,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)
	if err != nil {
		return Message{}, err
	}

	msg.FilePath = filePath.String
	msg.ReplyToId = replyToId.String
	if deliveredAt.Valid {
		msg.DeliveredAt = &deliveredAt.Time
	}
	if readAt.Valid {
		msg.ReadAt = &readAt.Time
	}

	return msg, nil
}

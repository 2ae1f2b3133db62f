package store

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/kabili207/mesh-web-client/pkg/models"
)

var selectMessages = `SELECT * FROM messages`

type MessageStore interface {
	// Save inserts a message, or updates the ack flag and text of an
	// existing message with the same owner and packet id.
	Save(msg *models.Message) error
	MarkAcked(owner, packetID uint32) error
	// Get returns nil when the message is unknown.
	Get(owner, packetID uint32) (*models.Message, error)
	// Recent returns the newest limit messages of a chat, oldest first.
	Recent(owner uint32, chat string, limit int) ([]*models.Message, error)
	// Chats lists the chats with stored messages for owner.
	Chats(owner uint32) ([]string, error)
}

type sqliteMessageStore struct {
	db *sqlx.DB
}

func NewMessageStore(db *sqlx.DB) MessageStore {
	return &sqliteMessageStore{db: db}
}

func (s *sqliteMessageStore) Save(msg *models.Message) error {
	stmt := `
	INSERT INTO messages (owner, chat, packet_id, from_node, to_node, channel, text, acked, received)
	VALUES (:owner, :chat, :packet_id, :from_node, :to_node, :channel, :text, :acked, :received)
	ON CONFLICT (owner, packet_id)
	DO UPDATE SET
		text = excluded.text,
		acked = excluded.acked OR messages.acked
	;`

	msg.Received = msg.Received.UTC()
	_, err := s.db.NamedExec(stmt, msg)
	return err
}

func (s *sqliteMessageStore) MarkAcked(owner, packetID uint32) error {
	_, err := s.db.Exec(`UPDATE messages SET acked = 1 WHERE owner = ? AND packet_id = ?;`, owner, packetID)
	return err
}

func (s *sqliteMessageStore) Get(owner, packetID uint32) (*models.Message, error) {
	query := selectMessages + " WHERE owner = ? AND packet_id = ?;"
	var msg models.Message
	err := s.db.Get(&msg, query, owner, packetID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *sqliteMessageStore) Recent(owner uint32, chat string, limit int) ([]*models.Message, error) {
	query := `SELECT * FROM (` + selectMessages + `
		WHERE owner = ? AND chat = ?
		ORDER BY received DESC, id DESC
		LIMIT ?
	) ORDER BY received ASC, id ASC;`

	msgs := []*models.Message{}
	if err := s.db.Select(&msgs, query, owner, chat, limit); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (s *sqliteMessageStore) Chats(owner uint32) ([]string, error) {
	chats := []string{}
	err := s.db.Select(&chats, `SELECT DISTINCT chat FROM messages WHERE owner = ? ORDER BY chat;`, owner)
	return chats, err
}

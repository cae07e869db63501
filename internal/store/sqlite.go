package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	nickname      TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	last_seen     INTEGER NOT NULL DEFAULT 0,
	created_at    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS chat_groups (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	owner_id   TEXT NOT NULL REFERENCES users(id),
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS group_members (
	group_id TEXT NOT NULL REFERENCES chat_groups(id),
	user_id  TEXT NOT NULL REFERENCES users(id),
	PRIMARY KEY (group_id, user_id)
);

CREATE TABLE IF NOT EXISTS messages (
	id          TEXT PRIMARY KEY,
	sender_id   TEXT NOT NULL REFERENCES users(id),
	receiver_id TEXT,
	group_id    TEXT,
	content     TEXT NOT NULL,
	timestamp   INTEGER NOT NULL,
	is_read     INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_messages_private
	ON messages(sender_id, receiver_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_messages_group
	ON messages(group_id, timestamp);
`

// SQLite is the Store implementation backed by a SQLite database.
type SQLite struct {
	db *sql.DB

	// now and newID are swappable for tests.
	now   func() time.Time
	newID func() string
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens (creating if needed) the database at path and applies the
// schema.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &SQLite{
		db:    db,
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}, nil
}

// Close closes the underlying database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) CreateUser(ctx context.Context, username, nickname, passwordHash string) (User, error) {
	u := User{
		ID:           s.newID(),
		Username:     username,
		Nickname:     nickname,
		PasswordHash: passwordHash,
		CreatedAt:    s.now().UnixMilli(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, nickname, password_hash, last_seen, created_at)
		 VALUES (?, ?, ?, ?, 0, ?)`,
		u.ID, u.Username, u.Nickname, u.PasswordHash, u.CreatedAt)
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *SQLite) scanUser(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Nickname, &u.PasswordHash, &u.LastSeen, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

func (s *SQLite) GetUser(ctx context.Context, id string) (User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, nickname, password_hash, last_seen, created_at
		 FROM users WHERE id = ?`, id)
	return s.scanUser(row)
}

func (s *SQLite) GetUserByUsername(ctx context.Context, username string) (User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, nickname, password_hash, last_seen, created_at
		 FROM users WHERE username = ?`, username)
	return s.scanUser(row)
}

func (s *SQLite) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, nickname, password_hash, last_seen, created_at
		 FROM users ORDER BY nickname`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Nickname, &u.PasswordHash, &u.LastSeen, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *SQLite) UserExists(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("user exists: %w", err)
	}
	return n > 0, nil
}

func (s *SQLite) UpdateLastSeen(ctx context.Context, id string, at int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET last_seen = ? WHERE id = ?`, at, id)
	if err != nil {
		return fmt.Errorf("update last seen: %w", err)
	}
	return nil
}

func (s *SQLite) CreateGroup(ctx context.Context, name, ownerID string) (Group, error) {
	g := Group{
		ID:        s.newID(),
		Name:      name,
		OwnerID:   ownerID,
		CreatedAt: s.now().UnixMilli(),
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Group{}, fmt.Errorf("create group: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO chat_groups (id, name, owner_id, created_at) VALUES (?, ?, ?, ?)`,
		g.ID, g.Name, g.OwnerID, g.CreatedAt); err != nil {
		return Group{}, fmt.Errorf("create group: %w", err)
	}
	// The owner is always a member.
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO group_members (group_id, user_id) VALUES (?, ?)`,
		g.ID, g.OwnerID); err != nil {
		return Group{}, fmt.Errorf("create group: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Group{}, fmt.Errorf("create group: %w", err)
	}
	return g, nil
}

func (s *SQLite) GetGroup(ctx context.Context, id string) (Group, error) {
	var g Group
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, owner_id, created_at FROM chat_groups WHERE id = ?`, id).
		Scan(&g.ID, &g.Name, &g.OwnerID, &g.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Group{}, ErrNotFound
	}
	if err != nil {
		return Group{}, fmt.Errorf("get group: %w", err)
	}
	return g, nil
}

func (s *SQLite) ListGroups(ctx context.Context, memberID string) ([]Group, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT g.id, g.name, g.owner_id, g.created_at
		 FROM chat_groups g JOIN group_members gm ON gm.group_id = g.id
		 WHERE gm.user_id = ? ORDER BY g.name`, memberID)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Name, &g.OwnerID, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (s *SQLite) AddGroupMember(ctx context.Context, groupID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO group_members (group_id, user_id) VALUES (?, ?)`,
		groupID, userID)
	if err != nil {
		return fmt.Errorf("add group member: %w", err)
	}
	return nil
}

func (s *SQLite) IsGroupMember(ctx context.Context, groupID, userID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM group_members WHERE group_id = ? AND user_id = ?`,
		groupID, userID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("is group member: %w", err)
	}
	return n > 0, nil
}

func (s *SQLite) GroupMemberIDs(ctx context.Context, groupID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM group_members WHERE group_id = ?`, groupID)
	if err != nil {
		return nil, fmt.Errorf("group member ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan member id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLite) AppendPrivateMessage(ctx context.Context, senderID, receiverID, content string) (Message, error) {
	sender, err := s.GetUser(ctx, senderID)
	if err != nil {
		return Message{}, fmt.Errorf("append private message: %w", err)
	}
	m := Message{
		ID:             s.newID(),
		SenderID:       senderID,
		SenderNickname: sender.Nickname,
		ReceiverID:     receiverID,
		Content:        content,
		Timestamp:      s.now().UnixMilli(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO messages (id, sender_id, receiver_id, content, timestamp, is_read)
		 VALUES (?, ?, ?, ?, ?, 0)`,
		m.ID, m.SenderID, m.ReceiverID, m.Content, m.Timestamp)
	if err != nil {
		return Message{}, fmt.Errorf("append private message: %w", err)
	}
	return m, nil
}

func (s *SQLite) AppendGroupMessage(ctx context.Context, senderID, groupID, content string) (Message, error) {
	sender, err := s.GetUser(ctx, senderID)
	if err != nil {
		return Message{}, fmt.Errorf("append group message: %w", err)
	}
	m := Message{
		ID:             s.newID(),
		SenderID:       senderID,
		SenderNickname: sender.Nickname,
		GroupID:        groupID,
		Content:        content,
		Timestamp:      s.now().UnixMilli(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO messages (id, sender_id, group_id, content, timestamp, is_read)
		 VALUES (?, ?, ?, ?, ?, 0)`,
		m.ID, m.SenderID, m.GroupID, m.Content, m.Timestamp)
	if err != nil {
		return Message{}, fmt.Errorf("append group message: %w", err)
	}
	return m, nil
}

func (s *SQLite) MarkRead(ctx context.Context, readerID, senderID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET is_read = 1
		 WHERE sender_id = ? AND receiver_id = ? AND is_read = 0`,
		senderID, readerID)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	return n, nil
}

func (s *SQLite) UnreadCounts(ctx context.Context, readerID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sender_id, COUNT(*) FROM messages
		 WHERE receiver_id = ? AND is_read = 0 GROUP BY sender_id`, readerID)
	if err != nil {
		return nil, fmt.Errorf("unread counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var senderID string
		var n int
		if err := rows.Scan(&senderID, &n); err != nil {
			return nil, fmt.Errorf("scan unread count: %w", err)
		}
		counts[senderID] = n
	}
	return counts, rows.Err()
}

func (s *SQLite) PrivateHistory(ctx context.Context, userA, userB string, page, pageSize int) ([]Message, int, error) {
	const where = `(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)`

	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE `+where,
		userA, userB, userB, userA).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("private history count: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT m.id, m.sender_id, u.nickname, m.receiver_id, m.content, m.timestamp, m.is_read
		 FROM messages m JOIN users u ON u.id = m.sender_id
		 WHERE `+where+`
		 ORDER BY m.timestamp DESC, m.id DESC
		 LIMIT ? OFFSET ?`,
		userA, userB, userB, userA, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("private history: %w", err)
	}
	defer rows.Close()

	msgs, err := scanMessages(rows, false)
	if err != nil {
		return nil, 0, err
	}
	return msgs, total, nil
}

func (s *SQLite) GroupHistory(ctx context.Context, groupID string, page, pageSize int) ([]Message, int, error) {
	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE group_id = ?`, groupID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("group history count: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT m.id, m.sender_id, u.nickname, m.group_id, m.content, m.timestamp, m.is_read
		 FROM messages m JOIN users u ON u.id = m.sender_id
		 WHERE m.group_id = ?
		 ORDER BY m.timestamp DESC, m.id DESC
		 LIMIT ? OFFSET ?`,
		groupID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("group history: %w", err)
	}
	defer rows.Close()

	msgs, err := scanMessages(rows, true)
	if err != nil {
		return nil, 0, err
	}
	return msgs, total, nil
}

func scanMessages(rows *sql.Rows, group bool) ([]Message, error) {
	var msgs []Message
	for rows.Next() {
		var m Message
		var peer sql.NullString
		var isRead int
		if err := rows.Scan(&m.ID, &m.SenderID, &m.SenderNickname, &peer, &m.Content, &m.Timestamp, &isRead); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if group {
			m.GroupID = peer.String
		} else {
			m.ReceiverID = peer.String
		}
		m.IsRead = isRead != 0
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

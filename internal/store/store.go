// Package store is the durable boundary for users, groups, and messages.
// The realtime subsystem only reads and writes through the Store interface
// and never caches authoritative copies.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// User is an account row. LastSeen is Unix milliseconds.
type User struct {
	ID           string
	Username     string
	Nickname     string
	PasswordHash string
	LastSeen     int64
	CreatedAt    int64
}

// Group is a group chat row.
type Group struct {
	ID        string
	Name      string
	OwnerID   string
	CreatedAt int64
}

// Message is a persisted chat message. Exactly one of ReceiverID and GroupID
// is set. Timestamp is Unix milliseconds, assigned by the store.
type Message struct {
	ID             string
	SenderID       string
	SenderNickname string
	ReceiverID     string
	GroupID        string
	Content        string
	Timestamp      int64
	IsRead         bool
}

// Page describes one page of a paginated history query.
type Page struct {
	CurrentPage   int  `json:"currentPage"`
	PageSize      int  `json:"pageSize"`
	TotalMessages int  `json:"totalMessages"`
	TotalPages    int  `json:"totalPages"`
	HasNextPage   bool `json:"hasNextPage"`
	HasPrevPage   bool `json:"hasPrevPage"`
}

// NewPage computes the pagination block for a 1-based page over total rows.
func NewPage(page, pageSize, total int) Page {
	totalPages := 0
	if pageSize > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}
	return Page{
		CurrentPage:   page,
		PageSize:      pageSize,
		TotalMessages: total,
		TotalPages:    totalPages,
		HasNextPage:   page*pageSize < total,
		HasPrevPage:   page > 1,
	}
}

// UserQueries is the account surface used by auth, presence, and handlers.
type UserQueries interface {
	CreateUser(ctx context.Context, username, nickname, passwordHash string) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UserExists(ctx context.Context, id string) (bool, error)
	UpdateLastSeen(ctx context.Context, id string, at int64) error
}

// GroupQueries is the group-membership surface used by the router and handlers.
type GroupQueries interface {
	CreateGroup(ctx context.Context, name, ownerID string) (Group, error)
	GetGroup(ctx context.Context, id string) (Group, error)
	ListGroups(ctx context.Context, memberID string) ([]Group, error)
	AddGroupMember(ctx context.Context, groupID, userID string) error
	IsGroupMember(ctx context.Context, groupID, userID string) (bool, error)
	GroupMemberIDs(ctx context.Context, groupID string) ([]string, error)
}

// MessageQueries is the message surface used by the router and handlers.
// Append operations assign the id, the server timestamp, and read=false.
// History queries return rows in most-recent-first order plus the total count.
type MessageQueries interface {
	AppendPrivateMessage(ctx context.Context, senderID, receiverID, content string) (Message, error)
	AppendGroupMessage(ctx context.Context, senderID, groupID, content string) (Message, error)
	MarkRead(ctx context.Context, readerID, senderID string) (int64, error)
	UnreadCounts(ctx context.Context, readerID string) (map[string]int, error)
	PrivateHistory(ctx context.Context, userA, userB string, page, pageSize int) ([]Message, int, error)
	GroupHistory(ctx context.Context, groupID string, page, pageSize int) ([]Message, int, error)
}

// Store is the full durable surface.
type Store interface {
	UserQueries
	GroupQueries
	MessageQueries
}

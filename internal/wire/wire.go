// Package wire defines the realtime frame formats exchanged between the chat
// server and its clients. Every frame, in both directions, is an Envelope:
// a type tag plus a type-specific data object. Field names are camelCase on
// the wire and timestamps are Unix milliseconds.
package wire

import (
	"encoding/json"
	"fmt"
)

// Frame type tags. Client to server.
const (
	TypePrivateMessage = "private_message"
	TypeGroupMessage   = "group_message"
	TypeTyping         = "typing"
	TypeMarkRead       = "mark_read"
)

// Frame type tags. Server to client only.
const (
	TypeUserOnline  = "user_online"
	TypeUserOffline = "user_offline"
	TypeError       = "error"
)

// Envelope is the wrapper around every realtime frame.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// NewEnvelope builds an envelope with a marshaled payload.
func NewEnvelope(frameType string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", frameType, err)
	}
	return Envelope{Type: frameType, Data: raw}, nil
}

// Encode marshals an envelope into a single wire frame.
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEnvelope parses a raw frame into an envelope.
func DecodeEnvelope(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("decode envelope: missing type tag")
	}
	return env, nil
}

// Command is the tagged union of inbound client commands.
//
// Unrecognized type tags decode to UnknownCommand so that forward-compatible
// clients are distinguishable from malformed ones.
type Command interface {
	isCommand()
}

// PrivateMessageCommand asks the server to deliver a direct message.
type PrivateMessageCommand struct {
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
}

// GroupMessageCommand asks the server to deliver a message to a group.
type GroupMessageCommand struct {
	GroupID string `json:"groupId"`
	Content string `json:"content"`
}

// TypingCommand signals typing state for a private or group thread.
// Exactly one of ReceiverID and GroupID is set.
type TypingCommand struct {
	ReceiverID string `json:"receiverId,omitempty"`
	GroupID    string `json:"groupId,omitempty"`
	IsTyping   bool   `json:"isTyping"`
}

// MarkReadCommand marks all unread messages from SenderID to the caller.
type MarkReadCommand struct {
	SenderID string `json:"senderId"`
}

// UnknownCommand carries the tag of a well-formed frame the server does not
// recognize.
type UnknownCommand struct {
	Type string
}

func (PrivateMessageCommand) isCommand() {}
func (GroupMessageCommand) isCommand()   {}
func (TypingCommand) isCommand()         {}
func (MarkReadCommand) isCommand()       {}
func (UnknownCommand) isCommand()        {}

// ParseCommand decodes an inbound envelope into its command variant.
//
// A recognized tag with an undecodable or invalid payload is an error; an
// unrecognized tag is not, and yields UnknownCommand.
func ParseCommand(env Envelope) (Command, error) {
	switch env.Type {
	case TypePrivateMessage:
		var cmd PrivateMessageCommand
		if err := json.Unmarshal(env.Data, &cmd); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
		if cmd.ReceiverID == "" || cmd.Content == "" {
			return nil, fmt.Errorf("%s: receiverId and content are required", env.Type)
		}
		return cmd, nil

	case TypeGroupMessage:
		var cmd GroupMessageCommand
		if err := json.Unmarshal(env.Data, &cmd); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
		if cmd.GroupID == "" || cmd.Content == "" {
			return nil, fmt.Errorf("%s: groupId and content are required", env.Type)
		}
		return cmd, nil

	case TypeTyping:
		var cmd TypingCommand
		if err := json.Unmarshal(env.Data, &cmd); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
		if (cmd.ReceiverID == "") == (cmd.GroupID == "") {
			return nil, fmt.Errorf("%s: exactly one of receiverId and groupId is required", env.Type)
		}
		return cmd, nil

	case TypeMarkRead:
		var cmd MarkReadCommand
		if err := json.Unmarshal(env.Data, &cmd); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
		if cmd.SenderID == "" {
			return nil, fmt.Errorf("%s: senderId is required", env.Type)
		}
		return cmd, nil

	default:
		return UnknownCommand{Type: env.Type}, nil
	}
}

// MessageDelivered is the payload pushed for a persisted private or group
// message. Private deliveries carry ReceiverID; group deliveries carry
// GroupID and GroupName.
type MessageDelivered struct {
	MessageID      string `json:"messageId"`
	SenderID       string `json:"senderId"`
	SenderNickname string `json:"senderNickname"`
	ReceiverID     string `json:"receiverId,omitempty"`
	GroupID        string `json:"groupId,omitempty"`
	GroupName      string `json:"groupName,omitempty"`
	Content        string `json:"content"`
	Timestamp      int64  `json:"timestamp"`
}

// PresenceChanged is the payload for user_online/user_offline frames.
type PresenceChanged struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
	LastSeen int64  `json:"lastSeen"`
}

// TypingChanged is the typing payload pushed to thread peers. UserID is the
// id of the user who is typing.
type TypingChanged struct {
	UserID     string `json:"userId"`
	ReceiverID string `json:"receiverId,omitempty"`
	GroupID    string `json:"groupId,omitempty"`
	IsTyping   bool   `json:"isTyping"`
}

// ErrorFrame reports a command failure back to the sender.
type ErrorFrame struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes for ErrorFrame.
const (
	ErrCodePersistence = "persistence_failed"
	ErrCodeNotFound    = "recipient_not_found"
	ErrCodeForbidden   = "not_a_member"
)

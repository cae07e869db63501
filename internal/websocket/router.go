package websocket

import (
	"context"
	"errors"

	"github.com/dohuyhi210/realtime-chat-app/internal/logger"
	"github.com/dohuyhi210/realtime-chat-app/internal/store"
	"github.com/dohuyhi210/realtime-chat-app/internal/wire"
)

// Router decodes inbound frames and dispatches them to command handlers.
//
// The router is lenient by design: a malformed payload or an unknown type tag
// is logged and dropped, and the connection stays open. For private and group
// messages, persistence must succeed before any fanout; a delivered event is
// never pushed for a write that did not durably succeed.
type Router struct {
	users    store.UserQueries
	groups   store.GroupQueries
	messages store.MessageQueries
	registry *Registry
	fanout   *Fanout
}

// NewRouter creates a protocol router over the given store surfaces.
func NewRouter(users store.UserQueries, groups store.GroupQueries, messages store.MessageQueries, registry *Registry, fanout *Fanout) *Router {
	return &Router{
		users:    users,
		groups:   groups,
		messages: messages,
		registry: registry,
		fanout:   fanout,
	}
}

// HandleFrame processes one inbound frame from the given user.
func (r *Router) HandleFrame(ctx context.Context, senderID string, frame []byte) {
	env, err := wire.DecodeEnvelope(frame)
	if err != nil {
		logger.Warnf("invalid frame from user %s: %v", senderID, err)
		return
	}

	cmd, err := wire.ParseCommand(env)
	if err != nil {
		logger.Warnf("malformed %s payload from user %s: %v", env.Type, senderID, err)
		return
	}

	logger.Debugf("received %s from user %s", env.Type, senderID)

	switch cmd := cmd.(type) {
	case wire.PrivateMessageCommand:
		r.handlePrivateMessage(ctx, senderID, cmd)
	case wire.GroupMessageCommand:
		r.handleGroupMessage(ctx, senderID, cmd)
	case wire.TypingCommand:
		r.handleTyping(ctx, senderID, cmd)
	case wire.MarkReadCommand:
		r.handleMarkRead(ctx, senderID, cmd)
	case wire.UnknownCommand:
		logger.Warnf("unknown message type %q from user %s", cmd.Type, senderID)
	}
}

// handlePrivateMessage persists the message, then pushes the delivery event
// to the receiver and echoes it to the sender. An offline receiver simply
// misses the realtime push and sees the message on their next history fetch.
func (r *Router) handlePrivateMessage(ctx context.Context, senderID string, cmd wire.PrivateMessageCommand) {
	exists, err := r.users.UserExists(ctx, cmd.ReceiverID)
	if err != nil {
		logger.Errorf("check receiver %s: %v", cmd.ReceiverID, err)
		r.sendError(senderID, wire.ErrCodePersistence, "could not verify receiver")
		return
	}
	if !exists {
		logger.Warnf("private message from %s to unknown user %s", senderID, cmd.ReceiverID)
		r.sendError(senderID, wire.ErrCodeNotFound, "receiver does not exist")
		return
	}

	msg, err := r.messages.AppendPrivateMessage(ctx, senderID, cmd.ReceiverID, cmd.Content)
	if err != nil {
		logger.Errorf("persist private message from %s: %v", senderID, err)
		r.sendError(senderID, wire.ErrCodePersistence, "message was not saved")
		return
	}

	env, err := wire.NewEnvelope(wire.TypePrivateMessage, wire.MessageDelivered{
		MessageID:      msg.ID,
		SenderID:       msg.SenderID,
		SenderNickname: msg.SenderNickname,
		ReceiverID:     msg.ReceiverID,
		Content:        msg.Content,
		Timestamp:      msg.Timestamp,
	})
	if err != nil {
		logger.Errorf("build private_message frame: %v", err)
		return
	}

	// Sender gets an echo so a fresh connection sees its own confirmed send.
	r.fanout.Deliver([]string{cmd.ReceiverID, senderID}, env)
	logger.Infof("private message sent: %s -> %s", senderID, cmd.ReceiverID)
}

// handleGroupMessage verifies membership, persists the message, and pushes
// the delivery event to the full current member set, sender included.
func (r *Router) handleGroupMessage(ctx context.Context, senderID string, cmd wire.GroupMessageCommand) {
	group, err := r.groups.GetGroup(ctx, cmd.GroupID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			r.sendError(senderID, wire.ErrCodeNotFound, "group does not exist")
		} else {
			logger.Errorf("load group %s: %v", cmd.GroupID, err)
			r.sendError(senderID, wire.ErrCodePersistence, "could not load group")
		}
		return
	}

	member, err := r.groups.IsGroupMember(ctx, cmd.GroupID, senderID)
	if err != nil {
		logger.Errorf("check membership of %s in %s: %v", senderID, cmd.GroupID, err)
		r.sendError(senderID, wire.ErrCodePersistence, "could not verify membership")
		return
	}
	if !member {
		logger.Warnf("group message from non-member %s to group %s", senderID, cmd.GroupID)
		r.sendError(senderID, wire.ErrCodeForbidden, "not a member of this group")
		return
	}

	msg, err := r.messages.AppendGroupMessage(ctx, senderID, cmd.GroupID, cmd.Content)
	if err != nil {
		logger.Errorf("persist group message from %s: %v", senderID, err)
		r.sendError(senderID, wire.ErrCodePersistence, "message was not saved")
		return
	}

	memberIDs, err := r.groups.GroupMemberIDs(ctx, cmd.GroupID)
	if err != nil {
		logger.Errorf("resolve members of group %s: %v", cmd.GroupID, err)
		return
	}

	env, err := wire.NewEnvelope(wire.TypeGroupMessage, wire.MessageDelivered{
		MessageID:      msg.ID,
		SenderID:       msg.SenderID,
		SenderNickname: msg.SenderNickname,
		GroupID:        msg.GroupID,
		GroupName:      group.Name,
		Content:        msg.Content,
		Timestamp:      msg.Timestamp,
	})
	if err != nil {
		logger.Errorf("build group_message frame: %v", err)
		return
	}

	r.fanout.Deliver(memberIDs, env)
	logger.Infof("group message sent: %s -> group %s", senderID, cmd.GroupID)
}

// handleTyping pushes an ephemeral typing event carrying the sender's id.
// Never persisted.
func (r *Router) handleTyping(ctx context.Context, senderID string, cmd wire.TypingCommand) {
	env, err := wire.NewEnvelope(wire.TypeTyping, wire.TypingChanged{
		UserID:     senderID,
		ReceiverID: cmd.ReceiverID,
		GroupID:    cmd.GroupID,
		IsTyping:   cmd.IsTyping,
	})
	if err != nil {
		logger.Errorf("build typing frame: %v", err)
		return
	}

	if cmd.ReceiverID != "" {
		r.fanout.Deliver([]string{cmd.ReceiverID}, env)
		return
	}

	memberIDs, err := r.groups.GroupMemberIDs(ctx, cmd.GroupID)
	if err != nil {
		logger.Warnf("resolve members of group %s for typing: %v", cmd.GroupID, err)
		return
	}
	targets := memberIDs[:0]
	for _, id := range memberIDs {
		if id != senderID {
			targets = append(targets, id)
		}
	}
	r.fanout.Deliver(targets, env)
}

// handleMarkRead flips the read flag on all unread messages from the given
// sender to the caller. No realtime acknowledgment reaches the original
// sender; read receipts are not surfaced.
func (r *Router) handleMarkRead(ctx context.Context, readerID string, cmd wire.MarkReadCommand) {
	n, err := r.messages.MarkRead(ctx, readerID, cmd.SenderID)
	if err != nil {
		logger.Errorf("mark read for %s from %s: %v", readerID, cmd.SenderID, err)
		return
	}
	logger.Debugf("marked %d messages read: user %s from %s", n, readerID, cmd.SenderID)
}

// sendError pushes an error frame to the sender's own connection, if live.
func (r *Router) sendError(userID, code, message string) {
	env, err := wire.NewEnvelope(wire.TypeError, wire.ErrorFrame{Code: code, Message: message})
	if err != nil {
		logger.Errorf("build error frame: %v", err)
		return
	}
	r.fanout.Deliver([]string{userID}, env)
}

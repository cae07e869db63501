package websocket

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dohuyhi210/realtime-chat-app/internal/store"
	"github.com/dohuyhi210/realtime-chat-app/internal/wire"
)

type routerFixture struct {
	registry *Registry
	router   *Router
	store    *fakeStore
	conns    map[string]*fakeTransport
}

func newRouterFixture(t *testing.T, st *fakeStore, userIDs ...string) *routerFixture {
	t.Helper()
	registry := NewRegistry()
	fanout := NewFanout(registry)
	conns := make(map[string]*fakeTransport, len(userIDs))
	for _, id := range userIDs {
		conn := &fakeTransport{}
		registry.Register(id, conn)
		conns[id] = conn
	}
	return &routerFixture{
		registry: registry,
		router:   NewRouter(st, st, st, registry, fanout),
		store:    st,
		conns:    conns,
	}
}

func frame(t *testing.T, frameType string, data any) []byte {
	t.Helper()
	env, err := wire.NewEnvelope(frameType, data)
	require.NoError(t, err)
	raw, err := env.Encode()
	require.NoError(t, err)
	return raw
}

func TestRouterPrivateMessagePersistsThenDeliversWithEcho(t *testing.T) {
	appends := 0
	st := &fakeStore{
		userExists: func(ctx context.Context, id string) (bool, error) { return true, nil },
		appendPrivate: func(ctx context.Context, senderID, receiverID, content string) (store.Message, error) {
			appends++
			return store.Message{
				ID:             "m1",
				SenderID:       senderID,
				SenderNickname: "Alice",
				ReceiverID:     receiverID,
				Content:        content,
				Timestamp:      1700000000000,
			}, nil
		},
	}
	fx := newRouterFixture(t, st, "alice", "bob")

	fx.router.HandleFrame(context.Background(), "alice",
		frame(t, wire.TypePrivateMessage, wire.PrivateMessageCommand{ReceiverID: "bob", Content: "hello"}))

	require.Equal(t, 1, appends)

	// Receiver and sender each get exactly one identical delivery event.
	for _, id := range []string{"alice", "bob"} {
		envs := fx.conns[id].envelopes(t)
		require.Len(t, envs, 1, "user %s", id)
		require.Equal(t, wire.TypePrivateMessage, envs[0].Type)

		event := decodePayload[wire.MessageDelivered](t, envs[0])
		require.Equal(t, "m1", event.MessageID)
		require.Equal(t, "alice", event.SenderID)
		require.Equal(t, "Alice", event.SenderNickname)
		require.Equal(t, "bob", event.ReceiverID)
		require.Equal(t, "hello", event.Content)
		require.Equal(t, int64(1700000000000), event.Timestamp)
	}
}

func TestRouterPrivateMessageOfflineReceiverStillPersists(t *testing.T) {
	appends := 0
	st := &fakeStore{
		userExists: func(ctx context.Context, id string) (bool, error) { return true, nil },
		appendPrivate: func(ctx context.Context, senderID, receiverID, content string) (store.Message, error) {
			appends++
			return store.Message{ID: "m1", SenderID: senderID, ReceiverID: receiverID, Content: content}, nil
		},
	}
	fx := newRouterFixture(t, st, "alice") // bob is offline

	fx.router.HandleFrame(context.Background(), "alice",
		frame(t, wire.TypePrivateMessage, wire.PrivateMessageCommand{ReceiverID: "bob", Content: "hello"}))

	require.Equal(t, 1, appends)
	// Sender still gets the echo; bob catches up on the next history fetch.
	envs := fx.conns["alice"].envelopes(t)
	require.Len(t, envs, 1)
	require.Equal(t, wire.TypePrivateMessage, envs[0].Type)
}

func TestRouterPrivateMessageUnknownReceiver(t *testing.T) {
	appends := 0
	st := &fakeStore{
		userExists: func(ctx context.Context, id string) (bool, error) { return false, nil },
		appendPrivate: func(ctx context.Context, senderID, receiverID, content string) (store.Message, error) {
			appends++
			return store.Message{}, nil
		},
	}
	fx := newRouterFixture(t, st, "alice")

	fx.router.HandleFrame(context.Background(), "alice",
		frame(t, wire.TypePrivateMessage, wire.PrivateMessageCommand{ReceiverID: "ghost", Content: "hello"}))

	require.Zero(t, appends)
	envs := fx.conns["alice"].envelopes(t)
	require.Len(t, envs, 1)
	require.Equal(t, wire.TypeError, envs[0].Type)
	require.Equal(t, wire.ErrCodeNotFound, decodePayload[wire.ErrorFrame](t, envs[0]).Code)
}

func TestRouterPrivateMessagePersistenceFailure(t *testing.T) {
	st := &fakeStore{
		userExists: func(ctx context.Context, id string) (bool, error) { return true, nil },
		appendPrivate: func(ctx context.Context, senderID, receiverID, content string) (store.Message, error) {
			return store.Message{}, fmt.Errorf("disk full")
		},
	}
	fx := newRouterFixture(t, st, "alice", "bob")

	fx.router.HandleFrame(context.Background(), "alice",
		frame(t, wire.TypePrivateMessage, wire.PrivateMessageCommand{ReceiverID: "bob", Content: "hello"}))

	// No delivery event may be pushed for a write that did not succeed.
	require.Empty(t, fx.conns["bob"].envelopes(t))

	envs := fx.conns["alice"].envelopes(t)
	require.Len(t, envs, 1)
	require.Equal(t, wire.TypeError, envs[0].Type)
	require.Equal(t, wire.ErrCodePersistence, decodePayload[wire.ErrorFrame](t, envs[0]).Code)
}

func TestRouterGroupMessageReachesExactlyTheMemberSet(t *testing.T) {
	st := &fakeStore{
		getGroup: func(ctx context.Context, id string) (store.Group, error) {
			return store.Group{ID: id, Name: "devs"}, nil
		},
		isGroupMember: func(ctx context.Context, groupID, userID string) (bool, error) {
			return userID != "outsider", nil
		},
		groupMemberIDs: func(ctx context.Context, groupID string) ([]string, error) {
			return []string{"alice", "bob", "carol"}, nil
		},
		appendGroup: func(ctx context.Context, senderID, groupID, content string) (store.Message, error) {
			return store.Message{
				ID:             "m1",
				SenderID:       senderID,
				SenderNickname: "Alice",
				GroupID:        groupID,
				Content:        content,
				Timestamp:      1700000000000,
			}, nil
		},
	}
	// carol is a member but offline; outsider is online but not a member.
	fx := newRouterFixture(t, st, "alice", "bob", "outsider")

	fx.router.HandleFrame(context.Background(), "alice",
		frame(t, wire.TypeGroupMessage, wire.GroupMessageCommand{GroupID: "g1", Content: "standup?"}))

	require.Empty(t, fx.conns["outsider"].envelopes(t))
	for _, id := range []string{"alice", "bob"} {
		envs := fx.conns[id].envelopes(t)
		require.Len(t, envs, 1, "user %s", id)
		require.Equal(t, wire.TypeGroupMessage, envs[0].Type)

		event := decodePayload[wire.MessageDelivered](t, envs[0])
		require.Equal(t, "g1", event.GroupID)
		require.Equal(t, "devs", event.GroupName)
		require.Equal(t, "standup?", event.Content)
	}
}

func TestRouterGroupMessageFromNonMember(t *testing.T) {
	appends := 0
	st := &fakeStore{
		getGroup: func(ctx context.Context, id string) (store.Group, error) {
			return store.Group{ID: id, Name: "devs"}, nil
		},
		isGroupMember: func(ctx context.Context, groupID, userID string) (bool, error) { return false, nil },
		appendGroup: func(ctx context.Context, senderID, groupID, content string) (store.Message, error) {
			appends++
			return store.Message{}, nil
		},
	}
	fx := newRouterFixture(t, st, "mallory")

	fx.router.HandleFrame(context.Background(), "mallory",
		frame(t, wire.TypeGroupMessage, wire.GroupMessageCommand{GroupID: "g1", Content: "hi"}))

	require.Zero(t, appends)
	envs := fx.conns["mallory"].envelopes(t)
	require.Len(t, envs, 1)
	require.Equal(t, wire.TypeError, envs[0].Type)
	require.Equal(t, wire.ErrCodeForbidden, decodePayload[wire.ErrorFrame](t, envs[0]).Code)
}

func TestRouterGroupMessageUnknownGroup(t *testing.T) {
	fx := newRouterFixture(t, &fakeStore{}, "alice")

	fx.router.HandleFrame(context.Background(), "alice",
		frame(t, wire.TypeGroupMessage, wire.GroupMessageCommand{GroupID: "nope", Content: "hi"}))

	envs := fx.conns["alice"].envelopes(t)
	require.Len(t, envs, 1)
	require.Equal(t, wire.TypeError, envs[0].Type)
	require.Equal(t, wire.ErrCodeNotFound, decodePayload[wire.ErrorFrame](t, envs[0]).Code)
}

func TestRouterTypingPrivateCarriesSenderID(t *testing.T) {
	fx := newRouterFixture(t, &fakeStore{}, "alice", "bob")

	fx.router.HandleFrame(context.Background(), "alice",
		frame(t, wire.TypeTyping, wire.TypingCommand{ReceiverID: "bob", IsTyping: true}))

	require.Empty(t, fx.conns["alice"].envelopes(t))
	envs := fx.conns["bob"].envelopes(t)
	require.Len(t, envs, 1)
	require.Equal(t, wire.TypeTyping, envs[0].Type)

	event := decodePayload[wire.TypingChanged](t, envs[0])
	require.Equal(t, "alice", event.UserID)
	require.True(t, event.IsTyping)
}

func TestRouterTypingGroupExcludesSender(t *testing.T) {
	st := &fakeStore{
		groupMemberIDs: func(ctx context.Context, groupID string) ([]string, error) {
			return []string{"alice", "bob", "carol"}, nil
		},
	}
	fx := newRouterFixture(t, st, "alice", "bob", "carol")

	fx.router.HandleFrame(context.Background(), "alice",
		frame(t, wire.TypeTyping, wire.TypingCommand{GroupID: "g1", IsTyping: true}))

	require.Empty(t, fx.conns["alice"].envelopes(t))
	for _, id := range []string{"bob", "carol"} {
		envs := fx.conns[id].envelopes(t)
		require.Len(t, envs, 1, "user %s", id)
		event := decodePayload[wire.TypingChanged](t, envs[0])
		require.Equal(t, "alice", event.UserID)
		require.Equal(t, "g1", event.GroupID)
	}
}

func TestRouterMarkRead(t *testing.T) {
	var gotReader, gotSender string
	st := &fakeStore{
		markRead: func(ctx context.Context, readerID, senderID string) (int64, error) {
			gotReader, gotSender = readerID, senderID
			return 3, nil
		},
	}
	fx := newRouterFixture(t, st, "alice")

	fx.router.HandleFrame(context.Background(), "alice",
		frame(t, wire.TypeMarkRead, wire.MarkReadCommand{SenderID: "bob"}))

	require.Equal(t, "alice", gotReader)
	require.Equal(t, "bob", gotSender)
	require.Empty(t, fx.conns["alice"].envelopes(t))
}

func TestRouterDropsMalformedAndUnknownFrames(t *testing.T) {
	fx := newRouterFixture(t, &fakeStore{}, "alice", "bob")

	frames := [][]byte{
		[]byte(`not json at all`),
		[]byte(`{"data":{}}`),
		[]byte(`{"type":"private_message","data":{"content":"no receiver"}}`),
		[]byte(`{"type":"typing","data":{"receiverId":"bob","groupId":"g1","isTyping":true}}`),
		frame(t, "future_feature", map[string]string{"x": "y"}),
	}
	for _, raw := range frames {
		fx.router.HandleFrame(context.Background(), "alice", raw)
	}

	// Nothing delivered, no error frames, and the connection stays registered.
	require.Empty(t, fx.conns["alice"].envelopes(t))
	require.Empty(t, fx.conns["bob"].envelopes(t))
	require.True(t, fx.registry.IsOnline("alice"))
}

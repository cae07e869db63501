package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dohuyhi210/realtime-chat-app/internal/store"
	"github.com/dohuyhi210/realtime-chat-app/internal/wire"
)

// fakeTransport records frames instead of writing to a socket.
type fakeTransport struct {
	mu       sync.Mutex
	frames   [][]byte
	closed   bool
	failSend bool
}

func (f *fakeTransport) Send(frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend {
		return fmt.Errorf("send failed")
	}
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// envelopes decodes every recorded frame.
func (f *fakeTransport) envelopes(t *testing.T) []wire.Envelope {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	envs := make([]wire.Envelope, 0, len(f.frames))
	for _, frame := range f.frames {
		env, err := wire.DecodeEnvelope(frame)
		require.NoError(t, err)
		envs = append(envs, env)
	}
	return envs
}

func decodePayload[T any](t *testing.T, env wire.Envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

// fakeStore implements store.Store with overridable behavior per method.
// Methods without an override return zero values.
type fakeStore struct {
	userExists     func(ctx context.Context, id string) (bool, error)
	updateLastSeen func(ctx context.Context, id string, at int64) error

	getGroup       func(ctx context.Context, id string) (store.Group, error)
	isGroupMember  func(ctx context.Context, groupID, userID string) (bool, error)
	groupMemberIDs func(ctx context.Context, groupID string) ([]string, error)

	appendPrivate func(ctx context.Context, senderID, receiverID, content string) (store.Message, error)
	appendGroup   func(ctx context.Context, senderID, groupID, content string) (store.Message, error)
	markRead      func(ctx context.Context, readerID, senderID string) (int64, error)
}

var _ store.Store = (*fakeStore)(nil)

func (f *fakeStore) CreateUser(ctx context.Context, username, nickname, passwordHash string) (store.User, error) {
	return store.User{}, nil
}

func (f *fakeStore) GetUser(ctx context.Context, id string) (store.User, error) {
	return store.User{}, store.ErrNotFound
}

func (f *fakeStore) GetUserByUsername(ctx context.Context, username string) (store.User, error) {
	return store.User{}, store.ErrNotFound
}

func (f *fakeStore) ListUsers(ctx context.Context) ([]store.User, error) { return nil, nil }

func (f *fakeStore) UserExists(ctx context.Context, id string) (bool, error) {
	if f.userExists != nil {
		return f.userExists(ctx, id)
	}
	return false, nil
}

func (f *fakeStore) UpdateLastSeen(ctx context.Context, id string, at int64) error {
	if f.updateLastSeen != nil {
		return f.updateLastSeen(ctx, id, at)
	}
	return nil
}

func (f *fakeStore) CreateGroup(ctx context.Context, name, ownerID string) (store.Group, error) {
	return store.Group{}, nil
}

func (f *fakeStore) GetGroup(ctx context.Context, id string) (store.Group, error) {
	if f.getGroup != nil {
		return f.getGroup(ctx, id)
	}
	return store.Group{}, store.ErrNotFound
}

func (f *fakeStore) ListGroups(ctx context.Context, memberID string) ([]store.Group, error) {
	return nil, nil
}

func (f *fakeStore) AddGroupMember(ctx context.Context, groupID, userID string) error { return nil }

func (f *fakeStore) IsGroupMember(ctx context.Context, groupID, userID string) (bool, error) {
	if f.isGroupMember != nil {
		return f.isGroupMember(ctx, groupID, userID)
	}
	return false, nil
}

func (f *fakeStore) GroupMemberIDs(ctx context.Context, groupID string) ([]string, error) {
	if f.groupMemberIDs != nil {
		return f.groupMemberIDs(ctx, groupID)
	}
	return nil, nil
}

func (f *fakeStore) AppendPrivateMessage(ctx context.Context, senderID, receiverID, content string) (store.Message, error) {
	if f.appendPrivate != nil {
		return f.appendPrivate(ctx, senderID, receiverID, content)
	}
	return store.Message{}, fmt.Errorf("appendPrivate not configured")
}

func (f *fakeStore) AppendGroupMessage(ctx context.Context, senderID, groupID, content string) (store.Message, error) {
	if f.appendGroup != nil {
		return f.appendGroup(ctx, senderID, groupID, content)
	}
	return store.Message{}, fmt.Errorf("appendGroup not configured")
}

func (f *fakeStore) MarkRead(ctx context.Context, readerID, senderID string) (int64, error) {
	if f.markRead != nil {
		return f.markRead(ctx, readerID, senderID)
	}
	return 0, nil
}

func (f *fakeStore) UnreadCounts(ctx context.Context, readerID string) (map[string]int, error) {
	return nil, nil
}

func (f *fakeStore) PrivateHistory(ctx context.Context, userA, userB string, page, pageSize int) ([]store.Message, int, error) {
	return nil, 0, nil
}

func (f *fakeStore) GroupHistory(ctx context.Context, groupID string, page, pageSize int) ([]store.Message, int, error) {
	return nil, 0, nil
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/dohuyhi210/realtime-chat-app/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// asCaller is a test stand-in for the auth middleware.
func asCaller(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", userID)
		c.Next()
	}
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

// fakeStore implements the store interfaces with overridable behavior.
type fakeStore struct {
	createUser        func(ctx context.Context, username, nickname, passwordHash string) (store.User, error)
	getUserByUsername func(ctx context.Context, username string) (store.User, error)
	listUsers         func(ctx context.Context) ([]store.User, error)
	userExists        func(ctx context.Context, id string) (bool, error)

	createGroup    func(ctx context.Context, name, ownerID string) (store.Group, error)
	listGroups     func(ctx context.Context, memberID string) ([]store.Group, error)
	addGroupMember func(ctx context.Context, groupID, userID string) error
	isGroupMember  func(ctx context.Context, groupID, userID string) (bool, error)
	groupMemberIDs func(ctx context.Context, groupID string) ([]string, error)

	privateHistory func(ctx context.Context, userA, userB string, page, pageSize int) ([]store.Message, int, error)
	groupHistory   func(ctx context.Context, groupID string, page, pageSize int) ([]store.Message, int, error)
	unreadCounts   func(ctx context.Context, readerID string) (map[string]int, error)
}

var _ store.Store = (*fakeStore)(nil)

func (f *fakeStore) CreateUser(ctx context.Context, username, nickname, passwordHash string) (store.User, error) {
	if f.createUser != nil {
		return f.createUser(ctx, username, nickname, passwordHash)
	}
	return store.User{}, nil
}

func (f *fakeStore) GetUser(ctx context.Context, id string) (store.User, error) {
	return store.User{}, store.ErrNotFound
}

func (f *fakeStore) GetUserByUsername(ctx context.Context, username string) (store.User, error) {
	if f.getUserByUsername != nil {
		return f.getUserByUsername(ctx, username)
	}
	return store.User{}, store.ErrNotFound
}

func (f *fakeStore) ListUsers(ctx context.Context) ([]store.User, error) {
	if f.listUsers != nil {
		return f.listUsers(ctx)
	}
	return nil, nil
}

func (f *fakeStore) UserExists(ctx context.Context, id string) (bool, error) {
	if f.userExists != nil {
		return f.userExists(ctx, id)
	}
	return false, nil
}

func (f *fakeStore) UpdateLastSeen(ctx context.Context, id string, at int64) error { return nil }

func (f *fakeStore) CreateGroup(ctx context.Context, name, ownerID string) (store.Group, error) {
	if f.createGroup != nil {
		return f.createGroup(ctx, name, ownerID)
	}
	return store.Group{}, nil
}

func (f *fakeStore) GetGroup(ctx context.Context, id string) (store.Group, error) {
	return store.Group{}, store.ErrNotFound
}

func (f *fakeStore) ListGroups(ctx context.Context, memberID string) ([]store.Group, error) {
	if f.listGroups != nil {
		return f.listGroups(ctx, memberID)
	}
	return nil, nil
}

func (f *fakeStore) AddGroupMember(ctx context.Context, groupID, userID string) error {
	if f.addGroupMember != nil {
		return f.addGroupMember(ctx, groupID, userID)
	}
	return nil
}

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
	return store.Message{}, nil
}

func (f *fakeStore) AppendGroupMessage(ctx context.Context, senderID, groupID, content string) (store.Message, error) {
	return store.Message{}, nil
}

func (f *fakeStore) MarkRead(ctx context.Context, readerID, senderID string) (int64, error) {
	return 0, nil
}

func (f *fakeStore) UnreadCounts(ctx context.Context, readerID string) (map[string]int, error) {
	if f.unreadCounts != nil {
		return f.unreadCounts(ctx, readerID)
	}
	return nil, nil
}

func (f *fakeStore) PrivateHistory(ctx context.Context, userA, userB string, page, pageSize int) ([]store.Message, int, error) {
	if f.privateHistory != nil {
		return f.privateHistory(ctx, userA, userB, page, pageSize)
	}
	return nil, 0, nil
}

func (f *fakeStore) GroupHistory(ctx context.Context, groupID string, page, pageSize int) ([]store.Message, int, error) {
	if f.groupHistory != nil {
		return f.groupHistory(ctx, groupID, page, pageSize)
	}
	return nil, 0, nil
}

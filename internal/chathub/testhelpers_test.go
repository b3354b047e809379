package chathub_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"livedesk/backend/internal/chathub"
	"livedesk/backend/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory Storage implementation with per-call error
// injection, so coordination scenarios run without PostgreSQL or Redis.
type fakeStore struct {
	mu        sync.Mutex
	users     map[string]*models.User
	convs     map[string]*models.Conversation
	msgs      []models.Message
	nextMsgID uint
	clock     time.Time
	version   uint64
	presence  map[models.Role]map[string]bool

	saveMessageErr error
	closeErr       map[string]error
	versionErr     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[string]*models.User),
		convs:    make(map[string]*models.Conversation),
		clock:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		presence: make(map[models.Role]map[string]bool),
		closeErr: make(map[string]error),
	}
}

func (f *fakeStore) addUser(id, name string, role models.Role, liveCount int) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &models.User{
		ID:           id,
		Name:         name,
		Email:        id + "@example.edu",
		Role:         role,
		CurrentChats: liveCount,
	}
	f.users[id] = u
	cp := *u
	return &cp
}

func (f *fakeStore) tick() time.Time {
	f.clock = f.clock.Add(time.Millisecond)
	return f.clock
}

func cloneConv(c *models.Conversation) *models.Conversation {
	cp := *c
	cp.Participants = append([]models.Participant(nil), c.Participants...)
	return &cp
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) SetUserOnline(_ context.Context, id string, online bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		u.IsOnline = online
	}
	return nil
}

func (f *fakeStore) AdjustLiveCount(_ context.Context, id string, delta int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return 0, context.DeadlineExceeded
	}
	u.CurrentChats += delta
	if u.CurrentChats < 0 {
		u.CurrentChats = 0
	}
	return u.CurrentChats, nil
}

func (f *fakeStore) CreateConversation(_ context.Context, conv *models.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if conv.ID == "" {
		conv.ID = uuid.New().String()
	}
	conv.CreatedAt = f.tick()
	stored := cloneConv(conv)
	for i := range stored.Participants {
		if u, ok := f.users[stored.Participants[i].UserID]; ok {
			cp := *u
			stored.Participants[i].User = &cp
		}
	}
	f.convs[conv.ID] = stored
	return nil
}

func (f *fakeStore) GetConversationByID(_ context.Context, id string) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.convs[id]
	if !ok {
		return nil, nil
	}
	return cloneConv(c), nil
}

func (f *fakeStore) CloseConversation(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.closeErr[id]; err != nil {
		return false, err
	}
	c, ok := f.convs[id]
	if !ok || !c.IsActive {
		return false, nil
	}
	c.IsActive = false
	now := f.tick()
	c.EndedAt = &now
	return true, nil
}

func (f *fakeStore) ActiveConversationsFor(_ context.Context, userID string) ([]models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Conversation
	for _, c := range f.convs {
		if c.IsActive && c.HasParticipant(userID) {
			out = append(out, *cloneConv(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) ConversationsFor(_ context.Context, userID string, page, limit int) ([]models.Conversation, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []models.Conversation
	for _, c := range f.convs {
		if c.HasParticipant(userID) {
			all = append(all, *cloneConv(c))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := int64(len(all))
	start := (page - 1) * limit
	if start > len(all) {
		start = len(all)
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (f *fakeStore) SaveMessage(_ context.Context, msg *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveMessageErr != nil {
		return f.saveMessageErr
	}
	f.nextMsgID++
	msg.ID = f.nextMsgID
	msg.CreatedAt = f.tick()
	f.msgs = append(f.msgs, *msg)
	return nil
}

func (f *fakeStore) GetMessages(_ context.Context, conversationID string) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Message
	for _, m := range f.msgs {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) AddPresence(_ context.Context, role models.Role, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.presence[role] == nil {
		f.presence[role] = make(map[string]bool)
	}
	f.presence[role][userID] = true
	return nil
}

func (f *fakeStore) RemovePresence(_ context.Context, role models.Role, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.presence[role], userID)
	return nil
}

func (f *fakeStore) ListPresence(_ context.Context, role models.Role) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for id := range f.presence[role] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeStore) NextPresenceVersion(_ context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.versionErr != nil {
		return 0, f.versionErr
	}
	f.version++
	return f.version, nil
}

func (f *fakeStore) liveCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id].CurrentChats
}

func (f *fakeStore) messageCount(conversationID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.msgs {
		if m.ConversationID == conversationID {
			n++
		}
	}
	return n
}

// mockClient is an in-memory Client whose received events can be inspected.
type mockClient struct {
	id   string
	role models.Role
	recv chan models.Event

	mu     sync.Mutex
	closed bool
}

func newMockClient(id string, role models.Role) *mockClient {
	return &mockClient{
		id:   id,
		role: role,
		recv: make(chan models.Event, 64),
	}
}

func (c *mockClient) GetUserID() string                   { return c.id }
func (c *mockClient) GetRole() models.Role                { return c.role }
func (c *mockClient) GetSendChannel() chan<- models.Event { return c.recv }
func (c *mockClient) Run()                                {}

func (c *mockClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *mockClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// drain returns every event delivered so far without blocking.
func (c *mockClient) drain() []models.Event {
	var out []models.Event
	for {
		select {
		case ev := <-c.recv:
			out = append(out, ev)
		default:
			return out
		}
	}
}

// drainOf returns the delivered events with the given name.
func (c *mockClient) drainOf(name string) []models.Event {
	var out []models.Event
	for _, ev := range c.drain() {
		if ev.Event == name {
			out = append(out, ev)
		}
	}
	return out
}

func newTestHub() (*chathub.Hub, *fakeStore) {
	fs := newFakeStore()
	return chathub.NewHub(fs), fs
}

// connect registers a seeded identity with a fresh mock client.
func connect(t *testing.T, hub *chathub.Hub, fs *fakeStore, id string, role models.Role, liveCount int) (*models.User, *mockClient) {
	t.Helper()
	user := fs.addUser(id, "User "+id, role, liveCount)
	client := newMockClient(id, role)
	require.NoError(t, hub.Register(context.Background(), user, client))
	return user, client
}

package chathub_test

import (
	"context"
	"testing"

	"livedesk/backend/internal/chathub"
	"livedesk/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startConversation assigns a fresh conversation between a connected
// requester and responder and drains the setup noise from both clients.
func startConversation(t *testing.T, hub *chathub.Hub, fs *fakeStore) (*models.Conversation, *models.User, *mockClient, *models.User, *mockClient) {
	t.Helper()
	responder, respClient := connect(t, hub, fs, "resp-1", models.RoleResponder, 0)
	requester, reqClient := connect(t, hub, fs, "req-1", models.RoleRequester, 0)

	conv, err := hub.Assign(context.Background(), requester, "", false)
	require.NoError(t, err)

	require.NoError(t, hub.Join(context.Background(), conv.ID, requester, reqClient))
	require.NoError(t, hub.Join(context.Background(), conv.ID, responder, respClient))
	reqClient.drain()
	respClient.drain()
	return conv, requester, reqClient, responder, respClient
}

func TestJoin_UnknownConversation(t *testing.T) {
	hub, fs := newTestHub()
	user, client := connect(t, hub, fs, "req-1", models.RoleRequester, 0)

	err := hub.Join(context.Background(), "ghost", user, client)
	assert.ErrorIs(t, err, chathub.ErrNotFound)
}

func TestJoin_StrangerRejectedObserverAllowed(t *testing.T) {
	hub, fs := newTestHub()
	conv, _, _, _, respClient := startConversation(t, hub, fs)

	stranger, strangerClient := connect(t, hub, fs, "req-2", models.RoleRequester, 0)
	err := hub.Join(context.Background(), conv.ID, stranger, strangerClient)
	assert.ErrorIs(t, err, chathub.ErrUnauthorized)

	observer, obsClient := connect(t, hub, fs, "obs-1", models.RoleObserver, 0)
	require.NoError(t, hub.Join(context.Background(), conv.ID, observer, obsClient))

	// The observer is a real subscriber: it sees room traffic.
	respSender, _ := fs.GetUserByID(context.Background(), "resp-1")
	_, err = hub.SendMessage(context.Background(), conv.ID, respSender, "visible to observer")
	require.NoError(t, err)
	assert.Len(t, obsClient.drainOf(models.EventNewMessage), 1)
	assert.Len(t, respClient.drainOf(models.EventNewMessage), 1)
}

func TestLeave_Idempotent(t *testing.T) {
	hub, fs := newTestHub()
	conv, requester, reqClient, _, respClient := startConversation(t, hub, fs)

	hub.Leave(conv.ID, requester.ID)
	hub.Leave(conv.ID, requester.ID)
	hub.Leave("ghost", requester.ID)

	sender, _ := fs.GetUserByID(context.Background(), "resp-1")
	_, err := hub.SendMessage(context.Background(), conv.ID, sender, "after leave")
	require.NoError(t, err)
	assert.Empty(t, reqClient.drainOf(models.EventNewMessage))
	assert.Len(t, respClient.drainOf(models.EventNewMessage), 1)
}

func TestEnd_DecrementsAndBroadcasts(t *testing.T) {
	hub, fs := newTestHub()
	conv, requester, reqClient, _, respClient := startConversation(t, hub, fs)
	require.Equal(t, 1, fs.liveCount("resp-1"))

	require.NoError(t, hub.End(context.Background(), conv.ID, requester))

	assert.Equal(t, 0, fs.liveCount("req-1"))
	assert.Equal(t, 0, fs.liveCount("resp-1"))

	assert.Len(t, reqClient.drainOf(models.EventConversationEnded), 1)
	assert.Len(t, respClient.drainOf(models.EventConversationEnded), 1)

	stored, err := fs.GetConversationByID(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.NotNil(t, stored.EndedAt)
}

func TestEnd_Authorization(t *testing.T) {
	hub, fs := newTestHub()
	conv, _, _, _, _ := startConversation(t, hub, fs)

	stranger, _ := connect(t, hub, fs, "req-2", models.RoleRequester, 0)
	err := hub.End(context.Background(), conv.ID, stranger)
	assert.ErrorIs(t, err, chathub.ErrUnauthorized)

	observer, _ := connect(t, hub, fs, "obs-1", models.RoleObserver, 0)
	assert.NoError(t, hub.End(context.Background(), conv.ID, observer))

	err = hub.End(context.Background(), "ghost", observer)
	assert.ErrorIs(t, err, chathub.ErrNotFound)
}

func TestEnd_IdempotentSingleDecrementSingleBroadcast(t *testing.T) {
	hub, fs := newTestHub()
	conv, requester, reqClient, _, respClient := startConversation(t, hub, fs)

	require.NoError(t, hub.End(context.Background(), conv.ID, requester))
	require.NoError(t, hub.End(context.Background(), conv.ID, requester))

	assert.Equal(t, 0, fs.liveCount("req-1"))
	assert.Equal(t, 0, fs.liveCount("resp-1"))

	assert.Len(t, reqClient.drainOf(models.EventConversationEnded), 1)
	assert.Len(t, respClient.drainOf(models.EventConversationEnded), 1)
}

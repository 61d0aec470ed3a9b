package chat_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	. "github.com/klipach/courier/chat"
	"github.com/klipach/courier/errs"
	"github.com/klipach/courier/mocks"
	"github.com/klipach/courier/remote"
)

type notifierMock struct {
	mock.Mock
}

func (m *notifierMock) ScheduleMessageNotification(ctx context.Context, msg Message, from Contact) (string, error) {
	args := m.Called(ctx, msg, from)
	return args.String(0), args.Error(1)
}

func TestSendTextRejectsEmpty(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t"} {
		client := new(mocks.RemoteClientMock)
		_, err := NewMessageSync(client).SendText(context.Background(), "u1", "c1", text)
		assert.True(t, errs.IsValidation(err), "text %q", text)
		client.AssertNotCalled(t, "Push", mock.Anything, mock.Anything, mock.Anything)
		client.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	}
}

func TestSendTextUpdatesPreview(t *testing.T) {
	ctx := context.Background()
	store := remote.NewMemory()
	list := NewListSync(store, WithClock(fixedClock))
	id, err := list.CreateChat(ctx, "u1", NewChat{FirstName: "Ana", LastName: "Lee", Message: "hi"})
	require.NoError(t, err)

	msg, err := NewMessageSync(store, WithClock(fixedClock)).SendText(ctx, "u1", id, "see you at 10")
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "u1", msg.SenderID)
	assert.Equal(t, "09:07", msg.Time)
	assert.Equal(t, fixedClock().UnixMilli(), msg.Timestamp)

	chats, err := LoadChats(ctx, store, "u1")
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "see you at 10", chats[0].Message)
	assert.Equal(t, "09:07", chats[0].Time)
	assert.Equal(t, 0, chats[0].Unread)
	assert.Equal(t, "Ana", chats[0].FirstName)

	history, err := LoadHistory(ctx, store, "u1", id)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, msg, history[0])
}

func TestSendTextPreviewFailure(t *testing.T) {
	client := new(mocks.RemoteClientMock)
	client.On("Push", mock.Anything, "users/u1/chats/c1/messages", mock.Anything).Return("m1", nil).Once()
	client.On("Update", mock.Anything, "users/u1/chats/c1", mock.Anything).
		Return(&errs.RemoteUnavailableError{Op: "update", Path: "users/u1/chats/c1", Err: assert.AnError}).Once()

	msg, err := NewMessageSync(client, WithClock(fixedClock)).SendText(context.Background(), "u1", "c1", "hello")

	var stale *errs.StaleStateError
	require.ErrorAs(t, err, &stale)
	assert.Equal(t, "c1", stale.ChatID)
	assert.Equal(t, "m1", stale.MessageID)
	assert.True(t, errs.IsRemote(err))
	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, "hello", msg.Text())
	client.AssertExpectations(t)
}

func TestSendTextAppendFailure(t *testing.T) {
	client := new(mocks.RemoteClientMock)
	client.On("Push", mock.Anything, "users/u1/chats/c1/messages", mock.Anything).
		Return("", &errs.RemoteUnavailableError{Op: "push", Path: "users/u1/chats/c1/messages", Err: assert.AnError}).Once()

	_, err := NewMessageSync(client).SendText(context.Background(), "u1", "c1", "hello")
	assert.True(t, errs.IsRemote(err))
	client.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendMedia(t *testing.T) {
	tests := []struct {
		name    string
		payload Payload
		wantErr bool
	}{
		{name: "image", payload: Image{URI: "file:///photo.jpg"}},
		{name: "location", payload: Location{Latitude: -33.86, Longitude: 151.2}},
		{name: "image without uri", payload: Image{URI: " "}, wantErr: true},
		{name: "latitude out of range", payload: Location{Latitude: 91}, wantErr: true},
		{name: "longitude out of range", payload: Location{Longitude: -181}, wantErr: true},
		{name: "text is not media", payload: Text{Body: "hi"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := remote.NewMemory()
			id, err := NewListSync(store, WithClock(fixedClock)).CreateChat(ctx, "u1", NewChat{FirstName: "Ana", LastName: "Lee", Message: "hi"})
			require.NoError(t, err)

			msg, err := NewMessageSync(store, WithClock(fixedClock)).SendMedia(ctx, "u1", id, tt.payload)
			history, herr := LoadHistory(ctx, store, "u1", id)
			require.NoError(t, herr)
			if tt.wantErr {
				assert.True(t, errs.IsValidation(err))
				assert.Empty(t, history)
				return
			}
			require.NoError(t, err)
			require.Len(t, history, 1)
			assert.Equal(t, tt.payload, history[0].Payload)
			assert.Equal(t, msg.ID, history[0].ID)

			// media sends leave the chat preview untouched
			chats, err := LoadChats(ctx, store, "u1")
			require.NoError(t, err)
			require.Len(t, chats, 1)
			assert.Equal(t, "hi", chats[0].Message)
			assert.Equal(t, 1, chats[0].Unread)
		})
	}
}

func TestMessageSubscribeOrder(t *testing.T) {
	ctx := context.Background()
	store := remote.NewMemory()
	sender := NewMessageSync(store, WithClock(fixedClock))
	stream := NewMessageSync(store)
	got := &collect[Message]{}

	require.NoError(t, stream.Subscribe(ctx, "u1", "c1", got.add, nil))
	assert.Empty(t, got.last())

	texts := []string{"one", "two", "three"}
	for _, text := range texts {
		_, err := sender.SendText(ctx, "u1", "c1", text)
		require.NoError(t, err)
	}
	require.Len(t, got.last(), len(texts))
	for i, text := range texts {
		assert.Equal(t, text, got.last()[i].Text())
	}

	require.NoError(t, stream.Close())
	assert.Equal(t, 0, store.Subscribers())
}

func TestMessageSubscribeSkipsMalformed(t *testing.T) {
	ctx := context.Background()
	store := remote.NewMemory()
	require.NoError(t, store.Set(ctx, "users/u1/chats/c1/messages/a", map[string]any{"text": "ok", "senderId": "u2"}))
	require.NoError(t, store.Set(ctx, "users/u1/chats/c1/messages/b", map[string]any{"type": "image", "text": "wrong"}))
	require.NoError(t, store.Set(ctx, "users/u1/chats/c1/messages/c", "garbage"))

	got := &collect[Message]{}
	require.NoError(t, NewMessageSync(store).Subscribe(ctx, "u1", "c1", got.add, nil))
	require.Len(t, got.last(), 1)
	assert.Equal(t, "a", got.last()[0].ID)
	assert.Equal(t, "ok", got.last()[0].Text())
}

func TestSwitchingChatsKeepsOneSubscription(t *testing.T) {
	ctx := context.Background()
	store := remote.NewMemory()
	stream := NewMessageSync(store)
	first := &collect[Message]{}
	second := &collect[Message]{}

	require.NoError(t, stream.Subscribe(ctx, "u1", "c1", first.add, nil))
	require.NoError(t, stream.Subscribe(ctx, "u1", "c2", second.add, nil))
	assert.Equal(t, 1, store.Subscribers())
	assert.True(t, stream.Active())

	_, err := NewMessageSync(store).SendText(ctx, "u1", "c1", "late")
	require.NoError(t, err)
	assert.Len(t, first.got, 1)
	assert.Len(t, second.got, 1)

	require.NoError(t, stream.Close())
	assert.False(t, stream.Active())
}

func TestIncomingMessagesNotify(t *testing.T) {
	ctx := context.Background()
	store := remote.NewMemory()
	id, err := NewListSync(store).CreateChat(ctx, "me", NewChat{FirstName: "Ana", LastName: "Lee"})
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "users/me/chats/"+id+"/messages/0", map[string]any{"text": "old", "senderId": "ana"}))

	notifier := new(notifierMock)
	notifier.On("ScheduleMessageNotification", mock.Anything,
		mock.MatchedBy(func(m Message) bool { return m.Text() == "new" }),
		Contact{ID: id, FirstName: "Ana", LastName: "Lee"},
	).Return("n1", nil).Once()

	stream := NewMessageSync(store, WithNotifier(notifier))
	require.NoError(t, stream.Subscribe(ctx, "me", id, func([]Message) {}, nil))

	// own messages never notify
	_, err = NewMessageSync(store).SendText(ctx, "me", id, "mine")
	require.NoError(t, err)
	_, err = store.Push(ctx, "users/me/chats/"+id+"/messages", map[string]any{"text": "new", "senderId": "ana"})
	require.NoError(t, err)

	notifier.AssertExpectations(t)
	notifier.AssertNumberOfCalls(t, "ScheduleMessageNotification", 1)
	require.NoError(t, stream.Close())
}

func TestIncomingMessagesPermissionDenied(t *testing.T) {
	ctx := context.Background()
	store := remote.NewMemory()
	notifier := new(notifierMock)
	notifier.On("ScheduleMessageNotification", mock.Anything, mock.Anything, mock.Anything).
		Return("", errs.ErrPermissionDenied)

	got := &collect[Message]{}
	stream := NewMessageSync(store, WithNotifier(notifier))
	require.NoError(t, stream.Subscribe(ctx, "me", "c1", got.add, nil))

	_, err := store.Push(ctx, "users/me/chats/c1/messages", map[string]any{"text": "one", "senderId": "ana"})
	require.NoError(t, err)
	_, err = store.Push(ctx, "users/me/chats/c1/messages", map[string]any{"text": "two", "senderId": "ana"})
	require.NoError(t, err)

	assert.Len(t, got.last(), 2)
	notifier.AssertNumberOfCalls(t, "ScheduleMessageNotification", 2)
}

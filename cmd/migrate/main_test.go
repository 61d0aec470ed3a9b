package main

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klipach/courier/account"
	"github.com/klipach/courier/chat"
	"github.com/klipach/courier/remote"
)

const sample = `{
  "users": {
    "u1": {
      "username": "ana",
      "email": "ana@example.com",
      "pushToken": "tok",
      "chats": {
        "c1": {
          "firstName": "Bo", "lastName": "Ray", "message": "ok", "time": "10:00", "unread": 2, "online": false,
          "messages": {
            "m1": {"text": "hi", "senderId": "u1", "timestamp": 1, "time": "09:59"},
            "m2": {"type": "location", "location": {"latitude": 1, "longitude": 2}, "senderId": "c1", "timestamp": 2, "time": "10:00"}
          }
        }
      }
    }
  },
  "usernames": {"ana": "u1"}
}`

func TestImportExport(t *testing.T) {
	ctx := context.Background()
	store := remote.NewMemory()
	var e export
	require.NoError(t, json.Unmarshal([]byte(sample), &e))

	c, err := importExport(ctx, store, e)
	require.NoError(t, err)
	assert.Equal(t, counts{Users: 1, Chats: 1, Messages: 2, Usernames: 1}, c)

	chats, err := chat.LoadChats(ctx, store, "u1")
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "Bo", chats[0].FirstName)
	assert.Equal(t, 2, chats[0].Unread)

	msgs, err := chat.LoadHistory(ctx, store, "u1", "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hi", msgs[0].Text())
	assert.Equal(t, chat.Location{Latitude: 1, Longitude: 2}, msgs[1].Payload)

	email, err := account.NewDirectory(store, nil).ResolveLogin(ctx, "ana", "secret")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", email)
}

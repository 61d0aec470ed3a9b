package chat_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/klipach/courier/chat"
)

func TestMessageDecode(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected Payload
		wantErr  bool
	}{
		{
			name:     "text without type tag",
			raw:      `{"text":"hi","senderId":"u1","timestamp":1,"time":"10:00"}`,
			expected: Text{Body: "hi"},
		},
		{
			name:     "tagged text",
			raw:      `{"type":"text","text":"hi","senderId":"u1","timestamp":1,"time":"10:00"}`,
			expected: Text{Body: "hi"},
		},
		{
			name:     "image",
			raw:      `{"type":"image","image":{"uri":"file:///a.jpg"},"senderId":"u1","timestamp":1,"time":"10:00"}`,
			expected: Image{URI: "file:///a.jpg"},
		},
		{
			name:     "location",
			raw:      `{"type":"location","location":{"latitude":52.5,"longitude":13.4},"senderId":"u1","timestamp":1,"time":"10:00"}`,
			expected: Location{Latitude: 52.5, Longitude: 13.4},
		},
		{
			name:    "tag does not match payload",
			raw:     `{"type":"image","location":{"latitude":1,"longitude":2}}`,
			wantErr: true,
		},
		{
			name:    "two payloads",
			raw:     `{"type":"text","text":"hi","image":{"uri":"x"}}`,
			wantErr: true,
		},
		{
			name:    "no payload",
			raw:     `{"senderId":"u1"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Message
			err := json.Unmarshal([]byte(tt.raw), &m)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, m.Payload)
			assert.Equal(t, tt.expected.Kind(), m.Kind())
		})
	}
}

func TestMessageEncodeWritesOneArm(t *testing.T) {
	raw, err := json.Marshal(Message{SenderID: "u1", Timestamp: 5, Time: "09:15", Payload: Image{URI: "file:///p.png"}})
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, "image", fields["type"])
	assert.Equal(t, map[string]any{"uri": "file:///p.png"}, fields["image"])
	assert.NotContains(t, fields, "text")
	assert.NotContains(t, fields, "location")
	assert.Equal(t, "u1", fields["senderId"])
}

func TestChatDecode(t *testing.T) {
	var c Chat
	require.NoError(t, json.Unmarshal([]byte(`{"firstName":"Ana","lastName":"Lee","message":"hi","time":"10:00","unread":-3,"online":true,"image":7,"messages":{"m1":{"text":"x"}}}`), &c))
	assert.Equal(t, 0, c.Unread)
	assert.Equal(t, ImageRef("asset:7"), c.Image)
	assert.Equal(t, "Ana Lee", c.FullName())

	require.NoError(t, json.Unmarshal([]byte(`{"firstName":"Bo","image":{"uri":"https://img/bo.png"}}`), &c))
	assert.Equal(t, ImageRef("https://img/bo.png"), c.Image)
}

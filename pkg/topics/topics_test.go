package topics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuilder(t *testing.T) {
	b := NewBuilder("")

	tbl := []struct {
		name string
		got  string
		want string
	}{
		{"follows to", b.UserFollows("", "1337"), "https://api.twitch.tv/helix/users/follows?first=1&to_id=1337"},
		{"follows from", b.UserFollows("1336", ""), "https://api.twitch.tv/helix/users/follows?first=1&from_id=1336"},
		{"follows both", b.UserFollows("1336", "1337"), "https://api.twitch.tv/helix/users/follows?first=1&from_id=1336&to_id=1337"},
		{"streams", b.StreamChanged("5678"), "https://api.twitch.tv/helix/streams?user_id=5678"},
		{"users", b.UserChanged("1234"), "https://api.twitch.tv/helix/users?id=1234"},
		{"extensions", b.ExtensionTransactions("abc"), "https://api.twitch.tv/helix/extensions/transactions?extension_id=abc&first=1"},
		{"moderators", b.ModeratorChanged("42"), "https://api.twitch.tv/helix/moderation/moderators/events?broadcaster_id=42&first=1"},
	}
	for _, tc := range tbl {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.got)
		})
	}
}

func TestBuilder_customBase(t *testing.T) {
	b := NewBuilder("http://localhost:8080/helix")
	assert.Equal(t, "http://localhost:8080/helix/streams?user_id=1", b.StreamChanged("1"))
}
